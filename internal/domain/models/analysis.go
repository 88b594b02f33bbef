package models

import "time"

// EngineParams configures one flash engine pass.
type EngineParams struct {
	GracePeriod int `json:"grace_period" yaml:"grace_period"`
	MaxActive   int `json:"max_active" yaml:"max_active"`
}

// SignalParams configures the trigger preprocessor.
type SignalParams struct {
	ADXLookback  int     `json:"adx_lookback" yaml:"adx_lookback"`
	ADXThreshold float64 `json:"adx_threshold" yaml:"adx_threshold"`
	BBLookback   int     `json:"bb_lookback" yaml:"bb_lookback"`
	BBStdDev     float64 `json:"bb_std_dev" yaml:"bb_std_dev"`
	BBCloses     int     `json:"bb_closes" yaml:"bb_closes"`
	Warmup       int     `json:"warmup" yaml:"warmup"`
}

// OutcomeIssue records a closed flash whose outcome ratios are degenerate.
type OutcomeIssue struct {
	FlashID    int       `json:"flash_id"`
	OriginTime time.Time `json:"origin_time"`
	Reason     string    `json:"reason"`
}

// AnalysisResult holds the four result sets of one engine pass.
type AnalysisResult struct {
	Tally   []TallyRow     `json:"tally"`
	Active  []Flash        `json:"active"`
	Closed  []Flash        `json:"closed"`
	Stunted []Flash        `json:"stunted"`
	Issues  []OutcomeIssue `json:"issues,omitempty"`
}

// Last returns the final tally row, or a zero row for an empty series.
func (r *AnalysisResult) Last() TallyRow {
	if r == nil || len(r.Tally) == 0 {
		return TallyRow{}
	}
	return r.Tally[len(r.Tally)-1]
}

// AnalysisRun is a persisted/published analysis with its provenance.
type AnalysisRun struct {
	RunID      string          `json:"run_id"`
	Symbol     string          `json:"symbol"`
	Timeframe  string          `json:"timeframe"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Engine     EngineParams    `json:"engine"`
	Signals    *SignalParams   `json:"signals,omitempty"`
	Bars       int             `json:"bars"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMs int64           `json:"duration_ms"`
	Result     *AnalysisResult `json:"result"`
}

// FlashEvent is the message published for each closed flash.
type FlashEvent struct {
	RunID     string `json:"run_id"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Flash     Flash  `json:"flash"`
}

// RunSummary is the compact form of an AnalysisRun published after each run.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Symbol      string       `json:"symbol"`
	Timeframe   string       `json:"timeframe"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Engine      EngineParams `json:"engine"`
	Bars        int          `json:"bars"`
	Final       TallyRow     `json:"final"`
	ActiveCount int          `json:"active_count"`
	Issues      int          `json:"issues"`
	DurationMs  int64        `json:"duration_ms"`
}

// Summary builds the compact summary of r.
func (r *AnalysisRun) Summary() RunSummary {
	s := RunSummary{
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		Timeframe:  r.Timeframe,
		From:       r.From,
		To:         r.To,
		Engine:     r.Engine,
		Bars:       r.Bars,
		DurationMs: r.DurationMs,
	}
	if r.Result != nil {
		s.Final = r.Result.Last()
		s.ActiveCount = len(r.Result.Active)
		s.Issues = len(r.Result.Issues)
	}
	return s
}

// AnalysisQuery selects the series and parameters for one analysis run. Zero engine fields
// fall back to the configured defaults; a nil Signals uses the default preprocessor settings.
type AnalysisQuery struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Engine    EngineParams
	Signals   *SignalParams
}

// BarsQuery is a bounded bar lookup.
type BarsQuery struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Limit     int
}

type BarsResult struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Count     int       `json:"count"`
	Bars      []Bar     `json:"bars"`
}
