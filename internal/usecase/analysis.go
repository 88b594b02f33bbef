package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	"FlashScan/internal/domain/service"
	"FlashScan/internal/services/flash"
	"FlashScan/internal/services/signals"
	applogger "FlashScan/pkg/logger"
)

var (
	ErrInvalidRequest = errors.New("invalid analysis request")
	ErrTooManyBars    = errors.New("series exceeds bar limit")
)

// AnalysisUseCase loads a series, derives triggers, runs the flash engine and hands the
// finished run to the result store and publisher.
type AnalysisUseCase struct {
	source  domrepo.BarSource
	store   domrepo.ResultStore
	pub     domrepo.FlashPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	engine  models.EngineParams
	signals models.SignalParams
	maxBars int

	newID func() string
	now   func() time.Time
}

type AnalysisOption func(*AnalysisUseCase)

// WithResultStore persists every finished run.
func WithResultStore(s domrepo.ResultStore) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.store = s }
}

// WithPublisher emits closed flashes and the run summary after persistence.
func WithPublisher(p domrepo.FlashPublisher) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.pub = p }
}

// WithDefaults sets the parameters used when a query leaves them zero.
func WithDefaults(engine models.EngineParams, sig models.SignalParams) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		uc.engine = engine
		uc.signals = sig
	}
}

// WithMaxBars rejects series longer than n bars (0 disables the check).
func WithMaxBars(n int) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.maxBars = n }
}

func NewAnalysisUseCase(source domrepo.BarSource, metrics domrepo.Metrics, l *applogger.Logger, opts ...AnalysisOption) *AnalysisUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	uc := &AnalysisUseCase{
		source:  source,
		metrics: metrics,
		l:       l,
		engine:  models.EngineParams{GracePeriod: 7},
		signals: signals.DefaultParams(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Analyze runs the engine over the stored bars of q.Symbol in [q.From, q.To]. The indicators
// are warmed up on the last Warmup bars before q.From, counted in bars so gaps in the data
// (weekends, halts) never eat into the requested range. Without q.From the first Warmup bars
// of the series are the warm-up.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, q models.AnalysisQuery, opts ...flash.Option) (*models.AnalysisRun, error) {
	if uc.source == nil {
		return nil, fmt.Errorf("%w: no bar source configured", ErrInvalidRequest)
	}
	tf, err := uc.checkQuery(&q)
	if err != nil {
		return nil, err
	}
	sp := uc.signals
	if q.Signals != nil {
		sp = *q.Signals
	}
	if sp.Warmup < 0 {
		return nil, fmt.Errorf("%w: warmup must not be negative", ErrInvalidRequest)
	}

	start := time.Now()
	candles, warm, err := uc.load(ctx, q, tf, sp.Warmup)
	uc.metrics.RecordLatency("load_bars", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("load_bars")
		uc.l.Error("analysis load error", applogger.String("symbol", q.Symbol), applogger.Error(err))
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if uc.maxBars > 0 && len(candles)-warm > uc.maxBars {
		return nil, fmt.Errorf("%w: %d bars, limit %d", ErrTooManyBars, len(candles)-warm, uc.maxBars)
	}

	p := sp
	p.Warmup = warm
	rows, err := signals.Preprocess(candles, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	run, err := uc.run(ctx, q, signals.Bars(rows), opts)
	if err != nil {
		return nil, err
	}
	run.Signals = &sp
	return run, nil
}

// load returns the warm-up bars followed by the requested range, and how many of them are
// warm-up.
func (uc *AnalysisUseCase) load(ctx context.Context, q models.AnalysisQuery, tf domrepo.Timeframe, warmup int) ([]models.Bar, int, error) {
	bars, err := uc.source.GetBars(ctx, q.Symbol, q.From, q.To, tf)
	if err != nil {
		return nil, 0, err
	}
	if q.From.IsZero() {
		return bars, min(warmup, len(bars)), nil
	}
	if warmup <= 0 {
		return bars, 0, nil
	}
	prefix, err := uc.source.GetBarsBefore(ctx, q.Symbol, q.From, warmup, tf)
	if err != nil {
		return nil, 0, err
	}
	if len(prefix) > warmup {
		prefix = prefix[len(prefix)-warmup:]
	}
	if len(prefix) > 0 {
		if span := q.From.Sub(prefix[0].Time); span > time.Duration(len(prefix))*tf.Duration() {
			uc.l.Debug("warm-up spans a gap",
				applogger.String("symbol", q.Symbol),
				applogger.Int("bars", len(prefix)),
				applogger.Duration("span", span),
			)
		}
	}
	return append(prefix, bars...), len(prefix), nil
}

// AnalyzeBars runs the engine over bars that already carry their triggers.
func (uc *AnalysisUseCase) AnalyzeBars(ctx context.Context, q models.AnalysisQuery, bars []models.Bar, opts ...flash.Option) (*models.AnalysisRun, error) {
	if _, err := uc.checkQuery(&q); err != nil {
		return nil, err
	}
	if uc.maxBars > 0 && len(bars) > uc.maxBars {
		return nil, fmt.Errorf("%w: %d bars, limit %d", ErrTooManyBars, len(bars), uc.maxBars)
	}
	if len(bars) > 0 {
		if q.From.IsZero() {
			q.From = bars[0].Time
		}
		if q.To.IsZero() {
			q.To = bars[len(bars)-1].Time
		}
	}
	return uc.run(ctx, q, bars, opts)
}

func (uc *AnalysisUseCase) checkQuery(q *models.AnalysisQuery) (domrepo.Timeframe, error) {
	q.Symbol = strings.TrimSpace(q.Symbol)
	if q.Symbol == "" {
		return "", fmt.Errorf("%w: symbol required", ErrInvalidRequest)
	}
	tf, err := domrepo.ParseTimeframe(q.Timeframe)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	q.Timeframe = string(tf)
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return "", fmt.Errorf("%w: from must be <= to", ErrInvalidRequest)
	}
	if q.Engine.GracePeriod == 0 {
		q.Engine.GracePeriod = uc.engine.GracePeriod
	}
	if q.Engine.MaxActive == 0 {
		q.Engine.MaxActive = uc.engine.MaxActive
	}
	return tf, nil
}

func (uc *AnalysisUseCase) run(ctx context.Context, q models.AnalysisQuery, bars []models.Bar, opts []flash.Option) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{
		RunID:     uc.newID(),
		Symbol:    q.Symbol,
		Timeframe: q.Timeframe,
		From:      q.From,
		To:        q.To,
		Engine:    q.Engine,
		Bars:      len(bars),
		StartedAt: uc.now().UTC(),
	}
	log := uc.l.With(applogger.String("run_id", run.RunID), applogger.String("symbol", run.Symbol))

	start := time.Now()
	res, err := flash.Run(q.Engine, bars, append([]flash.Option{flash.WithContext(ctx)}, opts...)...)
	elapsed := time.Since(start)
	if err != nil && ctx.Err() != nil {
		log.Info("analysis cancelled", applogger.Int("bars", len(bars)), applogger.Error(err))
		return nil, err
	}
	if err != nil {
		uc.metrics.RecordError("engine")
		log.Error("analysis engine error", applogger.Int("bars", len(bars)), applogger.Error(err))
		return nil, err
	}
	run.Result = res
	run.DurationMs = elapsed.Milliseconds()

	uc.metrics.RecordRun(run.Symbol, run.Bars, len(res.Active), len(res.Closed), len(res.Stunted), elapsed.Seconds())
	if len(res.Issues) > 0 {
		uc.metrics.RecordIssues(run.Symbol, len(res.Issues))
		log.Warn("degenerate outcomes", applogger.Int("count", len(res.Issues)))
	}
	log.Info("analysis done",
		applogger.Int("bars", run.Bars),
		applogger.Int("active", len(res.Active)),
		applogger.Int("closed", len(res.Closed)),
		applogger.Int("stunted", len(res.Stunted)),
		applogger.Int64("duration_ms", run.DurationMs),
	)

	if uc.store != nil {
		t := time.Now()
		err := uc.store.SaveRun(ctx, run)
		uc.metrics.RecordLatency("save_run", time.Since(t).Seconds())
		if err != nil {
			uc.metrics.RecordError("save_run")
			log.Error("save run error", applogger.Error(err))
			return nil, fmt.Errorf("save run: %w", err)
		}
	}

	// Publishing is best effort: the run is already computed and stored.
	if uc.pub != nil {
		if err := uc.pub.PublishClosed(ctx, run); err != nil {
			uc.metrics.RecordError("publish_closed")
			log.Warn("publish closed flashes error", applogger.Error(err))
		}
		if err := uc.pub.PublishSummary(ctx, run); err != nil {
			uc.metrics.RecordError("publish_summary")
			log.Warn("publish summary error", applogger.Error(err))
		}
	}
	return run, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string, int, int, int, int, float64) {}
func (nopMetrics) RecordIssues(string, int)                      {}
func (nopMetrics) RecordError(string)                            {}
func (nopMetrics) RecordLatency(string, float64)                 {}

var _ service.Analyzer = (*AnalysisUseCase)(nil)
