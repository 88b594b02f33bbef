package flash

import (
	"context"
	"fmt"
	"math"
	"time"

	"FlashScan/internal/domain/models"
)

// Observer is called after every processed bar with the row recorded for it.
type Observer func(index int, bar models.Bar, row models.TallyRow)

// Option configures Engine.
type Option func(*Engine)

// WithObserver registers fn to receive every tally row as it is produced.
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithContext makes Run stop with ctx.Err() once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// WithCapacity preallocates the tally series for n bars.
func WithCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.rows = make([]models.TallyRow, 0, n)
		}
	}
}

// Engine runs the flash lifecycle over one bar series. It is not safe for concurrent use.
type Engine struct {
	grace    int
	reg      *Registry
	tally    Tally
	rows     []models.TallyRow
	closed   []models.Flash
	stunted  []models.Flash
	nextID   int
	index    int
	lastTime time.Time
	observer Observer
	ctx      context.Context

	// scratch reused across bars
	done  []int
	kinds []transition
}

// New validates params and returns an engine ready for the first bar.
func New(params models.EngineParams, opts ...Option) (*Engine, error) {
	if params.GracePeriod <= 0 {
		return nil, fmt.Errorf("%w: grace_period must be positive, got %d", ErrInvalidConfiguration, params.GracePeriod)
	}
	if params.MaxActive < 0 {
		return nil, fmt.Errorf("%w: max_active must not be negative, got %d", ErrInvalidConfiguration, params.MaxActive)
	}
	e := &Engine{
		grace: params.GracePeriod,
		reg:   NewRegistry(params.MaxActive),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Step consumes the next bar and returns the tally row recorded for it.
func (e *Engine) Step(bar models.Bar) (models.TallyRow, error) {
	if reason := e.checkBar(bar); reason != "" {
		return models.TallyRow{}, &BarError{Index: e.index, Time: bar.Time, Reason: reason, Err: ErrMalformedBar}
	}

	e.done = e.done[:0]
	e.kinds = e.kinds[:0]
	e.reg.Each(func(i int, f *models.Flash) {
		if tr := advance(f, bar, e.grace, &e.tally); tr != stay {
			e.done = append(e.done, i)
			e.kinds = append(e.kinds, tr)
		}
	})

	for k, f := range e.reg.RemoveBatch(e.done) {
		switch e.kinds[k] {
		case migrateClosed:
			e.closed = append(e.closed, *f)
		case migrateStunted:
			e.stunted = append(e.stunted, *f)
		}
	}

	row := e.tally.Row(bar.Time)

	if bar.Trigger == models.TriggerStart {
		f := &models.Flash{
			ID:            e.nextID + 1,
			OriginTime:    bar.Time,
			Age:           1,
			Stage:         models.StageFlash,
			FlashOpen:     bar.Open,
			FlashHigh:     bar.High,
			FlashLow:      bar.Low,
			FlashDuration: 1,
		}
		if err := e.reg.Insert(f); err != nil {
			return models.TallyRow{}, &BarError{
				Index:  e.index,
				Time:   bar.Time,
				Reason: fmt.Sprintf("%d flashes active", e.reg.Len()),
				Err:    err,
			}
		}
		e.nextID++
	}

	e.rows = append(e.rows, row)
	if e.observer != nil {
		e.observer(e.index, bar, row)
	}
	e.lastTime = bar.Time
	e.index++
	return row, nil
}

func (e *Engine) checkBar(bar models.Bar) string {
	if bar.Time.IsZero() {
		return "missing time"
	}
	for _, p := range [...]float64{bar.Open, bar.High, bar.Low, bar.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return "missing or non-finite price"
		}
	}
	if bar.High < bar.Low {
		return "high below low"
	}
	// A bar whose open lies outside its own range would let a window open above the high it
	// records, and the favorable excursion of a closed flash could turn negative.
	if bar.Open < bar.Low || bar.Open > bar.High || bar.Close < bar.Low || bar.Close > bar.High {
		return "open or close outside high/low range"
	}
	if !bar.Trigger.Valid() {
		return fmt.Sprintf("ambiguous trigger %d", int8(bar.Trigger))
	}
	if e.index > 0 && !bar.Time.After(e.lastTime) {
		return "time not increasing"
	}
	return ""
}

// Bars returns the number of bars consumed so far.
func (e *Engine) Bars() int { return e.index }

// Tally returns the current counters.
func (e *Engine) Tally() Tally { return e.tally }

// Finish computes outcomes for the closed flashes and returns the four result sets.
// The engine state is left untouched, so Finish may be called more than once.
func (e *Engine) Finish() *models.AnalysisResult {
	closed := append([]models.Flash(nil), e.closed...)
	issues := ComputeOutcomes(closed)
	return &models.AnalysisResult{
		Tally:   append([]models.TallyRow(nil), e.rows...),
		Active:  e.reg.Snapshot(),
		Closed:  closed,
		Stunted: append([]models.Flash(nil), e.stunted...),
		Issues:  issues,
	}
}

// Run processes bars in one pass and returns the final result.
func Run(params models.EngineParams, bars []models.Bar, opts ...Option) (*models.AnalysisResult, error) {
	e, err := New(params, append([]Option{WithCapacity(len(bars))}, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, b := range bars {
		if e.ctx != nil {
			if err := e.ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := e.Step(b); err != nil {
			return nil, err
		}
	}
	return e.Finish(), nil
}
