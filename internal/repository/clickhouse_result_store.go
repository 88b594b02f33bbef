package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
	pkgch "FlashScan/pkg/clickhouse"
)

const chunkSize = 2000

// CHResultStore implements ResultStore for ClickHouse.
type CHResultStore struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
}

// NewCHResultStore creates ClickHouse result storage.
func NewCHResultStore(ch *pkgch.Client) repository.ResultStore {
	db := ch.Database()
	if db == "" {
		db = "flashscan"
	}
	return &CHResultStore{client: ch, db: ch.DB(), database: db}
}

func (s *CHResultStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx)
}

func (s *CHResultStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("save run: empty run")
	}
	ctx, cancel := s.client.WithWriteDeadline(ctx)
	defer cancel()

	res := run.Result
	q := fmt.Sprintf(`INSERT INTO %s.flash_runs (run_id, symbol, timeframe, from_ts, to_ts, grace_period,
        bars, active, closed, stunted, issues, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		run.RunID, run.Symbol, run.Timeframe, run.From, run.To, uint32(run.Engine.GracePeriod),
		uint32(run.Bars), uint32(len(res.Active)), uint32(len(res.Closed)), uint32(len(res.Stunted)),
		uint32(len(res.Issues)), run.StartedAt, run.DurationMs,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	flashes := flashRows(run)
	for start := 0; start < len(flashes); start += chunkSize {
		end := min(start+chunkSize, len(flashes))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(flashColumns))
		for _, r := range flashes[start:end] {
			values = append(values, placeholders(len(flashColumns)))
			args = append(args, r...)
		}
		q := fmt.Sprintf("INSERT INTO %s.flashes (%s) VALUES %s", s.database, strings.Join(flashColumns, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert flashes: %w", err)
		}
	}

	for start := 0; start < len(res.Tally); start += chunkSize {
		end := min(start+chunkSize, len(res.Tally))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*7)
		for _, row := range res.Tally[start:end] {
			values = append(values, placeholders(7))
			args = append(args, run.RunID, row.Time,
				uint32(row.ActiveBullish), uint32(row.ActiveBearish),
				uint32(row.ClosedBullish), uint32(row.ClosedBearish), uint32(row.Stunted))
		}
		q := fmt.Sprintf(`INSERT INTO %s.flash_tally (run_id, ts, active_bullish, active_bearish, closed_bullish,
            closed_bearish, stunted) VALUES %s`, s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert tally: %w", err)
		}
	}
	return nil
}

func (s *CHResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHResultStore) Close() error {
	return nil // Managed by pkg
}

var flashColumns = []string{
	"run_id", "flash_id", "state", "origin_time", "age", "stage",
	"flash_open", "flash_high", "flash_low", "flash_duration",
	"window_open", "window_high", "window_low", "window_duration",
	"hold_open", "hold_high", "hold_low", "hold_duration",
	"bias", "max_favorable", "max_adverse", "degenerate",
}

// flashRows flattens the three flash collections of run into insert rows tagged with their state.
func flashRows(run *models.AnalysisRun) [][]any {
	res := run.Result
	out := make([][]any, 0, len(res.Active)+len(res.Closed)+len(res.Stunted))
	add := func(state string, set []models.Flash) {
		for _, f := range set {
			var deg uint8
			if f.Degenerate {
				deg = 1
			}
			out = append(out, []any{
				run.RunID, uint32(f.ID), state, f.OriginTime, uint32(f.Age), f.Stage.String(),
				f.FlashOpen, f.FlashHigh, f.FlashLow, uint32(f.FlashDuration),
				f.WindowOpen, f.WindowHigh, f.WindowLow, uint32(f.WindowDuration),
				f.HoldOpen, f.HoldHigh, f.HoldLow, uint32(f.HoldDuration),
				int8(f.Bias), f.MaxFavorable, f.MaxAdverse, deg,
			})
		}
	}
	add("active", res.Active)
	add("closed", res.Closed)
	add("stunted", res.Stunted)
	return out
}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
