package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FlashScan/internal/domain/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteResultStore persists analysis runs to a local SQLite file. One transaction per run.
type SQLiteResultStore struct {
	db *sql.DB
}

// NewSQLiteResultStore opens path in WAL mode with a single writer connection.
func NewSQLiteResultStore(path string) (*SQLiteResultStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &SQLiteResultStore{db: db}, nil
}

func (s *SQLiteResultStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS flash_runs (
			run_id       TEXT    PRIMARY KEY,
			symbol       TEXT    NOT NULL,
			timeframe    TEXT    NOT NULL,
			from_ts      INTEGER NOT NULL,
			to_ts        INTEGER NOT NULL,
			grace_period INTEGER NOT NULL,
			max_active   INTEGER NOT NULL,
			bars         INTEGER NOT NULL,
			started_at   INTEGER NOT NULL,
			duration_ms  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS flashes (
			run_id          TEXT    NOT NULL,
			flash_id        INTEGER NOT NULL,
			state           TEXT    NOT NULL,
			origin_time     INTEGER NOT NULL,
			age             INTEGER NOT NULL,
			stage           INTEGER NOT NULL,
			flash_open REAL, flash_high REAL, flash_low REAL, flash_duration INTEGER,
			window_open REAL, window_high REAL, window_low REAL, window_duration INTEGER,
			hold_open REAL, hold_high REAL, hold_low REAL, hold_duration INTEGER,
			bias            INTEGER NOT NULL,
			max_favorable   REAL,
			max_adverse     REAL,
			degenerate      INTEGER NOT NULL DEFAULT 0,
			seq             INTEGER NOT NULL,
			PRIMARY KEY (run_id, flash_id)
		);

		CREATE TABLE IF NOT EXISTS flash_tally (
			run_id         TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			active_bullish INTEGER NOT NULL,
			active_bearish INTEGER NOT NULL,
			closed_bullish INTEGER NOT NULL,
			closed_bearish INTEGER NOT NULL,
			stunted        INTEGER NOT NULL,
			PRIMARY KEY (run_id, ts)
		);
	`)
	if err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteResultStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("save run: empty run")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.saveRunTx(ctx, tx, run); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteResultStore) saveRunTx(ctx context.Context, tx *sql.Tx, run *models.AnalysisRun) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO flash_runs (run_id, symbol, timeframe, from_ts, to_ts, grace_period, max_active, bars, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Symbol, run.Timeframe, run.From.UnixMilli(), run.To.UnixMilli(),
		run.Engine.GracePeriod, run.Engine.MaxActive, run.Bars, run.StartedAt.UnixMilli(), run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO flashes (run_id, flash_id, state, origin_time, age, stage,
			flash_open, flash_high, flash_low, flash_duration,
			window_open, window_high, window_low, window_duration,
			hold_open, hold_high, hold_low, hold_duration,
			bias, max_favorable, max_adverse, degenerate, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res := run.Result
	for _, set := range []struct {
		state   string
		flashes []models.Flash
	}{{"active", res.Active}, {"closed", res.Closed}, {"stunted", res.Stunted}} {
		for seq, f := range set.flashes {
			if _, err := stmt.ExecContext(ctx,
				run.RunID, f.ID, set.state, f.OriginTime.UnixMilli(), f.Age, int(f.Stage),
				f.FlashOpen, f.FlashHigh, f.FlashLow, f.FlashDuration,
				f.WindowOpen, f.WindowHigh, f.WindowLow, f.WindowDuration,
				f.HoldOpen, f.HoldHigh, f.HoldLow, f.HoldDuration,
				int(f.Bias), f.MaxFavorable, f.MaxAdverse, f.Degenerate, seq,
			); err != nil {
				return fmt.Errorf("insert flash %d: %w", f.ID, err)
			}
		}
	}

	tstmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO flash_tally (run_id, ts, active_bullish, active_bearish, closed_bullish, closed_bearish, stunted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tstmt.Close()
	for _, row := range res.Tally {
		if _, err := tstmt.ExecContext(ctx, run.RunID, row.Time.UnixMilli(),
			row.ActiveBullish, row.ActiveBearish, row.ClosedBullish, row.ClosedBearish, row.Stunted); err != nil {
			return fmt.Errorf("insert tally: %w", err)
		}
	}
	return nil
}

// GetRun loads a stored run with its flash collections and tally series. Outcome issues are
// not stored; degenerate flashes keep their flag.
func (s *SQLiteResultStore) GetRun(ctx context.Context, runID string) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{RunID: runID, Result: &models.AnalysisResult{}}
	var from, to, started int64
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, timeframe, from_ts, to_ts, grace_period, max_active, bars, started_at, duration_ms
		FROM flash_runs WHERE run_id = ?`, runID).Scan(
		&run.Symbol, &run.Timeframe, &from, &to, &run.Engine.GracePeriod, &run.Engine.MaxActive,
		&run.Bars, &started, &run.DurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.From = time.UnixMilli(from).UTC()
	run.To = time.UnixMilli(to).UTC()
	run.StartedAt = time.UnixMilli(started).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT flash_id, state, origin_time, age, stage,
			flash_open, flash_high, flash_low, flash_duration,
			window_open, window_high, window_low, window_duration,
			hold_open, hold_high, hold_low, hold_duration,
			bias, max_favorable, max_adverse, degenerate
		FROM flashes WHERE run_id = ? ORDER BY state, seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			f           models.Flash
			state       string
			origin      int64
			stage, bias int
		)
		if err := rows.Scan(&f.ID, &state, &origin, &f.Age, &stage,
			&f.FlashOpen, &f.FlashHigh, &f.FlashLow, &f.FlashDuration,
			&f.WindowOpen, &f.WindowHigh, &f.WindowLow, &f.WindowDuration,
			&f.HoldOpen, &f.HoldHigh, &f.HoldLow, &f.HoldDuration,
			&bias, &f.MaxFavorable, &f.MaxAdverse, &f.Degenerate,
		); err != nil {
			return nil, err
		}
		f.OriginTime = time.UnixMilli(origin).UTC()
		f.Stage = models.Stage(stage)
		f.Bias = models.Bias(bias)
		switch state {
		case "active":
			run.Result.Active = append(run.Result.Active, f)
		case "closed":
			run.Result.Closed = append(run.Result.Closed, f)
		case "stunted":
			run.Result.Stunted = append(run.Result.Stunted, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := s.db.QueryContext(ctx, `
		SELECT ts, active_bullish, active_bearish, closed_bullish, closed_bearish, stunted
		FROM flash_tally WHERE run_id = ? ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var (
			ts  int64
			row models.TallyRow
		)
		if err := trows.Scan(&ts, &row.ActiveBullish, &row.ActiveBearish, &row.ClosedBullish, &row.ClosedBearish, &row.Stunted); err != nil {
			return nil, err
		}
		row.Time = time.UnixMilli(ts).UTC()
		row.Active = row.ActiveBullish + row.ActiveBearish
		row.Closed = row.ClosedBullish + row.ClosedBearish
		run.Result.Tally = append(run.Result.Tally, row)
	}
	return run, trows.Err()
}

func (s *SQLiteResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteResultStore) Close() error {
	return s.db.Close()
}
