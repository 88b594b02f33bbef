package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	pkgch "FlashScan/pkg/clickhouse"
	applogger "FlashScan/pkg/logger"
)

// CHBarSource implements BarSource backed by ClickHouse candle tables.
type CHBarSource struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarSource(ch *pkgch.Client) *CHBarSource {
	return &CHBarSource{db: ch.DB(), database: ch.Database()}
}

// SetLogger injects a structured logger.
func (s *CHBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarSource) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	return s.query(ctx, "get_bars", table, symbol, tf, false, fmt.Sprintf(qtpl, table), symbol, from, to)
}

func (s *CHBarSource) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	return s.query(ctx, "latest_bars", table, symbol, tf, true, fmt.Sprintf(qtpl, table), symbol, n)
}

func (s *CHBarSource) GetBarsBefore(ctx context.Context, symbol string, t time.Time, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND bucket < ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	return s.query(ctx, "bars_before", table, symbol, tf, true, fmt.Sprintf(qtpl, table), symbol, t, n)
}

func (s *CHBarSource) query(ctx context.Context, op, table, symbol string, tf domrepo.Timeframe, reverse bool, q string, args ...any) ([]models.Bar, error) {
	start := time.Now()
	fail := func(stage string, err error) error {
		if s.l != nil {
			s.l.Error("clickhouse "+op+" "+stage+" error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("%s %s: %w", op, stage, err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fail("scan", err)
		}
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse "+op+" ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func tableForTF(database string, tf domrepo.Timeframe) (string, error) {
	if database == "" {
		database = "flashscan"
	}
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return fmt.Sprintf("%s.candles_%s", database, tf), nil
}
