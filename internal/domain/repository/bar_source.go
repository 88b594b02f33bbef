package repository

import (
	"context"
	"time"

	"FlashScan/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
)

// BarSource provides read-only access to OHLC bars for analysis. Returned bars carry no trigger.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
	// GetBarsBefore returns up to n bars strictly before t, oldest first.
	GetBarsBefore(ctx context.Context, symbol string, t time.Time, n int, tf Timeframe) ([]models.Bar, error)
}
