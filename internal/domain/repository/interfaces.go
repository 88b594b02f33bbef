package repository

import (
	"context"

	"FlashScan/internal/domain/models"
)

// ResultStore persists finished analysis runs: run header, flashes and the tally series.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
	Health(ctx context.Context) error
	Close() error
}

// FlashPublisher emits closed flashes and run summaries to downstream consumers.
type FlashPublisher interface {
	PublishClosed(ctx context.Context, run *models.AnalysisRun) error
	PublishSummary(ctx context.Context, run *models.AnalysisRun) error
	Close() error
}

type Metrics interface {
	RecordRun(symbol string, bars, active, closed, stunted int, seconds float64)
	RecordIssues(symbol string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
