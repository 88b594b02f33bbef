package service

import (
	"context"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/services/flash"
)

// Analyzer runs the flash lifecycle over a stored series or over caller-supplied bars.
type Analyzer interface {
	Analyze(ctx context.Context, q models.AnalysisQuery, opts ...flash.Option) (*models.AnalysisRun, error)
	AnalyzeBars(ctx context.Context, q models.AnalysisQuery, bars []models.Bar, opts ...flash.Option) (*models.AnalysisRun, error)
}

// BarReader serves bounded bar queries.
type BarReader interface {
	GetBars(ctx context.Context, p models.BarsQuery) (*models.BarsResult, error)
}
