package usecase

import (
	"context"
	"fmt"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	"FlashScan/internal/domain/service"
)

// BarsUseCase provides bounded bar retrieval.
type BarsUseCase struct {
	source domrepo.BarSource
}

func NewBarsUseCase(source domrepo.BarSource) *BarsUseCase {
	return &BarsUseCase{source: source}
}

func (uc *BarsUseCase) GetBars(ctx context.Context, p models.BarsQuery) (*models.BarsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidRequest)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidRequest)
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}
	tf := domrepo.NormalizeTimeframe(p.Timeframe)

	bars, err := uc.source.GetBars(ctx, p.Symbol, p.From, p.To, tf)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) > p.Limit {
		bars = bars[:p.Limit]
	}

	return &models.BarsResult{
		Symbol:    p.Symbol,
		Timeframe: string(tf),
		From:      p.From,
		To:        p.To,
		Count:     len(bars),
		Bars:      bars,
	}, nil
}

var _ service.BarReader = (*BarsUseCase)(nil)
