package main

import (
	"context"
	"errors"
	"time"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
)

var zeroTime time.Time

// teeStore saves each run into every store in order and stops at the first failure.
type teeStore struct {
	stores []repository.ResultStore
}

func (t *teeStore) Init(ctx context.Context) error {
	for _, s := range t.stores {
		if err := s.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t *teeStore) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	for _, s := range t.stores {
		if err := s.SaveRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (t *teeStore) Health(ctx context.Context) error {
	var errs []error
	for _, s := range t.stores {
		errs = append(errs, s.Health(ctx))
	}
	return errors.Join(errs...)
}

func (t *teeStore) Close() error {
	var errs []error
	for _, s := range t.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
