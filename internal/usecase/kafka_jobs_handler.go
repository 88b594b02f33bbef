package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	"FlashScan/internal/domain/service"
	"FlashScan/internal/services/flash"
	pkgkafka "FlashScan/pkg/kafka"
	"FlashScan/pkg/util"
)

// KafkaJobsHandler consumes analysis jobs and runs each one to completion. Results leave
// through the analyzer's result store and publisher.
type KafkaJobsHandler struct {
	topic    string
	analyzer service.Analyzer
	metrics  domrepo.Metrics
}

func NewKafkaJobsHandler(topic string, analyzer service.Analyzer, metrics domrepo.Metrics) *KafkaJobsHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &KafkaJobsHandler{topic: topic, analyzer: analyzer, metrics: metrics}
}

func (h *KafkaJobsHandler) Topic() string { return h.topic }

// AnalysisJob is the message schema: {symbol, timeframe, from, to, grace_period, max_active}.
// from/to accept RFC3339, the CSV layouts or unix seconds.
type AnalysisJob struct {
	Symbol      string `json:"symbol"`
	Timeframe   string `json:"timeframe"`
	From        string `json:"from"`
	To          string `json:"to"`
	GracePeriod int    `json:"grace_period"`
	MaxActive   int    `json:"max_active"`
}

func (j AnalysisJob) query() (models.AnalysisQuery, error) {
	q := models.AnalysisQuery{
		Symbol:    j.Symbol,
		Timeframe: j.Timeframe,
		Engine:    models.EngineParams{GracePeriod: j.GracePeriod, MaxActive: j.MaxActive},
	}
	if j.From != "" {
		t, ok := util.ParseTime(j.From)
		if !ok {
			return q, fmt.Errorf("%w: bad from %q", ErrInvalidRequest, j.From)
		}
		q.From = t
	}
	if j.To != "" {
		t, ok := util.ParseTime(j.To)
		if !ok {
			return q, fmt.Errorf("%w: bad to %q", ErrInvalidRequest, j.To)
		}
		q.To = t
	}
	return q, nil
}

func (h *KafkaJobsHandler) Handle(ctx context.Context, b []byte) error {
	var job AnalysisJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("job_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	q, err := job.query()
	if err != nil {
		h.metrics.RecordError("job_invalid")
		return pkgkafka.Permanent(err)
	}

	start := time.Now()
	_, err = h.analyzer.Analyze(ctx, q)
	h.metrics.RecordLatency("job_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("job_analyze")
		err = fmt.Errorf("job %s: %w", job.Symbol, err)
		if deterministic(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

// deterministic reports errors that the same job would hit again on retry.
func deterministic(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrTooManyBars) ||
		errors.Is(err, flash.ErrRegistryExhausted)
}

var _ pkgkafka.MessageHandler = (*KafkaJobsHandler)(nil)
