package repository

import (
	"context"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
	pkgkafka "FlashScan/pkg/kafka"
)

type producer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaPublisher implements FlashPublisher for Kafka. Closed flashes are keyed by symbol so one
// series stays on one partition; every record carries the run id as run_id and trace_id headers.
type KafkaPublisher struct {
	producer     producer
	flashTopic   string
	summaryTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(p *pkgkafka.Producer, flashTopic, summaryTopic string) repository.FlashPublisher {
	return newKafkaPublisher(p, flashTopic, summaryTopic)
}

func newKafkaPublisher(p producer, flashTopic, summaryTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, flashTopic: flashTopic, summaryTopic: summaryTopic}
}

func (p *KafkaPublisher) PublishClosed(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || run.Result == nil || len(run.Result.Closed) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(run.Result.Closed))
	for i, f := range run.Result.Closed {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(run.Symbol),
			Headers: runHeaders(run),
			Value: models.FlashEvent{
				RunID:     run.RunID,
				Symbol:    run.Symbol,
				Timeframe: run.Timeframe,
				Flash:     f,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.flashTopic, msgs)
}

func (p *KafkaPublisher) PublishSummary(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || p.summaryTopic == "" {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.summaryTopic, []pkgkafka.Message{{
		Key:     []byte(run.Symbol),
		Value:   run.Summary(),
		Headers: runHeaders(run),
	}})
}

func runHeaders(run *models.AnalysisRun) map[string]string {
	return map[string]string{"run_id": run.RunID, "trace_id": run.RunID}
}

// Close is a no-op: the producer is shared with the log collector and closed by its owner.
func (p *KafkaPublisher) Close() error { return nil }
