package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record to publish. Value is sent as is when it is []byte or string and
// JSON-encoded otherwise.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer wraps a kafka-go writer with JSON encoding and metrics.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

var compressions = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	initProducerMetricsOnce()
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     bal,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compressions[cfg.Compression],
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
		comp: cfg.Compression,
	}, nil
}

// Publish sends one value to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends messages to topic in a single write. Nothing is sent when any value
// fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()
	now := start.UTC()
	msgs := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		km, err := encode(topic, m, now)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = km
		size += int64(len(km.Value))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	observeProducerMetrics(topic, p.comp, size, len(msgs), time.Since(start), err)
	return err
}

func encode(topic string, m Message, now time.Time) (kafka.Message, error) {
	var v []byte
	switch val := m.Value.(type) {
	case []byte:
		v = val
	case string:
		v = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return kafka.Message{}, fmt.Errorf("marshal value: %w", err)
		}
		v = b
	}
	km := kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now}
	for k, hv := range m.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(hv)})
	}
	return km, nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerOnce        = make(chan struct{}, 1)
)

func initProducerMetricsOnce() {
	select {
	case producerOnce <- struct{}{}:
		producerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashscan_kafka_producer_messages_total",
				Help: "Messages written to Kafka by result",
			},
			[]string{"topic", "result"},
		)
		producerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashscan_kafka_producer_bytes_total",
				Help: "Payload bytes written, before compression",
			},
			[]string{"topic", "compression"},
		)
		producerLatencyHist = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flashscan_kafka_producer_publish_seconds",
				Help:    "Write latency per batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	default:
	}
}

func observeProducerMetrics(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, result).Add(float64(count))
	producerBytesTotal.WithLabelValues(topic, comp).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
