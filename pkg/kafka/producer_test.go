package kafka

import (
	"testing"
	"time"
)

func TestEncodeMessage(t *testing.T) {
	now := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	km, err := encode("flash.runs", Message{
		Key:     []byte("EURUSD"),
		Value:   map[string]int{"bars": 3},
		Headers: map[string]string{"trace_id": "r1"},
	}, now)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if km.Topic != "flash.runs" || string(km.Value) != `{"bars":3}` || !km.Time.Equal(now) {
		t.Fatalf("unexpected message %+v", km)
	}
	if ExtractTraceID(km) != "r1" {
		t.Fatalf("trace header not readable by consumer hooks: %+v", km.Headers)
	}

	raw, err := encode("t", Message{Value: "plain"}, now)
	if err != nil || string(raw.Value) != "plain" {
		t.Fatalf("strings must pass through, got %q (%v)", raw.Value, err)
	}
	if _, err := encode("t", Message{Value: func() {}}, now); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestProducerConfigValidation(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected missing brokers error")
	}
	if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli")); err == nil {
		t.Fatal("expected unknown compression error")
	}
	if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithRequiredAcks(2)); err == nil {
		t.Fatal("expected invalid acks error")
	}
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
