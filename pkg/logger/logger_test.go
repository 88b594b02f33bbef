package logger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (c *capturePublisher) Publish(_ context.Context, topic string, _ []byte, v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
	c.batches = append(c.batches, v.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "flashscan.logs",
		Publisher:      pub,
	})
	fields := map[string]interface{}{"symbol": "EURUSD"}
	c.AddLog("error", "engine failed", fields, "usecase/analysis.go:10")
	c.AddLog("error", "engine failed", fields, "usecase/analysis.go:10")
	c.AddLog("error", "store failed", nil, "usecase/analysis.go:20")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || pub.topic != "flashscan.logs" {
		t.Fatalf("expected one batch on topic, got %d on %q", len(pub.batches), pub.topic)
	}
	b := pub.batches[0]
	if len(b) != 2 || b[0].Message != "engine failed" || b[0].Count != 2 {
		t.Fatalf("unexpected aggregation %+v", b)
	}
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 1, Topic: "t", Publisher: pub})
	l.With(String("run_id", "r1")).Error("boom", Error(errors.New("x")), Float64("ratio", 0.5))
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || pub.batches[0][0].Fields["ratio"] != 0.5 {
		t.Fatalf("unexpected batches %+v", pub.batches)
	}
}

func TestNewRejectsLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestCollectorIgnoresPerRunFields(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "t", Publisher: pub})
	for _, run := range []string{"r1", "r2", "r3"} {
		c.AddLog("error", "save run failed", map[string]interface{}{"run_id": run, "symbol": "EURUSD"}, "a.go:1")
	}
	c.AddLog("error", "save run failed", map[string]interface{}{"run_id": "r4", "symbol": "GBPUSD"}, "a.go:1")
	c.Close()
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 {
		t.Fatalf("expected one batch with two entries, got %+v", pub.batches)
	}
	e := pub.batches[0][0]
	if e.Count != 3 || len(e.Runs) != 3 || e.Runs[2] != "r3" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "t", Publisher: pub})
	defer c.Close()
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		n := len(pub.batches)
		pub.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("threshold did not trigger a flush")
}

func TestNewWritesLevelledJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "warn", Format: "json", Output: path, Service: "flashscan"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("dropped")
	l.Warn("kept", Int("bars", 3), Duration("took", 1500*time.Millisecond))

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn entry, got %q", b)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["service"] != "flashscan" || entry["bars"] != 3.0 || entry["took"] != 1500.0 {
		t.Fatalf("unexpected entry %v", entry)
	}
	if caller, _ := entry["caller"].(string); !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("caller should point at the test, got %q", caller)
	}
}
