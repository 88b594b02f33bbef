package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Publisher ships aggregated entries; *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, 30s when zero
	CountThreshold int           // distinct entries that force a flush, 100 when zero
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one distinct error with its occurrence count. Fields are those of the
// first occurrence; Runs samples the run ids it was seen in.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	Runs      []string               `json:"runs,omitempty"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

const maxRunSamples = 5

// Fields that differ on every occurrence and would defeat aggregation.
var volatileFields = map[string]bool{
	"run_id":      true,
	"trace_id":    true,
	"offset":      true,
	"partition":   true,
	"duration_ms": true,
	"elapsed":     true,
	"remote":      true,
	"request_id":  true,
	"latency":     true,
}

// LogCollector deduplicates error logs and publishes them in batches.
type LogCollector struct {
	config  CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	c := &LogCollector{
		config:  cfg,
		entries: make(map[string]*AggregatedLogEntry),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := aggregationKey(level, message, fields, caller)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			FirstSeen: now,
		}
		c.entries[key] = e
	}
	e.Count++
	e.LastSeen = now
	if run, ok := fields["run_id"].(string); ok && run != "" && len(e.Runs) < maxRunSamples {
		e.Runs = append(e.Runs, run)
	}
	full := len(c.entries) >= c.config.CountThreshold
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

func aggregationKey(level, message string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !volatileFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s", level, caller, message)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}

func (c *LogCollector) loop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush publishes the pending entries in first-seen order. It runs on the collector goroutine
// only, so batches are delivered in order.
func (c *LogCollector) flush() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	c.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.config.Publisher.Publish(ctx, c.config.Topic, []byte("logs"), batch); err != nil {
		// The logger itself feeds this collector; report on stderr only.
		fmt.Fprintf(os.Stderr, "failed to send aggregated logs: %v\n", err)
	}
}

// Close stops the collector after a final flush.
func (c *LogCollector) Close() {
	c.closeMu.Do(func() { close(c.done) })
	c.wg.Wait()
}
