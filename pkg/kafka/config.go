package kafka

import (
	"fmt"
	"time"
)

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int // -1 all, 0 none, 1 leader
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool
	HashByKey    bool // keep one symbol on one partition
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
		HashByKey:    true,
	}
}

func (c ProducerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka producer: brokers are required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("kafka producer: required acks must be -1, 0 or 1, got %d", c.RequiredAcks)
	}
	if _, ok := compressions[c.Compression]; !ok {
		return fmt.Errorf("kafka producer: unknown compression %q", c.Compression)
	}
	return nil
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = compression }
}

func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

// WithMaxAttempts sets the writer's delivery attempts per batch.
func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithBatchSize(size int) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
	}
}

// WithBatchTimeout sets how long a partial batch may linger.
func WithBatchTimeout(timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if timeout > 0 {
			c.BatchTimeout = timeout
		}
	}
}

func WithBatchBytes(bytes int) ProducerOption {
	return func(c *ProducerConfig) {
		if bytes > 0 {
			c.BatchBytes = bytes
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if write > 0 {
			c.WriteTimeout = write
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithAsync makes Publish return before delivery; errors are then only counted in metrics.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	StartOffset string // "earliest" or "latest"; applies to groups without a committed offset
	Workers     int
	BufferSize  int
	RetryMax    int // attempts after the first
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		StartOffset: "earliest",
		Workers:     4,
		BufferSize:  256,
		RetryMax:    3,
		BackoffMin:  200 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	}
}

func (c ConsumerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka consumer: brokers are required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka consumer: group id is required")
	}
	if c.StartOffset != "earliest" && c.StartOffset != "latest" {
		return fmt.Errorf("kafka consumer: start offset must be earliest or latest, got %q", c.StartOffset)
	}
	if c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("kafka consumer: backoff max %v below min %v", c.BackoffMax, c.BackoffMin)
	}
	if c.MaxBytes < c.MinBytes {
		return fmt.Errorf("kafka consumer: max bytes %d below min bytes %d", c.MaxBytes, c.MinBytes)
	}
	return nil
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerStartOffset picks where a new group starts reading.
func WithConsumerStartOffset(offset string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if offset != "" {
			c.StartOffset = offset
		}
	}
}

func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithConsumerRetry sets the retries after a failed attempt and the backoff range between them.
// A negative max disables retries.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		if max < 0 {
			max = 0
		}
		c.RetryMax = max
		if backoffMin > 0 {
			c.BackoffMin = backoffMin
		}
		if backoffMax > 0 {
			c.BackoffMax = backoffMax
		}
	}
}

// WithConsumerDLQ sets the dead-letter topic. Without one, failed messages are logged and committed.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if minBytes > 0 {
			c.MinBytes = minBytes
		}
		if maxBytes > 0 {
			c.MaxBytes = maxBytes
		}
	}
}
