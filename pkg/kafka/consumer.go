package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "FlashScan/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying. The message goes straight to the
// dead-letter topic.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

var errInterrupted = errors.New("kafka consumer: interrupted by shutdown")

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type delivery struct {
	from committer
	msg  kafka.Message
}

// Consumer reads registered topics in a consumer group and hands messages to a fixed set of
// worker lanes. A partition always maps to the same lane, so its messages are handled and
// committed in offset order.
type Consumer struct {
	cfg      ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan delivery
	dlq      *kafka.Writer
	hook     ConsumerHook
	l        *applogger.Logger

	// fetchCtx stops reading and backoff waits; handleCtx is only cancelled when Stop gives up
	// on in-flight handlers.
	fetchCtx     context.Context
	stopFetching context.CancelFunc
	handleCtx    context.Context
	abort        context.CancelFunc

	fetchWG  sync.WaitGroup
	workWG   sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	perLane := cfg.BufferSize / cfg.Workers
	if perLane < 1 {
		perLane = 1
	}
	lanes := make([]chan delivery, cfg.Workers)
	for i := range lanes {
		lanes[i] = make(chan delivery, perLane)
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		lanes:    lanes,
		hook:     NoopHook{},
		l:        applogger.Nop(),
	}
	c.fetchCtx, c.stopFetching = context.WithCancel(context.Background())
	c.handleCtx, c.abort = context.WithCancel(context.Background())
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler registers h for its topic. It must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start opens one reader per registered topic and starts the worker lanes.
func (c *Consumer) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return fmt.Errorf("kafka consumer: already started")
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	c.started = true

	start := kafka.FirstOffset
	if c.cfg.StartOffset == "latest" {
		start = kafka.LastOffset
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: start,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
	}

	for _, lane := range c.lanes {
		c.workWG.Add(1)
		go c.work(lane)
	}
	for topic, r := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(topic, r)
	}
	c.l.Info("kafka consumer: started",
		applogger.Strings("topics", c.topics()),
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("workers", len(c.lanes)),
	)
	return nil
}

func (c *Consumer) topics() []string {
	out := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}
	return out
}

// Stop stops fetching, lets in-flight handlers finish until ctx is done, then closes the
// readers. Queued but unstarted messages stay uncommitted and are redelivered.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.l.Info("kafka consumer: stopping")
		c.stopFetching()
		c.fetchWG.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.abort()
			<-done
			stopErr = fmt.Errorf("kafka consumer: handlers still running at shutdown: %w", ctx.Err())
		}
		c.abort()

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.l.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.l.Warn("kafka consumer: close dlq writer", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.l.Info("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.fetchWG.Done()
	for {
		m, err := r.FetchMessage(c.fetchCtx)
		if err != nil {
			if c.fetchCtx.Err() != nil {
				return
			}
			c.l.Error("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-c.fetchCtx.Done():
				return
			}
		}

		lane := c.lanes[laneFor(m.Topic, m.Partition, len(c.lanes))]
		select {
		case lane <- delivery{from: r, msg: m}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.fetchCtx.Done():
			return
		}
	}
}

func laneFor(topic string, partition, lanes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int((h.Sum32() + uint32(partition)) % uint32(lanes))
}

func (c *Consumer) work(lane <-chan delivery) {
	defer c.workWG.Done()
	for d := range lane {
		if c.fetchCtx.Err() != nil {
			continue
		}
		c.process(d)
	}
}

// process runs the handler with retries. The offset is committed on success and after a
// terminal failure; a shutdown mid-handling leaves it uncommitted.
func (c *Consumer) process(d delivery) {
	topic := d.msg.Topic
	h, ok := c.handlers[topic]
	if !ok {
		c.commit(d)
		return
	}

	start := time.Now()
	attempts, err := c.handle(h, d.msg)
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		consumerMessages.WithLabelValues(topic, "ok").Inc()
	case errors.Is(err, errInterrupted):
		consumerMessages.WithLabelValues(topic, "interrupted").Inc()
		return
	default:
		c.l.Error("kafka consumer: message failed",
			applogger.String("topic", topic),
			applogger.Int("partition", d.msg.Partition),
			applogger.Int64("offset", d.msg.Offset),
			applogger.Int("attempts", attempts),
			applogger.Bool("permanent", IsPermanent(err)),
			applogger.Error(err),
		)
		result := "dropped"
		if c.dlq != nil {
			result = "dead_lettered"
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if werr := c.dlq.WriteMessages(ctx, deadLetter(c.cfg.DLQTopic, d.msg, attempts, err)); werr != nil {
				result = "dropped"
				c.l.Error("kafka consumer: dlq write", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(werr))
			}
			cancel()
		}
		consumerMessages.WithLabelValues(topic, result).Inc()
	}
	c.commit(d)
}

func (c *Consumer) handle(h MessageHandler, km kafka.Message) (int, error) {
	for attempt := 1; ; attempt++ {
		err := c.attempt(h, km)
		if err == nil {
			return attempt, nil
		}
		if c.handleCtx.Err() != nil {
			return attempt, errInterrupted
		}
		var he *HookError
		if attempt > c.cfg.RetryMax || IsPermanent(err) || errors.As(err, &he) {
			return attempt, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.fetchCtx.Done():
			return attempt, errInterrupted
		}
	}
}

// attempt runs the hooks around one handler call. A panicking handler counts as a permanent
// failure.
func (c *Consumer) attempt(h MessageHandler, km kafka.Message) (err error) {
	ctx, hm, data, err := c.hook.BeforeHandle(c.handleCtx, km.Topic, km, km.Value)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
		c.hook.AfterHandle(ctx, km.Topic, hm, data, err)
		if err != nil {
			c.hook.OnError(ctx, km.Topic, hm, data, err)
		}
	}()
	return h.Handle(ctx, data)
}

// deadLetter copies the original key, value and headers and records where the message came
// from and why it failed.
func deadLetter(topic string, km kafka.Message, attempts int, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(km.Headers)+5)
	headers = append(headers, km.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(km.Topic)},
		kafka.Header{Key: "source_partition", Value: []byte(strconv.Itoa(km.Partition))},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
		kafka.Header{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	return kafka.Message{
		Topic:   topic,
		Key:     km.Key,
		Value:   km.Value,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
}

func (c *Consumer) commit(d delivery) {
	const tries = 3
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := d.from.CommitMessages(ctx, d.msg)
		cancel()
		if err == nil {
			return
		}
		if attempt == tries {
			c.l.Error("kafka consumer: commit failed",
				applogger.String("topic", d.msg.Topic),
				applogger.Int64("offset", d.msg.Offset),
				applogger.Error(err),
			)
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerMessages      *prometheus.CounterVec
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flashscan_kafka_consumer_messages_total",
			Help: "Consumed messages by outcome",
		}, []string{"topic", "result"})
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flashscan_kafka_consumer_queue_depth",
			Help: "Messages waiting in the lane that last received one",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashscan_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"topic"})
	})
}

// SetLogger injects a structured logger.
func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// WithConsumerHook sets the lifecycle hook; a HookChain composes several.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}
