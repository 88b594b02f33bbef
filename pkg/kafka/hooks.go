package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "FlashScan/pkg/logger"
)

// ConsumerHook runs around every handler attempt. BeforeHandle may replace the context,
// message and payload; an error from it fails the attempt without calling the handler and
// is not retried.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// HookError is returned by hooks that reject a message. Code classifies it, e.g. "ERR_PANIC".
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs builds a ConsumerHook from optional functions.
type HookFuncs struct {
	Before func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error)
	After  func(context.Context, string, kafka.Message, []byte, error)
	Err    func(context.Context, string, kafka.Message, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Before == nil {
		return ctx, km, data, nil
	}
	return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, km, data, err)
	}
}

// HookChain runs hooks in order for BeforeHandle and in reverse for AfterHandle. A failing
// BeforeHandle stops the chain and every hook sees OnError. Panics in hooks never reach the
// consumer: in BeforeHandle they become an ERR_PANIC HookError, elsewhere they are dropped.
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain ignores nil hooks.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	c := &HookChain{}
	for _, h := range hooks {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
	return c
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c.hooks {
		nctx, nkm, ndata, err := safeBefore(h, ctx, topic, km, data)
		if err != nil {
			c.OnError(ctx, topic, km, data, err)
			return ctx, km, data, err
		}
		ctx, km, data = nctx, nkm, ndata
	}
	return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		h := c.hooks[i]
		guard(func() { h.AfterHandle(ctx, topic, km, data, err) })
	}
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c.hooks {
		h := h
		guard(func() { h.OnError(ctx, topic, km, data, err) })
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (rctx context.Context, rkm kafka.Message, rdata []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rctx, rkm, rdata = ctx, km, data
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

func guard(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

type ctxKey string

const (
	CtxStartTime ctxKey = "kafka_hook_start_time"
	CtxTraceID   ctxKey = "kafka_hook_trace_id"
	CtxRunID     ctxKey = "kafka_hook_run_id"
)

func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, CtxStartTime, t)
}

// WithTraceID is a no-op for an empty id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, traceID)
}

// Header returns the first value of header key, or "".
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// ExtractTraceID reads the trace_id header.
func ExtractTraceID(msg kafka.Message) string { return Header(msg, "trace_id") }

// TraceHook puts the start time and the trace_id and run_id headers into the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = WithTraceID(WithStartTime(ctx, time.Now()), ExtractTraceID(km))
			if run := Header(km, "run_id"); run != "" {
				ctx = context.WithValue(ctx, CtxRunID, run)
			}
			return ctx, km, data, nil
		},
	}
}

// LoggingHook logs every failed attempt.
func LoggingHook(l *applogger.Logger) ConsumerHook {
	return HookFuncs{
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			fields := []applogger.Field{
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			}
			if id, ok := ctx.Value(CtxTraceID).(string); ok {
				fields = append(fields, applogger.String("trace_id", id))
			}
			if run, ok := ctx.Value(CtxRunID).(string); ok {
				fields = append(fields, applogger.String("run_id", run))
			}
			if t, ok := ctx.Value(CtxStartTime).(time.Time); ok {
				fields = append(fields, applogger.Duration("elapsed", time.Since(t)))
			}
			l.Warn("kafka handler attempt failed", fields...)
		},
	}
}
