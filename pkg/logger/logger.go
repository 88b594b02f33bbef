package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // RFC3339Nano when empty
	Service    string // added as "service" to every entry when set
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	zctx := zerolog.New(output).Level(level).With().Timestamp().CallerWithSkipFrameCount(4)
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	return &Logger{zl: zctx.Logger()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that adds fields to every entry. The collector is shared.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		k, v := f.GetKeyValue()
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector}
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.log(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) { l.log(l.zl.Warn(), msg, fields) }

// Error logs and, when a collector is attached, queues the entry for aggregation.
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s:%d", trimSource(file), line)
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		m[k] = v
	}
	l.collector.AddLog(level, msg, m, caller)
}

// trimSource keeps the module-relative part of a source path.
func trimSource(file string) string {
	for _, root := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.LastIndex(file, root); i >= 0 {
			return file[i+1:]
		}
	}
	return file
}

func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type field struct {
	key   string
	value interface{}
}

func (f field) AddTo(e *zerolog.Event) {
	switch v := f.value.(type) {
	case string:
		e.Str(f.key, v)
	case int:
		e.Int(f.key, v)
	case int64:
		e.Int64(f.key, v)
	case float64:
		e.Float64(f.key, v)
	case bool:
		e.Bool(f.key, v)
	case time.Time:
		e.Time(f.key, v)
	case error:
		e.AnErr(f.key, v)
	default:
		e.Interface(f.key, v)
	}
}

func (f field) GetKeyValue() (string, interface{}) {
	switch v := f.value.(type) {
	case time.Time:
		return f.key, v.Format(time.RFC3339)
	case error:
		return f.key, v.Error()
	}
	return f.key, f.value
}

func String(key, value string) Field { return field{key, value} }

func Int(key string, value int) Field { return field{key, value} }

func Int64(key string, value int64) Field { return field{key, value} }

func Float64(key string, value float64) Field { return field{key, value} }

func Bool(key string, value bool) Field { return field{key, value} }

func Time(key string, value time.Time) Field { return field{key, value} }

func Any(key string, value interface{}) Field { return field{key, value} }

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field {
	return field{key, value.Milliseconds()}
}

func Strings(key string, value []string) Field { return field{key, strings.Join(value, ", ")} }

// Error is logged under "error". A nil error is logged as null.
func Error(err error) Field {
	if err == nil {
		return field{"error", nil}
	}
	return field{"error", err}
}
