package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptionsNative(t *testing.T) {
	cfg := defaultClientConfig()
	for _, o := range []ClientOption{
		WithHost("ch"),
		WithDatabase("fs"),
		WithAsyncInsert(true, false),
		WithMaxExecutionTime(90 * time.Second),
	} {
		o(&cfg)
	}
	opt := options(cfg)
	if len(opt.Addr) != 1 || opt.Addr[0] != "ch:9000" {
		t.Fatalf("unexpected addr %v", opt.Addr)
	}
	if opt.Protocol != clickhouse.Native || opt.Auth.Database != "fs" || opt.Auth.Username != "default" {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.Settings["async_insert"] != 1 || opt.Settings["max_execution_time"] != 90 {
		t.Fatalf("unexpected settings %v", opt.Settings)
	}
	if _, ok := opt.Settings["wait_for_async_insert"]; ok {
		t.Fatalf("wait_for_async_insert must be unset")
	}
	if opt.Compression == nil || opt.Compression.Method != clickhouse.CompressionLZ4 {
		t.Fatalf("expected lz4 compression")
	}
}

func TestOptionsHTTP(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch")(&cfg)
	WithPort(8123)(&cfg)
	WithHTTP(true)(&cfg)
	WithCompression(false)(&cfg)
	opt := options(cfg)
	if opt.Protocol != clickhouse.HTTP || opt.Addr[0] != "ch:8123" || opt.Compression != nil {
		t.Fatalf("unexpected options %+v", opt)
	}
}

func TestClientConfigValidation(t *testing.T) {
	if _, err := NewClient(); err == nil || !strings.Contains(err.Error(), "host") {
		t.Fatalf("expected host error, got %v", err)
	}
	cfg := defaultClientConfig()
	WithHost("ch")(&cfg)
	WithMaxConnections(2, 4)(&cfg)
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected idle > open error")
	}
}

func TestSchemaTargetsDatabase(t *testing.T) {
	stmts := Schema("fs_test")
	if len(stmts) != 8 {
		t.Fatalf("expected 8 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.Contains(s, "fs_test") {
			t.Fatalf("statement does not target database: %s", s)
		}
	}
}
