package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client is a database/sql pool over clickhouse-go. Repositories share it.
type Client struct {
	db           *sql.DB
	database     string
	writeTimeout time.Duration
}

// NewClient opens the pool and pings the server once.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db := clickhouse.OpenDB(options(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db, database: cfg.Database, writeTimeout: cfg.WriteTimeout}, nil
}

func options(cfg ClientConfig) *clickhouse.Options {
	opt := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Protocol:        clickhouse.Native,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		Settings:        clickhouse.Settings{},
	}
	if cfg.UseHTTP {
		opt.Protocol = clickhouse.HTTP
	}
	if cfg.Compress {
		opt.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}
	if cfg.MaxExecTime > 0 {
		opt.Settings["max_execution_time"] = int(cfg.MaxExecTime.Seconds())
	}
	if cfg.AsyncInsert {
		opt.Settings["async_insert"] = 1
		if cfg.WaitForAsync {
			opt.Settings["wait_for_async_insert"] = 1
		}
	}
	return opt
}

func (c *Client) DB() *sql.DB { return c.db }

// Database is the database the schema and repositories target.
func (c *Client) Database() string { return c.database }

// WithWriteDeadline bounds ctx by the configured write timeout.
func (c *Client) WithWriteDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.writeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.writeTimeout)
}

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs stmts in order, or the candle and result schema for the client's database
// when none are given. Every statement is idempotent.
func (c *Client) InitSchema(ctx context.Context, stmts ...string) error {
	if len(stmts) == 0 {
		stmts = Schema(c.database)
	}
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
