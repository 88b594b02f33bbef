package clickhouse

import (
	"fmt"
	"time"
)

type ClientOption func(*ClientConfig)

// ClientConfig describes the pool. Zero timeouts fall back to the driver defaults.
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // deadline applied to each result insert
	MaxExecTime  time.Duration // server-side max_execution_time

	UseHTTP      bool
	AsyncInsert  bool
	WaitForAsync bool
	Compress     bool
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		Port:            9000,
		Database:        "flashscan",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		Compress:        true,
	}
}

func (c ClientConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("clickhouse: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("clickhouse: invalid port %d", c.Port)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("clickhouse: %d idle connections exceed %d open", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

func WithHost(host string) ClientOption {
	return func(c *ClientConfig) { c.Host = host }
}

func WithPort(port int) ClientOption {
	return func(c *ClientConfig) {
		if port > 0 {
			c.Port = port
		}
	}
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) {
		if database != "" {
			c.Database = database
		}
	}
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
	}
}

// WithHTTP switches from the native protocol to HTTP (port 8123 by default on the server).
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithAsyncInsert lets the server buffer inserts; wait makes the insert return only after the
// buffer is flushed.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = enabled && wait
	}
}

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}

// WithCompression toggles LZ4 block compression on the wire.
func WithCompression(on bool) ClientOption {
	return func(c *ClientConfig) { c.Compress = on }
}
