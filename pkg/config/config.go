package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FlashScan/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		BodyLimit       string        `yaml:"body_limit" default:"32M"`
		RateLimit       struct {
			Capacity int     `yaml:"capacity" default:"20" validate:"gte=0"`
			Refill   float64 `yaml:"refill_per_sec" default:"2" validate:"gte=0"`
		} `yaml:"rate_limit"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Logging struct {
		Level          string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format         string        `yaml:"format" default:"json" validate:"oneof=json console"`
		Output         string        `yaml:"output" default:"stdout"`
		CollectorTopic string        `yaml:"collector_topic"`
		FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
		FlushCount     int           `yaml:"flush_count" default:"100"`
	} `yaml:"logging"`

	Engine struct {
		GracePeriod int `yaml:"grace_period" default:"7" validate:"gt=0"`
		MaxActive   int `yaml:"max_active" default:"0" validate:"gte=0"`
	} `yaml:"engine"`

	Signals struct {
		ADXLookback  int     `yaml:"adx_lookback" default:"14" validate:"gt=0"`
		ADXThreshold float64 `yaml:"adx_threshold" default:"12" validate:"gt=0"`
		BBLookback   int     `yaml:"bb_lookback" default:"20" validate:"gt=1"`
		BBStdDev     float64 `yaml:"bb_std_dev" default:"2" validate:"gt=0"`
		BBCloses     int     `yaml:"bb_closes" default:"2" validate:"gte=0"`
		Warmup       int     `yaml:"warmup" default:"200" validate:"gte=0"`
	} `yaml:"signals"`

	Results struct {
		Backend      string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse sqlite none"`
		Publish      bool   `yaml:"publish" default:"false"`
		FlashTopic   string `yaml:"flash_topic" default:"flashscan.flashes.closed"`
		SummaryTopic string `yaml:"summary_topic" default:"flashscan.runs"`
		MaxBars      int    `yaml:"max_bars" default:"500000" validate:"gt=0"`
	} `yaml:"results"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled     bool          `yaml:"enabled"`
			JobsTopic   string        `yaml:"jobs_topic" default:"flashscan.jobs"`
			GroupID     string        `yaml:"group_id" default:"flashscan"`
			StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
			Workers     int           `yaml:"workers" default:"4" validate:"gt=0"`
			BufferSize  int           `yaml:"buffer_size" default:"64"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic" default:"flashscan.jobs.dlq"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"flashscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		Compress         bool          `yaml:"compress" default:"true"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	SQLite struct {
		Path string `yaml:"path" default:"data/flashscan.db"`
	} `yaml:"sqlite"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. Missing keys take their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FLASH_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLASH_GRACE_PERIOD: %w", err)
		}
		c.Engine.GracePeriod = n
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("RESULTS_BACKEND"); v != "" {
		c.Results.Backend = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Results.Publish && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("results.publish requires kafka.brokers")
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.consumer.enabled requires kafka.brokers")
	}
	if c.Logging.CollectorTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.collector_topic requires kafka.brokers")
	}
	return nil
}
