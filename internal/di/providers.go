package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
	"FlashScan/internal/handler/api"
	"FlashScan/internal/handler/ws"
	internalrepo "FlashScan/internal/repository"
	icache "FlashScan/internal/service/cache"
	"FlashScan/internal/usecase"
	pkgch "FlashScan/pkg/clickhouse"
	"FlashScan/pkg/config"
	xhttp "FlashScan/pkg/http"
	pkgkafka "FlashScan/pkg/kafka"
	applogger "FlashScan/pkg/logger"
	"FlashScan/pkg/metrics"
	"FlashScan/pkg/server"
)

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. Without brokers it returns nil and the
// publisher and log collector stay disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideLogger builds the application logger and attaches the error-log collector when a
// topic and a producer are available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.CollectorTopic != "" && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.FlushInterval,
			CountThreshold: cfg.Logging.FlushCount,
			Topic:          cfg.Logging.CollectorTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarSource reads candles from ClickHouse.
func ProvideBarSource(ch *pkgch.Client, l *applogger.Logger) repository.BarSource {
	src := internalrepo.NewCHBarSource(ch)
	src.SetLogger(l)
	return src
}

// ProvideResultStore selects the persistence backend from results.backend.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client) (repository.ResultStore, error) {
	switch cfg.Results.Backend {
	case "clickhouse":
		return internalrepo.NewCHResultStore(ch), nil
	case "sqlite":
		store, err := internalrepo.NewSQLiteResultStore(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// ProvideFlashPublisher creates the Kafka publisher when results.publish is set.
func ProvideFlashPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.FlashPublisher {
	if !cfg.Results.Publish || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Results.FlashTopic, cfg.Results.SummaryTopic)
}

func engineDefaults(cfg *config.Config) (models.EngineParams, models.SignalParams) {
	return models.EngineParams{
			GracePeriod: cfg.Engine.GracePeriod,
			MaxActive:   cfg.Engine.MaxActive,
		}, models.SignalParams{
			ADXLookback:  cfg.Signals.ADXLookback,
			ADXThreshold: cfg.Signals.ADXThreshold,
			BBLookback:   cfg.Signals.BBLookback,
			BBStdDev:     cfg.Signals.BBStdDev,
			BBCloses:     cfg.Signals.BBCloses,
			Warmup:       cfg.Signals.Warmup,
		}
}

// ProvideAnalysisUseCase wires the analysis pipeline.
func ProvideAnalysisUseCase(
	cfg *config.Config,
	source repository.BarSource,
	store repository.ResultStore,
	pub repository.FlashPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisUseCase {
	ep, sp := engineDefaults(cfg)
	opts := []usecase.AnalysisOption{
		usecase.WithDefaults(ep, sp),
		usecase.WithMaxBars(cfg.Results.MaxBars),
	}
	if store != nil {
		opts = append(opts, usecase.WithResultStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewAnalysisUseCase(source, m, l, opts...)
}

// ProvideBarsUseCase creates the bar lookup use case.
func ProvideBarsUseCase(source repository.BarSource) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(source)
}

// ProvideCache returns a Redis cache when enabled, else an in-process TTL cache.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache(512)
}

// ProvideHTTPHandler registers the REST and websocket routes.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.AnalysisUseCase,
	bars *usecase.BarsUseCase,
	cache icache.BytesCache,
) xhttp.Handler {
	_, sp := engineDefaults(cfg)
	rest := api.NewFlashEchoHandler(l, uc, bars,
		api.WithCache(cache, cfg.Server.CacheTTL),
		api.WithRateLimit(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.Refill),
		api.WithSignalDefaults(sp),
	)
	return xhttp.Handlers{rest, ws.NewReplayHandler(l, uc, rest)}
}

// ProvideKafkaConsumer creates the jobs consumer when kafka.consumer.enabled is set.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideKafkaJobsHandler handles analysis jobs from the jobs topic.
func ProvideKafkaJobsHandler(cfg *config.Config, uc *usecase.AnalysisUseCase, m repository.Metrics) *usecase.KafkaJobsHandler {
	return usecase.NewKafkaJobsHandler(cfg.Kafka.Consumer.JobsTopic, uc, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	jobs *usecase.KafkaJobsHandler,
	ch *pkgch.Client,
	store repository.ResultStore,
	producer *pkgkafka.Producer,
	cache icache.BytesCache,
) *server.App {
	health := func(ctx context.Context) error {
		if err := ch.Health(ctx); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		if store != nil {
			if err := store.Health(ctx); err != nil {
				return fmt.Errorf("result store: %w", err)
			}
		}
		return nil
	}

	// Stores close before the ClickHouse pool they may share.
	var res []server.Resource
	if producer != nil {
		res = append(res, server.Resource{Name: "kafka producer", Closer: producer})
	}
	if store != nil {
		res = append(res, server.Resource{Name: "result store", Closer: store})
	}
	if c, ok := cache.(io.Closer); ok {
		res = append(res, server.Resource{Name: "cache", Closer: c})
	}
	res = append(res, server.Resource{Name: "clickhouse", Closer: ch})

	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = jobs
	}
	return server.New(cfg, l, handler, health, consumer, mh, res...)
}
