package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"WeatherCast/internal/domain/repository"
	"WeatherCast/internal/handler/api"
	internalrepo "WeatherCast/internal/repository"
	"WeatherCast/internal/service/ratelimit"
	"WeatherCast/internal/services/features"
	"WeatherCast/internal/services/forecaster"
	"WeatherCast/internal/services/ml"
	"WeatherCast/internal/services/trainer"
	"WeatherCast/internal/usecase"
	"WeatherCast/pkg/cache"
	pkgch "WeatherCast/pkg/clickhouse"
	"WeatherCast/pkg/config"
	pkgkafka "WeatherCast/pkg/kafka"
	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/metrics"
	"WeatherCast/pkg/queue"
	"WeatherCast/pkg/server"
)

// Tools is what the one-shot CLI commands need.
type Tools struct {
	Train    *usecase.TrainUseCase
	Forecast *usecase.ForecastUseCase
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := pkgch.NewClient(ctx, pkgch.Config{
		Host:             ch.Host,
		Port:             ch.Port,
		Database:         ch.Database,
		User:             ch.User,
		Password:         ch.Password,
		UseHTTP:          ch.UseHTTP,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		DialTimeout:      ch.DialTimeout,
		ReadTimeout:      ch.ReadTimeout,
		MaxExecutionTime: ch.MaxExecutionTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSQLiteSource opens the local observation store. It is needed when
// it is the configured source or when Kafka ingest writes into it.
func ProvideSQLiteSource(cfg *config.Config, l *applogger.Logger) (*internalrepo.SQLiteSeriesSource, func(), error) {
	if cfg.Source.Type != string(repository.SourceSQLite) && !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	src, err := internalrepo.OpenSQLiteSeriesSource(ctx, cfg.Source.SQLitePath, cfg.Source.SQLiteTable)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite source: %w", err)
	}
	src.SetLogger(l)
	return src, func() { _ = src.Close() }, nil
}

// ProvideSources registers every backend that can serve LoadSeries.
func ProvideSources(
	cfg *config.Config,
	l *applogger.Logger,
	ch *pkgch.Client,
	sqlite *internalrepo.SQLiteSeriesSource,
) (*usecase.Sources, error) {
	csvSrc := internalrepo.NewCSVSeriesSource(cfg.Source.DataDir)
	csvSrc.SetDateColumn(cfg.Source.DateColumn)
	csvSrc.SetLogger(l)
	jsonSrc := internalrepo.NewJSONSeriesSource(cfg.Source.DataDir)
	jsonSrc.SetDateColumn(cfg.Source.DateColumn)
	jsonSrc.SetLogger(l)

	sources := usecase.NewSources(repository.SourceType(cfg.Source.Type)).
		Register(repository.SourceCSV, csvSrc).
		Register(repository.SourceJSON, jsonSrc)
	if sqlite != nil {
		sources.Register(repository.SourceSQLite, sqlite)
	}
	if ch != nil {
		chSrc, err := internalrepo.NewCHSeriesSource(ch, cfg.Source.ClickHouseTable, cfg.Source.Lookback)
		if err != nil {
			return nil, fmt.Errorf("clickhouse source: %w", err)
		}
		chSrc.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, chSrc.SchemaStatements()...)
		if err := ch.InitSchema(ctx, stmts); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sources.Register(repository.SourceClickHouse, chSrc)
	}
	l.Debug("series sources ready", applogger.Strings("sources", sources.Names()))
	return sources, nil
}

// ProvideModelStore creates the file or S3 model store.
func ProvideModelStore(cfg *config.Config, l *applogger.Logger) (repository.ModelStore, error) {
	switch cfg.Store.Type {
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := internalrepo.NewS3ModelStore(ctx, internalrepo.S3StoreConfig{
			Bucket:          cfg.Store.S3.Bucket,
			Prefix:          cfg.Store.S3.Prefix,
			Region:          cfg.Store.S3.Region,
			Endpoint:        cfg.Store.S3.Endpoint,
			AccessKeyID:     cfg.Store.S3.AccessKey,
			SecretAccessKey: cfg.Store.S3.SecretKey,
			UsePathStyle:    cfg.Store.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 model store: %w", err)
		}
		s.SetLogger(l)
		return s, nil
	default:
		if err := os.MkdirAll(cfg.Store.ModelDir, 0o755); err != nil {
			return nil, fmt.Errorf("model dir: %w", err)
		}
		s := internalrepo.NewFileModelStore(cfg.Store.ModelDir)
		s.SetLogger(l)
		return s, nil
	}
}

// ProvideRedisClient creates a Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache shares Redis between processes when available and falls back
// to an in-process cache otherwise.
func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func()) {
	var c cache.Service
	if rc != nil {
		c = cache.NewRedisCacheWithClient(rc, cfg.Redis.Prefix)
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	return c, func() { _ = c.Close() }
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	pc := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  pc.MaxAttempts,
		Linger:       pc.Linger,
		BatchSize:    pc.BatchSize,
		BatchBytes:   pc.BatchBytes,
		WriteTimeout: pc.WriteTimeout,
		ReadTimeout:  pc.ReadTimeout,
		Async:        pc.Async,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideForecastPublisher publishes forecasts to Kafka when a producer exists.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ForecastPublisher {
	if producer == nil {
		return internalrepo.NoopForecastPublisher{}
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideTrainerConfig maps the forecast section onto the trainer settings.
func ProvideTrainerConfig(cfg *config.Config) trainer.Config {
	f := cfg.Forecast
	return trainer.Config{
		Features: features.Config{
			Target:    f.Target,
			AuxFields: append([]string(nil), f.AuxFields...),
			LagDepth:  f.LagDepth,
		},
		TestFraction: f.TestFraction,
		SplitSeed:    f.SplitSeed,
		Forest: ml.ForestParams{
			Trees:     f.Trees,
			Seed:      f.Seed,
			Bootstrap: true,
			Workers:   f.Workers,
			Tree: ml.TreeParams{
				MaxDepth:        f.MaxDepth,
				MinSamplesSplit: f.MinSamplesSplit,
				MinSamplesLeaf:  f.MinSamplesLeaf,
				MaxFeatures:     f.MaxFeatures,
			},
		},
	}
}

func ProvideForecaster(cfg *config.Config, l *applogger.Logger) *forecaster.Forecaster {
	return forecaster.New(forecaster.Config{
		MaxDays:     cfg.Forecast.MaxDays,
		AuxSentinel: cfg.Forecast.AuxSentinel,
	}, l)
}

func ProvideTrainUseCase(
	cfg *config.Config,
	sources *usecase.Sources,
	store repository.ModelStore,
	tcfg trainer.Config,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TrainUseCase {
	return usecase.NewTrainUseCase(sources, store, tcfg, m, l).WithDefaultModel(cfg.Forecast.ModelName)
}

// ProvideForecastUseCase builds the forecast use case and subscribes it to
// model saves so retrained models replace cached ones.
func ProvideForecastUseCase(
	cfg *config.Config,
	sources *usecase.Sources,
	store repository.ModelStore,
	fc *forecaster.Forecaster,
	responses cache.Service,
	pub repository.ForecastPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	train *usecase.TrainUseCase,
) (*usecase.ForecastUseCase, error) {
	u, err := usecase.NewForecastUseCase(sources, store, fc, usecase.ForecastOptions{
		ModelCacheSize: cfg.Cache.ModelCacheSize,
		CacheTTL:       cfg.Redis.CacheTTL,
		DefaultDays:    cfg.Forecast.DaysAhead,
		DefaultModel:   cfg.Forecast.ModelName,
	}, responses, pub, m, l)
	if err != nil {
		return nil, err
	}
	train.OnModelSaved(u.Invalidate)
	return u, nil
}

func ProvideTrainingJob(train *usecase.TrainUseCase, state cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.TrainingJob {
	return usecase.NewTrainingJob(train, state, usecase.TrainingJobConfig{LockTTL: cfg.Redis.LockTTL}, l)
}

func queuePrefix(cfg *config.Config) queue.RedisQueueOption {
	return queue.WithKeyPrefix(cfg.Redis.Prefix + ":queue")
}

// ProvideTrainingDispatcher queues training on Redis when available and
// trains inline otherwise.
func ProvideTrainingDispatcher(job *usecase.TrainingJob, rc *redis.Client, cfg *config.Config, l *applogger.Logger) *usecase.TrainingDispatcher {
	if rc == nil {
		return usecase.NewTrainingDispatcher(job, nil)
	}
	return usecase.NewTrainingDispatcher(job, queue.NewRedisPublisher(l, rc, queuePrefix(cfg)))
}

// ProvideTrainingQueue creates the worker-side queue consumer. Models the
// worker saves are stamped in the shared cache so serve processes reload them.
func ProvideTrainingQueue(
	cfg *config.Config,
	rc *redis.Client,
	job *usecase.TrainingJob,
	train *usecase.TrainUseCase,
	state cache.Service,
	l *applogger.Logger,
) (*queue.RedisQueue, error) {
	if rc == nil {
		return nil, fmt.Errorf("worker requires redis.enabled")
	}
	train.OnModelSaved(usecase.NewModelStamps(state, l).Retrained)
	return queue.NewRedisConsumer(l, queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, rc, []queue.Job{job}, queuePrefix(cfg)), nil
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
}

func ProvideHTTPHandler(
	l *applogger.Logger,
	fuc *usecase.ForecastUseCase,
	dispatcher *usecase.TrainingDispatcher,
	rl *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, fuc, dispatcher, rl)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideObservationsHandler ingests observations into SQLite and drops
// cached forecasts for the location.
func ProvideObservationsHandler(
	cfg *config.Config,
	sqlite *internalrepo.SQLiteSeriesSource,
	m repository.Metrics,
	fuc *usecase.ForecastUseCase,
) *usecase.ObservationsHandler {
	if sqlite == nil || !cfg.Kafka.Enabled {
		return nil
	}
	h := usecase.NewObservationsHandler(cfg.Kafka.ObservationTopic, sqlite, m)
	h.OnIngest(fuc.InvalidateLocation)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ForecastEchoHandler,
	consumer *pkgkafka.Consumer,
	obs *usecase.ObservationsHandler,
	producer *pkgkafka.Producer,
) *server.App {
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:   "weathercast",
			Topic:     cfg.Kafka.LogTopic,
			Publisher: producer,
		})
	}
	var handlers []pkgkafka.MessageHandler
	if obs != nil {
		handlers = append(handlers, obs)
	}
	return server.New(cfg, l, handler, consumer, handlers...)
}

func ProvideWorker(l *applogger.Logger, q *queue.RedisQueue) *server.Worker {
	return server.NewWorker(l, q)
}

func ProvideTools(train *usecase.TrainUseCase, fuc *usecase.ForecastUseCase) *Tools {
	return &Tools{Train: train, Forecast: fuc}
}
