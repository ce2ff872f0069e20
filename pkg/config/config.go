package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"WeatherCast/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         LogConfig       `yaml:"log"`
	Server      ServerConfig    `yaml:"server"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Forecast    ForecastConfig  `yaml:"forecast"`
	Source      SourceConfig    `yaml:"source"`
	Store       StoreConfig     `yaml:"store"`
	ClickHouse  ClickHouse      `yaml:"clickhouse"`
	Redis       RedisConfig     `yaml:"redis"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Cache       CacheConfig     `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout" validate:"required"`
	// Collect publishes aggregated error logs to kafka.log_topic.
	Collect bool `yaml:"collect"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// ForecastConfig carries the feature, trainer and forecaster settings.
type ForecastConfig struct {
	Target          string   `yaml:"target" default:"temperature" validate:"required"`
	AuxFields       []string `yaml:"aux_fields" default:"[\"humidity\",\"wind_speed\",\"precipitation\"]" validate:"dive,required"`
	LagDepth        int      `yaml:"lag_depth" default:"5" validate:"min=1,max=366"`
	TestFraction    float64  `yaml:"test_fraction" default:"0.2" validate:"gt=0,lt=1"`
	DaysAhead       int      `yaml:"days_ahead" default:"5" validate:"min=1"`
	MaxDays         int      `yaml:"max_days" default:"60" validate:"gtefield=DaysAhead"`
	Trees           int      `yaml:"trees" default:"100" validate:"min=1"`
	MaxDepth        int      `yaml:"max_depth" validate:"min=0"`
	MinSamplesSplit int      `yaml:"min_samples_split" default:"2" validate:"min=2"`
	MinSamplesLeaf  int      `yaml:"min_samples_leaf" default:"1" validate:"min=1"`
	MaxFeatures     int      `yaml:"max_features" validate:"min=0"`
	Seed            int64    `yaml:"seed" default:"42"`
	SplitSeed       int64    `yaml:"split_seed" default:"42"`
	Workers         int      `yaml:"workers" validate:"min=0"`
	AuxSentinel     float64  `yaml:"aux_sentinel"`
	ModelName       string   `yaml:"model_name" default:"weather_model" validate:"required"`
}

type SourceConfig struct {
	Type            string `yaml:"type" default:"csv" validate:"oneof=csv json sqlite clickhouse"`
	DataDir         string `yaml:"data_dir" default:"data"`
	DateColumn      string `yaml:"date_column" default:"date"`
	SQLitePath      string `yaml:"sqlite_path" default:"data/observations.db"`
	SQLiteTable     string `yaml:"sqlite_table" default:"observations"`
	ClickHouseTable string `yaml:"clickhouse_table" default:"weather.observations"`
	// Lookback caps the rows read from ClickHouse per location; zero reads all.
	Lookback int `yaml:"lookback" validate:"min=0"`
}

type StoreConfig struct {
	Type     string   `yaml:"type" default:"file" validate:"oneof=file s3"`
	ModelDir string   `yaml:"model_dir" default:"models"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix" default:"models"`
	Region       string `yaml:"region" default:"us-east-1"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"weather"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"weathercast"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
	LockTTL  time.Duration `yaml:"lock_ttl" default:"10m"`
	Queue    struct {
		Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"min=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
}

type KafkaConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Brokers          []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	ForecastTopic    string   `yaml:"forecast_topic" default:"weather.forecasts"`
	ObservationTopic string   `yaml:"observation_topic" default:"weather.observations"`
	LogTopic         string   `yaml:"log_topic" default:"weathercast.logs"`
	RequiredAcks     int      `yaml:"required_acks" default:"1" validate:"oneof=-1 0 1"`
	Compression      string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer         struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"weathercast"`
		Workers    int           `yaml:"workers" default:"4" validate:"min=1"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"weather.observations.dlq"`
	} `yaml:"consumer"`
}

type CacheConfig struct {
	ModelCacheSize int `yaml:"model_cache_size" default:"16" validate:"min=1"`
	MemoryMaxSize  int `yaml:"memory_max_size" default:"1000" validate:"min=1"`
}

type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled" default:"true"`
	PerSecond float64 `yaml:"per_second" default:"5" validate:"gt=0"`
	Burst     int     `yaml:"burst" default:"10" validate:"min=1"`
}

var validate = validator.New()

// Default returns a configuration built from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. An empty path skips the file.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("WEATHERCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("MODEL_DIR"); v != "" {
		c.Store.ModelDir = v
	}
	if v := getenv("DATA_DIR"); v != "" {
		c.Source.DataDir = v
	}
	if v := getenv("FORECAST_TARGET"); v != "" {
		c.Forecast.Target = v
	}
	if v := getenv("FORECAST_AUX_FIELDS"); v != "" {
		c.Forecast.AuxFields = util.SplitList(v)
	}
	c.Forecast.LagDepth = util.ParseIntDefault(getenv("FORECAST_LAG_DEPTH"), c.Forecast.LagDepth)
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	c.Redis.DB = util.ParseIntDefault(getenv("REDIS_DB"), c.Redis.DB)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("S3_BUCKET"); v != "" {
		c.Store.S3.Bucket = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return err
	}
	if c.Store.Type == "s3" && c.Store.S3.Bucket == "" {
		return fmt.Errorf("store.s3.bucket is required when store.type is s3")
	}
	if c.Source.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("source.type clickhouse requires clickhouse.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	for i, f := range c.Forecast.AuxFields {
		for _, g := range c.Forecast.AuxFields[:i] {
			if f == g {
				return fmt.Errorf("forecast.aux_fields: duplicate %q", f)
			}
		}
	}
	return nil
}
