package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Logger      LoggerConfig     `yaml:"logger"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	Forecast    ForecastConfig   `yaml:"forecast"`
	Reports     ReportsConfig    `yaml:"reports"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"3m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORS            bool          `yaml:"cors" default:"true"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	BodyLimit       string        `yaml:"body_limit" default:"1M"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
	Collector  struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"stooorage.logs"`
		Interval       time.Duration `yaml:"interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"collector"`
}

type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	Path          string        `yaml:"path" default:"/metrics"`
	SlowThreshold time.Duration `yaml:"slow_threshold" default:"5s"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns" default:"10"`
	MinConns        int32         `yaml:"min_conns" default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" default:"5m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
	InitSchema      bool          `yaml:"init_schema" default:"true"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"stooorage"`
	Table            string        `yaml:"table" default:"sales_events"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

// QualifiedTable returns database.table.
func (c ClickHouseConfig) QualifiedTable() string {
	return c.Database + "." + c.Table
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"stooorage.sales"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		GroupID    string        `yaml:"group_id" default:"stooorage-sales-mirror"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"stooorage.sales.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		SlowLog    time.Duration `yaml:"slow_log" default:"1s"`
	} `yaml:"consumer"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix" default:"stooorage:"`
}

type ForecastConfig struct {
	// Engine selects the model: "local" (in-process trend model) or "prophet" (HTTP sidecar).
	Engine string `yaml:"engine" default:"local"`
	// Source selects where series are read from: "postgres" or "clickhouse".
	Source         string        `yaml:"source" default:"postgres"`
	ProphetURL     string        `yaml:"prophet_url"`
	Timeout        time.Duration `yaml:"timeout" default:"2m"`
	Workers        int           `yaml:"workers" default:"4"`
	IntervalWidth  float64       `yaml:"interval_width" default:"0.8"`
	CacheTTL       time.Duration `yaml:"cache_ttl" default:"10m"`
	RateLimitBurst float64       `yaml:"rate_limit_burst" default:"3"`
	RateLimitRate  float64       `yaml:"rate_limit_rate" default:"0.2"`
}

type ReportsConfig struct {
	// ReferenceDate pins "now" for report windows (YYYY-MM-DD). Empty means the wall clock.
	ReferenceDate string `yaml:"reference_date"`
	CriticalStock int64  `yaml:"critical_stock" default:"20"`
	LowStock      int64  `yaml:"low_stock" default:"50"`
}

// Reference parses ReferenceDate; zero when unset.
func (r ReportsConfig) Reference() (time.Time, error) {
	if r.ReferenceDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", r.ReferenceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("reports.reference_date: %w", err)
	}
	return t, nil
}

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(b)
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("FORECAST_ENGINE"); v != "" {
		c.Forecast.Engine = v
	}
	if v := getenv("PROPHET_SERVICE_URL"); v != "" {
		c.Forecast.ProphetURL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required (or DATABASE_URL)")
	}
	switch c.Forecast.Engine {
	case "local":
	case "prophet":
		if c.Forecast.ProphetURL == "" {
			return fmt.Errorf("forecast.prophet_url is required for engine 'prophet'")
		}
	default:
		return fmt.Errorf("forecast.engine must be 'local' or 'prophet', got '%s'", c.Forecast.Engine)
	}
	switch c.Forecast.Source {
	case "postgres":
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("forecast.source 'clickhouse' requires clickhouse.enabled")
		}
	default:
		return fmt.Errorf("forecast.source must be 'postgres' or 'clickhouse', got '%s'", c.Forecast.Source)
	}
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1)")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Reports.CriticalStock <= 0 || c.Reports.LowStock <= c.Reports.CriticalStock {
		return fmt.Errorf("reports: need 0 < critical_stock < low_stock")
	}
	if _, err := c.Reports.Reference(); err != nil {
		return err
	}
	return nil
}
