package clickhouse

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// ClientConfig describes one ClickHouse pool. Zero fields take the `default` tag.
type ClientConfig struct {
	Host            string
	Port            int    `default:"9000"`
	Database        string `default:"default"`
	User            string `default:"default"`
	Password        string
	MaxOpenConns    int           `default:"10"`
	MaxIdleConns    int           `default:"5"`
	ConnMaxLifetime time.Duration `default:"5m"`
	DialTimeout     time.Duration `default:"5s"`
	ReadTimeout     time.Duration `default:"10s"`
	PingTimeout     time.Duration `default:"5s"`
	UseHTTP         bool
	AsyncInsert     bool
	WaitForAsync    bool
	MaxExecTime     time.Duration
	CreateDatabase  bool
}

type ClientOption func(*ClientConfig)

func newClientConfig(opts []ClientOption) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("clickhouse defaults: %w", err)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return cfg, nil
}

func WithHost(host string) ClientOption {
	return func(c *ClientConfig) { c.Host = host }
}

func WithPort(port int) ClientOption {
	return func(c *ClientConfig) { c.Port = port }
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) { c.Database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithPool sizes the database/sql pool. Idle is capped at open.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		c.ConnMaxLifetime = lifetime
	}
}

func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

// WithAsyncInsert sets async_insert, and wait_for_async_insert when wait is true.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = wait
	}
}

// WithMaxExecutionTime caps server-side query time (whole seconds).
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}

// WithCreateDatabase issues CREATE DATABASE IF NOT EXISTS through the
// default database before connecting.
func WithCreateDatabase(create bool) ClientOption {
	return func(c *ClientConfig) { c.CreateDatabase = create }
}
