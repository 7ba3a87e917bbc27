package postgres

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds PostgreSQL pool configuration.
type ClientConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// WithDSN sets the connection string (URL or key=value form).
func WithDSN(dsn string) ClientOption {
	return func(c *ClientConfig) {
		c.DSN = dsn
	}
}

// WithPoolSize sets max and min pool connections.
func WithPoolSize(maxConns, minConns int32) ClientOption {
	return func(c *ClientConfig) {
		c.MaxConns = maxConns
		c.MinConns = minConns
	}
}

// WithConnLifetime sets connection lifetime and idle time.
func WithConnLifetime(lifetime, idle time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.MaxConnLifetime = lifetime
		c.MaxConnIdleTime = idle
	}
}

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnectTimeout = d
	}
}
