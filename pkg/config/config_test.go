package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
postgres:
  dsn: postgres://u:p@localhost:5432/db
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, 3*time.Minute, c.Server.WriteTimeout)
	assert.Equal(t, "1M", c.Server.BodyLimit)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, "/metrics", c.Metrics.Path)
	assert.Equal(t, int32(10), c.Postgres.MaxConns)
	assert.Equal(t, "local", c.Forecast.Engine)
	assert.Equal(t, "postgres", c.Forecast.Source)
	assert.Equal(t, 0.8, c.Forecast.IntervalWidth)
	assert.Equal(t, 10*time.Minute, c.Forecast.CacheTTL)
	assert.Equal(t, int64(20), c.Reports.CriticalStock)
	assert.Equal(t, int64(50), c.Reports.LowStock)
	assert.Equal(t, "stooorage.sales_events", c.ClickHouse.QualifiedTable())
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, "stooorage:", c.Redis.KeyPrefix)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	c, err := Parse([]byte(minimal + `
server:
  port: 9090
forecast:
  engine: prophet
  prophet_url: http://prophet:8001
  workers: 2
reports:
  reference_date: "2011-12-10"
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "prophet", c.Forecast.Engine)
	assert.Equal(t, 2, c.Forecast.Workers)

	ref, err := c.Reports.Reference()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC), ref)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing dsn", "environment: test\n"},
		{"bad engine", minimal + "forecast:\n  engine: arima\n"},
		{"prophet without url", minimal + "forecast:\n  engine: prophet\n"},
		{"clickhouse source disabled", minimal + "forecast:\n  source: clickhouse\n"},
		{"bad interval", minimal + "forecast:\n  interval_width: 1.5\n"},
		{"kafka without brokers", minimal + "kafka:\n  enabled: true\n"},
		{"inverted stock thresholds", minimal + "reports:\n  critical_stock: 60\n  low_stock: 50\n"},
		{"bad reference date", minimal + "reports:\n  reference_date: 10/12/2011\n"},
		{"port out of range", minimal + "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"DATABASE_URL":        "postgres://other/db",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
		"KAFKA_TOPIC":         "sales",
		"FORECAST_ENGINE":     "prophet",
		"PROPHET_SERVICE_URL": "http://p:8001",
		"REDIS_ADDR":          "r:6379",
		"LOG_LEVEL":           "debug",
		"PORT":                "8080",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "postgres://other/db", c.Postgres.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "sales", c.Kafka.Topic)
	assert.Equal(t, "prophet", c.Forecast.Engine)
	assert.Equal(t, "http://p:8001", c.Forecast.ProphetURL)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "r:6379", c.Redis.Addr)
	assert.Equal(t, "debug", c.Logger.Level)
	assert.Equal(t, 8080, c.Server.Port)
	assert.NoError(t, c.Validate())
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("DATABASE_URL", "postgres://env/db")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "postgres://env/db", c.Postgres.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
