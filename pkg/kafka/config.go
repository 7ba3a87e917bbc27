package kafka

import (
	"fmt"
	"time"

	applogger "Stooorage/pkg/logger"

	"github.com/creasty/defaults"
)

// ProducerConfig holds producer configuration. Zero fields take the `default` tag.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int           `default:"-1"`
	Compression  string        `default:"snappy"`
	MaxAttempts  int           `default:"3"`
	WriteTimeout time.Duration `default:"10s"`
	ReadTimeout  time.Duration `default:"10s"`
	BatchSize    int           `default:"100"`
	BatchBytes   int           `default:"1048576"`
	BatchTimeout time.Duration `default:"50ms"`
	Async        bool
	HashByKey    bool
}

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

func newProducerConfig(opts []ProducerOption) (*ProducerConfig, error) {
	cfg := &ProducerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("producer defaults: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	return cfg, nil
}

// WithBrokers sets Kafka brokers.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression sets compression: gzip, snappy, lz4 or zstd.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = compression }
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

// WithMaxAttempts sets max delivery attempts by the writer.
func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) { c.MaxAttempts = n }
}

// WithBatchSize sets batch size.
func WithBatchSize(size int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchSize = size }
}

// WithBatchTimeout sets how long a partial batch may linger.
func WithBatchTimeout(linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchTimeout = linger }
}

// WithBatchBytes sets target aggregate batch bytes.
func WithBatchBytes(bytes int) ProducerOption {
	return func(c *ProducerConfig) { c.BatchBytes = bytes }
}

// WithTimeouts sets writer read/write timeouts.
func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithHashByKey routes equal keys to the same partition so one product's events stay ordered.
func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

// ConsumerConfig holds consumer configuration. Zero fields take the `default` tag.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string        `default:"stooorage"`
	StartOffset string        `default:"earliest"`
	WorkerCount int           `default:"1"`
	BufferSize  int           `default:"64"`
	RetryMax    int           `default:"3"`
	BackoffMin  time.Duration `default:"50ms"`
	BackoffMax  time.Duration `default:"2s"`
	DLQTopic    string
	MinBytes    int `default:"1"`
	MaxBytes    int `default:"10485760"`
	Logger      *applogger.Logger
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

func newConsumerConfig(opts []ConsumerOption) (*ConsumerConfig, error) {
	cfg := &ConsumerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("consumer defaults: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.StartOffset != "earliest" && cfg.StartOffset != "latest" {
		return nil, fmt.Errorf("start offset must be earliest or latest, got %q", cfg.StartOffset)
	}
	return cfg, nil
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

// WithConsumerGroupID sets the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerStartOffset picks where a new group starts: earliest or latest.
func WithConsumerStartOffset(offset string) ConsumerOption {
	return func(c *ConsumerConfig) { c.StartOffset = offset }
}

// WithConsumerWorkers sets the number of handler lanes. Partitions map onto
// lanes so each partition is handled in order.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = count }
}

// WithConsumerRetry sets handler retries and the backoff window between them.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sends messages that exhausted retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerFetch sets reader fetch sizes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerLogger logs consumer lifecycle and failures.
func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

// WithConsumerBufferSize sets the per-lane queue size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) { c.BufferSize = n }
}
