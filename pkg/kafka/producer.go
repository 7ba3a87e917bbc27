package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka writer with JSON encoding and metrics.
type Producer struct {
	writer  *kafka.Writer
	comp    string
	brokers []string
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg, err := newProducerConfig(opts)
	if err != nil {
		return nil, err
	}
	comp, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            comp,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}

	producerMetricsOnce.Do(registerProducerMetrics)
	return &Producer{writer: writer, comp: cfg.Compression, brokers: cfg.Brokers}, nil
}

// Publish sends one message to topic. []byte and string values are sent as-is,
// anything else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error {
	start := time.Now()
	v, err := encode(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   v,
		Headers: headers,
		Time:    start,
	})
	observeProducer(topic, p.comp, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Ping succeeds when any broker accepts a connection.
func (p *Producer) Ping(ctx context.Context) error {
	var err error
	for _, b := range p.brokers {
		var conn *kafka.Conn
		if conn, err = kafka.DialContext(ctx, "tcp", b); err == nil {
			return conn.Close()
		}
	}
	return err
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) (kafka.Compression, error) {
	switch s {
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	producerMetricsOnce sync.Once
	producerMessages    *prometheus.CounterVec
	producerBytes       *prometheus.CounterVec
	producerLatency     *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_producer",
			Name:      "messages_total",
			Help:      "Messages published to Kafka by result",
		},
		[]string{"topic", "result"},
	)
	producerBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_producer",
			Name:      "bytes_total",
			Help:      "Payload bytes published before compression",
		},
		[]string{"topic", "compression"},
	)
	producerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_producer",
			Name:      "publish_seconds",
			Help:      "Publish latency",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"topic"},
	)
}

func observeProducer(topic, comp string, size int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, result).Inc()
	if err == nil {
		producerBytes.WithLabelValues(topic, comp).Add(float64(size))
	}
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
