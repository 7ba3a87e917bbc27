package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "Stooorage/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics in one consumer group and hands messages
// to a fixed set of lanes. A partition always lands on the same lane, so
// messages of one partition are handled and committed in order.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	lanes    []chan fetched
	hook     ConsumerHook
	dlq      *kafka.Writer

	ctx      context.Context
	cancel   context.CancelFunc
	fetchWg  sync.WaitGroup
	laneWg   sync.WaitGroup
	stopOnce sync.Once
}

type fetched struct {
	reader *kafka.Reader
	km     kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg, err := newConsumerConfig(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     HookChain(nil),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.DLQTopic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}

	consumerMetricsOnce.Do(registerConsumerMetrics)
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for its topic. Must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per topic and starts the lanes.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}

	start := kafka.FirstOffset
	if c.cfg.StartOffset == "latest" {
		start = kafka.LastOffset
	}

	c.lanes = make([]chan fetched, c.cfg.WorkerCount)
	for i := range c.lanes {
		c.lanes[i] = make(chan fetched, c.cfg.BufferSize)
		c.laneWg.Add(1)
		go c.runLane(c.lanes[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: start,
		})
		c.readers[topic] = r
		c.fetchWg.Add(1)
		go c.fetch(topic, r)
	}

	c.info("kafka consumer: started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("lanes", len(c.lanes)),
	)
	return nil
}

// Stop stops fetching, lets the lanes drain what they already hold and closes
// the readers. Messages left unprocessed at the deadline are redelivered later
// because their offsets were never committed.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.info("kafka consumer: stopping")
		c.cancel()
		c.fetchWg.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}

		done := make(chan struct{})
		go func() {
			c.laneWg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer lanes: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.warn("kafka consumer: close dlq writer", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.info("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.fetchWg.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.error("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(c.cfg.BackoffMax) {
				return
			}
			continue
		}

		lane := c.lanes[km.Partition%len(c.lanes)]
		select {
		case lane <- fetched{reader: r, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) runLane(lane <-chan fetched) {
	defer c.laneWg.Done()
	for f := range lane {
		c.process(f)
	}
}

// process handles one message with retries, then dead-letters or commits it.
func (c *Consumer) process(f fetched) {
	topic := f.km.Topic
	handler, ok := c.handlers[topic]
	if !ok {
		return
	}
	start := time.Now()

	err := c.handleWithRetry(handler, f.km)
	result := "ok"
	if err != nil {
		result = "failed"
		c.hook.OnError(c.ctx, topic, f.km, f.km.Value, err)
		if c.dlq != nil {
			if dlqErr := c.deadLetter(f.km, err); dlqErr != nil {
				// leave the offset uncommitted so the message comes back
				c.error("kafka consumer: write dlq", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(dlqErr))
				consumerMessages.WithLabelValues(topic, "stuck").Inc()
				return
			}
			result = "dead_lettered"
		}
	}
	consumerMessages.WithLabelValues(topic, result).Inc()
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err := c.commit(f.reader, f.km); err != nil {
		c.error("kafka consumer: commit offset",
			applogger.String("topic", topic),
			applogger.Int64("offset", f.km.Offset),
			applogger.Error(err),
		)
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	for attempt := 1; ; attempt++ {
		ctx, msg, data, berr := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
		if berr != nil {
			return berr
		}
		err = handler.Handle(ctx, data)
		c.hook.AfterHandle(ctx, km.Topic, msg, data, err)
		if err == nil || attempt > c.cfg.RetryMax || !retryable(err) {
			return err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return fmt.Errorf("consumer stopping after %d attempt(s): %w", attempt, err)
		}
	}
}

func (c *Consumer) deadLetter(km kafka.Message, cause error) error {
	headers := append([]kafka.Header{
		{Key: "source_topic", Value: []byte(km.Topic)},
		{Key: "error", Value: []byte(cause.Error())},
	}, km.Headers...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{Key: km.Key, Value: km.Value, Headers: headers})
}

func (c *Consumer) commit(r *kafka.Reader, km kafka.Message) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	return err
}

// sleep waits d or until the consumer stops; false means stopping.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// retryable reports whether handling err again could succeed. Hook errors
// classify the message itself and are final.
func retryable(err error) bool {
	var he *HookError
	return !errors.As(err, &he)
}

func (c *Consumer) info(msg string, fields ...applogger.Field) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info(msg, fields...)
	}
}

func (c *Consumer) warn(msg string, fields ...applogger.Field) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Warn(msg, fields...)
	}
}

func (c *Consumer) error(msg string, fields ...applogger.Field) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Error(msg, fields...)
	}
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerMetricsOnce   sync.Once
	consumerMessages      *prometheus.CounterVec
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_consumer",
			Name:      "messages_total",
			Help:      "Consumed messages by outcome",
		},
		[]string{"topic", "result"},
	)
	consumerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_consumer",
			Name:      "lane_depth",
			Help:      "Messages waiting in the lane that received the last fetch",
		},
		[]string{"topic"},
	)
	consumerHandleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stooorage",
			Subsystem: "kafka_consumer",
			Name:      "handle_seconds",
			Help:      "Handling time per message including retries",
		},
		[]string{"topic"},
	)
}
