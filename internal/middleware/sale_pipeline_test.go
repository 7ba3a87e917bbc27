package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Stooorage/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	sent     []string
	closed   bool
}

func (f *flakyPublisher) PublishSale(_ context.Context, e *models.SaleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker down")
	}
	f.sent = append(f.sent, e.EventID)
	return nil
}

func (f *flakyPublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *flakyPublisher) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}
func (m *countingMetrics) RecordLatency(string, float64)         {}
func (m *countingMetrics) RecordSale(string, int64)              {}
func (m *countingMetrics) RecordForecast(string, string, string) {}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func sale(id string) *models.SaleEvent {
	return &models.SaleEvent{
		EventID:       id,
		TransactionNo: "T-" + id,
		ProductNo:     "P1",
		Quantity:      2,
		PriceAtSale:   decimal.RequireFromString("9.99"),
	}
}

func TestSalePipelineForwards(t *testing.T) {
	pub := &flakyPublisher{}
	p := NewSalePipeline(pub, &countingMetrics{})

	require.NoError(t, p.PublishSale(context.Background(), sale("a")))
	assert.Equal(t, []string{"a"}, pub.snapshot())
	assert.Zero(t, p.Pending())
	require.NoError(t, p.Close())
	assert.True(t, pub.closed)
}

func TestSalePipelineRejectsInvalidEvents(t *testing.T) {
	m := &countingMetrics{}
	p := NewSalePipeline(&flakyPublisher{}, m)

	bad := sale("a")
	bad.Quantity = 0
	assert.Error(t, p.PublishSale(context.Background(), bad))
	assert.Error(t, p.PublishSale(context.Background(), nil))
	assert.Equal(t, 2, m.count("pipeline_validate"))
	assert.Zero(t, p.Pending())
}

func TestSalePipelineRedeliversBufferedEvents(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	m := &countingMetrics{}
	p := NewSalePipeline(pub, m, WithBackoff(time.Millisecond, 5*time.Millisecond))

	err := p.PublishSale(context.Background(), sale("a"))
	require.Error(t, err)
	assert.Equal(t, 1, p.Pending())

	p.Start(context.Background())
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, pub.snapshot())
	assert.Equal(t, 1, m.count("pipeline_redeliver"))
	require.NoError(t, p.Close())
}

func TestSalePipelineBufferFull(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	m := &countingMetrics{}
	p := NewSalePipeline(pub, m, WithBufferSize(1))

	_ = p.PublishSale(context.Background(), sale("a"))
	_ = p.PublishSale(context.Background(), sale("b"))
	assert.Equal(t, 1, p.Pending())
	assert.Equal(t, 1, m.count("pipeline_buffer_full"))
}

func TestSalePipelineCloseFlushesBuffer(t *testing.T) {
	pub := &flakyPublisher{failures: 1}
	p := NewSalePipeline(pub, &countingMetrics{})

	_ = p.PublishSale(context.Background(), sale("a"))
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"a"}, pub.snapshot())
	assert.True(t, pub.closed)
}
