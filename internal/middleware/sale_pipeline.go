package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"
)

// SalePipeline sits between the transaction use case and the sale publisher.
// It validates events and parks the ones the downstream rejects in a bounded
// buffer that a background loop redelivers with backoff.
type SalePipeline struct {
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	bufSize    int
	bufCh      chan *models.SaleEvent
	stopCh     chan struct{}
	done       chan struct{}
	started    bool
	mu         sync.Mutex
	backoffMin time.Duration
	backoffMax time.Duration
	timeout    time.Duration
}

type PipelineOption func(*SalePipeline)

// WithBufferSize sets how many failed events are kept for redelivery.
func WithBufferSize(n int) PipelineOption {
	return func(p *SalePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff bounds the wait between redelivery attempts.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *SalePipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

// WithPipelineLogger logs dropped events.
func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SalePipeline) { p.l = l }
}

// NewSalePipeline creates a new pipeline.
func NewSalePipeline(pub domrepo.Publisher, metrics domrepo.Metrics, opts ...PipelineOption) *SalePipeline {
	p := &SalePipeline{
		pub:        pub,
		metrics:    metrics,
		bufSize:    1000,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SaleEvent, p.bufSize)
	return p
}

// Start launches background redelivery of buffered events.
func (p *SalePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := p.backoffMin
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case e := <-p.bufCh:
				if err := p.send(ctx, e); err != nil {
					p.recordError("pipeline_redeliver")
					p.requeue(e)
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					if backoff *= 2; backoff > p.backoffMax {
						backoff = p.backoffMax
					}
					continue
				}
				backoff = p.backoffMin
			}
		}
	}()
}

// PublishSale validates and forwards e, buffering it when the downstream fails.
func (p *SalePipeline) PublishSale(ctx context.Context, e *models.SaleEvent) error {
	start := time.Now()
	if err := validateSale(e); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if err := p.pub.PublishSale(ctx, e); err != nil {
		p.recordError("pipeline_publish")
		p.requeue(e)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("sale_publish", time.Since(start).Seconds())
	}
	return nil
}

// Pending reports how many events wait for redelivery.
func (p *SalePipeline) Pending() int { return len(p.bufCh) }

// Close stops redelivery, makes one last attempt at the buffer and closes the downstream.
func (p *SalePipeline) Close() error {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()
	if started {
		close(p.stopCh)
		<-p.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case e := <-p.bufCh:
			if err := p.send(ctx, e); err != nil {
				p.recordError("pipeline_buffer_drop")
				if p.l != nil {
					p.l.Warn("sale event dropped on shutdown",
						applogger.String("event_id", e.EventID),
						applogger.Error(err),
					)
				}
			}
		default:
			return p.pub.Close()
		}
	}
}

func (p *SalePipeline) send(ctx context.Context, e *models.SaleEvent) error {
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pub.PublishSale(sctx, e)
}

func (p *SalePipeline) requeue(e *models.SaleEvent) {
	select {
	case p.bufCh <- e:
	default:
		p.recordError("pipeline_buffer_full")
		if p.l != nil {
			p.l.Warn("sale event buffer full", applogger.String("event_id", e.EventID))
		}
	}
}

func (p *SalePipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateSale(e *models.SaleEvent) error {
	if e == nil {
		return fmt.Errorf("sale event nil")
	}
	if e.EventID == "" || e.ProductNo == "" || e.TransactionNo == "" {
		return fmt.Errorf("sale event missing identifiers")
	}
	if e.Quantity <= 0 {
		return fmt.Errorf("sale event quantity must be positive")
	}
	if e.PriceAtSale.IsNegative() {
		return fmt.Errorf("sale event price negative")
	}
	return nil
}
