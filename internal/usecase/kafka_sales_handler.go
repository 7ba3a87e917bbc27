package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	pkgkafka "Stooorage/pkg/kafka"
)

// KafkaSalesHandler consumes sale events and writes them to the analytical mirror.
type KafkaSalesHandler struct {
	topic   string
	sink    domrepo.SaleSink
	metrics domrepo.Metrics
}

func NewKafkaSalesHandler(topic string, sink domrepo.SaleSink, metrics domrepo.Metrics) *KafkaSalesHandler {
	return &KafkaSalesHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaSalesHandler) Topic() string { return h.topic }

func (h *KafkaSalesHandler) Handle(ctx context.Context, b []byte) error {
	var e models.SaleEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return &pkgkafka.HookError{Code: "ERR_DECODE", Err: err}
	}
	if e.TransactionNo == "" || e.ProductNo == "" || e.TransactionDate.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return &pkgkafka.HookError{Code: "ERR_VALIDATION", Err: fmt.Errorf("sale event %q: %w", e.EventID, models.ErrInvalidInput)}
	}

	start := time.Now()
	err := h.sink.StoreSale(ctx, &e)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSalesHandler)(nil)
