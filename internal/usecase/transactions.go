package usecase

import (
	"context"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"

	"github.com/google/uuid"
)

// TransactionUseCase records sales and announces them downstream.
type TransactionUseCase struct {
	store   domrepo.TransactionStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	l       *applogger.Logger
	timeout time.Duration
}

func NewTransactionUseCase(store domrepo.TransactionStore, pub domrepo.Publisher, metrics domrepo.Metrics, l *applogger.Logger) *TransactionUseCase {
	return &TransactionUseCase{store: store, pub: pub, metrics: metrics, l: l, timeout: 5 * time.Second}
}

// Create stores the sale and returns the remaining stock. The sale event is
// published after commit; a publish failure is logged and does not fail the call.
func (uc *TransactionUseCase) Create(ctx context.Context, t *models.Transaction) (int64, error) {
	if t.TransactionNo == "" || t.ProductNo == "" {
		return 0, fmt.Errorf("transaction_no and product_no required: %w", models.ErrInvalidInput)
	}
	if t.Quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", models.ErrInvalidInput)
	}
	if t.PriceAtSale.IsNegative() {
		return 0, fmt.Errorf("price_at_sale must be non-negative: %w", models.ErrInvalidInput)
	}
	if t.TransactionDate.IsZero() {
		return 0, fmt.Errorf("transaction_date required: %w", models.ErrInvalidInput)
	}

	start := time.Now()
	product, remaining, err := uc.store.Create(ctx, t)
	if uc.metrics != nil {
		uc.metrics.RecordLatency("transaction_create", time.Since(start).Seconds())
	}
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordError("transaction_create")
		}
		return 0, err
	}
	if uc.metrics != nil {
		uc.metrics.RecordSale(t.Country, t.Quantity)
	}

	uc.publish(ctx, t, product)
	return remaining, nil
}

func (uc *TransactionUseCase) publish(ctx context.Context, t *models.Transaction, p *models.Product) {
	if uc.pub == nil {
		return
	}
	ev := &models.SaleEvent{
		EventID:         uuid.NewString(),
		TransactionNo:   t.TransactionNo,
		TransactionDate: models.Naive(t.TransactionDate),
		ProductNo:       t.ProductNo,
		Quantity:        t.Quantity,
		PriceAtSale:     t.PriceAtSale,
		Country:         t.Country,
	}
	if p != nil {
		ev.ProductName = p.ProductName
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()
	if err := uc.pub.PublishSale(pctx, ev); err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordError("sale_publish")
		}
		if uc.l != nil {
			uc.l.Warn("sale event publish failed",
				applogger.String("transaction_no", t.TransactionNo),
				applogger.Error(err),
			)
		}
	}
}

func (uc *TransactionUseCase) List(ctx context.Context, productNo string) ([]models.Transaction, error) {
	return uc.store.List(ctx, productNo)
}
