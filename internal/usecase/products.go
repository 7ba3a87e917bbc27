package usecase

import (
	"context"
	"fmt"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ProductUseCase manages the product catalog and stock queries.
type ProductUseCase struct {
	store    domrepo.ProductStore
	l        *applogger.Logger
	critical int64
	low      int64
}

func NewProductUseCase(store domrepo.ProductStore, l *applogger.Logger) *ProductUseCase {
	return &ProductUseCase{store: store, l: l, critical: 20, low: 50}
}

// SetStockThresholds sets the exclusive upper bounds of the critical and low bands.
func (uc *ProductUseCase) SetStockThresholds(critical, low int64) {
	if critical > 0 && low > critical {
		uc.critical, uc.low = critical, low
	}
}

func (uc *ProductUseCase) Create(ctx context.Context, p *models.Product) error {
	if p.ProductNo == "" || p.ProductName == "" {
		return fmt.Errorf("product_no and product_name required: %w", models.ErrInvalidInput)
	}
	if p.Price.IsNegative() || p.Quantity < 0 {
		return fmt.Errorf("price and quantity must be non-negative: %w", models.ErrInvalidInput)
	}
	if err := uc.store.Create(ctx, p); err != nil {
		return err
	}
	if uc.l != nil {
		uc.l.Info("product created",
			applogger.String("product_no", p.ProductNo),
			applogger.Int64("quantity", p.Quantity),
		)
	}
	return nil
}

func (uc *ProductUseCase) List(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 || f.PageSize < 1 || f.PageSize > MaxPageSize {
		return nil, fmt.Errorf("invalid page or page_size: %w", models.ErrInvalidInput)
	}

	products, total, err := uc.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	var pages int64
	if total > 0 {
		pages = (total + int64(f.PageSize) - 1) / int64(f.PageSize)
	}
	return &models.ProductPage{
		Products:   products,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: pages,
		HasNext:    int64(f.Page) < pages,
		HasPrev:    f.Page > 1,
	}, nil
}

// InStock returns the number of units on hand across products with stock.
func (uc *ProductUseCase) InStock(ctx context.Context) (int64, error) {
	return uc.store.UnitsInStock(ctx)
}

func (uc *ProductUseCase) StockAlerts(ctx context.Context) (models.StockAlerts, error) {
	return uc.store.StockAlerts(ctx, uc.critical, uc.low)
}
