package api

import (
	"context"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/usecase"
)

// ForecastService is the forecast use case as seen by the HTTP layer.
type ForecastService interface {
	ForecastProduct(ctx context.Context, p usecase.ForecastParams) (models.ForecastResult, error)
	ForecastTotal(ctx context.Context, p usecase.ForecastParams) (models.ForecastResult, error)
	ForecastAll(ctx context.Context, p usecase.ForecastParams) (map[string]models.ForecastResult, error)
}

type ProductService interface {
	Create(ctx context.Context, p *models.Product) error
	List(ctx context.Context, f models.ProductFilter) (*models.ProductPage, error)
	InStock(ctx context.Context) (int64, error)
	StockAlerts(ctx context.Context) (models.StockAlerts, error)
}

type TransactionService interface {
	Create(ctx context.Context, t *models.Transaction) (int64, error)
	List(ctx context.Context, productNo string) ([]models.Transaction, error)
}

type ReportService interface {
	LastMonths(ctx context.Context, months int) (*models.SalesReport, error)
	Growth(ctx context.Context, months int) (*models.SalesGrowth, error)
}

var (
	_ ForecastService    = (*usecase.ForecastUseCase)(nil)
	_ ProductService     = (*usecase.ProductUseCase)(nil)
	_ TransactionService = (*usecase.TransactionUseCase)(nil)
	_ ReportService      = (*usecase.ReportUseCase)(nil)
)
