package repository

import (
	"context"
	"time"

	"Stooorage/internal/domain/models"
)

// SeriesQuery selects the sales rows feeding a forecast.
// ProductNo empty means all products; zero From/To means unbounded.
type SeriesQuery struct {
	ProductNo   string
	Granularity models.Granularity
	From        time.Time
	To          time.Time
}

// SeriesStore returns sales rows truncated to the query granularity.
type SeriesStore interface {
	// SalePoints returns rows for one product or for all products combined.
	SalePoints(ctx context.Context, q SeriesQuery) ([]models.RawSalePoint, error)
	// ProductSalePoints returns rows tagged with product identity, ordered by product name.
	ProductSalePoints(ctx context.Context, q SeriesQuery) ([]models.RawSalePoint, error)
}

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, productNo string) (*models.Product, error)
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error)
	UnitsInStock(ctx context.Context) (int64, error)
	StockAlerts(ctx context.Context, critical, low int64) (models.StockAlerts, error)
}

type TransactionStore interface {
	// Create inserts the sale and decrements stock atomically, returning the remaining quantity.
	Create(ctx context.Context, t *models.Transaction) (product *models.Product, remaining int64, err error)
	List(ctx context.Context, productNo string) ([]models.Transaction, error)
}

type ReportStore interface {
	Summary(ctx context.Context, from, to time.Time) (models.SalesSummary, error)
	Monthly(ctx context.Context, from, to time.Time) ([]models.MonthlySales, error)
	// RecentMonths returns up to n monthly buckets since `since`, newest first.
	RecentMonths(ctx context.Context, since time.Time, n int) ([]models.MonthlySales, error)
}

// SaleSink stores sale events in the analytical mirror.
type SaleSink interface {
	StoreSale(ctx context.Context, e *models.SaleEvent) error
	Health(ctx context.Context) error
}

type Publisher interface {
	PublishSale(ctx context.Context, e *models.SaleEvent) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordSale(country string, quantity int64)
	RecordForecast(scope, granularity, result string)
}
