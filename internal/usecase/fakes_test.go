package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
)

type fakeSeriesStore struct {
	rows    []models.RawSalePoint
	err     error
	calls   int
	queries []domrepo.SeriesQuery
}

func (s *fakeSeriesStore) SalePoints(_ context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	s.calls++
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.RawSalePoint
	for _, r := range s.rows {
		if q.ProductNo == "" || r.ProductNo == q.ProductNo {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSeriesStore) ProductSalePoints(_ context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	s.calls++
	s.queries = append(s.queries, q)
	return s.rows, s.err
}

// echoModel predicts the mean of the history for every row.
type echoModel struct {
	mu     sync.Mutex
	calls  int
	inputs []models.ModelInput
	fail   func(in models.ModelInput) error
}

func (m *echoModel) Name() string { return "echo" }

func (m *echoModel) Predict(_ context.Context, in models.ModelInput) ([]models.ModelPrediction, error) {
	m.mu.Lock()
	m.calls++
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(in); err != nil {
			return nil, err
		}
	}
	var mean float64
	for _, r := range in.History {
		mean += r.Y
	}
	mean /= float64(len(in.History))
	var out []models.ModelPrediction
	for _, r := range append(append([]models.ModelRow{}, in.History...), in.Future...) {
		out = append(out, models.ModelPrediction{DS: r.DS, Yhat: mean, YhatLower: mean - 1, YhatUpper: mean + 1})
	}
	return out, nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	sales     map[string]int64
	forecasts map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, sales: map[string]int64{}, forecasts: map[string]int{}}
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordSale(country string, q int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[country] += q
}

func (m *fakeMetrics) RecordForecast(scope, granularity, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts[scope+"/"+granularity+"/"+result]++
}

type fakeProductStore struct {
	products map[string]models.Product
	listArg  models.ProductFilter
	total    int64
	alerts   [2]int64
}

func (s *fakeProductStore) Create(_ context.Context, p *models.Product) error {
	if _, ok := s.products[p.ProductNo]; ok {
		return models.ErrProductExists
	}
	s.products[p.ProductNo] = *p
	return nil
}

func (s *fakeProductStore) Get(_ context.Context, no string) (*models.Product, error) {
	p, ok := s.products[no]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	return &p, nil
}

func (s *fakeProductStore) List(_ context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	s.listArg = f
	var out []models.Product
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, s.total, nil
}

func (s *fakeProductStore) UnitsInStock(context.Context) (int64, error) {
	var n int64
	for _, p := range s.products {
		if p.Quantity > 0 {
			n += p.Quantity
		}
	}
	return n, nil
}

func (s *fakeProductStore) StockAlerts(_ context.Context, critical, low int64) (models.StockAlerts, error) {
	s.alerts = [2]int64{critical, low}
	var a models.StockAlerts
	for _, p := range s.products {
		switch {
		case p.Quantity < critical:
			a.Critical++
		case p.Quantity < low:
			a.Low++
		}
	}
	return a, nil
}

type fakeTxStore struct {
	products *fakeProductStore
	txs      []models.Transaction
}

func (s *fakeTxStore) Create(_ context.Context, t *models.Transaction) (*models.Product, int64, error) {
	p, ok := s.products.products[t.ProductNo]
	if !ok {
		return nil, 0, models.ErrProductNotFound
	}
	if p.Quantity < t.Quantity {
		return nil, 0, models.ErrInsufficientStock
	}
	for _, existing := range s.txs {
		if existing.TransactionNo == t.TransactionNo && existing.ProductNo == t.ProductNo {
			return nil, 0, models.ErrTransactionExists
		}
	}
	p.Quantity -= t.Quantity
	s.products.products[t.ProductNo] = p
	s.txs = append(s.txs, *t)
	return &p, p.Quantity, nil
}

func (s *fakeTxStore) List(_ context.Context, productNo string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range s.txs {
		if productNo == "" || t.ProductNo == productNo {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePublisher struct {
	events []*models.SaleEvent
	err    error
}

func (p *fakePublisher) PublishSale(_ context.Context, e *models.SaleEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeReportStore struct {
	summary   models.SalesSummary
	monthly   []models.MonthlySales
	from, to  time.Time
	since     time.Time
	limit     int
	recentErr error
}

func (s *fakeReportStore) Summary(_ context.Context, from, to time.Time) (models.SalesSummary, error) {
	s.from, s.to = from, to
	return s.summary, nil
}

func (s *fakeReportStore) Monthly(_ context.Context, from, to time.Time) ([]models.MonthlySales, error) {
	return s.monthly, nil
}

func (s *fakeReportStore) RecentMonths(_ context.Context, since time.Time, n int) ([]models.MonthlySales, error) {
	s.since, s.limit = since, n
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	if len(s.monthly) > n {
		return s.monthly[:n], nil
	}
	return s.monthly, nil
}

type fakeSink struct {
	stored []*models.SaleEvent
	err    error
}

func (s *fakeSink) StoreSale(_ context.Context, e *models.SaleEvent) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, e)
	return nil
}

func (s *fakeSink) Health(context.Context) error { return nil }

var errBoom = errors.New("boom")

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
