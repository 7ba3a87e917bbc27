package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

type fakeForecastService struct {
	mu     sync.Mutex
	calls  []usecase.ForecastParams
	result models.ForecastResult
	batch  map[string]models.ForecastResult
	err    error
}

func (f *fakeForecastService) record(p usecase.ForecastParams) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
}

func (f *fakeForecastService) ForecastProduct(_ context.Context, p usecase.ForecastParams) (models.ForecastResult, error) {
	f.record(p)
	return f.result, f.err
}

func (f *fakeForecastService) ForecastTotal(_ context.Context, p usecase.ForecastParams) (models.ForecastResult, error) {
	f.record(p)
	return f.result, f.err
}

func (f *fakeForecastService) ForecastAll(_ context.Context, p usecase.ForecastParams) (map[string]models.ForecastResult, error) {
	f.record(p)
	return f.batch, f.err
}

func (f *fakeForecastService) last() usecase.ForecastParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeProductService struct {
	created []*models.Product
	page    *models.ProductPage
	filter  models.ProductFilter
	inStock int64
	alerts  models.StockAlerts
	err     error
}

func (f *fakeProductService) Create(_ context.Context, p *models.Product) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakeProductService) List(_ context.Context, flt models.ProductFilter) (*models.ProductPage, error) {
	f.filter = flt
	return f.page, f.err
}

func (f *fakeProductService) InStock(context.Context) (int64, error) { return f.inStock, f.err }

func (f *fakeProductService) StockAlerts(context.Context) (models.StockAlerts, error) {
	return f.alerts, f.err
}

type fakeTransactionService struct {
	created   []*models.Transaction
	remaining int64
	listed    string
	txs       []models.Transaction
	err       error
}

func (f *fakeTransactionService) Create(_ context.Context, t *models.Transaction) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, t)
	return f.remaining, nil
}

func (f *fakeTransactionService) List(_ context.Context, productNo string) ([]models.Transaction, error) {
	f.listed = productNo
	return f.txs, f.err
}

type fakeReportService struct {
	months int
	report *models.SalesReport
	growth *models.SalesGrowth
	err    error
}

func (f *fakeReportService) LastMonths(_ context.Context, months int) (*models.SalesReport, error) {
	f.months = months
	return f.report, f.err
}

func (f *fakeReportService) Growth(_ context.Context, months int) (*models.SalesGrowth, error) {
	f.months = months
	return f.growth, f.err
}
