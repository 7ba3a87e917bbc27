package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"Stooorage/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededProducts() *fakeProductStore {
	return &fakeProductStore{products: map[string]models.Product{
		"A": {ProductNo: "A", ProductName: "Apron", Price: decimal.RequireFromString("2.50"), Quantity: 10},
		"B": {ProductNo: "B", ProductName: "Bowl", Price: decimal.RequireFromString("4.00"), Quantity: 35},
		"C": {ProductNo: "C", ProductName: "Candle", Price: decimal.RequireFromString("1.25"), Quantity: 80},
		"D": {ProductNo: "D", ProductName: "Doormat", Price: decimal.RequireFromString("9.99"), Quantity: 0},
	}}
}

func TestProductCreate(t *testing.T) {
	uc := NewProductUseCase(seededProducts(), nil)

	err := uc.Create(context.Background(), &models.Product{ProductNo: "E", ProductName: "Easel", Price: decimal.NewFromInt(3), Quantity: 5})
	require.NoError(t, err)

	err = uc.Create(context.Background(), &models.Product{ProductNo: "A", ProductName: "Apron"})
	assert.True(t, errors.Is(err, models.ErrProductExists))

	err = uc.Create(context.Background(), &models.Product{ProductNo: "F", ProductName: "Fan", Quantity: -1})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestProductListPagination(t *testing.T) {
	store := seededProducts()
	store.total = 45
	uc := NewProductUseCase(store, nil)

	page, err := uc.List(context.Background(), models.ProductFilter{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, store.listArg.PageSize)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)

	store.total = 0
	page, err = uc.List(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Zero(t, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)

	for _, f := range []models.ProductFilter{{Page: -1}, {PageSize: 201}, {PageSize: -5}} {
		_, err = uc.List(context.Background(), f)
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "%+v", f)
	}
}

func TestProductStock(t *testing.T) {
	store := seededProducts()
	uc := NewProductUseCase(store, nil)

	n, err := uc.InStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(125), n)

	a, err := uc.StockAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StockAlerts{Critical: 2, Low: 1}, a)
	assert.Equal(t, [2]int64{20, 50}, store.alerts)

	uc.SetStockThresholds(5, 40)
	_, _ = uc.StockAlerts(context.Background())
	assert.Equal(t, [2]int64{5, 40}, store.alerts)
}

func TestTransactionCreatePublishesAfterCommit(t *testing.T) {
	products := seededProducts()
	pub := &fakePublisher{}
	m := newFakeMetrics()
	uc := NewTransactionUseCase(&fakeTxStore{products: products}, pub, m, nil)

	tx := &models.Transaction{
		TransactionNo:   "536365",
		TransactionDate: time.Date(2024, 3, 1, 8, 26, 0, 0, time.UTC),
		CustomerNo:      17850,
		Country:         "United Kingdom",
		ProductNo:       "B",
		Quantity:        6,
		PriceAtSale:     decimal.RequireFromString("3.75"),
	}
	remaining, err := uc.Create(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, int64(29), remaining)
	assert.Equal(t, int64(6), m.sales["United Kingdom"])

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "Bowl", ev.ProductName)
	assert.Equal(t, "536365", ev.TransactionNo)
	assert.True(t, ev.PriceAtSale.Equal(decimal.RequireFromString("3.75")))

	_, err = uc.Create(context.Background(), tx)
	assert.True(t, errors.Is(err, models.ErrTransactionExists))
	assert.Len(t, pub.events, 1)
}

func TestTransactionCreateErrors(t *testing.T) {
	uc := NewTransactionUseCase(&fakeTxStore{products: seededProducts()}, &fakePublisher{}, newFakeMetrics(), nil)
	base := models.Transaction{TransactionNo: "1", TransactionDate: day(2024, 1, 1), ProductNo: "A", Quantity: 1}

	tooMany := base
	tooMany.Quantity = 11
	_, err := uc.Create(context.Background(), &tooMany)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))

	missing := base
	missing.ProductNo = "Z"
	_, err = uc.Create(context.Background(), &missing)
	assert.True(t, errors.Is(err, models.ErrProductNotFound))

	zero := base
	zero.Quantity = 0
	_, err = uc.Create(context.Background(), &zero)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestTransactionPublishFailureDoesNotFail(t *testing.T) {
	m := newFakeMetrics()
	uc := NewTransactionUseCase(&fakeTxStore{products: seededProducts()}, &fakePublisher{err: errBoom}, m, nil)
	remaining, err := uc.Create(context.Background(), &models.Transaction{
		TransactionNo: "9", TransactionDate: day(2024, 1, 1), ProductNo: "C", Quantity: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), remaining)
	assert.Equal(t, 1, m.errors["sale_publish"])
}

func TestReportLastMonths(t *testing.T) {
	ref := time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeReportStore{
		summary: models.SalesSummary{TotalTransactions: 3, TotalQuantity: 12, TotalRevenue: decimal.RequireFromString("40.5")},
		monthly: []models.MonthlySales{{MonthStart: day(2011, 12, 1)}, {MonthStart: day(2011, 11, 1)}},
	}
	uc := NewReportUseCase(store, ref)

	rep, err := uc.LastMonths(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2011, 9, 10, 0, 0, 0, 0, time.UTC), store.from)
	assert.Equal(t, ref, store.to)
	assert.Equal(t, 3, rep.Months)
	assert.Len(t, rep.Monthly, 2)

	_, err = uc.LastMonths(context.Background(), 0)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestReportGrowth(t *testing.T) {
	ref := time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeReportStore{monthly: []models.MonthlySales{
		{MonthStart: day(2011, 12, 1), Revenue: decimal.RequireFromString("150")},
		{MonthStart: day(2011, 11, 1), Revenue: decimal.RequireFromString("120")},
		{MonthStart: day(2011, 10, 1), Revenue: decimal.RequireFromString("1")},
	}}
	uc := NewReportUseCase(store, ref)

	g, err := uc.Growth(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 25.0, g.GrowthPercentage)
	assert.Equal(t, 2, store.limit)
	assert.Equal(t, time.Date(2011, 10, 10, 0, 0, 0, 0, time.UTC), store.since)

	store.monthly[1].Revenue = decimal.RequireFromString("90")
	g, err = uc.Growth(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 66.7, g.GrowthPercentage)

	store.monthly[1].Revenue = decimal.Zero
	g, err = uc.Growth(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, g.GrowthPercentage)

	store.monthly = store.monthly[:1]
	g, err = uc.Growth(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, g.GrowthPercentage)
	assert.NotNil(t, g.Current)
	assert.Nil(t, g.Previous)
}

func TestKafkaSalesHandler(t *testing.T) {
	sink := &fakeSink{}
	m := newFakeMetrics()
	h := NewKafkaSalesHandler("stooorage.sales", sink, m)
	assert.Equal(t, "stooorage.sales", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"event_id":"e1","transaction_no":"536365","transaction_date":"2024-03-01T08:26:00Z","product_no":"B","product_name":"Bowl","quantity":6,"price_at_sale":"3.75","country":"France"}`))
	require.NoError(t, err)
	require.Len(t, sink.stored, 1)
	assert.Equal(t, int64(6), sink.stored[0].Quantity)
	assert.True(t, sink.stored[0].PriceAtSale.Equal(decimal.RequireFromString("3.75")))

	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Equal(t, 1, m.errors["consumer_unmarshal"])

	err = h.Handle(context.Background(), []byte(`{"event_id":"e2"}`))
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	sink.err = errBoom
	err = h.Handle(context.Background(), []byte(`{"event_id":"e3","transaction_no":"1","transaction_date":"2024-03-01T08:26:00Z","product_no":"B","quantity":1}`))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 1, m.errors["consumer_store"])
}
