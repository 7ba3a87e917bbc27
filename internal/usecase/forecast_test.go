package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/services/forecast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyConfig(horizon int) models.ForecastConfig {
	return models.ForecastConfig{
		Granularity:       models.GranularityWeek,
		Horizon:           horizon,
		Growth:            models.GrowthLogistic,
		WeeklySeasonality: true,
	}
}

func newForecastUC(store *fakeSeriesStore, model *echoModel) (*ForecastUseCase, *fakeMetrics) {
	m := newFakeMetrics()
	return NewForecastUseCase(store, forecast.NewAdapter(model), m, nil), m
}

func TestForecastProductScenario(t *testing.T) {
	store := &fakeSeriesStore{rows: []models.RawSalePoint{
		{ProductNo: "A", Timestamp: day(2024, 1, 3), Quantity: 5},
		{ProductNo: "A", Timestamp: day(2024, 1, 10), Quantity: 3},
		{ProductNo: "A", Timestamp: day(2024, 1, 24), Quantity: 2},
		{ProductNo: "B", Timestamp: day(2024, 1, 24), Quantity: 99},
	}}
	model := &echoModel{}
	uc, m := newForecastUC(store, model)

	res, err := uc.ForecastProduct(context.Background(), ForecastParams{ProductNo: "A", Config: weeklyConfig(3)})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "2024-01-29", res[0].Date)
	assert.Equal(t, "2024-02-12", res[2].Date)
	// mean of 5,3,0,2 is 2.5, rounded half to even.
	assert.Equal(t, int64(2), res[0].Yhat)

	require.Len(t, model.inputs, 1)
	in := model.inputs[0]
	assert.Len(t, in.History, 4)
	assert.Equal(t, 0.0, in.History[2].Y)
	for _, r := range append(in.History, in.Future...) {
		assert.InDelta(t, 6.0, r.Cap, 1e-9)
		assert.Zero(t, r.Floor)
	}
	assert.Equal(t, 1, m.forecasts["product/week/ok"])
}

func TestForecastProductNoData(t *testing.T) {
	store := &fakeSeriesStore{}
	model := &echoModel{}
	uc, m := newForecastUC(store, model)

	_, err := uc.ForecastProduct(context.Background(), ForecastParams{ProductNo: "X", Config: weeklyConfig(4)})
	assert.True(t, errors.Is(err, models.ErrNoHistoricalData))
	assert.Zero(t, model.calls)
	assert.Equal(t, 1, m.forecasts["product/week/no_data"])
}

func TestForecastProductInsufficient(t *testing.T) {
	cases := map[string][]models.RawSalePoint{
		"single period": {
			{ProductNo: "A", Timestamp: day(2024, 1, 1), Quantity: 4},
			{ProductNo: "A", Timestamp: day(2024, 1, 3), Quantity: 1},
		},
		"all zero": {
			{ProductNo: "A", Timestamp: day(2024, 1, 1), Quantity: 0},
			{ProductNo: "A", Timestamp: day(2024, 2, 1), Quantity: 0},
		},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			model := &echoModel{}
			uc, _ := newForecastUC(&fakeSeriesStore{rows: rows}, model)
			_, err := uc.ForecastProduct(context.Background(), ForecastParams{ProductNo: "A", Config: weeklyConfig(2)})
			assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
			assert.Zero(t, model.calls)
		})
	}
}

func TestForecastValidationBeforeFetch(t *testing.T) {
	store := &fakeSeriesStore{}
	uc, _ := newForecastUC(store, &echoModel{})

	_, err := uc.ForecastTotal(context.Background(), ForecastParams{Config: models.ForecastConfig{Granularity: "day", Horizon: 3}})
	assert.True(t, errors.Is(err, models.ErrInvalidGranularity))

	_, err = uc.ForecastAll(context.Background(), ForecastParams{Config: models.ForecastConfig{Granularity: models.GranularityMonth}})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = uc.ForecastProduct(context.Background(), ForecastParams{Config: weeklyConfig(1)})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	assert.Zero(t, store.calls)
}

func TestForecastTotalCombinesProducts(t *testing.T) {
	store := &fakeSeriesStore{rows: []models.RawSalePoint{
		{Timestamp: day(2024, 1, 15), Quantity: 3},
		{Timestamp: day(2024, 3, 2), Quantity: 9},
	}}
	model := &echoModel{}
	uc, _ := newForecastUC(store, model)

	cfg := models.ForecastConfig{Granularity: models.GranularityMonth, Horizon: 2, Growth: models.GrowthLinear}
	res, err := uc.ForecastTotal(context.Background(), ForecastParams{ProductNo: "ignored", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-04-01", "2024-05-01"}, []string{res[0].Date, res[1].Date})
	assert.Empty(t, store.queries[0].ProductNo)
	assert.Len(t, model.inputs[0].History, 3)
	assert.Zero(t, model.inputs[0].History[0].Cap)
}

func TestForecastUpstreamUnavailable(t *testing.T) {
	store := &fakeSeriesStore{err: fmt.Errorf("dial: %w", models.ErrUpstreamUnavailable)}
	uc, m := newForecastUC(store, &echoModel{})
	_, err := uc.ForecastTotal(context.Background(), ForecastParams{Config: weeklyConfig(2)})
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.Equal(t, 1, m.forecasts["total/week/unavailable"])
}

func TestForecastModelOutageCountsAsModelFailure(t *testing.T) {
	store := &fakeSeriesStore{rows: []models.RawSalePoint{
		{Timestamp: day(2024, 1, 15), Quantity: 3},
		{Timestamp: day(2024, 3, 2), Quantity: 9},
	}}
	model := &echoModel{fail: func(models.ModelInput) error {
		return fmt.Errorf("sidecar: %w", models.ErrUpstreamUnavailable)
	}}
	uc, m := newForecastUC(store, model)

	cfg := models.ForecastConfig{Granularity: models.GranularityMonth, Horizon: 1, Growth: models.GrowthLinear}
	_, err := uc.ForecastTotal(context.Background(), ForecastParams{Config: cfg})
	assert.True(t, errors.Is(err, models.ErrModelFailure))
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.Equal(t, 1, m.forecasts["total/month/model_failure"])
	assert.Zero(t, m.forecasts["total/month/unavailable"])
}

func TestForecastTotalNoDataMessage(t *testing.T) {
	uc, _ := newForecastUC(&fakeSeriesStore{}, &echoModel{})
	_, err := uc.ForecastTotal(context.Background(), ForecastParams{Config: weeklyConfig(2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoHistoricalData))
	assert.NotContains(t, err.Error(), `product ""`)
	assert.Contains(t, err.Error(), "all products")

	_, err = uc.ForecastProduct(context.Background(), ForecastParams{ProductNo: "X1", Config: weeklyConfig(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `product "X1"`)
}

func batchRows(n int) []models.RawSalePoint {
	var rows []models.RawSalePoint
	for i := 0; i < n; i++ {
		no := fmt.Sprintf("%03d", 100-i)
		name := fmt.Sprintf("P%02d", i)
		rows = append(rows,
			models.RawSalePoint{ProductNo: no, ProductName: name, Timestamp: day(2024, 1, 1), Quantity: int64(i + 1)},
			models.RawSalePoint{ProductNo: no, ProductName: name, Timestamp: day(2024, 2, 1), Quantity: int64(i + 2)},
		)
	}
	return rows
}

func TestForecastAllCapsToFirstTenByName(t *testing.T) {
	rows := batchRows(15)
	// P03 never sold anything; P05 sold in a single month.
	for i := range rows {
		switch rows[i].ProductName {
		case "P03":
			rows[i].Quantity = 0
		case "P05":
			rows[i].Timestamp = day(2024, 1, 20)
		}
	}
	rand.New(rand.NewSource(7)).Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	model := &echoModel{}
	uc, _ := newForecastUC(&fakeSeriesStore{rows: rows}, model)
	cfg := models.ForecastConfig{Granularity: models.GranularityMonth, Horizon: 4, Growth: models.GrowthLogistic, YearlySeasonality: true}

	out, err := uc.ForecastAll(context.Background(), ForecastParams{Config: cfg})
	require.NoError(t, err)

	var keys []string
	for k, v := range out {
		keys = append(keys, k)
		assert.Len(t, v, 4)
	}
	assert.ElementsMatch(t, []string{"P00", "P01", "P02", "P04", "P06", "P07", "P08", "P09"}, keys)
	assert.Equal(t, 8, model.calls)
}

func TestForecastAllModelFailureFailsBatch(t *testing.T) {
	model := &echoModel{fail: func(in models.ModelInput) error {
		if in.History[0].Y == 3 {
			return errBoom
		}
		return nil
	}}
	uc, _ := newForecastUC(&fakeSeriesStore{rows: batchRows(4)}, model)

	_, err := uc.ForecastAll(context.Background(), ForecastParams{Config: models.ForecastConfig{Granularity: models.GranularityMonth, Horizon: 1}})
	assert.True(t, errors.Is(err, models.ErrModelFailure))
	assert.True(t, errors.Is(err, errBoom))
}

func TestForecastAllNoRows(t *testing.T) {
	uc, _ := newForecastUC(&fakeSeriesStore{}, &echoModel{})
	_, err := uc.ForecastAll(context.Background(), ForecastParams{Config: weeklyConfig(2)})
	assert.True(t, errors.Is(err, models.ErrNoHistoricalData))
}

func TestForecastAllDuplicateNames(t *testing.T) {
	rows := []models.RawSalePoint{
		{ProductNo: "2", ProductName: "Mug", Timestamp: day(2024, 1, 1), Quantity: 1},
		{ProductNo: "2", ProductName: "Mug", Timestamp: day(2024, 1, 8), Quantity: 2},
		{ProductNo: "1", ProductName: "Mug", Timestamp: day(2024, 1, 1), Quantity: 3},
		{ProductNo: "1", ProductName: "Mug", Timestamp: day(2024, 1, 15), Quantity: 4},
		{ProductNo: "3", ProductName: "Bowl", Timestamp: day(2024, 1, 1), Quantity: 1},
		{ProductNo: "3", ProductName: "Bowl", Timestamp: day(2024, 1, 8), Quantity: 1},
	}
	uc, _ := newForecastUC(&fakeSeriesStore{rows: rows}, &echoModel{})
	out, err := uc.ForecastAll(context.Background(), ForecastParams{Config: weeklyConfig(1)})
	require.NoError(t, err)
	assert.Contains(t, out, "Bowl")
	assert.Contains(t, out, "Mug [1]")
	assert.Contains(t, out, "Mug [2]")
}
