package forecast

import (
	"context"
	"math"
	"testing"

	"Stooorage/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendForecasterExactLine(t *testing.T) {
	f := NewTrendForecaster(0.8)
	in := BuildInput(weekly(2, 4, 6, 8, 10), models.ForecastConfig{
		Granularity: models.GranularityWeek,
		Horizon:     3,
		Growth:      models.GrowthLinear,
	}, 0)

	preds, err := f.Predict(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, preds, 8)
	for i, p := range preds {
		want := 2 + 2*float64(i)
		assert.InDelta(t, want, p.Yhat, 1e-9)
		assert.InDelta(t, want, p.YhatLower, 1e-9)
		assert.InDelta(t, want, p.YhatUpper, 1e-9)
	}
	assert.Equal(t, in.Future[2].DS, preds[7].DS)
}

func TestTrendForecasterLogisticStaysInBounds(t *testing.T) {
	s := weekly(1, 3, 2, 5, 4, 6, 5, 7)
	capacity := CapacityBound(s)
	in := BuildInput(s, models.ForecastConfig{
		Granularity: models.GranularityWeek,
		Horizon:     20,
		Growth:      models.GrowthLogistic,
	}, capacity)

	preds, err := NewTrendForecaster(0.95).Predict(context.Background(), in)
	require.NoError(t, err)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p.YhatLower, 0.0)
		assert.LessOrEqual(t, p.YhatUpper, capacity)
		assert.LessOrEqual(t, p.YhatLower, p.Yhat)
		assert.LessOrEqual(t, p.Yhat, p.YhatUpper)
	}
}

func TestTrendForecasterLogisticNeedsCapacity(t *testing.T) {
	in := BuildInput(weekly(0, 0, 0), models.ForecastConfig{
		Granularity: models.GranularityWeek,
		Horizon:     1,
		Growth:      models.GrowthLogistic,
	}, 0)

	_, err := NewTrendForecaster(0.8).Predict(context.Background(), in)
	assert.Error(t, err)
}

func TestTrendForecasterYearlyProfile(t *testing.T) {
	totals := make([]float64, 36)
	for i := range totals {
		totals[i] = 50 + 10*math.Sin(2*math.Pi*float64(i)/12)
	}
	s := make(models.RegularSeries, len(totals))
	for i, v := range totals {
		s[i] = models.PeriodTotal{PeriodStart: day(2021, 1, 1).AddDate(0, i, 0), Total: v}
	}

	in := BuildInput(s, models.ForecastConfig{
		Granularity:       models.GranularityMonth,
		Horizon:           12,
		Growth:            models.GrowthLinear,
		YearlySeasonality: true,
	}, 0)
	preds, err := NewTrendForecaster(0.8).Predict(context.Background(), in)
	require.NoError(t, err)

	future := preds[len(preds)-12:]
	for i, p := range future {
		assert.InDelta(t, totals[i], p.Yhat, 1.0, "month %d", i+1)
	}
}

func TestTrendForecasterThroughAdapter(t *testing.T) {
	rows := []models.RawSalePoint{
		{Timestamp: day(2024, 1, 3), Quantity: 5},
		{Timestamp: day(2024, 1, 10), Quantity: 3},
		{Timestamp: day(2024, 1, 24), Quantity: 2},
	}
	agg, err := Aggregate(rows, models.GranularityWeek)
	require.NoError(t, err)
	reg := Regularize(agg, models.GranularityWeek)

	res, err := NewAdapter(NewTrendForecaster(0.8)).Forecast(context.Background(), reg, models.ForecastConfig{
		Granularity: models.GranularityWeek,
		Horizon:     4,
		Growth:      models.GrowthLogistic,
	}, CapacityBound(reg))
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, "2024-01-29", res[0].Date)
	assert.Equal(t, "2024-02-19", res[3].Date)
	for _, p := range res {
		assert.GreaterOrEqual(t, p.YhatLower, int64(0))
		assert.LessOrEqual(t, p.YhatLower, p.Yhat)
		assert.LessOrEqual(t, p.Yhat, p.YhatUpper)
		assert.LessOrEqual(t, p.YhatUpper, int64(6))
	}
}
