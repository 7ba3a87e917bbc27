package forecast

import (
	"context"
	"fmt"
	"math"

	"Stooorage/internal/domain/models"
	domsvc "Stooorage/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// logitEps keeps the logistic transform away from 0 and 1.
	logitEps = 0.01

	backfitIterations = 10
)

// TrendForecaster is an in-process model: an OLS trend (linear, or linear in
// logit space between floor and cap for logistic growth), an optional additive
// yearly profile and a normal prediction interval.
//
// Weekly seasonality is a sub-period cycle for week and month buckets and is
// not estimable from such series, so the flag is accepted and ignored here.
type TrendForecaster struct {
	intervalWidth float64
}

// NewTrendForecaster returns a forecaster reporting the central intervalWidth
// prediction interval (0.8 when out of range).
func NewTrendForecaster(intervalWidth float64) *TrendForecaster {
	if intervalWidth <= 0 || intervalWidth >= 1 {
		intervalWidth = 0.8
	}
	return &TrendForecaster{intervalWidth: intervalWidth}
}

func (f *TrendForecaster) Name() string { return "trend" }

func (f *TrendForecaster) Predict(ctx context.Context, in models.ModelInput) ([]models.ModelPrediction, error) {
	n := len(in.History)
	if n < MinHistory {
		return nil, fmt.Errorf("trend: need at least %d rows, got %d", MinHistory, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logistic := in.Growth == models.GrowthLogistic
	capacity, floor := in.History[0].Cap, in.History[0].Floor
	if logistic && capacity <= floor {
		return nil, fmt.Errorf("trend: logistic growth needs cap > floor, got cap=%g floor=%g", capacity, floor)
	}

	toModel := func(y float64) float64 {
		if !logistic {
			return y
		}
		p := (y - floor) / (capacity - floor)
		p = math.Min(math.Max(p, logitEps), 1-logitEps)
		return math.Log(p / (1 - p))
	}
	fromModel := func(z float64) float64 {
		if !logistic {
			return z
		}
		return floor + (capacity-floor)/(1+math.Exp(-z))
	}

	x := make([]float64, n)
	z := make([]float64, n)
	for i, r := range in.History {
		x[i] = float64(i)
		z[i] = toModel(r.Y)
	}

	// Alternate trend and yearly profile fits so neither absorbs the other.
	season := func(models.ModelRow) float64 { return 0 }
	var alpha, beta float64
	target := make([]float64, n)
	fitted := make([]float64, n)
	for iter := 0; iter < backfitIterations; iter++ {
		for i, r := range in.History {
			target[i] = z[i] - season(r)
		}
		alpha, beta = stat.LinearRegression(x, target, nil, false)
		for i := range x {
			fitted[i] = alpha + beta*x[i]
		}
		next, ok := seasonalProfile(in, z, fitted)
		if !ok {
			break
		}
		season = next
	}
	for i, r := range in.History {
		fitted[i] = alpha + beta*x[i] + season(r)
	}

	resid := make([]float64, n)
	floats.SubTo(resid, z, fitted)
	sigma := 0.0
	if n > 2 {
		sigma = math.Sqrt(floats.Dot(resid, resid) / float64(n-2))
	}
	xbar := stat.Mean(x, nil)
	sxx := stat.Variance(x, nil) * float64(n-1)
	q := distuv.UnitNormal.Quantile(0.5 + f.intervalWidth/2)

	rows := make([]models.ModelRow, 0, n+len(in.Future))
	rows = append(rows, in.History...)
	rows = append(rows, in.Future...)

	out := make([]models.ModelPrediction, 0, len(rows))
	for i, r := range rows {
		xi := float64(i)
		mid := alpha + beta*xi + season(r)
		se := sigma * math.Sqrt(1+1/float64(n)+(xi-xbar)*(xi-xbar)/sxx)
		out = append(out, models.ModelPrediction{
			DS:        r.DS,
			Yhat:      fromModel(mid),
			YhatLower: fromModel(mid - q*se),
			YhatUpper: fromModel(mid + q*se),
		})
	}
	return out, nil
}

// seasonalProfile estimates a centered yearly offset per calendar position from
// trend residuals. It needs two full years of history.
func seasonalProfile(in models.ModelInput, z, trend []float64) (func(models.ModelRow) float64, bool) {
	m := in.Granularity.SeasonLength()
	if !in.YearlySeasonality || len(in.History) < 2*m {
		return nil, false
	}

	pos := func(r models.ModelRow) int {
		if in.Granularity == models.GranularityWeek {
			_, w := r.DS.ISOWeek()
			return min(w, m) - 1
		}
		return int(r.DS.Month()) - 1
	}

	sums := make([]float64, m)
	counts := make([]float64, m)
	for i, r := range in.History {
		k := pos(r)
		sums[k] += z[i] - trend[i]
		counts[k]++
	}
	offsets := make([]float64, m)
	var seen []float64
	for k := range offsets {
		if counts[k] > 0 {
			offsets[k] = sums[k] / counts[k]
			seen = append(seen, offsets[k])
		}
	}
	center := stat.Mean(seen, nil)
	for k := range offsets {
		if counts[k] > 0 {
			offsets[k] -= center
		}
	}
	return func(r models.ModelRow) float64 { return offsets[pos(r)] }, true
}

var _ domsvc.Forecaster = (*TrendForecaster)(nil)
