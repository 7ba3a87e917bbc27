package forecast

import (
	"context"
	"fmt"
	"math"

	"Stooorage/internal/domain/models"
	domsvc "Stooorage/internal/domain/service"
)

// MinHistory is the minimum number of regular periods a model is fed.
const MinHistory = 2

// Adapter prepares model input from a regular series and post-processes the
// model output into a forecast result.
type Adapter struct {
	model domsvc.Forecaster
}

func NewAdapter(model domsvc.Forecaster) *Adapter {
	return &Adapter{model: model}
}

// Model returns the underlying forecaster name.
func (a *Adapter) Model() string { return a.model.Name() }

// Forecast runs the model and returns at most cfg.Horizon future points.
func (a *Adapter) Forecast(ctx context.Context, s models.RegularSeries, cfg models.ForecastConfig, capacity float64) (models.ForecastResult, error) {
	if !cfg.Granularity.Valid() {
		return nil, fmt.Errorf("forecast: %w", models.ErrInvalidGranularity)
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("forecast: horizon must be positive, got %d: %w", cfg.Horizon, models.ErrInvalidInput)
	}
	if len(s) < MinHistory {
		return nil, fmt.Errorf("forecast: %d period(s) of history: %w", len(s), models.ErrInsufficientHistory)
	}

	in := BuildInput(s, cfg, capacity)
	preds, err := a.model.Predict(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s predict: %w: %w", a.model.Name(), models.ErrModelFailure, err)
	}
	return PostProcess(preds, cfg.Horizon), nil
}

// BuildInput converts the series into model rows and appends Horizon future
// rows. Logistic growth gets a constant cap and a zero floor on every row.
func BuildInput(s models.RegularSeries, cfg models.ForecastConfig, capacity float64) models.ModelInput {
	logistic := cfg.Growth == models.GrowthLogistic

	row := func(p models.PeriodTotal) models.ModelRow {
		r := models.ModelRow{DS: p.PeriodStart, Y: p.Total}
		if logistic {
			r.Cap = capacity
			r.Floor = 0
		}
		return r
	}

	history := make([]models.ModelRow, 0, len(s))
	for _, p := range s {
		history = append(history, row(p))
	}

	future := make([]models.ModelRow, 0, cfg.Horizon)
	next := s[len(s)-1].PeriodStart
	for i := 0; i < cfg.Horizon; i++ {
		next = cfg.Granularity.Next(next)
		future = append(future, row(models.PeriodTotal{PeriodStart: next}))
	}

	growth := cfg.Growth
	if growth == "" {
		growth = models.GrowthLinear
	}
	return models.ModelInput{
		History:           history,
		Future:            future,
		Granularity:       cfg.Granularity,
		Growth:            growth,
		WeeklySeasonality: cfg.WeeklySeasonality,
		YearlySeasonality: cfg.YearlySeasonality,
	}
}

// PostProcess keeps the last horizon predictions, clips them at zero, rounds
// half to even and orders each triple so lower <= yhat <= upper.
func PostProcess(preds []models.ModelPrediction, horizon int) models.ForecastResult {
	if len(preds) > horizon {
		preds = preds[len(preds)-horizon:]
	}
	out := make(models.ForecastResult, 0, len(preds))
	for _, p := range preds {
		yhat := toUnits(p.Yhat)
		lower := toUnits(p.YhatLower)
		upper := toUnits(p.YhatUpper)
		lower = min(lower, yhat)
		upper = max(upper, yhat)
		out = append(out, models.ForecastPoint{
			Date:      models.Naive(p.DS).Format("2006-01-02"),
			Yhat:      yhat,
			YhatLower: lower,
			YhatUpper: upper,
		})
	}
	return out
}

func toUnits(v float64) int64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.RoundToEven(v))
}
