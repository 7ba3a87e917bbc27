package models

import "time"

// GrowthMode selects the trend shape of the forecasting model.
type GrowthMode string

const (
	GrowthLinear   GrowthMode = "linear"
	GrowthLogistic GrowthMode = "logistic"
)

// ForecastConfig is built per request; nothing here is persisted.
type ForecastConfig struct {
	Granularity       Granularity
	Horizon           int
	WeeklySeasonality bool
	YearlySeasonality bool
	Growth            GrowthMode
}

// ModelRow is one history or future row handed to a Forecaster.
// Cap and Floor are only meaningful for logistic growth.
type ModelRow struct {
	DS    time.Time `json:"ds"`
	Y     float64   `json:"y"`
	Cap   float64   `json:"cap,omitempty"`
	Floor float64   `json:"floor"`
}

// ModelInput is the complete request to the forecasting model.
type ModelInput struct {
	History           []ModelRow
	Future            []ModelRow
	Granularity       Granularity
	Growth            GrowthMode
	WeeklySeasonality bool
	YearlySeasonality bool
}

// ModelPrediction is a raw model estimate before clipping and rounding.
type ModelPrediction struct {
	DS        time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
}

// ForecastPoint is a post-processed future estimate.
type ForecastPoint struct {
	Date      string `json:"ds"`
	Yhat      int64  `json:"yhat"`
	YhatLower int64  `json:"yhat_lower"`
	YhatUpper int64  `json:"yhat_upper"`
}

// ForecastResult holds at most Horizon points in period order.
type ForecastResult []ForecastPoint
