package forecast

import (
	"context"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domsvc "Stooorage/internal/domain/service"
)

// ProphetHTTPForecaster delegates fitting and prediction to a Prophet sidecar.
type ProphetHTTPForecaster struct {
	base *HTTPServiceBase
}

func NewProphetHTTPForecaster(baseURL string, timeout time.Duration) *ProphetHTTPForecaster {
	return &ProphetHTTPForecaster{base: NewHTTPServiceBase(baseURL, timeout)}
}

type prophetRow struct {
	DS    string   `json:"ds"`
	Y     *float64 `json:"y,omitempty"`
	Cap   *float64 `json:"cap,omitempty"`
	Floor *float64 `json:"floor,omitempty"`
}

type prophetReq struct {
	History           []prophetRow `json:"history"`
	Future            []prophetRow `json:"future"`
	Freq              string       `json:"freq"`
	Growth            string       `json:"growth"`
	WeeklySeasonality bool         `json:"weekly_seasonality"`
	YearlySeasonality bool         `json:"yearly_seasonality"`
}

type prophetResp struct {
	Forecast []struct {
		DS        string  `json:"ds"`
		Yhat      float64 `json:"yhat"`
		YhatLower float64 `json:"yhat_lower"`
		YhatUpper float64 `json:"yhat_upper"`
	} `json:"forecast"`
}

const prophetTimeLayout = "2006-01-02T15:04:05"

func (f *ProphetHTTPForecaster) Name() string { return "prophet" }

func (f *ProphetHTTPForecaster) Predict(ctx context.Context, in models.ModelInput) ([]models.ModelPrediction, error) {
	logistic := in.Growth == models.GrowthLogistic
	encode := func(rows []models.ModelRow, withY bool) []prophetRow {
		out := make([]prophetRow, 0, len(rows))
		for _, r := range rows {
			pr := prophetRow{DS: r.DS.Format(prophetTimeLayout)}
			if withY {
				y := r.Y
				pr.Y = &y
			}
			if logistic {
				c, fl := r.Cap, r.Floor
				pr.Cap, pr.Floor = &c, &fl
			}
			out = append(out, pr)
		}
		return out
	}

	req := prophetReq{
		History:           encode(in.History, true),
		Future:            encode(in.Future, false),
		Freq:              prophetFreq(in.Granularity),
		Growth:            string(in.Growth),
		WeeklySeasonality: in.WeeklySeasonality,
		YearlySeasonality: in.YearlySeasonality,
	}

	var resp prophetResp
	if err := f.base.PostJSON(ctx, "/forecast/prophet", req, &resp); err != nil {
		return nil, fmt.Errorf("post prophet: %w", err)
	}
	if len(resp.Forecast) == 0 {
		return nil, fmt.Errorf("prophet returned no rows")
	}

	out := make([]models.ModelPrediction, 0, len(resp.Forecast))
	for _, row := range resp.Forecast {
		ds, err := parseProphetTime(row.DS)
		if err != nil {
			return nil, fmt.Errorf("prophet ds %q: %w", row.DS, err)
		}
		out = append(out, models.ModelPrediction{
			DS:        ds,
			Yhat:      row.Yhat,
			YhatLower: row.YhatLower,
			YhatUpper: row.YhatUpper,
		})
	}
	return out, nil
}

func prophetFreq(g models.Granularity) string {
	if g == models.GranularityWeek {
		return "W-MON"
	}
	return "MS"
}

func parseProphetTime(s string) (time.Time, error) {
	for _, layout := range []string{prophetTimeLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Naive(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time layout")
}

var _ domsvc.Forecaster = (*ProphetHTTPForecaster)(nil)
