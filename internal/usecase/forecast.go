package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	"Stooorage/internal/services/forecast"
	applogger "Stooorage/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BatchLimit is the most products a batch forecast ever computes.
const BatchLimit = 10

const (
	ScopeProduct = "product"
	ScopeTotal   = "total"
	ScopeAll     = "all"
)

// ForecastParams selects the scope and model settings of one forecast call.
type ForecastParams struct {
	ProductNo string
	Config    models.ForecastConfig
	From      time.Time
	To        time.Time
}

// ForecastUseCase drives Aggregate -> Regularize -> Forecast for each scope.
type ForecastUseCase struct {
	store   domrepo.SeriesStore
	adapter *forecast.Adapter
	metrics domrepo.Metrics
	l       *applogger.Logger
	timeout time.Duration
	workers int
}

func NewForecastUseCase(store domrepo.SeriesStore, adapter *forecast.Adapter, metrics domrepo.Metrics, l *applogger.Logger) *ForecastUseCase {
	return &ForecastUseCase{
		store:   store,
		adapter: adapter,
		metrics: metrics,
		l:       l,
		timeout: 2 * time.Minute,
		workers: 4,
	}
}

// SetTimeout bounds a whole forecast call including the model.
func (uc *ForecastUseCase) SetTimeout(d time.Duration) {
	if d > 0 {
		uc.timeout = d
	}
}

// SetWorkers bounds concurrent per-product pipelines in a batch.
func (uc *ForecastUseCase) SetWorkers(n int) {
	if n > 0 {
		uc.workers = n
	}
}

// ForecastProduct forecasts one product's sales.
func (uc *ForecastUseCase) ForecastProduct(ctx context.Context, p ForecastParams) (res models.ForecastResult, err error) {
	if p.ProductNo == "" {
		return nil, fmt.Errorf("product_no required: %w", models.ErrInvalidInput)
	}
	defer uc.observe(ScopeProduct, p.Config.Granularity, time.Now(), &err)
	return uc.forecastScope(ctx, p)
}

// ForecastTotal forecasts sales of all products combined.
func (uc *ForecastUseCase) ForecastTotal(ctx context.Context, p ForecastParams) (res models.ForecastResult, err error) {
	p.ProductNo = ""
	defer uc.observe(ScopeTotal, p.Config.Granularity, time.Now(), &err)
	return uc.forecastScope(ctx, p)
}

func (uc *ForecastUseCase) forecastScope(ctx context.Context, p ForecastParams) (models.ForecastResult, error) {
	if err := validateConfig(p.Config); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	rows, err := uc.store.SalePoints(ctx, domrepo.SeriesQuery{
		ProductNo:   p.ProductNo,
		Granularity: p.Config.Granularity,
		From:        p.From,
		To:          p.To,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	if len(rows) == 0 {
		if p.ProductNo == "" {
			return nil, fmt.Errorf("all products: %w", models.ErrNoHistoricalData)
		}
		return nil, fmt.Errorf("product %q: %w", p.ProductNo, models.ErrNoHistoricalData)
	}

	series, err := prepare(rows, p.Config.Granularity)
	if err != nil {
		return nil, err
	}
	if series.Sum() == 0 {
		return nil, fmt.Errorf("no units sold: %w", models.ErrInsufficientHistory)
	}
	return uc.adapter.Forecast(ctx, series, p.Config, forecast.CapacityBound(series))
}

// ForecastAll forecasts up to BatchLimit products in canonical order, keyed by
// product name. Products with no sales or fewer than two periods are skipped.
func (uc *ForecastUseCase) ForecastAll(ctx context.Context, p ForecastParams) (out map[string]models.ForecastResult, err error) {
	defer uc.observe(ScopeAll, p.Config.Granularity, time.Now(), &err)
	if err := validateConfig(p.Config); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	rows, err := uc.store.ProductSalePoints(ctx, domrepo.SeriesQuery{
		Granularity: p.Config.Granularity,
		From:        p.From,
		To:          p.To,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("all products: %w", models.ErrNoHistoricalData)
	}

	groups, byProduct := forecast.Partition(rows)
	if len(groups) > BatchLimit {
		if uc.l != nil {
			uc.l.Info("forecast batch capped",
				applogger.Int("products", len(groups)),
				applogger.Int("limit", BatchLimit),
			)
		}
		groups = groups[:BatchLimit]
	}
	keys := resultKeys(groups)

	results := make([]models.ForecastResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			series, err := prepare(byProduct[grp.ProductNo], p.Config.Granularity)
			if err != nil {
				return fmt.Errorf("product %s: %w", grp.ProductNo, err)
			}
			if series.Sum() == 0 || len(series) < forecast.MinHistory {
				if uc.l != nil {
					uc.l.Debug("forecast batch skip",
						applogger.String("product_no", grp.ProductNo),
						applogger.Int("periods", len(series)),
					)
				}
				return nil
			}
			res, err := uc.adapter.Forecast(gctx, series, p.Config, forecast.CapacityBound(series))
			if err != nil {
				return fmt.Errorf("product %s: %w", grp.ProductNo, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out = make(map[string]models.ForecastResult, len(groups))
	for i, res := range results {
		if res != nil {
			out[keys[i]] = res
		}
	}
	return out, nil
}

func (uc *ForecastUseCase) observe(scope string, g models.Granularity, start time.Time, errp *error) {
	result := outcome(*errp)
	if uc.metrics != nil {
		uc.metrics.RecordLatency("forecast_"+scope, time.Since(start).Seconds())
		uc.metrics.RecordForecast(scope, g.String(), result)
	}
	if uc.l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("scope", scope),
		applogger.String("granularity", g.String()),
		applogger.String("model", uc.adapter.Model()),
		applogger.String("result", result),
		applogger.Duration("duration_ms", time.Since(start)),
	}
	switch result {
	case "ok", "no_data", "insufficient", "invalid":
		uc.l.Info("forecast done", fields...)
	default:
		uc.l.Error("forecast failed", append(fields, applogger.Error(*errp))...)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNoHistoricalData):
		return "no_data"
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient"
	case errors.Is(err, models.ErrInvalidGranularity), errors.Is(err, models.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, models.ErrModelFailure):
		return "model_failure"
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func validateConfig(cfg models.ForecastConfig) error {
	if !cfg.Granularity.Valid() {
		return fmt.Errorf("granularity %q: %w", cfg.Granularity, models.ErrInvalidGranularity)
	}
	if cfg.Horizon <= 0 {
		return fmt.Errorf("periods must be positive: %w", models.ErrInvalidInput)
	}
	switch cfg.Growth {
	case "", models.GrowthLinear, models.GrowthLogistic:
	default:
		return fmt.Errorf("growth %q: %w", cfg.Growth, models.ErrInvalidInput)
	}
	return nil
}

func prepare(rows []models.RawSalePoint, g models.Granularity) (models.RegularSeries, error) {
	agg, err := forecast.Aggregate(rows, g)
	if err != nil {
		return nil, err
	}
	return forecast.Regularize(agg, g), nil
}

// resultKeys names each group by product name, disambiguating duplicate names
// with the product number.
func resultKeys(groups []models.ProductGroup) []string {
	seen := make(map[string]int, len(groups))
	for _, grp := range groups {
		seen[grp.ProductName]++
	}
	keys := make([]string, len(groups))
	for i, grp := range groups {
		keys[i] = grp.ProductName
		if seen[grp.ProductName] > 1 || grp.ProductName == "" {
			keys[i] = fmt.Sprintf("%s [%s]", grp.ProductName, grp.ProductNo)
		}
	}
	return keys
}
