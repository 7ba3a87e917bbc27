package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Stooorage/internal/domain/models"
	icache "Stooorage/internal/service/cache"
	"Stooorage/internal/service/metrics"
	"Stooorage/internal/service/ratelimit"
	"Stooorage/internal/usecase"
	xhttp "Stooorage/pkg/http"
	applogger "Stooorage/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastRequest carries the query of all forecast routes. Fields left
// empty fall back to the endpoint defaults.
type ForecastRequest struct {
	ProductNo         string `param:"product_no"`
	Periods           int    `param:"periods" query:"periods" validate:"gte=1,lte=520"`
	Frequency         string `query:"frequency" validate:"required"`
	Growth            string `query:"growth" validate:"omitempty,oneof=linear logistic"`
	WeeklySeasonality string `query:"weekly_seasonality" validate:"omitempty,boolean"`
	YearlySeasonality string `query:"yearly_seasonality" validate:"omitempty,boolean"`
	From              string `query:"from"`
	To                string `query:"to"`
}

// endpointDefaults are the model settings used when a request leaves them out.
type endpointDefaults struct {
	growth models.GrowthMode
	weekly func(models.Granularity) bool
	yearly bool
}

var (
	productDefaults = endpointDefaults{
		growth: models.GrowthLogistic,
		weekly: func(models.Granularity) bool { return true },
		yearly: false,
	}
	batchDefaults = endpointDefaults{
		growth: models.GrowthLogistic,
		weekly: func(g models.Granularity) bool { return g == models.GranularityWeek },
		yearly: true,
	}
	totalDefaults = endpointDefaults{
		growth: models.GrowthLinear,
		weekly: func(models.Granularity) bool { return true },
		yearly: true,
	}
)

// ForecastEchoHandler serves the /ai/forecast routes.
type ForecastEchoHandler struct {
	l        *applogger.Logger
	svc      ForecastService
	cache    icache.BytesCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
}

func NewForecastEchoHandler(l *applogger.Logger, svc ForecastService) *ForecastEchoHandler {
	metrics.Register()
	return &ForecastEchoHandler{l: l, svc: svc}
}

// SetCache enables response caching. A zero ttl disables it.
func (h *ForecastEchoHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		h.cache, h.cacheTTL = nil, 0
		return
	}
	h.cache, h.cacheTTL = c, ttl
}

// SetRateLimiter limits the batch route per client IP.
func (h *ForecastEchoHandler) SetRateLimiter(rl *ratelimit.Limiter) { h.rl = rl }

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/ai/forecast")
	g.GET("/id/:product_no", h.Product)
	g.GET("/all", h.All)
	g.GET("/total/:periods", h.Total)
}

// Product forecasts one product.
func (h *ForecastEchoHandler) Product(c echo.Context) error {
	const endpoint = "forecast.product"
	defer observeLatency(endpoint, time.Now())

	req := &ForecastRequest{Periods: 8, Frequency: string(models.GranularityMonth)}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := req.params(productDefaults)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}

	return h.cached(c, endpoint, cacheKey(usecase.ScopeProduct, p), func() (interface{}, error) {
		return h.svc.ForecastProduct(c.Request().Context(), p)
	})
}

// All forecasts up to ten products keyed by name.
func (h *ForecastEchoHandler) All(c echo.Context) error {
	const endpoint = "forecast.all"
	defer observeLatency(endpoint, time.Now())

	if h.rl != nil && !h.rl.Allow(c.RealIP()+":forecast_all") {
		metrics.RateLimited.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Warn("forecast.all rate limited", applogger.String("remote", c.RealIP()))
		}
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many batch forecast requests"))
	}

	req := &ForecastRequest{Periods: 8, Frequency: string(models.GranularityMonth)}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.ProductNo = ""
	p, err := req.params(batchDefaults)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}

	return h.cached(c, endpoint, cacheKey(usecase.ScopeAll, p), func() (interface{}, error) {
		return h.svc.ForecastAll(c.Request().Context(), p)
	})
}

// Total forecasts the sum over all products.
func (h *ForecastEchoHandler) Total(c echo.Context) error {
	const endpoint = "forecast.total"
	defer observeLatency(endpoint, time.Now())

	req := &ForecastRequest{Frequency: string(models.GranularityWeek)}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.ProductNo = ""
	p, err := req.params(totalDefaults)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}

	return h.cached(c, endpoint, cacheKey(usecase.ScopeTotal, p), func() (interface{}, error) {
		return h.svc.ForecastTotal(c.Request().Context(), p)
	})
}

// cached serves key from the cache or runs compute and stores its JSON.
func (h *ForecastEchoHandler) cached(c echo.Context, endpoint, key string, compute func() (interface{}, error)) error {
	ctx := c.Request().Context()
	if h.cache != nil {
		b, ok, err := h.cache.GetBytes(ctx, key)
		switch {
		case err != nil:
			metrics.CacheResults.WithLabelValues(endpoint, "error").Inc()
			if h.l != nil {
				h.l.Warn("forecast cache read failed", applogger.String("key", key), applogger.Error(err))
			}
		case ok:
			metrics.CacheResults.WithLabelValues(endpoint, "hit").Inc()
			c.Response().Header().Set("X-Cache", "HIT")
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		default:
			metrics.CacheResults.WithLabelValues(endpoint, "miss").Inc()
		}
	}

	res, err := compute()
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.SetBytes(ctx, key, b, h.cacheTTL); err != nil && h.l != nil {
				h.l.Warn("forecast cache write failed", applogger.String("key", key), applogger.Error(err))
			}
		}
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return xhttp.SuccessResponse(c, res)
}

// params resolves defaults and parses the request into use case parameters.
func (r *ForecastRequest) params(d endpointDefaults) (usecase.ForecastParams, error) {
	g, err := models.ParseGranularity(r.Frequency)
	if err != nil {
		return usecase.ForecastParams{}, err
	}
	cfg := models.ForecastConfig{
		Granularity:       g,
		Horizon:           r.Periods,
		Growth:            d.growth,
		WeeklySeasonality: d.weekly(g),
		YearlySeasonality: d.yearly,
	}
	if r.Growth != "" {
		cfg.Growth = models.GrowthMode(r.Growth)
	}
	if r.WeeklySeasonality != "" {
		cfg.WeeklySeasonality, _ = strconv.ParseBool(r.WeeklySeasonality)
	}
	if r.YearlySeasonality != "" {
		cfg.YearlySeasonality, _ = strconv.ParseBool(r.YearlySeasonality)
	}

	p := usecase.ForecastParams{ProductNo: r.ProductNo, Config: cfg}
	if r.From != "" {
		t, ok := xhttp.ParseTime(r.From)
		if !ok {
			return p, xhttp.NewAppError("ERR_INVALID_TIME", "from", "from must be RFC3339, YYYY-MM-DD or unix seconds", http.StatusBadRequest)
		}
		p.From = models.Naive(t)
	}
	if r.To != "" {
		t, ok := xhttp.ParseTime(r.To)
		if !ok {
			return p, xhttp.NewAppError("ERR_INVALID_TIME", "to", "to must be RFC3339, YYYY-MM-DD or unix seconds", http.StatusBadRequest)
		}
		p.To = models.Naive(t)
	}
	if !p.From.IsZero() && !p.To.IsZero() && !p.From.Before(p.To) {
		return p, xhttp.NewAppError("ERR_INVALID_RANGE", "from", "from must be before to", http.StatusBadRequest)
	}
	return p, nil
}

func cacheKey(scope string, p usecase.ForecastParams) string {
	c := p.Config
	return fmt.Sprintf("forecast:%s:%s:%s:%d:%s:%t:%t:%d:%d",
		scope, p.ProductNo, c.Granularity, c.Horizon, c.Growth,
		c.WeeklySeasonality, c.YearlySeasonality, unixOrZero(p.From), unixOrZero(p.To))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func observeLatency(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
