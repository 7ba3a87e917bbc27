package api

import (
	"context"
	"errors"
	"strconv"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/service/metrics"
	xhttp "Stooorage/pkg/http"
	applogger "Stooorage/pkg/logger"

	"github.com/labstack/echo/v4"
)

// toAppError maps domain errors onto HTTP errors. 5xx messages never echo the cause.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, models.ErrInvalidGranularity):
		return xhttp.NewAppError("ERR_INVALID_FREQUENCY", "frequency", err.Error(), 400).
			WithParam("options", []string{"week", "month"}).WithError(err)
	case errors.Is(err, models.ErrProductExists):
		return xhttp.NewAppError("ERR_PRODUCT_EXISTS", "product_no", "Product already exists", 400).WithError(err)
	case errors.Is(err, models.ErrTransactionExists):
		return xhttp.NewAppError("ERR_TRANSACTION_EXISTS", "transaction_no", "Transaction already exists or invalid data", 400).WithError(err)
	case errors.Is(err, models.ErrInsufficientStock):
		return xhttp.NewAppError("ERR_INSUFFICIENT_STOCK", "quantity", "Insufficient inventory", 400).WithError(err)
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrProductNotFound):
		return xhttp.NotFoundError("Product not found").WithError(err)
	case errors.Is(err, models.ErrNoHistoricalData):
		return xhttp.NewAppError("ERR_NO_DATA", "", "No historical sales data found", 404).WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", "Not enough sales history to forecast", 404).WithError(err)
	case errors.Is(err, models.ErrModelFailure) && errors.Is(err, models.ErrUpstreamUnavailable):
		return xhttp.ServiceUnavailableError("Forecast model service is unavailable").WithError(err)
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return xhttp.ServiceUnavailableError("Storage is unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("Request timed out").WithError(err)
	case errors.Is(err, models.ErrModelFailure):
		return xhttp.NewAppError("ERR_MODEL_FAILURE", "", "Forecast model failed", 500).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

// failure logs, counts and writes err for endpoint.
func failure(c echo.Context, l *applogger.Logger, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(appErr.Status)).Inc()
	if l != nil {
		fields := []applogger.Field{
			applogger.String("endpoint", endpoint),
			applogger.Int("status", appErr.Status),
			applogger.Error(err),
		}
		if appErr.Status >= 500 {
			l.Error("request failed", fields...)
		} else {
			l.Debug("request rejected", fields...)
		}
	}
	return xhttp.AppErrorResponse(c, appErr)
}
