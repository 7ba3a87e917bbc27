package models

import "errors"

// Domain errors. Callers wrap these with context and match them with errors.Is.
var (
	ErrInvalidGranularity  = errors.New("invalid granularity: use 'week' or 'month'")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNoHistoricalData    = errors.New("no historical sales data")
	ErrInsufficientHistory = errors.New("insufficient history to forecast")
	ErrModelFailure        = errors.New("forecast model failure")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	ErrProductNotFound   = errors.New("product not found")
	ErrProductExists     = errors.New("product already exists")
	ErrTransactionExists = errors.New("transaction already exists or invalid data")
	ErrInsufficientStock = errors.New("insufficient inventory")
)
