package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry with its current stock.
type Product struct {
	ProductNo   string
	ProductName string
	Price       decimal.Decimal
	Quantity    int64
}

// Transaction is a single sales line.
type Transaction struct {
	TransactionNo   string
	TransactionDate time.Time
	CustomerNo      int64
	Country         string
	ProductNo       string
	Quantity        int64
	PriceAtSale     decimal.Decimal
}

// SaleEvent is the message published after a transaction commits.
type SaleEvent struct {
	EventID         string          `json:"event_id"`
	TransactionNo   string          `json:"transaction_no"`
	TransactionDate time.Time       `json:"transaction_date"`
	ProductNo       string          `json:"product_no"`
	ProductName     string          `json:"product_name"`
	Quantity        int64           `json:"quantity"`
	PriceAtSale     decimal.Decimal `json:"price_at_sale"`
	Country         string          `json:"country"`
}

// ProductFilter narrows a product listing. Empty fields are ignored.
type ProductFilter struct {
	ProductNo   string
	ProductName string
	Page        int
	PageSize    int
}

// StockAlerts counts products under the configured stock thresholds.
type StockAlerts struct {
	Critical int64
	Low      int64
}

// SalesSummary aggregates a reporting window.
type SalesSummary struct {
	TotalTransactions int64
	TotalQuantity     int64
	TotalRevenue      decimal.Decimal
}

// MonthlySales is one calendar month of sales.
type MonthlySales struct {
	MonthStart   time.Time
	Transactions int64
	Quantity     int64
	Revenue      decimal.Decimal
}
