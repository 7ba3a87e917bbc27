package api

import (
	"time"

	"Stooorage/internal/domain/models"

	"github.com/shopspring/decimal"
)

const dateTimeLayout = "2006-01-02T15:04:05"

type CreateProductRequest struct {
	ProductNo   string          `json:"product_no" validate:"required,max=64"`
	ProductName string          `json:"product_name" validate:"required,max=255"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity" validate:"gte=0"`
}

type ListProductsRequest struct {
	ProductNo   string `query:"product_no"`
	ProductName string `query:"product_name"`
	Page        int    `query:"page" default:"1" validate:"gte=1"`
	PageSize    int    `query:"page_size" default:"20" validate:"gte=1,lte=200"`
}

type CreateTransactionRequest struct {
	TransactionNo   string          `json:"transaction_no" validate:"required,max=64"`
	TransactionDate string          `json:"transaction_date" validate:"required"`
	CustomerNo      int64           `json:"customer_no"`
	Country         string          `json:"country" validate:"max=128"`
	ProductNo       string          `json:"product_no" validate:"required,max=64"`
	Quantity        int64           `json:"quantity" validate:"gte=1"`
	PriceAtSale     decimal.Decimal `json:"price_at_sale"`
}

type ListTransactionsRequest struct {
	ProductNo string `query:"product_no"`
}

type MonthsRequest struct {
	Months int `query:"months" validate:"gte=1,lte=120"`
}

type ProductDTO struct {
	ProductNo   string  `json:"product_no"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
}

type PaginationDTO struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type ProductListDTO struct {
	Products   []ProductDTO  `json:"products"`
	Pagination PaginationDTO `json:"pagination"`
}

type TransactionDTO struct {
	TransactionNo   string  `json:"transaction_no"`
	TransactionDate string  `json:"transaction_date"`
	CustomerNo      int64   `json:"customer_no"`
	Country         string  `json:"country"`
	ProductNo       string  `json:"product_no"`
	Quantity        int64   `json:"quantity"`
	PriceAtSale     float64 `json:"price_at_sale"`
}

type StockAlertsDTO struct {
	Critical    int64 `json:"critical"`
	Low         int64 `json:"low"`
	TotalAlerts int64 `json:"total_alerts"`
}

type PeriodDTO struct {
	Months int    `json:"months"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type SummaryDTO struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalQuantitySold int64   `json:"total_quantity_sold"`
	TotalRevenue      float64 `json:"total_revenue"`
}

type MonthlyDTO struct {
	Month        string  `json:"month"`
	MonthStart   string  `json:"month_start"`
	Transactions int64   `json:"transactions"`
	QuantitySold int64   `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

type SalesReportDTO struct {
	Period           PeriodDTO    `json:"period"`
	Summary          SummaryDTO   `json:"summary"`
	MonthlyBreakdown []MonthlyDTO `json:"monthly_breakdown"`
}

type GrowthDTO struct {
	GrowthPercentage float64     `json:"growth_percentage"`
	CurrentMonth     *MonthlyDTO `json:"current_month"`
	PreviousMonth    *MonthlyDTO `json:"previous_month"`
}

func toProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ProductNo:   p.ProductNo,
		ProductName: p.ProductName,
		Price:       p.Price.InexactFloat64(),
		Quantity:    p.Quantity,
	}
}

func toProductListDTO(page *models.ProductPage) ProductListDTO {
	out := ProductListDTO{
		Products: make([]ProductDTO, 0, len(page.Products)),
		Pagination: PaginationDTO{
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
			HasNext:    page.HasNext,
			HasPrev:    page.HasPrev,
		},
	}
	for _, p := range page.Products {
		out.Products = append(out.Products, toProductDTO(p))
	}
	return out
}

func toTransactionDTOs(txs []models.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionDTO{
			TransactionNo:   t.TransactionNo,
			TransactionDate: models.Naive(t.TransactionDate).Format(dateTimeLayout),
			CustomerNo:      t.CustomerNo,
			Country:         t.Country,
			ProductNo:       t.ProductNo,
			Quantity:        t.Quantity,
			PriceAtSale:     t.PriceAtSale.InexactFloat64(),
		})
	}
	return out
}

func toMonthlyDTO(m models.MonthlySales) MonthlyDTO {
	return MonthlyDTO{
		Month:        m.MonthStart.Format("2006-01"),
		MonthStart:   m.MonthStart.Format(time.DateOnly),
		Transactions: m.Transactions,
		QuantitySold: m.Quantity,
		Revenue:      m.Revenue.Round(2).InexactFloat64(),
	}
}

func toSalesReportDTO(r *models.SalesReport) SalesReportDTO {
	out := SalesReportDTO{
		Period: PeriodDTO{
			Months: r.Months,
			From:   r.From.Format(dateTimeLayout),
			To:     r.To.Format(dateTimeLayout),
		},
		Summary: SummaryDTO{
			TotalTransactions: r.Summary.TotalTransactions,
			TotalQuantitySold: r.Summary.TotalQuantity,
			TotalRevenue:      r.Summary.TotalRevenue.Round(2).InexactFloat64(),
		},
		MonthlyBreakdown: make([]MonthlyDTO, 0, len(r.Monthly)),
	}
	for _, m := range r.Monthly {
		out.MonthlyBreakdown = append(out.MonthlyBreakdown, toMonthlyDTO(m))
	}
	return out
}

func toGrowthDTO(g *models.SalesGrowth) GrowthDTO {
	out := GrowthDTO{GrowthPercentage: g.GrowthPercentage}
	if g.Current != nil {
		m := toMonthlyDTO(*g.Current)
		out.CurrentMonth = &m
	}
	if g.Previous != nil {
		m := toMonthlyDTO(*g.Previous)
		out.PreviousMonth = &m
	}
	return out
}
