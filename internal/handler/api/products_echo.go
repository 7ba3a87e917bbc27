package api

import (
	"net/http"
	"time"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/service/metrics"
	xhttp "Stooorage/pkg/http"
	applogger "Stooorage/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ProductsEchoHandler serves the /products routes: catalogue, sales and reports.
type ProductsEchoHandler struct {
	l        *applogger.Logger
	products ProductService
	txs      TransactionService
	reports  ReportService
}

func NewProductsEchoHandler(l *applogger.Logger, products ProductService, txs TransactionService, reports ReportService) *ProductsEchoHandler {
	metrics.Register()
	return &ProductsEchoHandler{l: l, products: products, txs: txs, reports: reports}
}

func (h *ProductsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/products")
	g.POST("/create", h.CreateProduct)
	g.GET("", h.ListProducts)
	g.GET("/", h.ListProducts)
	g.GET("/in-stock", h.InStock)
	g.GET("/stock-alerts", h.StockAlerts)

	g.POST("/transactions/create", h.CreateTransaction)
	g.GET("/transactions", h.ListTransactions)
	g.GET("/transactions/", h.ListTransactions)

	g.GET("/sales/last-months", h.LastMonths)
	g.GET("/sales/growth", h.Growth)
}

func (h *ProductsEchoHandler) CreateProduct(c echo.Context) error {
	const endpoint = "products.create"
	req := &CreateProductRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p := &models.Product{
		ProductNo:   req.ProductNo,
		ProductName: req.ProductName,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}
	if err := h.products.Create(c.Request().Context(), p); err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.CreatedResponse(c, toProductDTO(*p))
}

func (h *ProductsEchoHandler) ListProducts(c echo.Context) error {
	const endpoint = "products.list"
	req := &ListProductsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	page, err := h.products.List(c.Request().Context(), models.ProductFilter{
		ProductNo:   req.ProductNo,
		ProductName: req.ProductName,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, toProductListDTO(page))
}

func (h *ProductsEchoHandler) InStock(c echo.Context) error {
	n, err := h.products.InStock(c.Request().Context())
	if err != nil {
		return failure(c, h.l, "products.in_stock", err)
	}
	return xhttp.SuccessResponse(c, map[string]int64{"in_stock": n})
}

func (h *ProductsEchoHandler) StockAlerts(c echo.Context) error {
	a, err := h.products.StockAlerts(c.Request().Context())
	if err != nil {
		return failure(c, h.l, "products.stock_alerts", err)
	}
	return xhttp.SuccessResponse(c, StockAlertsDTO{
		Critical:    a.Critical,
		Low:         a.Low,
		TotalAlerts: a.Critical + a.Low,
	})
}

func (h *ProductsEchoHandler) CreateTransaction(c echo.Context) error {
	const endpoint = "transactions.create"
	req := &CreateTransactionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, ok := xhttp.ParseTime(req.TransactionDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_TIME", "transaction_date",
			"transaction_date must be RFC3339, YYYY-MM-DD or unix seconds", http.StatusBadRequest))
	}

	remaining, err := h.txs.Create(c.Request().Context(), &models.Transaction{
		TransactionNo:   req.TransactionNo,
		TransactionDate: models.Naive(date),
		CustomerNo:      req.CustomerNo,
		Country:         req.Country,
		ProductNo:       req.ProductNo,
		Quantity:        req.Quantity,
		PriceAtSale:     req.PriceAtSale,
	})
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.CreatedResponse(c, map[string]interface{}{
		"transaction_no":      req.TransactionNo,
		"remaining_inventory": remaining,
	})
}

func (h *ProductsEchoHandler) ListTransactions(c echo.Context) error {
	req := &ListTransactionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	txs, err := h.txs.List(c.Request().Context(), req.ProductNo)
	if err != nil {
		return failure(c, h.l, "transactions.list", err)
	}
	return xhttp.SuccessResponse(c, toTransactionDTOs(txs))
}

// LastMonths reports sales over the trailing months, default 3.
func (h *ProductsEchoHandler) LastMonths(c echo.Context) error {
	const endpoint = "sales.last_months"
	defer observeLatency(endpoint, time.Now())

	req := &MonthsRequest{Months: 3}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.reports.LastMonths(c.Request().Context(), req.Months)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, toSalesReportDTO(r))
}

// Growth compares the newest two months of revenue, default window 2.
func (h *ProductsEchoHandler) Growth(c echo.Context) error {
	const endpoint = "sales.growth"
	defer observeLatency(endpoint, time.Now())

	req := &MonthsRequest{Months: 2}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	g, err := h.reports.Growth(c.Request().Context(), req.Months)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, toGrowthDTO(g))
}
