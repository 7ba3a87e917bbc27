package repository

import (
	"context"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	"Stooorage/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PostgresReportStore serves revenue and volume reports.
type PostgresReportStore struct {
	db postgres.DB
}

func NewPostgresReportStore(db postgres.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Summary covers transactions in [from, to).
func (s *PostgresReportStore) Summary(ctx context.Context, from, to time.Time) (models.SalesSummary, error) {
	const q = `
        SELECT COUNT(*),
               COALESCE(SUM(st.quantity), 0)::bigint,
               COALESCE(SUM(st.price_at_sale * st.quantity), 0)::text
        FROM sales_transaction st
        JOIN product p ON st.product_no = p.product_no
        WHERE st.transaction_date >= $1 AND st.transaction_date < $2
    `
	var out models.SalesSummary
	var revenue string
	if err := s.db.QueryRow(ctx, q, models.Naive(from), models.Naive(to)).Scan(&out.TotalTransactions, &out.TotalQuantity, &revenue); err != nil {
		return models.SalesSummary{}, pgErr("sales summary", err)
	}
	d, err := decimal.NewFromString(revenue)
	if err != nil {
		return models.SalesSummary{}, fmt.Errorf("parse revenue %q: %w", revenue, err)
	}
	out.TotalRevenue = d
	return out, nil
}

// Monthly returns calendar months in [from, to), newest first.
func (s *PostgresReportStore) Monthly(ctx context.Context, from, to time.Time) ([]models.MonthlySales, error) {
	const q = `
        SELECT DATE_TRUNC('month', st.transaction_date) AS month_start,
               COUNT(*),
               COALESCE(SUM(st.quantity), 0)::bigint,
               COALESCE(SUM(st.price_at_sale * st.quantity), 0)::text
        FROM sales_transaction st
        JOIN product p ON st.product_no = p.product_no
        WHERE st.transaction_date >= $1 AND st.transaction_date < $2
        GROUP BY month_start
        ORDER BY month_start DESC
    `
	rows, err := s.db.Query(ctx, q, models.Naive(from), models.Naive(to))
	if err != nil {
		return nil, pgErr("monthly sales", err)
	}
	return scanMonthly(rows)
}

// RecentMonths returns up to n months since `since`, newest first.
func (s *PostgresReportStore) RecentMonths(ctx context.Context, since time.Time, n int) ([]models.MonthlySales, error) {
	const q = `
        SELECT DATE_TRUNC('month', transaction_date) AS month_start,
               COUNT(*),
               COALESCE(SUM(quantity), 0)::bigint,
               COALESCE(SUM(price_at_sale * quantity), 0)::text
        FROM sales_transaction
        WHERE transaction_date >= $1
        GROUP BY month_start
        ORDER BY month_start DESC
        LIMIT $2
    `
	rows, err := s.db.Query(ctx, q, models.Naive(since), n)
	if err != nil {
		return nil, pgErr("recent months", err)
	}
	return scanMonthly(rows)
}

func scanMonthly(rows pgx.Rows) ([]models.MonthlySales, error) {
	defer rows.Close()
	var out []models.MonthlySales
	for rows.Next() {
		var m models.MonthlySales
		var revenue string
		if err := rows.Scan(&m.MonthStart, &m.Transactions, &m.Quantity, &revenue); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		d, err := decimal.NewFromString(revenue)
		if err != nil {
			return nil, fmt.Errorf("parse revenue %q: %w", revenue, err)
		}
		m.Revenue = d
		m.MonthStart = models.Naive(m.MonthStart)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("scan months", err)
	}
	return out, nil
}

var _ domrepo.ReportStore = (*PostgresReportStore)(nil)
