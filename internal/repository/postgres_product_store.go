package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"
	"Stooorage/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PostgresProductStore implements ProductStore on the product table.
type PostgresProductStore struct {
	db postgres.DB
	l  *applogger.Logger
}

func NewPostgresProductStore(db postgres.DB, l *applogger.Logger) *PostgresProductStore {
	return &PostgresProductStore{db: db, l: l}
}

func (s *PostgresProductStore) Create(ctx context.Context, p *models.Product) error {
	const q = `INSERT INTO product (product_no, product_name, price, quantity) VALUES ($1, $2, $3::numeric, $4)`
	if _, err := s.db.Exec(ctx, q, p.ProductNo, p.ProductName, p.Price.String(), p.Quantity); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("product %s: %w", p.ProductNo, models.ErrProductExists)
		}
		return pgErr("insert product", err)
	}
	return nil
}

func (s *PostgresProductStore) Get(ctx context.Context, productNo string) (*models.Product, error) {
	const q = `SELECT product_no, product_name, price::text, quantity FROM product WHERE product_no = $1`
	p, err := scanProduct(s.db.QueryRow(ctx, q, productNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productNo, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, pgErr("get product", err)
	}
	return p, nil
}

func (s *PostgresProductStore) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	where, args := productWhere(f)

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM product"+where, args...).Scan(&total); err != nil {
		return nil, 0, pgErr("count products", err)
	}

	offset := (f.Page - 1) * f.PageSize
	q := fmt.Sprintf("SELECT product_no, product_name, price::text, quantity FROM product%s ORDER BY product_no LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, q, append(args, f.PageSize, offset)...)
	if err != nil {
		return nil, 0, pgErr("list products", err)
	}
	defer rows.Close()

	out := make([]models.Product, 0, f.PageSize)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pgErr("list products", err)
	}
	if s.l != nil {
		s.l.Debug("postgres list_products ok",
			applogger.Int("page", f.Page),
			applogger.Int("rows", len(out)),
			applogger.Int64("total", total),
		)
	}
	return out, total, nil
}

func (s *PostgresProductStore) UnitsInStock(ctx context.Context) (int64, error) {
	var n int64
	const q = `SELECT COALESCE(SUM(quantity), 0)::bigint FROM product WHERE quantity > 0`
	if err := s.db.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, pgErr("units in stock", err)
	}
	return n, nil
}

func (s *PostgresProductStore) StockAlerts(ctx context.Context, critical, low int64) (models.StockAlerts, error) {
	const q = `
        SELECT COUNT(*) FILTER (WHERE quantity < $1),
               COUNT(*) FILTER (WHERE quantity >= $1 AND quantity < $2)
        FROM product
    `
	var a models.StockAlerts
	if err := s.db.QueryRow(ctx, q, critical, low).Scan(&a.Critical, &a.Low); err != nil {
		return models.StockAlerts{}, pgErr("stock alerts", err)
	}
	return a, nil
}

// productWhere builds the WHERE clause for exact-match filters.
func productWhere(f models.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	for _, c := range []struct{ col, val string }{
		{"product_no", f.ProductNo},
		{"product_name", f.ProductName},
	} {
		if c.val == "" {
			continue
		}
		args = append(args, c.val)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.col, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var price string
	if err := row.Scan(&p.ProductNo, &p.ProductName, &price, &p.Quantity); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return &p, nil
}

var _ domrepo.ProductStore = (*PostgresProductStore)(nil)
