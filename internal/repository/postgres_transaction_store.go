package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"
	"Stooorage/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PostgresTransactionStore implements TransactionStore on sales_transaction.
type PostgresTransactionStore struct {
	db postgres.DB
	l  *applogger.Logger
}

func NewPostgresTransactionStore(db postgres.DB, l *applogger.Logger) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: db, l: l}
}

// Create locks the product row, checks stock, inserts the sale and decrements
// stock in one database transaction.
func (s *PostgresTransactionStore) Create(ctx context.Context, t *models.Transaction) (*models.Product, int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, pgErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQ = `SELECT product_no, product_name, price::text, quantity FROM product WHERE product_no = $1 FOR UPDATE`
	p, err := scanProduct(tx.QueryRow(ctx, lockQ, t.ProductNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("product %s: %w", t.ProductNo, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, 0, pgErr("lock product", err)
	}
	if p.Quantity < t.Quantity {
		return nil, 0, fmt.Errorf("available: %d; requested: %d: %w", p.Quantity, t.Quantity, models.ErrInsufficientStock)
	}

	const insertQ = `
        INSERT INTO sales_transaction
            (transaction_no, transaction_date, customer_no, country, product_no, quantity, price_at_sale)
        VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
    `
	_, err = tx.Exec(ctx, insertQ,
		t.TransactionNo,
		models.Naive(t.TransactionDate),
		t.CustomerNo,
		t.Country,
		t.ProductNo,
		t.Quantity,
		t.PriceAtSale.String(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, 0, fmt.Errorf("transaction %s: %w", t.TransactionNo, models.ErrTransactionExists)
		}
		return nil, 0, pgErr("insert transaction", err)
	}

	const updateQ = `UPDATE product SET quantity = quantity - $1 WHERE product_no = $2 RETURNING quantity`
	var remaining int64
	if err := tx.QueryRow(ctx, updateQ, t.Quantity, t.ProductNo).Scan(&remaining); err != nil {
		return nil, 0, pgErr("decrement stock", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, pgErr("commit", err)
	}
	p.Quantity = remaining

	if s.l != nil {
		s.l.Info("transaction stored",
			applogger.String("transaction_no", t.TransactionNo),
			applogger.String("product_no", t.ProductNo),
			applogger.Int64("quantity", t.Quantity),
			applogger.Int64("remaining", remaining),
		)
	}
	return p, remaining, nil
}

func (s *PostgresTransactionStore) List(ctx context.Context, productNo string) ([]models.Transaction, error) {
	q := `SELECT transaction_no, transaction_date, customer_no, country, product_no, quantity, price_at_sale::text FROM sales_transaction`
	var args []any
	if productNo != "" {
		q += ` WHERE product_no = $1`
		args = append(args, productNo)
	}
	q += ` ORDER BY transaction_date, transaction_no`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, pgErr("list transactions", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var ts time.Time
		var price string
		if err := rows.Scan(&t.TransactionNo, &ts, &t.CustomerNo, &t.Country, &t.ProductNo, &t.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.PriceAtSale, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		t.TransactionDate = models.Naive(ts)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("list transactions", err)
	}
	return out, nil
}

var _ domrepo.TransactionStore = (*PostgresTransactionStore)(nil)
