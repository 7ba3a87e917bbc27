package repository

import (
	"fmt"

	"Stooorage/internal/domain/models"
	"Stooorage/pkg/postgres"
)

// PostgresSchema creates the transactional tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS product (
		product_no   TEXT PRIMARY KEY,
		product_name TEXT NOT NULL,
		price        NUMERIC(12, 2) NOT NULL,
		quantity     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS sales_transaction (
		transaction_no   TEXT NOT NULL,
		transaction_date TIMESTAMP NOT NULL,
		customer_no      BIGINT NOT NULL,
		country          TEXT NOT NULL,
		product_no       TEXT NOT NULL REFERENCES product (product_no),
		quantity         INTEGER NOT NULL CHECK (quantity > 0),
		price_at_sale    NUMERIC(12, 2) NOT NULL,
		PRIMARY KEY (transaction_no, product_no)
	)`,
	`CREATE INDEX IF NOT EXISTS sales_transaction_date_idx ON sales_transaction (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS sales_transaction_product_idx ON sales_transaction (product_no, transaction_date)`,
}

// pgErr tags connectivity failures with ErrUpstreamUnavailable.
func pgErr(op string, err error) error {
	if postgres.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
