package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	applogger "Stooorage/pkg/logger"
	"Stooorage/pkg/postgres"
)

// PostgresSeriesStore reads forecast input truncated by DATE_TRUNC.
type PostgresSeriesStore struct {
	db postgres.DB
	l  *applogger.Logger
}

func NewPostgresSeriesStore(db postgres.DB, l *applogger.Logger) *PostgresSeriesStore {
	return &PostgresSeriesStore{db: db, l: l}
}

func (s *PostgresSeriesStore) SalePoints(ctx context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	if !q.Granularity.Valid() {
		return nil, fmt.Errorf("sale points: %w", models.ErrInvalidGranularity)
	}
	where, args := seriesWhere(q, "st", 1)
	sql := fmt.Sprintf(`
        SELECT DATE_TRUNC('%s', st.transaction_date) AS period_start,
               SUM(st.quantity)::bigint
        FROM sales_transaction st%s
        GROUP BY period_start
        ORDER BY period_start
    `, q.Granularity, where)

	start := time.Now()
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgErr("sale points", err)
	}
	defer rows.Close()

	var out []models.RawSalePoint
	for rows.Next() {
		var p models.RawSalePoint
		if err := rows.Scan(&p.Timestamp, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("sale points", err)
	}
	s.logQuery("sale_points", q, len(out), start)
	return out, nil
}

func (s *PostgresSeriesStore) ProductSalePoints(ctx context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	if !q.Granularity.Valid() {
		return nil, fmt.Errorf("product sale points: %w", models.ErrInvalidGranularity)
	}
	where, args := seriesWhere(q, "st", 1)
	sql := fmt.Sprintf(`
        SELECT st.product_no,
               p.product_name,
               DATE_TRUNC('%s', st.transaction_date) AS period_start,
               SUM(st.quantity)::bigint
        FROM sales_transaction st
        JOIN product p ON st.product_no = p.product_no%s
        GROUP BY st.product_no, p.product_name, period_start
        ORDER BY p.product_name, st.product_no, period_start
    `, q.Granularity, where)

	start := time.Now()
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgErr("product sale points", err)
	}
	defer rows.Close()

	var out []models.RawSalePoint
	for rows.Next() {
		var p models.RawSalePoint
		if err := rows.Scan(&p.ProductNo, &p.ProductName, &p.Timestamp, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan product sale point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("product sale points", err)
	}
	s.logQuery("product_sale_points", q, len(out), start)
	return out, nil
}

func (s *PostgresSeriesStore) logQuery(op string, q domrepo.SeriesQuery, n int, start time.Time) {
	if s.l == nil {
		return
	}
	s.l.Debug("postgres "+op+" ok",
		applogger.String("product_no", q.ProductNo),
		applogger.String("granularity", q.Granularity.String()),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

// seriesWhere renders the optional product and [From, To) filters with
// placeholders numbered from first.
func seriesWhere(q domrepo.SeriesQuery, alias string, first int) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, alias, first+len(args)-1))
	}
	if q.ProductNo != "" {
		add("%s.product_no = $%d", q.ProductNo)
	}
	if !q.From.IsZero() {
		add("%s.transaction_date >= $%d", models.Naive(q.From))
	}
	if !q.To.IsZero() {
		add("%s.transaction_date < $%d", models.Naive(q.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n        WHERE " + strings.Join(conds, " AND "), args
}

var _ domrepo.SeriesStore = (*PostgresSeriesStore)(nil)
