package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"
	pkgch "Stooorage/pkg/clickhouse"
	applogger "Stooorage/pkg/logger"
)

// CHSeriesStore implements SeriesStore on the ClickHouse sales mirror.
type CHSeriesStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSeriesStore(ch *pkgch.Client, table string) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSeriesStore) SalePoints(ctx context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	bucket, err := bucketExpr(q.Granularity)
	if err != nil {
		return nil, err
	}
	where, args := chSeriesWhere(q)
	const qtpl = `
        SELECT %s AS period_start, toInt64(sum(quantity)) AS total
        FROM %s FINAL%s
        GROUP BY period_start
        ORDER BY period_start ASC
    `
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, bucket, s.table, where), args...)
	if err != nil {
		s.logErr("sale_points query error", q, err)
		return nil, fmt.Errorf("sale points: %w", chErr(err))
	}
	defer rows.Close()

	out := make([]models.RawSalePoint, 0, 256)
	for rows.Next() {
		var p models.RawSalePoint
		if err := rows.Scan(&p.Timestamp, &p.Quantity); err != nil {
			s.logErr("sale_points scan error", q, err)
			return nil, fmt.Errorf("scan sale point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("sale_points rows error", q, err)
		return nil, fmt.Errorf("rows: %w", chErr(err))
	}
	s.logOK("sale_points", q, len(out), start)
	return out, nil
}

func (s *CHSeriesStore) ProductSalePoints(ctx context.Context, q domrepo.SeriesQuery) ([]models.RawSalePoint, error) {
	bucket, err := bucketExpr(q.Granularity)
	if err != nil {
		return nil, err
	}
	where, args := chSeriesWhere(q)
	const qtpl = `
        SELECT product_no, any(product_name) AS name, %s AS period_start, toInt64(sum(quantity)) AS total
        FROM %s FINAL%s
        GROUP BY product_no, period_start
        ORDER BY name ASC, product_no ASC, period_start ASC
    `
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, bucket, s.table, where), args...)
	if err != nil {
		s.logErr("product_sale_points query error", q, err)
		return nil, fmt.Errorf("product sale points: %w", chErr(err))
	}
	defer rows.Close()

	out := make([]models.RawSalePoint, 0, 1024)
	for rows.Next() {
		var p models.RawSalePoint
		if err := rows.Scan(&p.ProductNo, &p.ProductName, &p.Timestamp, &p.Quantity); err != nil {
			s.logErr("product_sale_points scan error", q, err)
			return nil, fmt.Errorf("scan product sale point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logErr("product_sale_points rows error", q, err)
		return nil, fmt.Errorf("rows: %w", chErr(err))
	}
	s.logOK("product_sale_points", q, len(out), start)
	return out, nil
}

func (s *CHSeriesStore) logErr(msg string, q domrepo.SeriesQuery, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+msg,
		applogger.String("table", s.table),
		applogger.String("product_no", q.ProductNo),
		applogger.String("granularity", q.Granularity.String()),
		applogger.Error(err),
	)
}

func (s *CHSeriesStore) logOK(op string, q domrepo.SeriesQuery, n int, start time.Time) {
	if s.l == nil {
		return
	}
	s.l.Info("clickhouse "+op+" ok",
		applogger.String("table", s.table),
		applogger.String("product_no", q.ProductNo),
		applogger.String("granularity", q.Granularity.String()),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

// bucketExpr maps a granularity to its ClickHouse truncation. Weeks start on Monday.
func bucketExpr(g models.Granularity) (string, error) {
	switch g {
	case models.GranularityWeek:
		return "toDateTime(toStartOfWeek(ts, 1))", nil
	case models.GranularityMonth:
		return "toDateTime(toStartOfMonth(ts))", nil
	default:
		return "", fmt.Errorf("bucket: %w", models.ErrInvalidGranularity)
	}
}

func chSeriesWhere(q domrepo.SeriesQuery) (string, []any) {
	var conds []string
	var args []any
	if q.ProductNo != "" {
		conds = append(conds, "product_no = ?")
		args = append(args, q.ProductNo)
	}
	if !q.From.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, models.Naive(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "ts < ?")
		args = append(args, models.Naive(q.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n        WHERE " + strings.Join(conds, " AND "), args
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)
