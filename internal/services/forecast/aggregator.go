package forecast

import (
	"fmt"
	"sort"
	"time"

	"Stooorage/internal/domain/models"
)

// Aggregate buckets rows into periods of g and sums quantities per bucket.
// Empty periods are omitted; Regularize fills them in.
func Aggregate(rows []models.RawSalePoint, g models.Granularity) (models.PeriodSeries, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("aggregate: %w", models.ErrInvalidGranularity)
	}
	if len(rows) == 0 {
		return models.PeriodSeries{}, nil
	}

	totals := make(map[time.Time]float64, len(rows))
	for i, r := range rows {
		if r.Timestamp.IsZero() {
			return nil, fmt.Errorf("aggregate: row %d has no timestamp: %w", i, models.ErrInvalidInput)
		}
		if r.Quantity < 0 {
			return nil, fmt.Errorf("aggregate: row %d has negative quantity %d: %w", i, r.Quantity, models.ErrInvalidInput)
		}
		totals[g.Truncate(r.Timestamp)] += float64(r.Quantity)
	}

	out := make(models.PeriodSeries, 0, len(totals))
	for start, total := range totals {
		out = append(out, models.PeriodTotal{PeriodStart: start, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

// Partition splits rows by product and returns the groups in canonical order:
// product name ascending, then product number.
func Partition(rows []models.RawSalePoint) ([]models.ProductGroup, map[string][]models.RawSalePoint) {
	byProduct := make(map[string][]models.RawSalePoint)
	names := make(map[string]string)
	for _, r := range rows {
		if _, ok := byProduct[r.ProductNo]; !ok {
			names[r.ProductNo] = r.ProductName
		}
		byProduct[r.ProductNo] = append(byProduct[r.ProductNo], r)
	}

	groups := make([]models.ProductGroup, 0, len(byProduct))
	for no, name := range names {
		groups = append(groups, models.ProductGroup{ProductNo: no, ProductName: name})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ProductName != groups[j].ProductName {
			return groups[i].ProductName < groups[j].ProductName
		}
		return groups[i].ProductNo < groups[j].ProductNo
	})
	return groups, byProduct
}
