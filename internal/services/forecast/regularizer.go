package forecast

import (
	"time"

	"Stooorage/internal/domain/models"
)

// CapacityFactor scales the historical peak into the logistic growth ceiling.
const CapacityFactor = 1.2

// Regularize fills every missing period between the first and last observed
// period with a zero total. Present periods keep their totals unchanged.
func Regularize(s models.PeriodSeries, g models.Granularity) models.RegularSeries {
	if len(s) == 0 {
		return models.RegularSeries{}
	}

	observed := make(map[time.Time]float64, len(s))
	for _, p := range s {
		observed[g.Truncate(p.PeriodStart)] += p.Total
	}

	first := g.Truncate(s[0].PeriodStart)
	last := g.Truncate(s[len(s)-1].PeriodStart)

	out := make(models.RegularSeries, 0, len(s))
	for cur := first; !cur.After(last); cur = g.Next(cur) {
		out = append(out, models.PeriodTotal{PeriodStart: cur, Total: observed[cur]})
	}
	return out
}

// CapacityBound returns CapacityFactor times the peak total, or 0 for an
// empty or all-zero series.
func CapacityBound(s models.RegularSeries) float64 {
	var peak float64
	for _, p := range s {
		if p.Total > peak {
			peak = p.Total
		}
	}
	return CapacityFactor * peak
}
