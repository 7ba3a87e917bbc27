package models

import "time"

// RawSalePoint is one input row for the series pipeline. ProductNo and
// ProductName are empty when the scope is all products combined.
type RawSalePoint struct {
	Timestamp   time.Time
	Quantity    int64
	ProductNo   string
	ProductName string
}

// PeriodTotal is the summed quantity for one period bucket.
type PeriodTotal struct {
	PeriodStart time.Time
	Total       float64
}

// PeriodSeries holds observed buckets only, strictly ascending.
type PeriodSeries []PeriodTotal

// RegularSeries is a PeriodSeries without gaps between its first and last period.
type RegularSeries []PeriodTotal

// Sum returns the total quantity over the series.
func (s PeriodSeries) Sum() float64 {
	var total float64
	for _, p := range s {
		total += p.Total
	}
	return total
}

// Sum returns the total quantity over the series.
func (s RegularSeries) Sum() float64 {
	return PeriodSeries(s).Sum()
}

// ProductGroup is the identity used by the batch forecast.
type ProductGroup struct {
	ProductNo   string
	ProductName string
}
