package models

import "time"

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []Product
	Total      int64
	Page       int
	PageSize   int
	TotalPages int64
	HasNext    bool
	HasPrev    bool
}

// SalesReport summarizes the months before a reference date.
type SalesReport struct {
	Months  int
	From    time.Time
	To      time.Time
	Summary SalesSummary
	// Monthly is ordered newest first.
	Monthly []MonthlySales
}

// SalesGrowth compares revenue of the two newest months.
type SalesGrowth struct {
	GrowthPercentage float64
	Current          *MonthlySales
	Previous         *MonthlySales
}
