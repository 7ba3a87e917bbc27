package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"Stooorage/internal/domain/models"
	domrepo "Stooorage/internal/domain/repository"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ReportUseCase builds sales reports relative to a reference date.
type ReportUseCase struct {
	store domrepo.ReportStore
	now   func() time.Time
}

// NewReportUseCase uses ref as the reference date, or the wall clock when ref is zero.
func NewReportUseCase(store domrepo.ReportStore, ref time.Time) *ReportUseCase {
	now := time.Now
	if !ref.IsZero() {
		now = func() time.Time { return ref }
	}
	return &ReportUseCase{store: store, now: now}
}

// LastMonths reports sales in [ref - months, ref).
func (uc *ReportUseCase) LastMonths(ctx context.Context, months int) (*models.SalesReport, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive: %w", models.ErrInvalidInput)
	}
	to := models.Naive(uc.now())
	from := to.AddDate(0, -months, 0)

	summary, err := uc.store.Summary(ctx, from, to)
	if err != nil {
		return nil, err
	}
	monthly, err := uc.store.Monthly(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &models.SalesReport{Months: months, From: from, To: to, Summary: summary, Monthly: monthly}, nil
}

// Growth compares revenue of the newest two months within the last `months`.
// The percentage is rounded to one decimal and is 0 without a prior month or
// when the prior month had no revenue.
func (uc *ReportUseCase) Growth(ctx context.Context, months int) (*models.SalesGrowth, error) {
	if months < 2 {
		return nil, fmt.Errorf("months must be at least 2: %w", models.ErrInvalidInput)
	}
	since := models.Naive(uc.now()).AddDate(0, -months, 0)
	buckets, err := uc.store.RecentMonths(ctx, since, months)
	if err != nil {
		return nil, err
	}

	out := &models.SalesGrowth{}
	if len(buckets) > 0 {
		out.Current = &buckets[0]
	}
	if len(buckets) < 2 {
		return out, nil
	}
	out.Previous = &buckets[1]

	if out.Previous.Revenue.IsPositive() {
		growth := out.Current.Revenue.Sub(out.Previous.Revenue).
			Div(out.Previous.Revenue).
			Mul(hundred).
			InexactFloat64()
		out.GrowthPercentage = math.Round(growth*10) / 10
	}
	return out, nil
}
