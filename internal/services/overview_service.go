package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"billing-backend/internal/cache"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

const overviewCacheTTL = 2 * time.Minute

func overviewCacheKey(businessID int64) string {
	return fmt.Sprintf("overview:business:%d", businessID)
}

// OverviewService builds the year-scoped business dashboard. All totals are
// recomputed from the ledger; the business row only receives them back as a
// best-effort cache.
type OverviewService struct {
	payments   *repositories.PaymentRepository
	businesses *repositories.BusinessRepository
	assocs     *repositories.AssociationRepository
}

func NewOverviewService(
	payments *repositories.PaymentRepository,
	businesses *repositories.BusinessRepository,
	assocs *repositories.AssociationRepository,
) *OverviewService {
	return &OverviewService{
		payments:   payments,
		businesses: businesses,
		assocs:     assocs,
	}
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// monthSeries expands per-month stats into a fixed 12-entry series.
func monthSeries(stats map[int]models.MonthlyIncomeDue) []models.MonthlyIncomeDue {
	series := make([]models.MonthlyIncomeDue, 12)
	for m := 1; m <= 12; m++ {
		s := stats[m]
		s.Month = monthNames[m-1]
		series[m-1] = s
	}
	return series
}

// BusinessOverview computes the dashboard for one business and year. Year 0
// means the current year. The redis copy, when present, short-circuits the
// recomputation.
func (s *OverviewService) BusinessOverview(ctx context.Context, businessID int64, year int) (*models.BusinessOverview, error) {
	// Only the current-year view is cached; settlement invalidates that
	// key, historical years are cheap enough to recompute.
	useCache := year == 0
	if year == 0 {
		year = time.Now().Year()
	}

	cacheKey := overviewCacheKey(businessID)
	if useCache {
		if cached := cache.Get(ctx, cacheKey); cached != "" {
			var overview models.BusinessOverview
			if err := json.Unmarshal([]byte(cached), &overview); err == nil {
				return &overview, nil
			}
		}
	}

	business, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}

	income, due, err := s.payments.SumForBusinessYear(ctx, businessID, year)
	if err != nil {
		return nil, err
	}
	stats, err := s.payments.MonthlyStats(ctx, businessID, year)
	if err != nil {
		return nil, err
	}
	years, err := s.payments.DistinctYears(ctx, businessID)
	if err != nil {
		return nil, err
	}
	recent, err := s.payments.RecentByBusiness(ctx, businessID, year, 5)
	if err != nil {
		return nil, err
	}

	customerCount, err := s.assocs.CountByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	overview := &models.BusinessOverview{
		TotalIncome:        income,
		TotalDue:           due,
		TotalCustomer:      customerCount,
		MonthlyIncomeVsDue: monthSeries(stats),
		RecentPayments:     recent,
		Years:              years,
		CurrentYear:        year,
	}

	// Write-back is best effort; the dashboard is already computed.
	if err := s.businesses.SetTotals(ctx, business.ID, customerCount, income, due); err != nil {
		log.Printf("[Overview] totals write-back failed for business %d: %v", businessID, err)
	}
	if useCache {
		if payload, err := json.Marshal(overview); err == nil {
			cache.Set(ctx, cacheKey, string(payload), overviewCacheTTL)
		}
	}

	return overview, nil
}
