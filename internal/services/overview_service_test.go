package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

func TestMonthSeriesFillsAllTwelveMonths(t *testing.T) {
	stats := map[int]models.MonthlyIncomeDue{
		3:  {Income: 1200, Due: 300},
		12: {Income: 900, Due: 0},
	}

	series := monthSeries(stats)

	assert.Len(t, series, 12)
	assert.Equal(t, "January", series[0].Month)
	assert.Zero(t, series[0].Income)
	assert.Equal(t, "March", series[2].Month)
	assert.Equal(t, 1200.0, series[2].Income)
	assert.Equal(t, 300.0, series[2].Due)
	assert.Equal(t, "December", series[11].Month)
	assert.Equal(t, 900.0, series[11].Income)
}

func TestMonthSeriesEmptyStats(t *testing.T) {
	series := monthSeries(nil)

	assert.Len(t, series, 12)
	for i, s := range series {
		assert.Equal(t, monthNames[i], s.Month)
		assert.Zero(t, s.Income)
		assert.Zero(t, s.Due)
	}
}

func newOverviewService(t *testing.T) (*OverviewService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewOverviewService(
		repositories.NewPaymentRepository(mock),
		repositories.NewBusinessRepository(mock),
		repositories.NewAssociationRepository(mock),
	)
	return svc, mock
}

func TestBusinessOverviewScopesRecentPaymentsToYear(t *testing.T) {
	svc, mock := newOverviewService(t)
	now := time.Now()

	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "address", "total_customer", "total_income",
			"total_due", "created_at", "updated_at",
		}).AddRow(int64(3), "Cable Co", "9000000002", "Main Road", 10, 12000.0, 300.0, now, now))
	mock.ExpectQuery(`COALESCE\(SUM\(paid_amount\), 0\)`).
		WithArgs(int64(3), 2023).
		WillReturnRows(pgxmock.NewRows([]string{"income", "due"}).AddRow(5400.0, 200.0))
	mock.ExpectQuery(`GROUP BY month`).
		WithArgs(int64(3), 2023).
		WillReturnRows(pgxmock.NewRows([]string{"month", "income", "due"}).
			AddRow(6, 5400.0, 200.0))
	mock.ExpectQuery(`SELECT DISTINCT EXTRACT\(YEAR FROM due_date\)`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"year"}).AddRow(2024).AddRow(2023))
	mock.ExpectQuery(`EXTRACT\(YEAR FROM p\.due_date\) = \$2`).
		WithArgs(int64(3), 2023, 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "uuid", "due_amount", "remaining_amount",
			"paid_amount", "created_at", "status",
		}).AddRow(int64(42), "Asha", "9000000001", "cust-1", 150.0, 30.0, 120.0,
			now, models.PaymentStatusPartiallySettled))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customer_businesses WHERE business_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 9, 5400.0, 200.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	overview, err := svc.BusinessOverview(context.Background(), 3, 2023)
	require.NoError(t, err)

	assert.Equal(t, 2023, overview.CurrentYear)
	require.Len(t, overview.RecentPayments, 1)
	assert.Equal(t, int64(42), overview.RecentPayments[0].ID)
	assert.Equal(t, 30.0, overview.RecentPayments[0].RemainingAmount)
	assert.Equal(t, []int{2024, 2023}, overview.Years)
	assert.Equal(t, 9, overview.TotalCustomer)
	assert.NoError(t, mock.ExpectationsWereMet())
}
