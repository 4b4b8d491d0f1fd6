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

func TestPaymentPDFRendersReceipt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Now()
	dueDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM payments p\s+JOIN customers c`).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "uuid", "customer_id", "name", "phone",
			"business_id", "b_name",
			"paid_amount", "remaining_amount", "due_amount",
			"due_date", "status", "created_at", "updated_at",
		}).AddRow(int64(99), "cust-1", int64(7), "Asha", "9000000001",
			int64(3), "Cable Co",
			120.0, 30.0, 150.0,
			dueDate, models.PaymentStatusPartiallySettled, now, now))

	svc := NewReceiptService(repositories.NewPaymentRepository(mock))
	pdf, err := svc.PaymentPDF(context.Background(), 99)
	require.NoError(t, err)

	require.Greater(t, len(pdf), 4)
	assert.Equal(t, "%PDF", string(pdf[:4]))
	assert.NoError(t, mock.ExpectationsWereMet())
}
