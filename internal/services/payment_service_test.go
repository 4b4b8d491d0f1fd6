package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

func newPaymentService(t *testing.T) (*PaymentService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewPaymentService(
		mock,
		repositories.NewPaymentRepository(mock),
		repositories.NewPaymentLogRepository(mock),
		repositories.NewAssociationRepository(mock),
		repositories.NewCustomerRepository(mock),
		repositories.NewBusinessRepository(mock),
	)
	return svc, mock
}

func customerRows(id int64, uuid string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "name", "phone", "uuid", "main_total_payment", "created_at", "updated_at",
	}).AddRow(id, "Asha", "9000000001", uuid, 500.0, now, now)
}

func businessRows(id int64) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "name", "phone", "address", "total_customer", "total_income", "total_due",
		"created_at", "updated_at",
	}).AddRow(id, "Cable Co", "9000000002", "Main Road", 10, 12000.0, 300.0, now, now)
}

func associationRows(id, customerID, businessID int64, fee, due float64) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "customer_id", "business_id", "monthly_fee", "payable_amount",
		"total_payment_amount", "total_due_amount", "created_at", "updated_at",
	}).AddRow(id, customerID, businessID, fee, fee, 500.0, due, now, now)
}

func TestRecordPartialSettlement(t *testing.T) {
	svc, mock := newPaymentService(t)
	cycleDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers\s+WHERE uuid = \$1`).
		WithArgs("cust-1").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2\s+FOR UPDATE`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 50))
	mock.ExpectQuery(`FROM payments\s+WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3), cycleDate).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(int64(7), int64(3), 150.0, 120.0, 30.0, cycleDate,
			models.PaymentStatusPartiallySettled, 50.0, 70.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(99), now, now))
	mock.ExpectExec(`UPDATE customer_businesses`).
		WithArgs(int64(11), 120.0, 30.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO payment_log`).
		WithArgs(int64(7), int64(3), pgxmock.AnyArg(), 120.0, pgxmock.AnyArg(), 3, 2024).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`UPDATE customers`).
		WithArgs(int64(7), 120.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 120.0, 30.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	result, err := svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID:       "cust-1",
		BusinessID: 3,
		PaidAmount: 120,
		DueDate:    "2024-03-01",
	})
	require.NoError(t, err)
	require.NotNil(t, result.NewPayment)

	assert.Equal(t, int64(99), result.NewPayment.ID)
	assert.Equal(t, 150.0, result.NewPayment.DueAmount)
	assert.Equal(t, 30.0, result.NewPayment.RemainingAmount)
	assert.Equal(t, models.PaymentStatusPartiallySettled, result.NewPayment.Status)
	assert.Nil(t, result.UpdatedPreviousPayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReducesPriorUnsettledPayment(t *testing.T) {
	svc, mock := newPaymentService(t)
	cycleDate := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	priorDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	priorRows := pgxmock.NewRows([]string{
		"id", "customer_id", "business_id", "due_amount", "paid_amount",
		"remaining_amount", "due_date", "status", "settled_previous_due",
		"settled_current_fee", "created_at", "updated_at",
	}).AddRow(int64(80), int64(7), int64(3), 150.0, 120.0, 30.0, priorDate,
		models.PaymentStatusPartiallySettled, 0.0, 0.0, now, now)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers\s+WHERE uuid = \$1`).
		WithArgs("cust-1").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 30))
	mock.ExpectQuery(`FROM payments`).
		WithArgs(int64(7), int64(3), cycleDate).
		WillReturnRows(priorRows)
	// Prior entry's remaining 30 fully absorbed by settledPreviousDue 30.
	mock.ExpectQuery(`UPDATE payments`).
		WithArgs(int64(80), 120.0, 0.0, models.PaymentStatusSettled, 0.0, 0.0, priorDate).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(int64(7), int64(3), 130.0, 130.0, 0.0, cycleDate,
			models.PaymentStatusSettled, 30.0, 100.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(100), now, now))
	mock.ExpectExec(`UPDATE customer_businesses`).
		WithArgs(int64(11), 130.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO payment_log`).
		WithArgs(int64(7), int64(3), pgxmock.AnyArg(), 130.0, pgxmock.AnyArg(), 4, 2024).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec(`UPDATE customers`).
		WithArgs(int64(7), 130.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 130.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	result, err := svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID:       "cust-1",
		BusinessID: 3,
		PaidAmount: 130,
		DueDate:    "2024-04-01",
	})
	require.NoError(t, err)
	require.NotNil(t, result.UpdatedPreviousPayment)

	assert.Equal(t, 0.0, result.UpdatedPreviousPayment.RemainingAmount)
	assert.Equal(t, models.PaymentStatusSettled, result.UpdatedPreviousPayment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUnknownCustomerRollsBack(t *testing.T) {
	svc, mock := newPaymentService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers\s+WHERE uuid = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID:       "ghost",
		BusinessID: 3,
		PaidAmount: 100,
		DueDate:    "2024-03-01",
	})
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc, _ := newPaymentService(t)

	_, err := svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID: "cust-1", BusinessID: 3, PaidAmount: 0, DueDate: "2024-03-01",
	})
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)

	_, err = svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID: "cust-1", BusinessID: 3, PaidAmount: 50, DueDate: "not-a-date",
	})
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)
}

func TestDeleteRestoresAggregates(t *testing.T) {
	svc, mock := newPaymentService(t)
	dueDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	paymentRows := pgxmock.NewRows([]string{
		"id", "customer_id", "business_id", "due_amount", "paid_amount",
		"remaining_amount", "due_date", "status", "settled_previous_due",
		"settled_current_fee", "created_at", "updated_at",
	}).AddRow(int64(99), int64(7), int64(3), 150.0, 120.0, 30.0, dueDate,
		models.PaymentStatusPartiallySettled, 50.0, 70.0, now, now)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM payments WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(99)).
		WillReturnRows(paymentRows)
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`FROM customer_businesses`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 30))
	// Restored due is dueAmount - paidAmount = 30.
	mock.ExpectExec(`UPDATE customer_businesses`).
		WithArgs(int64(11), 120.0, 30.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM payment_log WHERE payment_id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE customers`).
		WithArgs(int64(7), -120.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 120.0, 30.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM payments WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), 99)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteManyMissingPaymentAbortsBatch(t *testing.T) {
	svc, mock := newPaymentService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM payments WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.DeleteMany(context.Background(), []int64{404, 405})
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUntouchedPriorPaymentNotReported(t *testing.T) {
	svc, mock := newPaymentService(t)
	cycleDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	priorDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	// A prior unsettled entry exists, but with no previous due on the
	// association nothing is allocated to it. It must stay out of the result.
	priorRows := pgxmock.NewRows([]string{
		"id", "customer_id", "business_id", "due_amount", "paid_amount",
		"remaining_amount", "due_date", "status", "settled_previous_due",
		"settled_current_fee", "created_at", "updated_at",
	}).AddRow(int64(80), int64(7), int64(3), 150.0, 120.0, 30.0, priorDate,
		models.PaymentStatusPartiallySettled, 0.0, 0.0, now, now)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers\s+WHERE uuid = \$1`).
		WithArgs("cust-1").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 0))
	mock.ExpectQuery(`FROM payments`).
		WithArgs(int64(7), int64(3), cycleDate).
		WillReturnRows(priorRows)
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(int64(7), int64(3), 100.0, 100.0, 0.0, cycleDate,
			models.PaymentStatusSettled, 0.0, 100.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(101), now, now))
	mock.ExpectExec(`UPDATE customer_businesses`).
		WithArgs(int64(11), 100.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO payment_log`).
		WithArgs(int64(7), int64(3), pgxmock.AnyArg(), 100.0, pgxmock.AnyArg(), 5, 2024).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(`UPDATE customers`).
		WithArgs(int64(7), 100.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 100.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	result, err := svc.Record(context.Background(), &models.CreatePaymentRequest{
		UUID:       "cust-1",
		BusinessID: 3,
		PaidAmount: 100,
		DueDate:    "2024-05-01",
	})
	require.NoError(t, err)
	assert.Nil(t, result.UpdatedPreviousPayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByCustomerUnknownTermReturnsEmptyPage(t *testing.T) {
	svc, mock := newPaymentService(t)

	mock.ExpectQuery(`FROM customers WHERE uuid = \$1 OR phone = \$1`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	list, err := svc.SearchByCustomer(context.Background(), 3, "nobody", models.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Payments)
	assert.Zero(t, list.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByCustomerUnsubscribedReturnsEmptyPage(t *testing.T) {
	svc, mock := newPaymentService(t)

	mock.ExpectQuery(`FROM customers WHERE uuid = \$1 OR phone = \$1`).
		WithArgs("cust-1").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnError(pgx.ErrNoRows)

	list, err := svc.SearchByCustomer(context.Background(), 3, "cust-1", models.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Payments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchByCustomerPagesPairLedger(t *testing.T) {
	svc, mock := newPaymentService(t)
	dueDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`FROM customers WHERE uuid = \$1 OR phone = \$1`).
		WithArgs("9000000001").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 30))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments p WHERE p\.customer_id = \$1 AND p\.business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`WHERE p\.customer_id = \$1 AND p\.business_id = \$2\s+ORDER BY p\.created_at DESC`).
		WithArgs(int64(7), int64(3), 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "business_id", "due_amount", "paid_amount",
			"remaining_amount", "due_date", "status", "settled_previous_due",
			"settled_current_fee", "created_at", "updated_at",
			"name", "phone", "uuid",
		}).AddRow(int64(99), int64(7), int64(3), 150.0, 120.0, 30.0, dueDate,
			models.PaymentStatusPartiallySettled, 50.0, 70.0, now, now,
			"Asha", "9000000001", "cust-1"))

	list, err := svc.SearchByCustomer(context.Background(), 3, "9000000001", models.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, list.Payments, 1)
	assert.Equal(t, "Asha", list.Payments[0].CustomerName)
	assert.Equal(t, 1, list.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueByMonthFiltersSettled(t *testing.T) {
	svc, mock := newPaymentService(t)
	dueDate := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`p\.status <> 'settled'`).
		WithArgs(4, 2024).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "business_id", "due_amount", "paid_amount",
			"remaining_amount", "due_date", "status", "settled_previous_due",
			"settled_current_fee", "created_at", "updated_at",
			"name", "phone", "uuid",
		}).AddRow(int64(99), int64(7), int64(3), 150.0, 120.0, 30.0, dueDate,
			models.PaymentStatusPartiallySettled, 50.0, 70.0, now, now,
			"Asha", "9000000001", "cust-1"))

	due, err := svc.DueByMonth(context.Background(), 4, 2024)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 30.0, due[0].RemainingAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueByMonthRejectsBadMonth(t *testing.T) {
	svc, _ := newPaymentService(t)

	_, err := svc.DueByMonth(context.Background(), 0, 2024)
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)

	_, err = svc.DueByMonth(context.Background(), 13, 2024)
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)
}
