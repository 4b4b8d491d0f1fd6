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

func newCustomerService(t *testing.T) (*CustomerService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewCustomerService(
		mock,
		repositories.NewCustomerRepository(mock),
		repositories.NewAssociationRepository(mock),
		repositories.NewPaymentRepository(mock),
		repositories.NewPaymentLogRepository(mock),
		repositories.NewBusinessRepository(mock),
	)
	return svc, mock
}

func TestSubscribeCreatesCustomerAndAssociation(t *testing.T) {
	svc, mock := newCustomerService(t)
	now := time.Now()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`INSERT INTO customers`).
		WithArgs("Asha", "9000000001", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "main_total_payment", "created_at", "updated_at"}).
			AddRow(int64(7), 0.0, now, now))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO customer_businesses`).
		WithArgs(int64(7), int64(3), 100.0, 100.0, 0.0, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(11), now, now))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), 1, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	customer, err := svc.Subscribe(context.Background(), &models.SubscribeRequest{
		Name:       "Asha",
		Phone:      "9000000001",
		BusinessID: 3,
		MonthlyFee: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), customer.ID)
	assert.NotEmpty(t, customer.UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResubscribeOnlyUpdatesFee(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(businessRows(3))
	mock.ExpectQuery(`FROM customers WHERE uuid = \$1`).
		WithArgs("cust-1").
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 50))
	mock.ExpectExec(`UPDATE customer_businesses\s+SET monthly_fee`).
		WithArgs(int64(11), 150.0, 150.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	customer, err := svc.Subscribe(context.Background(), &models.SubscribeRequest{
		UUID:       "cust-1",
		BusinessID: 3,
		MonthlyFee: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), customer.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	svc, _ := newCustomerService(t)

	_, err := svc.Subscribe(context.Background(), &models.SubscribeRequest{
		Name: "Asha", MonthlyFee: 100,
	})
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)

	_, err = svc.Subscribe(context.Background(), &models.SubscribeRequest{
		Name: "Asha", BusinessID: 3, MonthlyFee: -1,
	})
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)
}

func TestUnsubscribeCascadesAndDeletesLastCustomer(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2\s+FOR UPDATE`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 50))
	mock.ExpectExec(`DELETE FROM payments WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM payment_log WHERE customer_id = \$1 AND business_id = \$2`).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM customer_businesses WHERE id = \$1`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	// Removed association carried a due of 50.
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), -1, -50.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customer_businesses WHERE customer_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM customers WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := svc.Unsubscribe(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsubscribeKeepsCustomerWithOtherSubscriptions(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2\s+FOR UPDATE`).
		WithArgs(int64(7), int64(3)).
		WillReturnRows(associationRows(11, 7, 3, 100, 0))
	mock.ExpectExec(`DELETE FROM payments`).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM payment_log`).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM customer_businesses`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE businesses`).
		WithArgs(int64(3), -1, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customer_businesses`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := svc.Unsubscribe(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsubscribeUnknownAssociation(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(customerRows(7, "cust-1"))
	mock.ExpectQuery(`FROM customer_businesses\s+WHERE customer_id = \$1 AND business_id = \$2\s+FOR UPDATE`).
		WithArgs(int64(7), int64(9)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Unsubscribe(context.Background(), 7, 9)
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func emptyLogRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "payment_id", "amount", "paid_at", "month", "year"})
}

func TestListPrefersLatestLedgerDue(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM customer_businesses cb`).
		WithArgs(int64(3), "%%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	// The cached association due is stale once a newer ledger entry exists;
	// the listing pulls the pair's newest remaining amount instead.
	mock.ExpectQuery(`COALESCE\(lp\.remaining_amount, cb\.total_due_amount\)`).
		WithArgs(int64(3), "%%", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "uuid", "business_id", "monthly_fee",
			"payable_amount", "total_payment_amount", "total_due_amount",
		}).AddRow(int64(7), "Asha", "9000000001", "cust-1", int64(3), 100.0, 100.0, 500.0, 30.0))
	mock.ExpectQuery(`FROM payment_log`).
		WithArgs(int64(7), int64(3), 12).
		WillReturnRows(emptyLogRows())

	list, err := svc.List(context.Background(), 3, "", "", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, 30.0, list.Customers[0].BusinessInfo.TotalDueAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReturnsMultipleMatches(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectQuery(`c\.name ILIKE \$2 OR c\.phone ILIKE \$2 OR c\.uuid ILIKE \$2`).
		WithArgs(int64(3), "%as%").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "uuid", "business_id", "monthly_fee",
			"payable_amount", "total_payment_amount", "total_due_amount",
		}).
			AddRow(int64(7), "Asha", "9000000001", "cust-1", int64(3), 100.0, 100.0, 500.0, 50.0).
			AddRow(int64(8), "Asif", "9000000002", "cust-2", int64(3), 120.0, 120.0, 0.0, 0.0))
	mock.ExpectQuery(`FROM payment_log`).
		WithArgs(int64(7), int64(3), 12).
		WillReturnRows(emptyLogRows())
	mock.ExpectQuery(`FROM payment_log`).
		WithArgs(int64(8), int64(3), 12).
		WillReturnRows(emptyLogRows())

	customers, err := svc.Search(context.Background(), 3, "as")
	require.NoError(t, err)
	assert.Len(t, customers, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRejectsEmptyTerm(t *testing.T) {
	svc, _ := newCustomerService(t)

	_, err := svc.Search(context.Background(), 3, "  ")
	assert.ErrorIs(t, err, billing.ErrInvalidArgument)
}

func TestUnpaidListSkipsZeroFeeAssociations(t *testing.T) {
	svc, mock := newCustomerService(t)

	mock.ExpectQuery(`cb\.monthly_fee > 0`).
		WithArgs(int64(3), 4, 2024).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "phone", "uuid", "monthly_fee", "total_due_amount",
		}).AddRow(int64(7), "Asha", "9000000001", "cust-1", 100.0, 50.0))

	unpaid, err := svc.UnpaidList(context.Background(), 3, 4, 2024)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, 100.0, unpaid[0].MonthlyFee)
	assert.NoError(t, mock.ExpectationsWereMet())
}
