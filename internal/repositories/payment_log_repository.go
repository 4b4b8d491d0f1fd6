package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/models"
)

// PaymentLogRepository maintains the per-association display cache of
// payments. Rows here mirror the ledger; listings read this table so the
// hot customer views never aggregate the ledger.
type PaymentLogRepository struct {
	pool Querier
}

func NewPaymentLogRepository(pool Querier) *PaymentLogRepository {
	return &PaymentLogRepository{pool: pool}
}

func (r *PaymentLogRepository) Add(ctx context.Context, q Querier, customerID, businessID int64, e *models.PaymentLogEntry) error {
	query := `
		INSERT INTO payment_log (customer_id, business_id, payment_id, amount, paid_at, month, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := q.QueryRow(ctx, query,
		customerID, businessID, e.PaymentID, e.Amount, e.Date, e.Month, e.Year,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("add payment log entry: %w", err)
	}
	return nil
}

func (r *PaymentLogRepository) DeleteByPayment(ctx context.Context, q Querier, paymentID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM payment_log WHERE payment_id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment log entries: %w", err)
	}
	return nil
}

func (r *PaymentLogRepository) DeleteByPair(ctx context.Context, q Querier, customerID, businessID int64) error {
	_, err := q.Exec(ctx,
		`DELETE FROM payment_log WHERE customer_id = $1 AND business_id = $2`,
		customerID, businessID)
	if err != nil {
		return fmt.Errorf("delete payment log for pair: %w", err)
	}
	return nil
}

// ListByPair returns an association's cached history, newest first.
func (r *PaymentLogRepository) ListByPair(ctx context.Context, customerID, businessID int64, limit int) ([]models.PaymentLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payment_id, amount, paid_at, month, year
		FROM payment_log
		WHERE customer_id = $1 AND business_id = $2
		ORDER BY paid_at DESC
		LIMIT $3`,
		customerID, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.PaymentLogEntry, 0)
	for rows.Next() {
		var e models.PaymentLogEntry
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Amount, &e.Date, &e.Month, &e.Year); err != nil {
			return nil, fmt.Errorf("scan payment log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastForPair returns the most recent cached entry, or nil when the
// association has no payments yet.
func (r *PaymentLogRepository) LastForPair(ctx context.Context, customerID, businessID int64) (*models.PaymentLogEntry, error) {
	var e models.PaymentLogEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, payment_id, amount, paid_at, month, year
		FROM payment_log
		WHERE customer_id = $1 AND business_id = $2
		ORDER BY paid_at DESC
		LIMIT 1`,
		customerID, businessID).Scan(&e.ID, &e.PaymentID, &e.Amount, &e.Date, &e.Month, &e.Year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last payment log entry: %w", err)
	}
	return &e, nil
}
