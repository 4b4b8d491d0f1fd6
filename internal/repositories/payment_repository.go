package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
)

// PaymentRepository owns the payments ledger. Every amount the rest of the
// system displays is derived from rows written here.
type PaymentRepository struct {
	pool Querier
}

func NewPaymentRepository(pool Querier) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `id, customer_id, business_id, due_amount, paid_amount,
	remaining_amount, due_date, status, settled_previous_due, settled_current_fee,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.BusinessID,
		&p.DueAmount, &p.PaidAmount, &p.RemainingAmount,
		&p.DueDate, &p.Status, &p.SettledPrevDue, &p.SettledCurFee,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, q Querier, p *models.Payment) error {
	query := `
		INSERT INTO payments
			(customer_id, business_id, due_amount, paid_amount, remaining_amount,
			 due_date, status, settled_previous_due, settled_current_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		p.CustomerID, p.BusinessID, p.DueAmount, p.PaidAmount, p.RemainingAmount,
		p.DueDate, p.Status, p.SettledPrevDue, p.SettledCurFee,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id int64) (*models.Payment, error) {
	return r.GetQ(ctx, r.pool, id)
}

func (r *PaymentRepository) GetQ(ctx context.Context, q Querier, id int64) (*models.Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("payment %d not found", id)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the ledger row for correction or deletion.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, q Querier, id int64) (*models.Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("payment %d not found", id)
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return p, nil
}

// LatestUnsettledBefore finds the newest not-fully-settled entry of one
// subscription strictly before the given cycle. Settlement reduces this
// entry's remaining when a new payment covers previous due. Returns nil with
// no error when there is no such entry.
func (r *PaymentRepository) LatestUnsettledBefore(ctx context.Context, q Querier, customerID, businessID int64, before time.Time) (*models.Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE customer_id = $1 AND business_id = $2
		  AND due_date < $3 AND status <> 'settled'
		ORDER BY due_date DESC
		LIMIT 1
		FOR UPDATE`,
		customerID, businessID, before))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find unsettled payment: %w", err)
	}
	return p, nil
}

// UpdateSettlement rewrites the mutable settlement fields of one entry.
func (r *PaymentRepository) UpdateSettlement(ctx context.Context, q Querier, p *models.Payment) error {
	query := `
		UPDATE payments
		SET paid_amount = $2, remaining_amount = $3, status = $4,
		    settled_previous_due = $5, settled_current_fee = $6,
		    due_date = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := q.QueryRow(ctx, query,
		p.ID, p.PaidAmount, p.RemainingAmount, p.Status,
		p.SettledPrevDue, p.SettledCurFee, p.DueDate,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.NotFoundf("payment %d not found", p.ID)
		}
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Delete(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("payment %d not found", id)
	}
	return nil
}

// DeleteByPair clears the whole ledger of one subscription. Used when the
// subscription itself is removed.
func (r *PaymentRepository) DeleteByPair(ctx context.Context, q Querier, customerID, businessID int64) error {
	_, err := q.Exec(ctx,
		`DELETE FROM payments WHERE customer_id = $1 AND business_id = $2`,
		customerID, businessID)
	if err != nil {
		return fmt.Errorf("delete payments for pair: %w", err)
	}
	return nil
}

// paymentSortColumns whitelists the sortable columns of ledger listings.
// Anything else falls back to the cycle date.
var paymentSortColumns = map[string]string{
	"due_date":         "p.due_date",
	"created_at":       "p.created_at",
	"paid_amount":      "p.paid_amount",
	"remaining_amount": "p.remaining_amount",
	"due_amount":       "p.due_amount",
}

func paymentOrderClause(f models.PaymentFilter) string {
	return orderClause(paymentSortColumns, f.SortField, f.SortOrder, "p.due_date") + ", p.id DESC"
}

// ListByBusiness pages the ledger of one business with the customer joined
// in, newest cycle first unless the filter says otherwise.
func (r *PaymentRepository) ListByBusiness(ctx context.Context, businessID int64, f models.PaymentFilter) ([]models.PaymentWithCustomer, int, error) {
	where := `WHERE p.business_id = $1
		  AND ($2 = 'all' OR p.status = $2)
		  AND ($3 = 0 OR EXTRACT(MONTH FROM p.due_date) = $3)
		  AND ($4 = 0 OR EXTRACT(YEAR FROM p.due_date) = $4)`

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments p `+where,
		businessID, f.Status, f.Month, f.Year).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.customer_id, p.business_id, p.due_amount, p.paid_amount,
		       p.remaining_amount, p.due_date, p.status,
		       p.settled_previous_due, p.settled_current_fee,
		       p.created_at, p.updated_at,
		       c.name, c.phone, c.uuid
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		`+where+`
		ORDER BY `+paymentOrderClause(f)+`
		LIMIT $5 OFFSET $6`,
		businessID, f.Status, f.Month, f.Year, f.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	return scanPaymentsWithCustomer(rows, total)
}

// ListByPairPaged pages one subscription's ledger with the customer joined
// in. Backs the per-customer payment search.
func (r *PaymentRepository) ListByPairPaged(ctx context.Context, customerID, businessID int64, f models.PaymentFilter) ([]models.PaymentWithCustomer, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments p WHERE p.customer_id = $1 AND p.business_id = $2`,
		customerID, businessID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments for pair: %w", err)
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.customer_id, p.business_id, p.due_amount, p.paid_amount,
		       p.remaining_amount, p.due_date, p.status,
		       p.settled_previous_due, p.settled_current_fee,
		       p.created_at, p.updated_at,
		       c.name, c.phone, c.uuid
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		WHERE p.customer_id = $1 AND p.business_id = $2
		ORDER BY `+paymentOrderClause(f)+`
		LIMIT $3 OFFSET $4`,
		customerID, businessID, f.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments for pair: %w", err)
	}
	defer rows.Close()

	return scanPaymentsWithCustomer(rows, total)
}

// ListDueByMonth returns every not-fully-settled ledger entry falling in one
// calendar month, across all businesses, oldest cycle first.
func (r *PaymentRepository) ListDueByMonth(ctx context.Context, month, year int) ([]models.PaymentWithCustomer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.customer_id, p.business_id, p.due_amount, p.paid_amount,
		       p.remaining_amount, p.due_date, p.status,
		       p.settled_previous_due, p.settled_current_fee,
		       p.created_at, p.updated_at,
		       c.name, c.phone, c.uuid
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		WHERE EXTRACT(MONTH FROM p.due_date) = $1
		  AND EXTRACT(YEAR FROM p.due_date) = $2
		  AND p.status <> 'settled'
		ORDER BY p.due_date, p.id`,
		month, year)
	if err != nil {
		return nil, fmt.Errorf("list due payments: %w", err)
	}
	defer rows.Close()

	payments, _, err := scanPaymentsWithCustomer(rows, 0)
	return payments, err
}

func scanPaymentsWithCustomer(rows pgx.Rows, total int) ([]models.PaymentWithCustomer, int, error) {
	payments := make([]models.PaymentWithCustomer, 0)
	for rows.Next() {
		var p models.PaymentWithCustomer
		if err := rows.Scan(
			&p.ID, &p.CustomerID, &p.BusinessID, &p.DueAmount, &p.PaidAmount,
			&p.RemainingAmount, &p.DueDate, &p.Status,
			&p.SettledPrevDue, &p.SettledCurFee,
			&p.CreatedAt, &p.UpdatedAt,
			&p.CustomerName, &p.CustomerPhone, &p.CustomerUUID,
		); err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

// ListByPair returns the full ledger of one subscription, oldest first.
func (r *PaymentRepository) ListByPair(ctx context.Context, q Querier, customerID, businessID int64) ([]models.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE customer_id = $1 AND business_id = $2
		ORDER BY due_date, id`,
		customerID, businessID)
	if err != nil {
		return nil, fmt.Errorf("list payments for pair: %w", err)
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(
			&p.ID, &p.CustomerID, &p.BusinessID,
			&p.DueAmount, &p.PaidAmount, &p.RemainingAmount,
			&p.DueDate, &p.Status, &p.SettledPrevDue, &p.SettledCurFee,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetDetails resolves one payment with both parties joined in.
func (r *PaymentRepository) GetDetails(ctx context.Context, id int64) (*models.PaymentDetails, error) {
	var d models.PaymentDetails
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, c.uuid, p.customer_id, c.name, c.phone,
		       p.business_id, b.name,
		       p.paid_amount, p.remaining_amount, p.due_amount,
		       p.due_date, p.status, p.created_at, p.updated_at
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		JOIN businesses b ON b.id = p.business_id
		WHERE p.id = $1`,
		id).Scan(
		&d.ID, &d.UUID, &d.CustomerID, &d.CustomerName, &d.CustomerPhone,
		&d.BusinessID, &d.BusinessName,
		&d.PaidAmount, &d.RemainingAmount, &d.DueAmount,
		&d.DueDate, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("payment %d not found", id)
		}
		return nil, fmt.Errorf("get payment details: %w", err)
	}
	return &d, nil
}

// SumForBusinessYear recomputes income and outstanding due from the ledger
// for one business and year.
func (r *PaymentRepository) SumForBusinessYear(ctx context.Context, businessID int64, year int) (income, due float64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(paid_amount), 0), COALESCE(SUM(remaining_amount), 0)
		FROM payments
		WHERE business_id = $1 AND EXTRACT(YEAR FROM due_date) = $2`,
		businessID, year).Scan(&income, &due)
	if err != nil {
		return 0, 0, fmt.Errorf("sum payments: %w", err)
	}
	return income, due, nil
}

// MonthlyStats returns per-month income and due for one business and year.
// Months with no payments are absent from the result.
func (r *PaymentRepository) MonthlyStats(ctx context.Context, businessID int64, year int) (map[int]models.MonthlyIncomeDue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM due_date)::int AS month,
		       COALESCE(SUM(paid_amount), 0),
		       COALESCE(SUM(remaining_amount), 0)
		FROM payments
		WHERE business_id = $1 AND EXTRACT(YEAR FROM due_date) = $2
		GROUP BY month`,
		businessID, year)
	if err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[int]models.MonthlyIncomeDue)
	for rows.Next() {
		var month int
		var s models.MonthlyIncomeDue
		if err := rows.Scan(&month, &s.Income, &s.Due); err != nil {
			return nil, fmt.Errorf("scan monthly stats: %w", err)
		}
		stats[month] = s
	}
	return stats, rows.Err()
}

// DistinctYears lists ledger years for one business, newest first.
func (r *PaymentRepository) DistinctYears(ctx context.Context, businessID int64) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT EXTRACT(YEAR FROM due_date)::int AS year
		FROM payments
		WHERE business_id = $1
		ORDER BY year DESC`,
		businessID)
	if err != nil {
		return nil, fmt.Errorf("distinct years: %w", err)
	}
	defer rows.Close()

	years := make([]int, 0)
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// RecentByBusiness returns the latest ledger entries of one year with
// customers joined, newest cycle first.
func (r *PaymentRepository) RecentByBusiness(ctx context.Context, businessID int64, year, limit int) ([]models.RecentPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, c.name, c.phone, c.uuid,
		       p.due_amount, p.remaining_amount, p.paid_amount,
		       p.created_at, p.status
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		WHERE p.business_id = $1
		  AND EXTRACT(YEAR FROM p.due_date) = $2
		ORDER BY p.due_date DESC, p.id DESC
		LIMIT $3`,
		businessID, year, limit)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	defer rows.Close()

	recent := make([]models.RecentPayment, 0)
	for rows.Next() {
		var p models.RecentPayment
		if err := rows.Scan(
			&p.ID, &p.CustomerName, &p.CustomerPhone, &p.CustomerUUID,
			&p.PayableAmount, &p.RemainingAmount, &p.Amount,
			&p.Date, &p.Status,
		); err != nil {
			return nil, fmt.Errorf("scan recent payment: %w", err)
		}
		recent = append(recent, p)
	}
	return recent, rows.Err()
}
