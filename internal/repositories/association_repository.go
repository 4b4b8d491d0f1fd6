package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
)

// AssociationRepository manages the customer_businesses rows that hold each
// subscription's fee and running balance.
type AssociationRepository struct {
	pool Querier
}

func NewAssociationRepository(pool Querier) *AssociationRepository {
	return &AssociationRepository{pool: pool}
}

const associationColumns = `id, customer_id, business_id, monthly_fee, payable_amount,
	total_payment_amount, total_due_amount, created_at, updated_at`

func scanAssociation(row pgx.Row) (*models.BusinessAssociation, error) {
	var a models.BusinessAssociation
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.BusinessID,
		&a.MonthlyFee, &a.PayableAmount,
		&a.TotalPaymentAmount, &a.TotalDueAmount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssociationRepository) Create(ctx context.Context, q Querier, a *models.BusinessAssociation) error {
	query := `
		INSERT INTO customer_businesses
			(customer_id, business_id, monthly_fee, payable_amount, total_payment_amount, total_due_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		a.CustomerID, a.BusinessID, a.MonthlyFee, a.PayableAmount,
		a.TotalPaymentAmount, a.TotalDueAmount,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create association: %w", err)
	}
	return nil
}

func (r *AssociationRepository) Get(ctx context.Context, q Querier, customerID, businessID int64) (*models.BusinessAssociation, error) {
	a, err := scanAssociation(q.QueryRow(ctx, `
		SELECT `+associationColumns+`
		FROM customer_businesses
		WHERE customer_id = $1 AND business_id = $2`,
		customerID, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("customer %d is not subscribed to business %d", customerID, businessID)
		}
		return nil, fmt.Errorf("get association: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the association row for the rest of the transaction.
// Settlement serializes on this lock, so two payments against the same
// subscription cannot interleave.
func (r *AssociationRepository) GetForUpdate(ctx context.Context, q Querier, customerID, businessID int64) (*models.BusinessAssociation, error) {
	a, err := scanAssociation(q.QueryRow(ctx, `
		SELECT `+associationColumns+`
		FROM customer_businesses
		WHERE customer_id = $1 AND business_id = $2
		FOR UPDATE`,
		customerID, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("customer %d is not subscribed to business %d", customerID, businessID)
		}
		return nil, fmt.Errorf("lock association: %w", err)
	}
	return a, nil
}

func (r *AssociationRepository) ListByCustomer(ctx context.Context, q Querier, customerID int64) ([]models.BusinessAssociation, error) {
	rows, err := q.Query(ctx, `
		SELECT `+associationColumns+`
		FROM customer_businesses
		WHERE customer_id = $1
		ORDER BY created_at`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}
	defer rows.Close()

	assocs := make([]models.BusinessAssociation, 0)
	for rows.Next() {
		var a models.BusinessAssociation
		if err := rows.Scan(
			&a.ID, &a.CustomerID, &a.BusinessID,
			&a.MonthlyFee, &a.PayableAmount,
			&a.TotalPaymentAmount, &a.TotalDueAmount,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

func (r *AssociationRepository) CountByCustomer(ctx context.Context, q Querier, customerID int64) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM customer_businesses WHERE customer_id = $1`,
		customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count associations: %w", err)
	}
	return count, nil
}

// CountByBusiness counts active subscriptions of one business.
func (r *AssociationRepository) CountByBusiness(ctx context.Context, businessID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM customer_businesses WHERE business_id = $1`,
		businessID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count business customers: %w", err)
	}
	return count, nil
}

// UpdateFee rewrites the subscription's fee and payable amount.
func (r *AssociationRepository) UpdateFee(ctx context.Context, q Querier, id int64, monthlyFee, payable float64) error {
	tag, err := q.Exec(ctx, `
		UPDATE customer_businesses
		SET monthly_fee = $2, payable_amount = $3, updated_at = NOW()
		WHERE id = $1`,
		id, monthlyFee, payable)
	if err != nil {
		return fmt.Errorf("update association fee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("association %d not found", id)
	}
	return nil
}

// ApplySettlement credits the paid counter and overwrites the running due
// with the remaining balance computed by the settlement.
func (r *AssociationRepository) ApplySettlement(ctx context.Context, q Querier, id int64, paid, newDue float64) error {
	tag, err := q.Exec(ctx, `
		UPDATE customer_businesses
		SET total_payment_amount = GREATEST(total_payment_amount + $2, 0),
		    total_due_amount = GREATEST($3, 0),
		    updated_at = NOW()
		WHERE id = $1`,
		id, paid, newDue)
	if err != nil {
		return fmt.Errorf("apply settlement to association: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("association %d not found", id)
	}
	return nil
}

// ReversePayment undoes a deleted payment: paid drops, due grows by the
// restored balance, both floored at zero.
func (r *AssociationRepository) ReversePayment(ctx context.Context, q Querier, id int64, paid, dueDelta float64) error {
	tag, err := q.Exec(ctx, `
		UPDATE customer_businesses
		SET total_payment_amount = GREATEST(total_payment_amount - $2, 0),
		    total_due_amount = GREATEST(total_due_amount + $3, 0),
		    updated_at = NOW()
		WHERE id = $1`,
		id, paid, dueDelta)
	if err != nil {
		return fmt.Errorf("reverse payment on association: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("association %d not found", id)
	}
	return nil
}

func (r *AssociationRepository) Delete(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM customer_businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("association %d not found", id)
	}
	return nil
}
