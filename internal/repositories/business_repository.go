package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
)

type BusinessRepository struct {
	pool Querier
}

func NewBusinessRepository(pool Querier) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

const businessColumns = `id, name, phone, address, total_customer, total_income, total_due, created_at, updated_at`

func scanBusiness(row pgx.Row) (*models.Business, error) {
	var b models.Business
	err := row.Scan(
		&b.ID, &b.Name, &b.Phone, &b.Address,
		&b.TotalCustomer, &b.TotalIncome, &b.TotalDue,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BusinessRepository) Create(ctx context.Context, b *models.Business) error {
	query := `
		INSERT INTO businesses (name, phone, address)
		VALUES ($1, $2, $3)
		RETURNING id, total_customer, total_income, total_due, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, b.Name, b.Phone, b.Address).Scan(
		&b.ID, &b.TotalCustomer, &b.TotalIncome, &b.TotalDue,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create business: %w", err)
	}
	return nil
}

func (r *BusinessRepository) Get(ctx context.Context, id int64) (*models.Business, error) {
	return r.GetQ(ctx, r.pool, id)
}

// GetQ reads a business on the supplied querier, so settlement transactions
// see their own writes.
func (r *BusinessRepository) GetQ(ctx context.Context, q Querier, id int64) (*models.Business, error) {
	b, err := scanBusiness(q.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("business %d not found", id)
		}
		return nil, fmt.Errorf("get business: %w", err)
	}
	return b, nil
}

func (r *BusinessRepository) List(ctx context.Context) ([]models.Business, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+businessColumns+` FROM businesses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	businesses := make([]models.Business, 0)
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(
			&b.ID, &b.Name, &b.Phone, &b.Address,
			&b.TotalCustomer, &b.TotalIncome, &b.TotalDue,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

func (r *BusinessRepository) Update(ctx context.Context, id int64, req *models.UpdateBusinessRequest) (*models.Business, error) {
	query := `
		UPDATE businesses
		SET name = $2, phone = $3, address = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + businessColumns

	b, err := scanBusiness(r.pool.QueryRow(ctx, query, id, req.Name, req.Phone, req.Address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("business %d not found", id)
		}
		return nil, fmt.Errorf("update business: %w", err)
	}
	return b, nil
}

func (r *BusinessRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("business %d not found", id)
	}
	return nil
}

// ApplyPayment credits income and overwrites the running due with the
// customer's remaining balance. The overwrite matches the per-customer
// settlement result, so the business due mirrors the last settled customer.
func (r *BusinessRepository) ApplyPayment(ctx context.Context, q Querier, id int64, income, newTotalDue float64) error {
	query := `
		UPDATE businesses
		SET total_income = GREATEST(total_income + $2, 0),
		    total_due = GREATEST($3, 0),
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, income, newTotalDue)
	if err != nil {
		return fmt.Errorf("apply payment to business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("business %d not found", id)
	}
	return nil
}

// ReversePayment undoes a deleted payment's effect on the business totals.
// Income drops by the paid amount; due absorbs the restored balance. Both
// floors stay at zero.
func (r *BusinessRepository) ReversePayment(ctx context.Context, q Querier, id int64, paid, dueDelta float64) error {
	query := `
		UPDATE businesses
		SET total_income = GREATEST(total_income - $2, 0),
		    total_due = GREATEST(total_due + $3, 0),
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, paid, dueDelta)
	if err != nil {
		return fmt.Errorf("reverse payment on business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("business %d not found", id)
	}
	return nil
}

// AdjustTotals shifts the cached customer count and due when subscriptions
// are added or removed.
func (r *BusinessRepository) AdjustTotals(ctx context.Context, q Querier, id int64, customerDelta int, dueDelta float64) error {
	query := `
		UPDATE businesses
		SET total_customer = GREATEST(total_customer + $2, 0),
		    total_due = GREATEST(total_due + $3, 0),
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, customerDelta, dueDelta)
	if err != nil {
		return fmt.Errorf("adjust business totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("business %d not found", id)
	}
	return nil
}

// SetTotals writes recomputed aggregates back after an overview refresh.
func (r *BusinessRepository) SetTotals(ctx context.Context, id int64, customers int, income, due float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE businesses
		SET total_customer = $2, total_income = $3, total_due = $4, updated_at = NOW()
		WHERE id = $1`,
		id, customers, income, due)
	if err != nil {
		return fmt.Errorf("set business totals: %w", err)
	}
	return nil
}
