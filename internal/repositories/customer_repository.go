package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"billing-backend/internal/billing"
	"billing-backend/internal/models"
)

type CustomerRepository struct {
	pool Querier
}

func NewCustomerRepository(pool Querier) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `id, name, phone, uuid, main_total_payment, created_at, updated_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.UUID,
		&c.MainTotalPayment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, q Querier, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, phone, uuid)
		VALUES ($1, $2, $3)
		RETURNING id, main_total_payment, created_at, updated_at`

	err := q.QueryRow(ctx, query, c.Name, c.Phone, c.UUID).Scan(
		&c.ID, &c.MainTotalPayment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) Get(ctx context.Context, id int64) (*models.Customer, error) {
	return r.GetQ(ctx, r.pool, id)
}

func (r *CustomerRepository) GetQ(ctx context.Context, q Querier, id int64) (*models.Customer, error) {
	c, err := scanCustomer(q.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("customer %d not found", id)
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) GetByUUID(ctx context.Context, q Querier, uuid string) (*models.Customer, error) {
	c, err := scanCustomer(q.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE uuid = $1`, uuid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("customer %q not found", uuid)
		}
		return nil, fmt.Errorf("get customer by uuid: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) UpdateContact(ctx context.Context, id int64, req *models.UpdateCustomerRequest) (*models.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, phone = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + customerColumns

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id, req.Name, req.Phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("customer %d not found", id)
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// AddMainTotalPayment moves the lifetime paid counter. Negative deltas floor
// at zero so a reversed payment can never drive the counter below nothing.
func (r *CustomerRepository) AddMainTotalPayment(ctx context.Context, q Querier, id int64, delta float64) error {
	query := `
		UPDATE customers
		SET main_total_payment = GREATEST(main_total_payment + $2, 0),
		    updated_at = NOW()
		WHERE id = $1`

	tag, err := q.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjust main total payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("customer %d not found", id)
	}
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, q Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.NotFoundf("customer %d not found", id)
	}
	return nil
}

// customerSortColumns whitelists the sortable columns of the per-business
// customer listing. Anything else falls back to the name column.
var customerSortColumns = map[string]string{
	"name":             "c.name",
	"phone":            "c.phone",
	"created_at":       "c.created_at",
	"monthly_fee":      "cb.monthly_fee",
	"total_due_amount": "cb.total_due_amount",
}

func orderClause(columns map[string]string, field, order, fallback string) string {
	col, ok := columns[field]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if order == "desc" {
		dir = "DESC"
	}
	return col + " " + dir
}

// ListByBusiness pages customers subscribed to one business, optionally
// filtered by a name or phone search term. The displayed due is the pair's
// newest ledger entry's remaining amount; the cached association total is
// only used when the ledger is empty.
func (r *CustomerRepository) ListByBusiness(ctx context.Context, businessID int64, search, sortField, sortOrder string, page, limit int) ([]models.CustomerWithAssociation, int, error) {
	offset := (page - 1) * limit
	pattern := "%" + search + "%"

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM customer_businesses cb
		JOIN customers c ON c.id = cb.customer_id
		WHERE cb.business_id = $1
		  AND ($2 = '%%' OR c.name ILIKE $2 OR c.phone ILIKE $2)`,
		businessID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, c.uuid,
		       cb.business_id, cb.monthly_fee, cb.payable_amount,
		       cb.total_payment_amount,
		       COALESCE(lp.remaining_amount, cb.total_due_amount)
		FROM customer_businesses cb
		JOIN customers c ON c.id = cb.customer_id
		LEFT JOIN LATERAL (
			SELECT p.remaining_amount
			FROM payments p
			WHERE p.customer_id = cb.customer_id AND p.business_id = cb.business_id
			ORDER BY p.due_date DESC, p.id DESC
			LIMIT 1
		) lp ON TRUE
		WHERE cb.business_id = $1
		  AND ($2 = '%%' OR c.name ILIKE $2 OR c.phone ILIKE $2)
		ORDER BY `+orderClause(customerSortColumns, sortField, sortOrder, "c.name")+`
		LIMIT $3 OFFSET $4`,
		businessID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]models.CustomerWithAssociation, 0)
	for rows.Next() {
		var c models.CustomerWithAssociation
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Phone, &c.UUID,
			&c.BusinessInfo.BusinessID, &c.BusinessInfo.MonthlyFee,
			&c.BusinessInfo.PayableAmount, &c.BusinessInfo.TotalPaymentAmount,
			&c.BusinessInfo.TotalDueAmount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

// Search matches customers of one business by name, phone, or uuid. At most
// ten rows come back.
func (r *CustomerRepository) Search(ctx context.Context, businessID int64, term string) ([]models.CustomerWithAssociation, error) {
	pattern := "%" + term + "%"
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, c.uuid,
		       cb.business_id, cb.monthly_fee, cb.payable_amount,
		       cb.total_payment_amount, cb.total_due_amount
		FROM customer_businesses cb
		JOIN customers c ON c.id = cb.customer_id
		WHERE cb.business_id = $1
		  AND (c.name ILIKE $2 OR c.phone ILIKE $2 OR c.uuid ILIKE $2)
		ORDER BY c.name
		LIMIT 10`,
		businessID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	customers := make([]models.CustomerWithAssociation, 0)
	for rows.Next() {
		var c models.CustomerWithAssociation
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Phone, &c.UUID,
			&c.BusinessInfo.BusinessID, &c.BusinessInfo.MonthlyFee,
			&c.BusinessInfo.PayableAmount, &c.BusinessInfo.TotalPaymentAmount,
			&c.BusinessInfo.TotalDueAmount,
		); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// GetByTerm resolves a customer by exact uuid or phone.
func (r *CustomerRepository) GetByTerm(ctx context.Context, term string) (*models.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE uuid = $1 OR phone = $1`, term))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.NotFoundf("no customer matches %q", term)
		}
		return nil, fmt.Errorf("get customer by term: %w", err)
	}
	return c, nil
}

// ListDue returns associations of one business that still carry a due,
// newest due first.
func (r *CustomerRepository) ListDue(ctx context.Context, businessID int64) ([]models.DueCustomer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, cb.total_due_amount, cb.monthly_fee
		FROM customer_businesses cb
		JOIN customers c ON c.id = cb.customer_id
		WHERE cb.business_id = $1 AND cb.total_due_amount > 0
		ORDER BY cb.total_due_amount DESC`,
		businessID)
	if err != nil {
		return nil, fmt.Errorf("list due customers: %w", err)
	}
	defer rows.Close()

	due := make([]models.DueCustomer, 0)
	for rows.Next() {
		var d models.DueCustomer
		if err := rows.Scan(&d.CustomerID, &d.CustomerName, &d.CustomerPhone, &d.DueAmount, &d.MonthlyFee); err != nil {
			return nil, fmt.Errorf("scan due customer: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// ListUnpaid returns customers of one business with no ledger entry in the
// given month.
func (r *CustomerRepository) ListUnpaid(ctx context.Context, businessID int64, month, year int) ([]models.UnpaidCustomer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.phone, c.uuid, cb.monthly_fee, cb.total_due_amount
		FROM customer_businesses cb
		JOIN customers c ON c.id = cb.customer_id
		WHERE cb.business_id = $1
		  AND cb.monthly_fee > 0
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.customer_id = c.id AND p.business_id = $1
			  AND EXTRACT(MONTH FROM p.due_date) = $2
			  AND EXTRACT(YEAR FROM p.due_date) = $3
		  )
		ORDER BY c.name`,
		businessID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list unpaid customers: %w", err)
	}
	defer rows.Close()

	unpaid := make([]models.UnpaidCustomer, 0)
	for rows.Next() {
		var u models.UnpaidCustomer
		if err := rows.Scan(&u.CustomerID, &u.Name, &u.Phone, &u.UUID, &u.MonthlyFee, &u.TotalDueAmount); err != nil {
			return nil, fmt.Errorf("scan unpaid customer: %w", err)
		}
		unpaid = append(unpaid, u)
	}
	return unpaid, rows.Err()
}
