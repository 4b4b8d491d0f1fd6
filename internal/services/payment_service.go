package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"billing-backend/internal/billing"
	"billing-backend/internal/cache"
	"billing-backend/internal/metrics"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

const cycleDateLayout = "2006-01-02"

// PaymentService is the settlement engine. Every operation runs one
// serializable transaction so the ledger, the association balance, and the
// customer/business aggregates always move together.
type PaymentService struct {
	db         DB
	payments   *repositories.PaymentRepository
	logs       *repositories.PaymentLogRepository
	assocs     *repositories.AssociationRepository
	customers  *repositories.CustomerRepository
	businesses *repositories.BusinessRepository
}

func NewPaymentService(
	db DB,
	payments *repositories.PaymentRepository,
	logs *repositories.PaymentLogRepository,
	assocs *repositories.AssociationRepository,
	customers *repositories.CustomerRepository,
	businesses *repositories.BusinessRepository,
) *PaymentService {
	return &PaymentService{
		db:         db,
		payments:   payments,
		logs:       logs,
		assocs:     assocs,
		customers:  customers,
		businesses: businesses,
	}
}

// mapTxError converts serialization failures into the retryable conflict
// sentinel. Everything else passes through.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return billing.Conflictf("concurrent settlement, retry")
	}
	return err
}

// Record settles a payment against a billing cycle: previous due first, the
// current fee second. The prior unsettled ledger entry, the new entry, the
// association balance, and the customer and business aggregates all commit
// in one serializable transaction.
func (s *PaymentService) Record(ctx context.Context, req *models.CreatePaymentRequest) (*models.SettlementResult, error) {
	if req.PaidAmount <= 0 {
		return nil, billing.InvalidArgumentf("paid amount must be positive")
	}
	cycleDate, err := time.Parse(cycleDateLayout, req.DueDate)
	if err != nil {
		return nil, billing.InvalidArgumentf("due date %q is not a valid date", req.DueDate)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	customer, err := s.customers.GetByUUID(ctx, tx, req.UUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.businesses.GetQ(ctx, tx, req.BusinessID); err != nil {
		return nil, err
	}

	// Locking the association row serializes settlements per subscription.
	assoc, err := s.assocs.GetForUpdate(ctx, tx, customer.ID, req.BusinessID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, billing.InvalidArgumentf("customer %s is not subscribed to business %d", req.UUID, req.BusinessID)
		}
		return nil, err
	}

	alloc := allocate(assoc.TotalDueAmount, assoc.MonthlyFee, req.PaidAmount)

	// The newest unsettled entry of an earlier cycle absorbs whatever part
	// of this payment covered previous due. It is reported back only when
	// actually modified.
	var updatedPrev *models.Payment
	prev, err := s.payments.LatestUnsettledBefore(ctx, tx, customer.ID, req.BusinessID, cycleDate)
	if err != nil {
		return nil, err
	}
	if prev != nil && alloc.SettledPrevDue > 0 {
		prev.RemainingAmount -= alloc.SettledPrevDue
		if prev.RemainingAmount < 0 {
			prev.RemainingAmount = 0
		}
		prev.Status = models.StatusForRemaining(prev.RemainingAmount)
		if err := s.payments.UpdateSettlement(ctx, tx, prev); err != nil {
			return nil, err
		}
		updatedPrev = prev
	}

	payment := &models.Payment{
		CustomerID:      customer.ID,
		BusinessID:      req.BusinessID,
		DueAmount:       alloc.DueAmount,
		PaidAmount:      req.PaidAmount,
		RemainingAmount: alloc.Remaining,
		DueDate:         cycleDate,
		Status:          alloc.Status,
		SettledPrevDue:  alloc.SettledPrevDue,
		SettledCurFee:   alloc.SettledCurFee,
	}
	if err := s.payments.Create(ctx, tx, payment); err != nil {
		return nil, err
	}

	if err := s.assocs.ApplySettlement(ctx, tx, assoc.ID, req.PaidAmount, alloc.Remaining); err != nil {
		return nil, err
	}
	entry := &models.PaymentLogEntry{
		PaymentID: &payment.ID,
		Amount:    req.PaidAmount,
		Date:      time.Now(),
		Month:     int(cycleDate.Month()),
		Year:      cycleDate.Year(),
	}
	if err := s.logs.Add(ctx, tx, customer.ID, req.BusinessID, entry); err != nil {
		return nil, err
	}
	if err := s.customers.AddMainTotalPayment(ctx, tx, customer.ID, req.PaidAmount); err != nil {
		return nil, err
	}
	if err := s.businesses.ApplyPayment(ctx, tx, req.BusinessID, req.PaidAmount, alloc.Remaining); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SettlementsTotal.WithLabelValues("record", "conflict").Inc()
		return nil, mapTxError(err)
	}

	metrics.SettlementsTotal.WithLabelValues("record", "ok").Inc()
	metrics.SettledAmount.Add(req.PaidAmount)
	cache.Delete(ctx, overviewCacheKey(req.BusinessID))

	return &models.SettlementResult{NewPayment: payment, UpdatedPreviousPayment: updatedPrev}, nil
}

// Correct tops up an existing payment's paid amount and propagates only the
// delta to the association, customer, and business. The association due is
// overwritten with the payment's new remaining amount.
func (s *PaymentService) Correct(ctx context.Context, paymentID int64, req *models.CorrectPaymentRequest) (*models.Payment, error) {
	if req.PaidAmount < 0 {
		return nil, billing.InvalidArgumentf("added amount must not be negative")
	}
	var newDueDate *time.Time
	if req.DueDate != "" {
		d, err := time.Parse(cycleDateLayout, req.DueDate)
		if err != nil {
			return nil, billing.InvalidArgumentf("due date %q is not a valid date", req.DueDate)
		}
		newDueDate = &d
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin correction: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := s.payments.GetForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.GetQ(ctx, tx, payment.CustomerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.businesses.GetQ(ctx, tx, payment.BusinessID); err != nil {
		return nil, err
	}

	payment.PaidAmount += req.PaidAmount
	payment.RemainingAmount = payment.DueAmount - payment.PaidAmount
	if payment.RemainingAmount < 0 {
		payment.RemainingAmount = 0
	}
	payment.Status = models.StatusForRemaining(payment.RemainingAmount)
	if newDueDate != nil {
		payment.DueDate = *newDueDate
	}
	if err := s.payments.UpdateSettlement(ctx, tx, payment); err != nil {
		return nil, err
	}

	// The subscription may have been removed since the payment was made;
	// the ledger correction still stands in that case.
	assoc, err := s.assocs.Get(ctx, tx, payment.CustomerID, payment.BusinessID)
	if err != nil && !errors.Is(err, billing.ErrNotFound) {
		return nil, err
	}
	if assoc != nil {
		if err := s.assocs.ApplySettlement(ctx, tx, assoc.ID, req.PaidAmount, payment.RemainingAmount); err != nil {
			return nil, err
		}
		entry := &models.PaymentLogEntry{
			PaymentID: &payment.ID,
			Amount:    req.PaidAmount,
			Date:      payment.DueDate,
			Month:     int(payment.DueDate.Month()),
			Year:      payment.DueDate.Year(),
		}
		if err := s.logs.Add(ctx, tx, customer.ID, payment.BusinessID, entry); err != nil {
			return nil, err
		}
	}

	if err := s.customers.AddMainTotalPayment(ctx, tx, customer.ID, req.PaidAmount); err != nil {
		return nil, err
	}
	if err := s.businesses.ApplyPayment(ctx, tx, payment.BusinessID, req.PaidAmount, payment.RemainingAmount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SettlementsTotal.WithLabelValues("correct", "conflict").Inc()
		return nil, mapTxError(err)
	}

	metrics.SettlementsTotal.WithLabelValues("correct", "ok").Inc()
	metrics.SettledAmount.Add(req.PaidAmount)
	cache.Delete(ctx, overviewCacheKey(payment.BusinessID))

	return payment, nil
}

// Delete reverses one payment's effect on every aggregate and removes the
// ledger row.
func (s *PaymentService) Delete(ctx context.Context, paymentID int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin deletion: %w", err)
	}
	defer tx.Rollback(ctx)

	businessID, err := s.deleteInTx(ctx, tx, paymentID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SettlementsTotal.WithLabelValues("delete", "conflict").Inc()
		return mapTxError(err)
	}
	metrics.SettlementsTotal.WithLabelValues("delete", "ok").Inc()
	cache.Delete(ctx, overviewCacheKey(businessID))
	return nil
}

// DeleteMany reverses a set of payments inside one transaction. A payment
// whose customer or business no longer exists aborts the whole batch.
func (s *PaymentService) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, billing.InvalidArgumentf("no payment ids given")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("begin batch deletion: %w", err)
	}
	defer tx.Rollback(ctx)

	businessIDs := make(map[int64]struct{})
	for _, id := range ids {
		businessID, err := s.deleteInTx(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		businessIDs[businessID] = struct{}{}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.SettlementsTotal.WithLabelValues("delete", "conflict").Inc()
		return 0, mapTxError(err)
	}
	metrics.SettlementsTotal.WithLabelValues("delete", "ok").Inc()
	for businessID := range businessIDs {
		cache.Delete(ctx, overviewCacheKey(businessID))
	}
	return len(ids), nil
}

// deleteInTx applies the restoration formula for one payment: paid amounts
// come back out of every aggregate (floored at 0) and the due this payment
// had cleared is restored as dueAmount - paidAmount.
func (s *PaymentService) deleteInTx(ctx context.Context, tx pgx.Tx, paymentID int64) (int64, error) {
	payment, err := s.payments.GetForUpdate(ctx, tx, paymentID)
	if err != nil {
		return 0, err
	}
	customer, err := s.customers.GetQ(ctx, tx, payment.CustomerID)
	if err != nil {
		return 0, err
	}
	if _, err := s.businesses.GetQ(ctx, tx, payment.BusinessID); err != nil {
		return 0, err
	}

	restoredDue := payment.DueAmount - payment.PaidAmount

	assoc, err := s.assocs.Get(ctx, tx, payment.CustomerID, payment.BusinessID)
	if err != nil && !errors.Is(err, billing.ErrNotFound) {
		return 0, err
	}
	if assoc != nil {
		if err := s.assocs.ReversePayment(ctx, tx, assoc.ID, payment.PaidAmount, restoredDue); err != nil {
			return 0, err
		}
	}
	if err := s.logs.DeleteByPayment(ctx, tx, payment.ID); err != nil {
		return 0, err
	}
	if err := s.customers.AddMainTotalPayment(ctx, tx, customer.ID, -payment.PaidAmount); err != nil {
		return 0, err
	}
	if err := s.businesses.ReversePayment(ctx, tx, payment.BusinessID, payment.PaidAmount, restoredDue); err != nil {
		return 0, err
	}
	if err := s.payments.Delete(ctx, tx, payment.ID); err != nil {
		return 0, err
	}
	return payment.BusinessID, nil
}

func normalizeFilter(f models.PaymentFilter, defaultSort string) models.PaymentFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	if f.Status == "" {
		f.Status = "all"
	}
	if f.SortField == "" {
		f.SortField = defaultSort
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	return f
}

// List pages the ledger of one business.
func (s *PaymentService) List(ctx context.Context, businessID int64, f models.PaymentFilter) (*models.PaymentList, error) {
	f = normalizeFilter(f, "due_date")

	payments, total, err := s.payments.ListByBusiness(ctx, businessID, f)
	if err != nil {
		return nil, err
	}
	return &models.PaymentList{
		Payments:    payments,
		CurrentPage: f.Page,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		TotalCount:  total,
	}, nil
}

// SearchByCustomer pages one customer's ledger within a business. The term
// resolves a customer by exact uuid or phone; an unknown customer or a
// missing subscription yields an empty page rather than an error.
func (s *PaymentService) SearchByCustomer(ctx context.Context, businessID int64, term string, f models.PaymentFilter) (*models.PaymentList, error) {
	if strings.TrimSpace(term) == "" {
		return nil, billing.InvalidArgumentf("search term is required")
	}
	f = normalizeFilter(f, "created_at")
	empty := &models.PaymentList{
		Payments:    []models.PaymentWithCustomer{},
		CurrentPage: f.Page,
	}

	customer, err := s.customers.GetByTerm(ctx, term)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return empty, nil
		}
		return nil, err
	}
	if _, err := s.assocs.Get(ctx, s.db, customer.ID, businessID); err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return empty, nil
		}
		return nil, err
	}

	payments, total, err := s.payments.ListByPairPaged(ctx, customer.ID, businessID, f)
	if err != nil {
		return nil, err
	}
	return &models.PaymentList{
		Payments:    payments,
		CurrentPage: f.Page,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		TotalCount:  total,
	}, nil
}

// DueByMonth lists every ledger entry still carrying a due in one calendar
// month, across all businesses.
func (s *PaymentService) DueByMonth(ctx context.Context, month, year int) ([]models.PaymentWithCustomer, error) {
	if month < 1 || month > 12 {
		return nil, billing.InvalidArgumentf("month %d out of range", month)
	}
	return s.payments.ListDueByMonth(ctx, month, year)
}

// Details resolves one payment with customer and business joined in.
func (s *PaymentService) Details(ctx context.Context, paymentID int64) (*models.PaymentDetails, error) {
	return s.payments.GetDetails(ctx, paymentID)
}
