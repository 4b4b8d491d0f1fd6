package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"billing-backend/internal/billing"
	"billing-backend/internal/cache"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

// CustomerService owns the association lifecycle and the customer-facing
// read paths.
type CustomerService struct {
	db         DB
	customers  *repositories.CustomerRepository
	assocs     *repositories.AssociationRepository
	payments   *repositories.PaymentRepository
	logs       *repositories.PaymentLogRepository
	businesses *repositories.BusinessRepository
}

func NewCustomerService(
	db DB,
	customers *repositories.CustomerRepository,
	assocs *repositories.AssociationRepository,
	payments *repositories.PaymentRepository,
	logs *repositories.PaymentLogRepository,
	businesses *repositories.BusinessRepository,
) *CustomerService {
	return &CustomerService{
		db:         db,
		customers:  customers,
		assocs:     assocs,
		payments:   payments,
		logs:       logs,
		businesses: businesses,
	}
}

// Subscribe associates a customer with a business. The customer is created
// when absent; re-subscribing only updates the fee and leaves the balance
// untouched.
func (s *CustomerService) Subscribe(ctx context.Context, req *models.SubscribeRequest) (*models.Customer, error) {
	if req.BusinessID == 0 {
		return nil, billing.InvalidArgumentf("business id is required")
	}
	if req.MonthlyFee < 0 {
		return nil, billing.InvalidArgumentf("monthly fee must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin subscribe: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.businesses.GetQ(ctx, tx, req.BusinessID); err != nil {
		return nil, err
	}

	var customer *models.Customer
	if req.UUID != "" {
		customer, err = s.customers.GetByUUID(ctx, tx, req.UUID)
		if err != nil && !errors.Is(err, billing.ErrNotFound) {
			return nil, err
		}
	}
	if customer == nil {
		if strings.TrimSpace(req.Name) == "" {
			return nil, billing.InvalidArgumentf("customer name is required")
		}
		customer = &models.Customer{
			Name:  req.Name,
			Phone: req.Phone,
			UUID:  req.UUID,
		}
		if customer.UUID == "" {
			customer.UUID = uuid.NewString()
		}
		if err := s.customers.Create(ctx, tx, customer); err != nil {
			return nil, err
		}
	}

	assoc, err := s.assocs.Get(ctx, tx, customer.ID, req.BusinessID)
	if err != nil && !errors.Is(err, billing.ErrNotFound) {
		return nil, err
	}
	if assoc != nil {
		if err := s.assocs.UpdateFee(ctx, tx, assoc.ID, req.MonthlyFee, req.MonthlyFee); err != nil {
			return nil, err
		}
	} else {
		assoc = &models.BusinessAssociation{
			CustomerID:    customer.ID,
			BusinessID:    req.BusinessID,
			MonthlyFee:    req.MonthlyFee,
			PayableAmount: req.MonthlyFee,
		}
		if err := s.assocs.Create(ctx, tx, assoc); err != nil {
			return nil, err
		}
		if err := s.businesses.AdjustTotals(ctx, tx, req.BusinessID, 1, 0); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapTxError(err)
	}
	cache.Delete(ctx, overviewCacheKey(req.BusinessID))
	return customer, nil
}

// Unsubscribe removes the association and everything hanging off it: the
// pair's ledger, its history cache, and the customer itself when no other
// subscriptions remain.
func (s *CustomerService) Unsubscribe(ctx context.Context, customerID, businessID int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin unsubscribe: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.unsubscribeInTx(ctx, tx, customerID, businessID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapTxError(err)
	}
	cache.Delete(ctx, overviewCacheKey(businessID))
	return nil
}

// UnsubscribeMany removes several customers from one business in a single
// transaction and reports how many were removed.
func (s *CustomerService) UnsubscribeMany(ctx context.Context, customerIDs []int64, businessID int64) (int, error) {
	if len(customerIDs) == 0 {
		return 0, billing.InvalidArgumentf("no customer ids given")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("begin batch unsubscribe: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, customerID := range customerIDs {
		if err := s.unsubscribeInTx(ctx, tx, customerID, businessID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapTxError(err)
	}
	cache.Delete(ctx, overviewCacheKey(businessID))
	return len(customerIDs), nil
}

func (s *CustomerService) unsubscribeInTx(ctx context.Context, tx repositories.Querier, customerID, businessID int64) error {
	customer, err := s.customers.GetQ(ctx, tx, customerID)
	if err != nil {
		return err
	}
	// The lock keeps a concurrent settlement from moving the due between
	// this read and the business decrement below.
	assoc, err := s.assocs.GetForUpdate(ctx, tx, customerID, businessID)
	if err != nil {
		return err
	}

	if err := s.payments.DeleteByPair(ctx, tx, customerID, businessID); err != nil {
		return err
	}
	if err := s.logs.DeleteByPair(ctx, tx, customerID, businessID); err != nil {
		return err
	}
	if err := s.assocs.Delete(ctx, tx, assoc.ID); err != nil {
		return err
	}
	if err := s.businesses.AdjustTotals(ctx, tx, businessID, -1, -assoc.TotalDueAmount); err != nil {
		return err
	}

	remaining, err := s.assocs.CountByCustomer(ctx, tx, customerID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := s.customers.Delete(ctx, tx, customer.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateContact changes a customer's name and phone.
func (s *CustomerService) UpdateContact(ctx context.Context, customerID int64, req *models.UpdateCustomerRequest) (*models.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, billing.InvalidArgumentf("customer name is required")
	}
	return s.customers.UpdateContact(ctx, customerID, req)
}

// List pages one business's customers with their association info and
// recent history attached. The displayed due prefers the latest ledger
// entry's remaining amount over the cached association total.
func (s *CustomerService) List(ctx context.Context, businessID int64, search, sortField, sortOrder string, page, limit int) (*models.CustomerList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	customers, total, err := s.customers.ListByBusiness(ctx, businessID, search, sortField, sortOrder, page, limit)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		c := &customers[i]
		history, err := s.logs.ListByPair(ctx, c.ID, businessID, 12)
		if err != nil {
			return nil, err
		}
		c.BusinessInfo.PaymentHistory = history
	}

	return &models.CustomerList{
		Customers:   customers,
		CurrentPage: page,
		TotalPages:  (total + limit - 1) / limit,
		TotalCount:  total,
	}, nil
}

// Search matches customers of a business by name, phone, or uuid, with each
// match's recent history attached. At most ten rows come back.
func (s *CustomerService) Search(ctx context.Context, businessID int64, term string) ([]models.CustomerWithAssociation, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, billing.InvalidArgumentf("search term is required")
	}
	customers, err := s.customers.Search(ctx, businessID, term)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		history, err := s.logs.ListByPair(ctx, customers[i].ID, businessID, 12)
		if err != nil {
			return nil, err
		}
		customers[i].BusinessInfo.PaymentHistory = history
	}
	return customers, nil
}

// Details builds the cross-business view of one customer. Totals come from
// the ledger, not the cached association counters.
func (s *CustomerService) Details(ctx context.Context, customerID int64) (*models.CustomerDetails, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	assocs, err := s.assocs.ListByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}

	details := &models.CustomerDetails{
		Name:             customer.Name,
		Phone:            customer.Phone,
		UUID:             customer.UUID,
		MainTotalPayment: customer.MainTotalPayment,
		Businesses:       make([]models.CustomerBusinessDetails, 0, len(assocs)),
	}

	for _, a := range assocs {
		business, err := s.businesses.Get(ctx, a.BusinessID)
		if err != nil {
			if errors.Is(err, billing.ErrNotFound) {
				continue
			}
			return nil, err
		}
		ledger, err := s.payments.ListByPair(ctx, s.db, customerID, a.BusinessID)
		if err != nil {
			return nil, err
		}

		bd := models.CustomerBusinessDetails{
			BusinessID:    a.BusinessID,
			BusinessName:  business.Name,
			PayableAmount: a.PayableAmount,
			MonthlyFee:    a.MonthlyFee,
		}
		for _, p := range ledger {
			bd.TotalPaymentAmount += p.PaidAmount
			bd.PaymentHistory = append(bd.PaymentHistory, models.PaymentHistoryDetail{
				PaymentID:       p.ID,
				PaidAmount:      p.PaidAmount,
				DueAmount:       p.DueAmount,
				RemainingAmount: p.RemainingAmount,
				Date:            p.DueDate,
				Month:           int(p.DueDate.Month()),
				Year:            p.DueDate.Year(),
				Status:          p.Status,
			})
		}
		if n := len(ledger); n > 0 {
			bd.TotalDueAmount = ledger[n-1].RemainingAmount
		}
		details.Businesses = append(details.Businesses, bd)
		details.TotalPaid += bd.TotalPaymentAmount
		details.TotalDue += bd.TotalDueAmount
	}
	return details, nil
}

// PaymentInfo is the balance snapshot shown before recording a payment:
// how much of the total due belongs to the current month versus carry-over.
func (s *CustomerService) PaymentInfo(ctx context.Context, businessID int64, uuid string, now time.Time) (*models.CustomerPaymentInfo, error) {
	customer, err := s.customers.GetByUUID(ctx, s.db, uuid)
	if err != nil {
		return nil, err
	}
	assoc, err := s.assocs.Get(ctx, s.db, customer.ID, businessID)
	if err != nil {
		return nil, err
	}

	currentMonthDue := assoc.MonthlyFee
	if currentMonthDue > assoc.TotalDueAmount {
		currentMonthDue = assoc.TotalDueAmount
	}
	previousDue := assoc.TotalDueAmount - currentMonthDue

	// A payment already recorded this month means the fee is no longer
	// outstanding for the month; everything left is carry-over.
	last, err := s.logs.LastForPair(ctx, customer.ID, businessID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.Month == int(now.Month()) && last.Year == now.Year() {
		currentMonthDue = 0
		previousDue = assoc.TotalDueAmount
	}

	return &models.CustomerPaymentInfo{
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerUUID:    customer.UUID,
		CurrentMonthDue: currentMonthDue,
		PreviousDue:     previousDue,
		TotalDue:        assoc.TotalDueAmount,
		MonthlyFee:      assoc.MonthlyFee,
	}, nil
}

// DueList returns customers of a business that still owe, with their last
// payment attached, optionally narrowed to those whose last payment was in
// a given month.
func (s *CustomerService) DueList(ctx context.Context, businessID int64, month, year int) ([]models.DueCustomer, error) {
	due, err := s.customers.ListDue(ctx, businessID)
	if err != nil {
		return nil, err
	}

	filtered := due[:0]
	for _, d := range due {
		last, err := s.logs.LastForPair(ctx, d.CustomerID, businessID)
		if err != nil {
			return nil, err
		}
		d.LastPayment = last
		if month != 0 && (last == nil || last.Month != month || last.Year != year) {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered, nil
}

// UnpaidList returns customers with no ledger entry in the given month.
func (s *CustomerService) UnpaidList(ctx context.Context, businessID int64, month, year int) ([]models.UnpaidCustomer, error) {
	if month < 1 || month > 12 {
		return nil, billing.InvalidArgumentf("month %d out of range", month)
	}
	return s.customers.ListUnpaid(ctx, businessID, month, year)
}
