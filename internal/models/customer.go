package models

import "time"

type Customer struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	UUID             string    `json:"uuid"`
	MainTotalPayment float64   `json:"main_total_payment"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BusinessAssociation is the subscription of one customer to one business.
// One row per (customer, business); uniqueness is enforced by the schema.
type BusinessAssociation struct {
	ID                 int64     `json:"id"`
	CustomerID         int64     `json:"customer_id"`
	BusinessID         int64     `json:"business_id"`
	MonthlyFee         float64   `json:"monthly_fee"`
	PayableAmount      float64   `json:"payable_amount"`
	TotalPaymentAmount float64   `json:"total_payment_amount"`
	TotalDueAmount     float64   `json:"total_due_amount"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PaymentLogEntry is a display cache of one payment against an association.
// Amounts here are not the source of truth; the payments ledger is.
type PaymentLogEntry struct {
	ID        int64     `json:"id"`
	PaymentID *int64    `json:"payment_id,omitempty"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
}

// SubscribeRequest creates a customer (when absent) and associates it with a
// business, or updates the fee of an existing association.
type SubscribeRequest struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	UUID       string  `json:"uuid"`
	BusinessID int64   `json:"business_id"`
	MonthlyFee float64 `json:"monthly_fee"`
}

// UpdateCustomerRequest represents the request body for updating a customer
type UpdateCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// AssociationInfo is the association as rendered inside customer listings.
type AssociationInfo struct {
	BusinessID         int64             `json:"business_id"`
	MonthlyFee         float64           `json:"monthly_fee"`
	PayableAmount      float64           `json:"payable_amount"`
	TotalPaymentAmount float64           `json:"total_payment_amount"`
	TotalDueAmount     float64           `json:"total_due_amount"`
	PaymentHistory     []PaymentLogEntry `json:"payment_history"`
}

// CustomerWithAssociation is one row of the per-business customer listing.
type CustomerWithAssociation struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	UUID         string          `json:"uuid"`
	BusinessInfo AssociationInfo `json:"business_info"`
}

// CustomerList is a paginated customer listing.
type CustomerList struct {
	Customers   []CustomerWithAssociation `json:"customers"`
	CurrentPage int                       `json:"current_page"`
	TotalPages  int                       `json:"total_pages"`
	TotalCount  int                       `json:"total_count"`
}

// CustomerBusinessDetails is one business section of the customer details
// view. Totals are recomputed from the ledger, not read from the association.
type CustomerBusinessDetails struct {
	BusinessID         int64                  `json:"business_id"`
	BusinessName       string                 `json:"business_name"`
	TotalPaymentAmount float64                `json:"total_payment_amount"`
	TotalDueAmount     float64                `json:"total_due_amount"`
	PayableAmount      float64                `json:"payable_amount"`
	MonthlyFee         float64                `json:"monthly_fee"`
	PaymentHistory     []PaymentHistoryDetail `json:"payment_history"`
}

// PaymentHistoryDetail is one ledger row rendered in the details view.
type PaymentHistoryDetail struct {
	PaymentID       int64         `json:"payment_id"`
	PaidAmount      float64       `json:"paid_amount"`
	DueAmount       float64       `json:"due_amount"`
	RemainingAmount float64       `json:"remaining_amount"`
	Date            time.Time     `json:"date"`
	Month           int           `json:"month"`
	Year            int           `json:"year"`
	Status          PaymentStatus `json:"status"`
}

// CustomerDetails is the cross-business customer view.
type CustomerDetails struct {
	Name             string                    `json:"name"`
	Phone            string                    `json:"phone"`
	UUID             string                    `json:"uuid"`
	MainTotalPayment float64                   `json:"main_total_payment"`
	Businesses       []CustomerBusinessDetails `json:"businesses"`
	TotalDue         float64                   `json:"total_due"`
	TotalPaid        float64                   `json:"total_paid"`
}

// DueCustomer is one row of the association-level due list.
type DueCustomer struct {
	CustomerID    int64            `json:"customer_id"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	DueAmount     float64          `json:"due_amount"`
	MonthlyFee    float64          `json:"monthly_fee"`
	LastPayment   *PaymentLogEntry `json:"last_payment"`
}

// UnpaidCustomer is a customer with no ledger entry in a given month.
type UnpaidCustomer struct {
	CustomerID     int64   `json:"customer_id"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	UUID           string  `json:"uuid"`
	MonthlyFee     float64 `json:"monthly_fee"`
	TotalDueAmount float64 `json:"total_due_amount"`
}

// CustomerPaymentInfo is the per-customer balance snapshot shown before
// recording a payment.
type CustomerPaymentInfo struct {
	CustomerName    string  `json:"customer_name"`
	CustomerPhone   string  `json:"customer_phone"`
	CustomerUUID    string  `json:"customer_uuid"`
	CurrentMonthDue float64 `json:"current_month_due"`
	PreviousDue     float64 `json:"previous_due"`
	TotalDue        float64 `json:"total_due"`
	MonthlyFee      float64 `json:"monthly_fee"`
}
