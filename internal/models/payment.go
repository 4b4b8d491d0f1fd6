package models

import "time"

// PaymentStatus tracks how much of a ledger entry's due has been cleared
type PaymentStatus string

const (
	PaymentStatusUnsettled        PaymentStatus = "unsettled"         // default before any allocation
	PaymentStatusPartiallySettled PaymentStatus = "partially_settled" // some due remains
	PaymentStatusSettled          PaymentStatus = "settled"           // remaining amount is zero
)

// StatusForRemaining derives the ledger status from a remaining amount.
func StatusForRemaining(remaining float64) PaymentStatus {
	if remaining == 0 {
		return PaymentStatusSettled
	}
	return PaymentStatusPartiallySettled
}

// Payment is one ledger entry: a single payment event and the balance
// snapshot at the moment it was recorded.
type Payment struct {
	ID              int64         `json:"id"`
	CustomerID      int64         `json:"customer_id"`
	BusinessID      int64         `json:"business_id"`
	DueAmount       float64       `json:"due_amount"` // previous due + monthly fee at record time
	PaidAmount      float64       `json:"paid_amount"`
	RemainingAmount float64       `json:"remaining_amount"`
	DueDate         time.Time     `json:"due_date"` // billing cycle, not creation time
	Status          PaymentStatus `json:"status"`
	SettledPrevDue  float64       `json:"settled_previous_due"`
	SettledCurFee   float64       `json:"settled_current_fee"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// PaymentWithCustomer joins the ledger row with customer display fields.
type PaymentWithCustomer struct {
	Payment
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerUUID  string `json:"customer_uuid"`
}

// PaymentDetails is the single-payment view with both parties resolved.
type PaymentDetails struct {
	ID              int64         `json:"id"`
	UUID            string        `json:"uuid"`
	CustomerID      int64         `json:"customer_id"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	BusinessID      int64         `json:"business_id"`
	BusinessName    string        `json:"business_name"`
	PaidAmount      float64       `json:"paid_amount"`
	RemainingAmount float64       `json:"remaining_amount"`
	DueAmount       float64       `json:"due_amount"`
	DueDate         time.Time     `json:"due_date"`
	Status          PaymentStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CreatePaymentRequest records a payment against a billing cycle.
type CreatePaymentRequest struct {
	UUID       string  `json:"uuid"`
	BusinessID int64   `json:"business_id"`
	PaidAmount float64 `json:"paid_amount"`
	DueDate    string  `json:"due_date"` // YYYY-MM-DD
}

// CorrectPaymentRequest tops up an existing payment's paid amount.
type CorrectPaymentRequest struct {
	PaidAmount float64 `json:"paid_amount"`
	DueDate    string  `json:"due_date,omitempty"` // optional override
}

// SettlementResult is what a record-payment operation returns: the new
// ledger entry and the prior entry it corrected, if any.
type SettlementResult struct {
	NewPayment             *Payment `json:"new_payment"`
	UpdatedPreviousPayment *Payment `json:"updated_previous_payment,omitempty"`
}

// PaymentList is a paginated ledger listing.
type PaymentList struct {
	Payments    []PaymentWithCustomer `json:"payments"`
	CurrentPage int                   `json:"current_page"`
	TotalPages  int                   `json:"total_pages"`
	TotalCount  int                   `json:"total_count"`
}

// PaymentFilter narrows and orders ledger listings.
type PaymentFilter struct {
	Status    string // "all", "settled", "partially_settled"
	Month     int    // 0 = all
	Year      int    // 0 = all
	SortField string // whitelisted column, defaults to the cycle date
	SortOrder string // "asc" or "desc"
	Page      int
	Limit     int
}
