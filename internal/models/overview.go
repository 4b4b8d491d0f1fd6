package models

import "time"

// MonthlyIncomeDue is one month of the overview's income/due series.
type MonthlyIncomeDue struct {
	Month  string  `json:"month"`
	Income float64 `json:"income"`
	Due    float64 `json:"due"`
}

// RecentPayment is one of the latest ledger entries shown on the overview.
type RecentPayment struct {
	ID              int64         `json:"id"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerUUID    string        `json:"customer_uuid"`
	PayableAmount   float64       `json:"payable_amount"` // ledger due_amount
	RemainingAmount float64       `json:"remaining_amount"`
	Amount          float64       `json:"amount"`
	Date            time.Time     `json:"date"`
	Status          PaymentStatus `json:"status"`
}

// BusinessOverview is the year-scoped business dashboard. The totals are
// recomputed from the ledger, not read from the business row.
type BusinessOverview struct {
	TotalIncome        float64            `json:"total_income"`
	TotalDue           float64            `json:"total_due"`
	TotalCustomer      int                `json:"total_customer"`
	MonthlyIncomeVsDue []MonthlyIncomeDue `json:"monthly_income_vs_due"`
	RecentPayments     []RecentPayment    `json:"recent_payments"`
	Years              []int              `json:"years"`
	CurrentYear        int                `json:"current_year"`
}
