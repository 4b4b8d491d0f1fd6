package services

import "billing-backend/internal/models"

// allocation is the outcome of splitting one payment across the two due
// buckets of a billing cycle.
type allocation struct {
	DueAmount      float64 // previous due + fee, the new ledger entry's due
	SettledPrevDue float64
	SettledCurFee  float64
	Remaining      float64 // max(dueAmount - paid, 0), the new association due
	Status         models.PaymentStatus
}

// allocate splits a payment: previous due is settled first, the current fee
// second. The settled breakdown records how the paid amount was consumed;
// Remaining is what the customer still owes after this payment and becomes
// the association's running due.
func allocate(previousDue, fee, paid float64) allocation {
	a := allocation{DueAmount: previousDue + fee}

	a.SettledPrevDue = paid
	if previousDue < paid {
		a.SettledPrevDue = previousDue
	}
	remainingPaid := paid - a.SettledPrevDue

	if remainingPaid > 0 {
		a.SettledCurFee = remainingPaid
		if fee < remainingPaid {
			a.SettledCurFee = fee
		}
	}

	a.Remaining = a.DueAmount - paid
	if a.Remaining < 0 {
		a.Remaining = 0
	}
	a.Status = models.StatusForRemaining(a.Remaining)
	return a
}
