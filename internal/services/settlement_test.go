package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"billing-backend/internal/models"
)

func TestAllocatePartialSettlement(t *testing.T) {
	// Fee 100, carried-over due 50, payment 120: the 50 is cleared first,
	// 70 goes to the fee, 30 of the fee remains outstanding.
	a := allocate(50, 100, 120)

	assert.Equal(t, 150.0, a.DueAmount)
	assert.Equal(t, 50.0, a.SettledPrevDue)
	assert.Equal(t, 70.0, a.SettledCurFee)
	assert.Equal(t, 30.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusPartiallySettled, a.Status)
}

func TestAllocateFullSettlement(t *testing.T) {
	a := allocate(50, 100, 150)

	assert.Equal(t, 150.0, a.DueAmount)
	assert.Equal(t, 50.0, a.SettledPrevDue)
	assert.Equal(t, 100.0, a.SettledCurFee)
	assert.Equal(t, 0.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusSettled, a.Status)
}

func TestAllocateOverpayment(t *testing.T) {
	// Paying more than owed never yields a negative remaining and the fee
	// bucket never absorbs more than the fee.
	a := allocate(50, 100, 500)

	assert.Equal(t, 50.0, a.SettledPrevDue)
	assert.Equal(t, 100.0, a.SettledCurFee)
	assert.Equal(t, 0.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusSettled, a.Status)
}

func TestAllocatePaymentSmallerThanPreviousDue(t *testing.T) {
	// SUSPICIOUS BUT DELIBERATE. The whole payment goes to the carried-over
	// due; the fee gets nothing. The uncovered 120 of previous due ends up
	// counted twice at the ledger level: it stays on the prior unsettled
	// entry's remaining AND is folded into this entry's remaining of 220.
	// The association balance only carries the 220, so the books disagree
	// with the ledger until the prior entry settles. Long-standing behavior
	// that downstream balances depend on. Do not "fix" the arithmetic here
	// without migrating historical data.
	a := allocate(200, 100, 80)

	assert.Equal(t, 300.0, a.DueAmount)
	assert.Equal(t, 80.0, a.SettledPrevDue)
	assert.Equal(t, 0.0, a.SettledCurFee)
	assert.Equal(t, 220.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusPartiallySettled, a.Status)
}

func TestAllocateNoPreviousDue(t *testing.T) {
	a := allocate(0, 100, 100)

	assert.Equal(t, 100.0, a.DueAmount)
	assert.Equal(t, 0.0, a.SettledPrevDue)
	assert.Equal(t, 100.0, a.SettledCurFee)
	assert.Equal(t, 0.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusSettled, a.Status)
}

func TestAllocateExactlyPreviousDue(t *testing.T) {
	// remainingPaid is 0 so the whole fee carries forward.
	a := allocate(100, 100, 100)

	assert.Equal(t, 100.0, a.SettledPrevDue)
	assert.Equal(t, 0.0, a.SettledCurFee)
	assert.Equal(t, 100.0, a.Remaining)
	assert.Equal(t, models.PaymentStatusPartiallySettled, a.Status)
}

func TestStatusForRemaining(t *testing.T) {
	assert.Equal(t, models.PaymentStatusSettled, models.StatusForRemaining(0))
	assert.Equal(t, models.PaymentStatusPartiallySettled, models.StatusForRemaining(0.01))
}
