package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, qty int64, unit Money) InvoiceItem {
	t.Helper()
	item, err := NewInvoiceItem("t1", ItemPlan, nil, qty, unit)
	require.NoError(t, err)
	return item
}

func TestNewInvoice_DerivesTotals(t *testing.T) {
	// GIVEN two lines summing to a 10000 subtotal
	items := []InvoiceItem{
		mustItem(t, 2, Money(2500)),
		mustItem(t, 1, Money(5000)),
	}

	// WHEN the invoice is built with a discount and tax
	inv, err := NewInvoice("t1", "m1", Money(500), Money(760), items)
	require.NoError(t, err)

	// THEN subtotal and total are derived, never supplied
	assert.Equal(t, Money(10000), inv.Subtotal)
	assert.Equal(t, Money(10260), inv.Total)
	assert.Equal(t, InvoiceDraft, inv.Status)
	for _, it := range inv.Items {
		assert.Equal(t, inv.ID, it.InvoiceID)
	}
}

func TestNewInvoice_RejectsEmptyAndNegativeInputs(t *testing.T) {
	items := []InvoiceItem{mustItem(t, 1, Money(100))}

	_, err := NewInvoice("t1", "m1", Money(0), Money(0), nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewInvoice("t1", "m1", Money(-1), Money(0), items)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewInvoice("t1", "m1", Money(0), Money(-1), items)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewInvoiceItem_RejectsBadLines(t *testing.T) {
	_, err := NewInvoiceItem("t1", ItemPOS, nil, 0, Money(100))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewInvoiceItem("t1", ItemPOS, nil, 1, Money(-100))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvoice_Validate_CatchesTamperedTotals(t *testing.T) {
	// GIVEN a valid invoice
	inv, err := NewInvoice("t1", "m1", Money(0), Money(0), []InvoiceItem{mustItem(t, 1, Money(1000))})
	require.NoError(t, err)

	// WHEN the stored total drifts from its components
	inv.Total = Money(999)

	// THEN validation rejects the row before it can persist
	assert.ErrorIs(t, inv.Validate(), ErrValidation)

	inv.Total = Money(1000)
	inv.Items[0].LineTotal = Money(1)
	assert.ErrorIs(t, inv.Validate(), ErrValidation)
}

func TestInvoice_Issue_OnlyFromDraft(t *testing.T) {
	inv, err := NewInvoice("t1", "m1", Money(0), Money(0), []InvoiceItem{mustItem(t, 1, Money(1000))})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, inv.Issue(now, nil))
	assert.Equal(t, InvoiceIssued, inv.Status)
	require.NotNil(t, inv.IssuedAt)

	// Issuing twice is an invalid transition.
	assert.ErrorIs(t, inv.Issue(now, nil), ErrInvalidTransition)
}

func TestInvoice_Void_NotFromPaid(t *testing.T) {
	inv, err := NewInvoice("t1", "m1", Money(0), Money(0), []InvoiceItem{mustItem(t, 1, Money(1000))})
	require.NoError(t, err)

	inv.Status = InvoicePaid
	assert.ErrorIs(t, inv.Void(), ErrInvalidTransition)

	inv.Status = InvoiceIssued
	require.NoError(t, inv.Void())
	assert.Equal(t, InvoiceVoid, inv.Status)
	assert.ErrorIs(t, inv.Void(), ErrInvalidTransition)
}

func TestInvoice_ArchivedRejectsMutation(t *testing.T) {
	inv, err := NewInvoice("t1", "m1", Money(0), Money(0), []InvoiceItem{mustItem(t, 1, Money(1000))})
	require.NoError(t, err)

	deleted := time.Now()
	inv.DeletedAt = &deleted

	assert.ErrorIs(t, inv.Issue(time.Now(), nil), ErrArchived)
	assert.ErrorIs(t, inv.Void(), ErrArchived)
}

func TestNewRefund_BoundedByRemaining(t *testing.T) {
	p, err := NewPayment("t1", "m1", "card", Money(1000), nil, nil)
	require.NoError(t, err)
	p.Status = PaymentSucceeded

	// WHEN 600 of the 1000 is already refunded
	refund, err := NewRefund(p, Money(400), Money(400), "goodwill", time.Now())
	require.NoError(t, err)
	assert.Equal(t, Money(400), refund.Amount)

	// THEN exceeding the remainder is rejected
	_, err = NewRefund(p, Money(401), Money(400), "goodwill", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewRefund(p, Money(0), Money(400), "goodwill", time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewRefund_RequiresSucceededPayment(t *testing.T) {
	p, err := NewPayment("t1", "m1", "card", Money(1000), nil, nil)
	require.NoError(t, err)

	// Pending payments have nothing to give back.
	_, err = NewRefund(p, Money(100), Money(1000), "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
