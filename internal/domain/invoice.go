package domain

import "time"

// Invoice construction derives totals from their inputs; callers never set
// total_cents or line_total_cents directly. Every mutation that touches the
// amounts re-validates before it can be persisted.

// NewInvoiceItem builds a line with its total derived from qty and unit price.
func NewInvoiceItem(tenantID string, itemType InvoiceItemType, refID *string, qty int64, unitPrice Money) (InvoiceItem, error) {
	if qty <= 0 {
		return InvoiceItem{}, invalid("qty", "must be greater than zero")
	}
	if unitPrice.IsNegative() {
		return InvoiceItem{}, invalid("unit_price_cents", "must not be negative")
	}
	return InvoiceItem{
		ID:        NewID(),
		TenantID:  tenantID,
		ItemType:  itemType,
		RefID:     refID,
		Qty:       qty,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.MulQty(qty),
	}, nil
}

// NewInvoice builds a draft invoice. Subtotal is derived from the items,
// total from subtotal, discount and tax.
func NewInvoice(tenantID, memberID string, discount, tax Money, items []InvoiceItem) (*Invoice, error) {
	if len(items) == 0 {
		return nil, invalid("items", "must not be empty")
	}
	if discount.IsNegative() {
		return nil, invalid("discount_cents", "must not be negative")
	}
	if tax.IsNegative() {
		return nil, invalid("tax_cents", "must not be negative")
	}

	inv := &Invoice{
		ID:       NewID(),
		TenantID: tenantID,
		MemberID: memberID,
		Number:   NewInvoiceNumber(),
		Status:   InvoiceDraft,
		Discount: discount,
		Tax:      tax,
	}
	for _, it := range items {
		it.InvoiceID = inv.ID
		inv.Subtotal = inv.Subtotal.Add(it.LineTotal)
		inv.Items = append(inv.Items, it)
	}
	inv.Total = inv.Subtotal.Sub(discount).Add(tax)
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// Validate re-checks every ledger invariant on the invoice and its items.
// A write that would violate one is rejected, never silently corrected.
func (i *Invoice) Validate() error {
	if i.Subtotal.IsNegative() {
		return invalid("subtotal_cents", "must not be negative")
	}
	if i.Discount.IsNegative() {
		return invalid("discount_cents", "must not be negative")
	}
	if i.Tax.IsNegative() {
		return invalid("tax_cents", "must not be negative")
	}
	if i.Total.IsNegative() {
		return invalid("total_cents", "must not be negative")
	}
	if i.Total != i.Subtotal.Sub(i.Discount).Add(i.Tax) {
		return invalid("total_cents", "must equal subtotal - discount + tax")
	}
	var sum Money
	for idx := range i.Items {
		it := &i.Items[idx]
		if it.Qty <= 0 {
			return invalid("qty", "must be greater than zero")
		}
		if it.UnitPrice.IsNegative() {
			return invalid("unit_price_cents", "must not be negative")
		}
		if it.LineTotal != it.UnitPrice.MulQty(it.Qty) {
			return invalid("line_total_cents", "must equal qty * unit_price")
		}
		if it.DeletedAt == nil {
			sum = sum.Add(it.LineTotal)
		}
	}
	if len(i.Items) > 0 && sum != i.Subtotal {
		return invalid("subtotal_cents", "must equal sum of line totals")
	}
	return nil
}

// Issue moves a draft invoice to issued and stamps its dates.
func (i *Invoice) Issue(now time.Time, dueAt *time.Time) error {
	if i.Archived() {
		return ErrArchived
	}
	if i.Status != InvoiceDraft {
		return ErrInvalidTransition
	}
	if err := i.Validate(); err != nil {
		return err
	}
	i.Status = InvoiceIssued
	i.IssuedAt = &now
	i.DueAt = dueAt
	return nil
}

// Void excludes the invoice from balance-due. Paid invoices cannot be voided.
func (i *Invoice) Void() error {
	if i.Archived() {
		return ErrArchived
	}
	if i.Status == InvoicePaid || i.Status == InvoiceVoid {
		return ErrInvalidTransition
	}
	i.Status = InvoiceVoid
	return nil
}

// NewPayment builds a pending payment against an invoice and/or subscription.
func NewPayment(tenantID, memberID, method string, amount Money, invoiceID, subscriptionID *string) (*Payment, error) {
	if amount.IsNegative() {
		return nil, invalid("amount_cents", "must not be negative")
	}
	if method == "" {
		return nil, invalid("method", "is required")
	}
	return &Payment{
		ID:             NewID(),
		TenantID:       tenantID,
		InvoiceID:      invoiceID,
		SubscriptionID: subscriptionID,
		MemberID:       memberID,
		Method:         method,
		Amount:         amount,
		Status:         PaymentPending,
	}, nil
}

// NewRefund builds a refund. remaining is the payment amount minus refunds
// already recorded; the caller computes it inside the same transaction.
func NewRefund(p *Payment, amount Money, remaining Money, reason string, now time.Time) (*Refund, error) {
	if p.Status != PaymentSucceeded && p.Status != PaymentRefunded {
		return nil, ErrInvalidTransition
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, invalid("amount_cents", "must be greater than zero")
	}
	if amount > remaining {
		return nil, invalid("amount_cents", "exceeds refundable amount")
	}
	return &Refund{
		ID:         NewID(),
		TenantID:   p.TenantID,
		PaymentID:  p.ID,
		Amount:     amount,
		Reason:     reason,
		RefundedAt: now,
	}, nil
}
