package service

import (
	"context"
	"log/slog"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/events"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"
)

// LedgerService owns the invoice/payment/refund aggregate. Invariants are
// validated before commit; the schema's CHECK constraints are only the
// backstop. Balance due is always derived, never cached.
type LedgerService struct {
	Store  ports.LedgerStore
	Events events.Publisher
	Logger *slog.Logger
	Now    func() time.Time
}

func (s LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type InvoiceItemInput struct {
	ItemType  domain.InvoiceItemType
	RefID     *string
	Qty       int64
	UnitPrice domain.Money
}

type CreateInvoiceInput struct {
	MemberID string
	Discount domain.Money
	Tax      domain.Money
	Items    []InvoiceItemInput
	Issue    bool
	DueAt    *time.Time
}

// CreateInvoice derives line totals and the invoice total from the inputs
// and persists the aggregate. Callers never supply totals.
func (s LedgerService) CreateInvoice(ctx context.Context, sc scope.Scope, in CreateInvoiceInput) (*domain.Invoice, error) {
	items := make([]domain.InvoiceItem, 0, len(in.Items))
	for _, it := range in.Items {
		item, err := domain.NewInvoiceItem(sc.TenantID, it.ItemType, it.RefID, it.Qty, it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	inv, err := domain.NewInvoice(sc.TenantID, in.MemberID, in.Discount, in.Tax, items)
	if err != nil {
		return nil, err
	}
	if in.Issue {
		if err := inv.Issue(s.now(), in.DueAt); err != nil {
			return nil, err
		}
	}
	if err := s.Store.CreateInvoice(ctx, sc, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// IssueInvoice moves a draft to issued.
func (s LedgerService) IssueInvoice(ctx context.Context, sc scope.Scope, invoiceID string, dueAt *time.Time) (*domain.Invoice, error) {
	inv, err := s.Store.InvoiceByID(ctx, sc, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Issue(s.now(), dueAt); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateInvoice(ctx, sc, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// VoidInvoice excludes an invoice from balance due.
func (s LedgerService) VoidInvoice(ctx context.Context, sc scope.Scope, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.Store.InvoiceByID(ctx, sc, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Void(); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateInvoice(ctx, sc, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

type RecordPaymentInput struct {
	MemberID       string
	InvoiceID      *string
	SubscriptionID *string
	Method         string
	Amount         domain.Money
	Succeeded      bool
}

// PaymentResult carries the payment and, when the success trigger activated
// a subscription, that subscription.
type PaymentResult struct {
	Payment   *domain.Payment
	Activated *domain.Subscription
}

// RecordPayment creates the payment and, when Succeeded is set, immediately
// runs the success transition (see MarkPaymentSucceeded).
func (s LedgerService) RecordPayment(ctx context.Context, sc scope.Scope, in RecordPaymentInput) (*PaymentResult, error) {
	p, err := domain.NewPayment(sc.TenantID, in.MemberID, in.Method, in.Amount, in.InvoiceID, in.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreatePayment(ctx, sc, p); err != nil {
		return nil, err
	}
	if !in.Succeeded {
		return &PaymentResult{Payment: p}, nil
	}
	return s.MarkPaymentSucceeded(ctx, sc, p.ID)
}

// MarkPaymentSucceeded transitions a payment into succeeded. The transition
// is a one-shot trigger: the store flips the status only if the previous
// status was not succeeded, and the subscription activation that may ride on
// it is itself idempotent, so a retried delivery cannot double-activate.
// Events are emitted after commit, once per transition that actually fired.
func (s LedgerService) MarkPaymentSucceeded(ctx context.Context, sc scope.Scope, paymentID string) (*PaymentResult, error) {
	var activated *domain.Subscription

	p, fired, err := s.Store.MarkPaymentSucceeded(ctx, sc, paymentID, s.now(), func(ctx context.Context, tx ports.SubscriptionMutator, paid *domain.Payment) error {
		// Runs in the same transaction as the status flip, only when this
		// call won the transition.
		if paid.SubscriptionID == nil {
			return nil
		}
		sub, err := tx.SubscriptionByID(ctx, *paid.SubscriptionID)
		if err != nil {
			return err
		}
		ok, err := sub.Activate(s.now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		activated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fired {
		s.publish(ctx, events.New(events.TypePaymentSucceeded, sc.TenantID, p.ID, p.MemberID))
		if activated != nil {
			s.publish(ctx, events.New(events.TypeSubscriptionActivated, sc.TenantID, activated.ID, activated.MemberID))
		}
	}
	return &PaymentResult{Payment: p, Activated: activated}, nil
}

// RefundPayment records a partial or full refund, bounded by the payment
// amount minus refunds already recorded.
func (s LedgerService) RefundPayment(ctx context.Context, sc scope.Scope, paymentID string, amount domain.Money, reason string) (*domain.Refund, error) {
	p, err := s.Store.PaymentByID(ctx, sc, paymentID)
	if err != nil {
		return nil, err
	}
	refunded, err := s.Store.RefundedTotal(ctx, sc, paymentID)
	if err != nil {
		return nil, err
	}
	remaining := p.Amount.Sub(refunded)
	refund, err := domain.NewRefund(p, amount, remaining, reason, s.now())
	if err != nil {
		return nil, err
	}
	fullyRefunded := amount == remaining
	if err := s.Store.CreateRefund(ctx, sc, refund, fullyRefunded); err != nil {
		return nil, err
	}
	return refund, nil
}

// ComputeBalanceDue derives the member's outstanding obligation at read
// time: sum of non-void invoice totals minus succeeded payment amounts.
// Point-in-time and advisory; it is not a concurrency-control primitive.
func (s LedgerService) ComputeBalanceDue(ctx context.Context, sc scope.Scope, memberID string) (domain.Money, error) {
	return s.Store.BalanceDue(ctx, sc, memberID)
}

func (s LedgerService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Logger.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}
