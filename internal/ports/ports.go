package ports

import (
	"context"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BookingTx is the view of booking storage inside a per-schedule locked
// transaction. Everything it exposes is already restricted to the scope the
// lock was taken under.
type BookingTx interface {
	// ScheduleCapacity resolves the schedule's class capacity.
	// 0 means unbounded. Missing schedules report domain.ErrNotFound.
	ScheduleCapacity(ctx context.Context, scheduleID string) (int, error)
	ActiveBookingCount(ctx context.Context, scheduleID string) (int, error)
	HasActiveBooking(ctx context.Context, scheduleID, memberID string) (bool, error)
	InsertBooking(ctx context.Context, b *domain.ClassBooking) error
	BookingByID(ctx context.Context, id string) (*domain.ClassBooking, error)
	SetBookingStatus(ctx context.Context, id string, status domain.BookingStatus) error
	FirstPendingWaitlist(ctx context.Context, scheduleID string) (*domain.WaitlistEntry, error)
	RemoveWaitlistEntry(ctx context.Context, id string) error
}

// BookingStore persists bookings and waitlist entries. WithScheduleLock runs
// fn inside one transaction holding a write lock scoped to the given
// schedule, so concurrent callers serialize per schedule and the capacity
// check-and-insert cannot race. Either everything fn did commits or none of
// it does.
type BookingStore interface {
	WithScheduleLock(ctx context.Context, sc scope.Scope, scheduleID string, fn func(ctx context.Context, tx BookingTx) error) error
	BookingByID(ctx context.Context, sc scope.Scope, id string) (*domain.ClassBooking, error)
	JoinWaitlist(ctx context.Context, sc scope.Scope, scheduleID, memberID string) (*domain.WaitlistEntry, error)
	MarkWaitlistNotified(ctx context.Context, sc scope.Scope, entryID string, at time.Time) error
}

// SubscriptionMutator is the in-transaction view used by the one-shot
// payment trigger to activate the covered subscription atomically with the
// payment status flip.
type SubscriptionMutator interface {
	SubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, s *domain.Subscription) error
}

// LedgerStore persists invoices, payments and refunds. Balance due is a
// read-time aggregate, never a stored counter.
type LedgerStore interface {
	CreateInvoice(ctx context.Context, sc scope.Scope, inv *domain.Invoice) error
	InvoiceByID(ctx context.Context, sc scope.Scope, id string) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, sc scope.Scope, inv *domain.Invoice) error

	CreatePayment(ctx context.Context, sc scope.Scope, p *domain.Payment) error
	PaymentByID(ctx context.Context, sc scope.Scope, id string) (*domain.Payment, error)

	// MarkPaymentSucceeded flips the payment into succeeded iff it is not
	// already succeeded, in one transaction. fired reports whether this
	// call won the transition; after runs inside the same transaction only
	// when it did, and receives the updated payment.
	MarkPaymentSucceeded(ctx context.Context, sc scope.Scope, paymentID string, paidAt time.Time, after func(ctx context.Context, tx SubscriptionMutator, p *domain.Payment) error) (p *domain.Payment, fired bool, err error)

	// CreateRefund records the refund and, when remaining hits zero, flips
	// the payment to refunded, atomically.
	CreateRefund(ctx context.Context, sc scope.Scope, r *domain.Refund, paymentFullyRefunded bool) error
	RefundedTotal(ctx context.Context, sc scope.Scope, paymentID string) (domain.Money, error)

	// BalanceDue derives sum(non-void invoice totals) - sum(succeeded
	// payment amounts) for the member at read time.
	BalanceDue(ctx context.Context, sc scope.Scope, memberID string) (domain.Money, error)
}

// SubscriptionStore persists subscriptions and their plans.
type SubscriptionStore interface {
	PlanByID(ctx context.Context, sc scope.Scope, id string) (*domain.Plan, error)
	CreateSubscription(ctx context.Context, sc scope.Scope, s *domain.Subscription) error
	SubscriptionByID(ctx context.Context, sc scope.Scope, id string) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sc scope.Scope, s *domain.Subscription) error

	// ExpireActiveBefore is the time-driven sweep: every active
	// subscription whose window ended before now becomes expired. Runs
	// across tenants; only the background job calls it.
	ExpireActiveBefore(ctx context.Context, now time.Time) (int64, error)
}
