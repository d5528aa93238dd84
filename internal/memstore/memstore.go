// Package memstore is an in-memory implementation of the storage ports.
// Service tests run against it instead of Postgres. It serializes writers
// per schedule the way the SQL store's row lock does, so the booking
// guard's concurrency behavior can be exercised without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"
)

type Store struct {
	mu sync.Mutex

	scheduleLocks map[string]*sync.Mutex

	branches  map[string]*domain.Branch
	members   map[string]*domain.Member
	classes   map[string]*domain.GymClass
	schedules map[string]*domain.ClassSchedule
	bookings  map[string]*domain.ClassBooking
	waitlist  map[string]*domain.WaitlistEntry
	plans     map[string]*domain.Plan
	subs      map[string]*domain.Subscription
	invoices  map[string]*domain.Invoice
	payments  map[string]*domain.Payment
	refunds   map[string]*domain.Refund
}

func New() *Store {
	return &Store{
		scheduleLocks: make(map[string]*sync.Mutex),
		branches:      make(map[string]*domain.Branch),
		members:       make(map[string]*domain.Member),
		classes:       make(map[string]*domain.GymClass),
		schedules:     make(map[string]*domain.ClassSchedule),
		bookings:      make(map[string]*domain.ClassBooking),
		waitlist:      make(map[string]*domain.WaitlistEntry),
		plans:         make(map[string]*domain.Plan),
		subs:          make(map[string]*domain.Subscription),
		invoices:      make(map[string]*domain.Invoice),
		payments:      make(map[string]*domain.Payment),
		refunds:       make(map[string]*domain.Refund),
	}
}

// Seed helpers

func (s *Store) PutClass(c *domain.GymClass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[c.ID] = c
}

func (s *Store) PutSchedule(cs *domain.ClassSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[cs.ID] = cs
}

func (s *Store) PutPlan(p *domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

func (s *Store) PutMember(m *domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *Store) PutSubscription(x *domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[x.ID] = x
}

// ---------------------------------------------------------------------------
// BookingStore

func (s *Store) WithScheduleLock(ctx context.Context, sc scope.Scope, scheduleID string, fn func(ctx context.Context, tx ports.BookingTx) error) error {
	if !sc.Valid() {
		return domain.ErrNotFound
	}
	s.mu.Lock()
	key := sc.TenantID + "/" + scheduleID
	lk, ok := s.scheduleLocks[key]
	if !ok {
		lk = &sync.Mutex{}
		s.scheduleLocks[key] = lk
	}
	s.mu.Unlock()

	lk.Lock()
	defer lk.Unlock()
	return fn(ctx, &bookingTx{store: s, scope: sc})
}

func (s *Store) BookingByID(_ context.Context, sc scope.Scope, id string) (*domain.ClassBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || !sc.Owns(b.TenantID) {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) JoinWaitlist(_ context.Context, sc scope.Scope, scheduleID, memberID string) (*domain.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sch, ok := s.schedules[scheduleID]; !ok || !sc.Owns(sch.TenantID) {
		return nil, domain.ErrNotFound
	}
	maxPos := 0
	for _, e := range s.waitlist {
		if e.TenantID != sc.TenantID || e.ScheduleID != scheduleID {
			continue
		}
		if e.MemberID == memberID {
			return nil, domain.ErrDuplicateWaitlist
		}
		if e.Position > maxPos {
			maxPos = e.Position
		}
	}
	entry := &domain.WaitlistEntry{
		ID:         domain.NewID(),
		TenantID:   sc.TenantID,
		ScheduleID: scheduleID,
		MemberID:   memberID,
		Position:   maxPos + 1,
		CreatedAt:  time.Now(),
	}
	s.waitlist[entry.ID] = entry
	cp := *entry
	return &cp, nil
}

func (s *Store) MarkWaitlistNotified(_ context.Context, sc scope.Scope, entryID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.waitlist[entryID]
	if !ok || !sc.Owns(e.TenantID) {
		return domain.ErrNotFound
	}
	e.NotifiedAt = &at
	return nil
}

type bookingTx struct {
	store *Store
	scope scope.Scope
}

func (t *bookingTx) ScheduleCapacity(_ context.Context, scheduleID string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	sch, ok := t.store.schedules[scheduleID]
	if !ok || !t.scope.Owns(sch.TenantID) || sch.DeletedAt != nil {
		return 0, domain.ErrNotFound
	}
	cls, ok := t.store.classes[sch.ClassID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return cls.Capacity, nil
}

func (t *bookingTx) ActiveBookingCount(_ context.Context, scheduleID string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n := 0
	for _, b := range t.store.bookings {
		if b.TenantID == t.scope.TenantID && b.ScheduleID == scheduleID && b.Active() {
			n++
		}
	}
	return n, nil
}

func (t *bookingTx) HasActiveBooking(_ context.Context, scheduleID, memberID string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.store.bookings {
		if b.TenantID == t.scope.TenantID && b.ScheduleID == scheduleID && b.MemberID == memberID && b.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *bookingTx) InsertBooking(_ context.Context, b *domain.ClassBooking) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	// Same backstop as the SQL store's partial unique index on active rows.
	if b.Active() {
		for _, existing := range t.store.bookings {
			if existing.TenantID == b.TenantID && existing.ScheduleID == b.ScheduleID &&
				existing.MemberID == b.MemberID && existing.Active() {
				return domain.ErrDuplicateBooking
			}
		}
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	t.store.bookings[b.ID] = &cp
	return nil
}

func (t *bookingTx) BookingByID(_ context.Context, id string) (*domain.ClassBooking, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	b, ok := t.store.bookings[id]
	if !ok || !t.scope.Owns(b.TenantID) {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *bookingTx) SetBookingStatus(_ context.Context, id string, status domain.BookingStatus) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	b, ok := t.store.bookings[id]
	if !ok || !t.scope.Owns(b.TenantID) {
		return domain.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	return nil
}

func (t *bookingTx) FirstPendingWaitlist(_ context.Context, scheduleID string) (*domain.WaitlistEntry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var pending []*domain.WaitlistEntry
	for _, e := range t.store.waitlist {
		if e.TenantID == t.scope.TenantID && e.ScheduleID == scheduleID {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Position < pending[j].Position })
	cp := *pending[0]
	return &cp, nil
}

func (t *bookingTx) RemoveWaitlistEntry(_ context.Context, id string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	e, ok := t.store.waitlist[id]
	if !ok || !t.scope.Owns(e.TenantID) {
		return domain.ErrNotFound
	}
	delete(t.store.waitlist, id)
	return nil
}

// ---------------------------------------------------------------------------
// LedgerStore

func (s *Store) CreateInvoice(_ context.Context, sc scope.Scope, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sc.Owns(inv.TenantID) {
		return domain.ErrNotFound
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	cp.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *Store) InvoiceByID(_ context.Context, sc scope.Scope, id string) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok || !sc.Owns(inv.TenantID) || inv.Archived() {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	cp.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	return &cp, nil
}

func (s *Store) UpdateInvoice(_ context.Context, sc scope.Scope, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.invoices[inv.ID]
	if !ok || !sc.Owns(cur.TenantID) {
		return domain.ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	cp := *inv
	cp.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *Store) CreatePayment(_ context.Context, sc scope.Scope, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sc.Owns(p.TenantID) {
		return domain.ErrNotFound
	}
	if p.InvoiceID != nil {
		inv, ok := s.invoices[*p.InvoiceID]
		if !ok || !sc.Owns(inv.TenantID) {
			return domain.ErrNotFound
		}
	}
	if p.SubscriptionID != nil {
		sub, ok := s.subs[*p.SubscriptionID]
		if !ok || !sc.Owns(sub.TenantID) {
			return domain.ErrNotFound
		}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Store) PaymentByID(_ context.Context, sc scope.Scope, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || !sc.Owns(p.TenantID) {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) MarkPaymentSucceeded(ctx context.Context, sc scope.Scope, paymentID string, paidAt time.Time, after func(ctx context.Context, tx ports.SubscriptionMutator, p *domain.Payment) error) (*domain.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || !sc.Owns(p.TenantID) {
		return nil, false, domain.ErrNotFound
	}
	if p.Status == domain.PaymentSucceeded {
		cp := *p
		return &cp, false, nil
	}
	if p.Status == domain.PaymentRefunded {
		return nil, false, domain.ErrInvalidTransition
	}
	prev := *p
	p.Status = domain.PaymentSucceeded
	p.PaidAt = &paidAt
	p.UpdatedAt = time.Now()

	if after != nil {
		updated := *p
		if err := after(ctx, &subMutator{store: s, scope: sc}, &updated); err != nil {
			*p = prev
			return nil, false, err
		}
	}
	s.settleInvoiceLocked(sc, p)
	cp := *p
	return &cp, true, nil
}

// settleInvoiceLocked flips a referenced invoice to paid once succeeded
// payments cover its total.
func (s *Store) settleInvoiceLocked(sc scope.Scope, p *domain.Payment) {
	if p.InvoiceID == nil {
		return
	}
	inv, ok := s.invoices[*p.InvoiceID]
	if !ok || !sc.Owns(inv.TenantID) || inv.Status == domain.InvoiceVoid {
		return
	}
	var paid domain.Money
	for _, pay := range s.payments {
		if pay.InvoiceID != nil && *pay.InvoiceID == inv.ID && pay.Status == domain.PaymentSucceeded {
			paid = paid.Add(pay.Amount)
		}
	}
	if paid >= inv.Total {
		inv.Status = domain.InvoicePaid
		inv.UpdatedAt = time.Now()
	}
}

func (s *Store) CreateRefund(_ context.Context, sc scope.Scope, r *domain.Refund, paymentFullyRefunded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[r.PaymentID]
	if !ok || !sc.Owns(p.TenantID) {
		return domain.ErrNotFound
	}
	cp := *r
	s.refunds[r.ID] = &cp
	if paymentFullyRefunded {
		p.Status = domain.PaymentRefunded
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Store) RefundedTotal(_ context.Context, sc scope.Scope, paymentID string) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, r := range s.refunds {
		if r.TenantID == sc.TenantID && r.PaymentID == paymentID {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (s *Store) BalanceDue(_ context.Context, sc scope.Scope, memberID string) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due domain.Money
	for _, inv := range s.invoices {
		if inv.TenantID == sc.TenantID && inv.MemberID == memberID && inv.Status != domain.InvoiceVoid && !inv.Archived() {
			due = due.Add(inv.Total)
		}
	}
	for _, p := range s.payments {
		if p.TenantID == sc.TenantID && p.MemberID == memberID && p.Status == domain.PaymentSucceeded {
			due = due.Sub(p.Amount)
		}
	}
	return due, nil
}

// ---------------------------------------------------------------------------
// SubscriptionStore

func (s *Store) PlanByID(_ context.Context, sc scope.Scope, id string) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok || !sc.Owns(p.TenantID) || p.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreateSubscription(_ context.Context, sc scope.Scope, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sc.Owns(sub.TenantID) {
		return domain.ErrNotFound
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *Store) SubscriptionByID(_ context.Context, sc scope.Scope, id string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptionLocked(sc, id)
}

func (s *Store) subscriptionLocked(sc scope.Scope, id string) (*domain.Subscription, error) {
	sub, ok := s.subs[id]
	if !ok || !sc.Owns(sub.TenantID) {
		return nil, domain.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sc scope.Scope, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSubscriptionLocked(sc, sub)
}

func (s *Store) updateSubscriptionLocked(sc scope.Scope, sub *domain.Subscription) error {
	cur, ok := s.subs[sub.ID]
	if !ok || !sc.Owns(cur.TenantID) {
		return domain.ErrNotFound
	}
	sub.UpdatedAt = time.Now()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *Store) ExpireActiveBefore(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sub := range s.subs {
		if sub.Status == domain.SubscriptionActive && !sub.EndsAt.After(now) {
			sub.Status = domain.SubscriptionExpired
			sub.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// subMutator runs inside MarkPaymentSucceeded while the store lock is held.
type subMutator struct {
	store *Store
	scope scope.Scope
}

func (m *subMutator) SubscriptionByID(_ context.Context, id string) (*domain.Subscription, error) {
	return m.store.subscriptionLocked(m.scope, id)
}

func (m *subMutator) UpdateSubscription(_ context.Context, sub *domain.Subscription) error {
	return m.store.updateSubscriptionLocked(m.scope, sub)
}
