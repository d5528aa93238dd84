package domain

import "time"

// Subscription lifecycle: pending -> active -> {expired, cancelled}.
// auto_renew is an orthogonal flag, never a state.

// NewSubscription builds a pending subscription covering the plan's window.
func NewSubscription(tenantID, memberID string, plan *Plan, startsAt time.Time, autoRenew bool) (*Subscription, error) {
	endsAt := startsAt.AddDate(0, 0, plan.DurationDays)
	if !endsAt.After(startsAt) {
		return nil, invalid("ends_at", "must be after starts_at")
	}
	return &Subscription{
		ID:        NewID(),
		TenantID:  tenantID,
		MemberID:  memberID,
		PlanID:    plan.ID,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Status:    SubscriptionPending,
		AutoRenew: autoRenew,
	}, nil
}

// Activate transitions pending -> active. It reports whether the transition
// actually fired so the caller can emit SubscriptionActivated exactly once:
// activating an already-active subscription is an idempotent no-op, while
// cancelled and expired rows reject the move.
func (s *Subscription) Activate(now time.Time) (bool, error) {
	switch s.Status {
	case SubscriptionActive:
		return false, nil
	case SubscriptionCancelled, SubscriptionExpired:
		return false, ErrInvalidTransition
	}
	if !s.EndsAt.After(s.StartsAt) {
		return false, invalid("ends_at", "must be after starts_at")
	}
	if !s.EndsAt.After(now) {
		return false, invalid("ends_at", "window is already in the past")
	}
	s.Status = SubscriptionActive
	return true, nil
}

// Cancel is explicit and terminal.
func (s *Subscription) Cancel() error {
	switch s.Status {
	case SubscriptionCancelled:
		return nil
	case SubscriptionExpired:
		return ErrInvalidTransition
	}
	s.Status = SubscriptionCancelled
	return nil
}

// EffectiveStatus is the read-time truth: an active row whose window has
// passed reads as expired even before the sweep has updated it. Access
// checks must use this, not the stored status.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionActive && !s.EndsAt.After(now) {
		return SubscriptionExpired
	}
	return s.Status
}
