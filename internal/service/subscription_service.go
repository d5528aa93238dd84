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

// SubscriptionService owns the member-to-plan entitlement lifecycle.
type SubscriptionService struct {
	Store  ports.SubscriptionStore
	Events events.Publisher
	Logger *slog.Logger
	Now    func() time.Time
}

func (s SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type ActivateSubscriptionInput struct {
	MemberID  string
	PlanID    string
	StartsAt  time.Time
	AutoRenew bool
}

// ActivateSubscription creates a subscription for the plan's window and
// activates it immediately (explicit staff activation). Payment-driven
// activation instead goes through the ledger's one-shot trigger and calls
// Subscription.Activate on a pending row. Emits SubscriptionActivated once.
func (s SubscriptionService) ActivateSubscription(ctx context.Context, sc scope.Scope, in ActivateSubscriptionInput) (*domain.Subscription, error) {
	plan, err := s.Store.PlanByID(ctx, sc, in.PlanID)
	if err != nil {
		return nil, err
	}
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = s.now()
	}
	sub, err := domain.NewSubscription(sc.TenantID, in.MemberID, plan, startsAt, in.AutoRenew)
	if err != nil {
		return nil, err
	}
	fired, err := sub.Activate(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateSubscription(ctx, sc, sub); err != nil {
		return nil, err
	}
	if fired {
		s.publish(ctx, events.New(events.TypeSubscriptionActivated, sc.TenantID, sub.ID, sub.MemberID))
	}
	return sub, nil
}

// CreatePending creates a subscription that waits for a covering payment.
func (s SubscriptionService) CreatePending(ctx context.Context, sc scope.Scope, in ActivateSubscriptionInput) (*domain.Subscription, error) {
	plan, err := s.Store.PlanByID(ctx, sc, in.PlanID)
	if err != nil {
		return nil, err
	}
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = s.now()
	}
	sub, err := domain.NewSubscription(sc.TenantID, in.MemberID, plan, startsAt, in.AutoRenew)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateSubscription(ctx, sc, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel is explicit and terminal.
func (s SubscriptionService) Cancel(ctx context.Context, sc scope.Scope, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.Store.SubscriptionByID(ctx, sc, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := sub.Cancel(); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateSubscription(ctx, sc, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ExpireDue is the time-driven sweep. Readers do not depend on it for
// correctness: EffectiveStatus already treats past-window active rows as
// expired. The sweep just converges stored state.
func (s SubscriptionService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.Store.ExpireActiveBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Logger.Info("expired subscriptions", "count", n)
	}
	return n, nil
}

// RunExpirySweep loops ExpireDue on the given interval until ctx ends.
func (s SubscriptionService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireDue(ctx); err != nil {
				s.Logger.Error("subscription expiry sweep failed", "err", err)
			}
		}
	}
}

func (s SubscriptionService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Logger.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}
