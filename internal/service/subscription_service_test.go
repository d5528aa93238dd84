package service

import (
	"context"
	"testing"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/events"
	"gymops-backend/internal/memstore"
	"gymops-backend/internal/scope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriptionFixture() (SubscriptionService, *memstore.Store) {
	store := memstore.New()
	store.PutPlan(&domain.Plan{ID: "plan1", TenantID: "t1", Name: "Monthly", DurationDays: 30, Price: domain.Money(4900), Status: domain.PlanActive})
	svc := SubscriptionService{
		Store:  store,
		Events: events.LogPublisher{Logger: testLogger()},
		Logger: testLogger(),
	}
	return svc, store
}

func TestSubscriptionService_ActivateSubscription_CoversPlanWindow(t *testing.T) {
	svc, _ := newSubscriptionFixture()
	sc := scope.ForTenant("t1")

	starts := time.Now()
	sub, err := svc.ActivateSubscription(context.Background(), sc, ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "plan1",
		StartsAt: starts,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, starts.AddDate(0, 0, 30), sub.EndsAt)
}

func TestSubscriptionService_ActivateSubscription_UnknownPlan(t *testing.T) {
	svc, _ := newSubscriptionFixture()

	_, err := svc.ActivateSubscription(context.Background(), scope.ForTenant("t1"), ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "nope",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A plan in another tenant is just as invisible.
	_, err = svc.ActivateSubscription(context.Background(), scope.ForTenant("t2"), ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "plan1",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscriptionService_CreatePending_WaitsForPayment(t *testing.T) {
	svc, _ := newSubscriptionFixture()
	sc := scope.ForTenant("t1")

	sub, err := svc.CreatePending(context.Background(), sc, ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "plan1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionPending, sub.Status)
}

func TestSubscriptionService_Cancel_IsTerminal(t *testing.T) {
	svc, _ := newSubscriptionFixture()
	sc := scope.ForTenant("t1")

	sub, err := svc.ActivateSubscription(context.Background(), sc, ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "plan1",
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), sc, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, cancelled.Status)
}

func TestSubscriptionService_ExpireDue_ConvergesStoredState(t *testing.T) {
	// GIVEN an active subscription whose window has passed and one still live
	svc, store := newSubscriptionFixture()
	sc := scope.ForTenant("t1")

	past := &domain.Subscription{
		ID: "sub-past", TenantID: "t1", MemberID: "member1", PlanID: "plan1",
		StartsAt: time.Now().AddDate(0, 0, -60),
		EndsAt:   time.Now().AddDate(0, 0, -30),
		Status:   domain.SubscriptionActive,
	}
	live := &domain.Subscription{
		ID: "sub-live", TenantID: "t1", MemberID: "member2", PlanID: "plan1",
		StartsAt: time.Now().AddDate(0, 0, -5),
		EndsAt:   time.Now().AddDate(0, 0, 25),
		Status:   domain.SubscriptionActive,
	}
	store.PutSubscription(past)
	store.PutSubscription(live)

	// WHEN the sweep runs
	n, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)

	// THEN only the past-window row flips
	assert.Equal(t, int64(1), n)
	got, err := store.SubscriptionByID(context.Background(), sc, "sub-past")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionExpired, got.Status)
	got, err = store.SubscriptionByID(context.Background(), sc, "sub-live")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, got.Status)

	// Running again finds nothing left to converge.
	n, err = svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSubscriptionService_FixedClock(t *testing.T) {
	// The service accepts an injected clock so activation windows are
	// deterministic in tests.
	svc, _ := newSubscriptionFixture()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	sc := scope.ForTenant("t1")

	sub, err := svc.ActivateSubscription(context.Background(), sc, ActivateSubscriptionInput{
		MemberID: "member1",
		PlanID:   "plan1",
	})
	require.NoError(t, err)

	assert.Equal(t, now, sub.StartsAt)
	assert.Equal(t, now.AddDate(0, 0, 30), sub.EndsAt)
}
