package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() *Plan {
	return &Plan{ID: "p1", TenantID: "t1", Name: "Monthly", DurationDays: 30, Price: Money(4900), Status: PlanActive}
}

func TestNewSubscription_CoversPlanWindow(t *testing.T) {
	starts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sub, err := NewSubscription("t1", "m1", testPlan(), starts, true)
	require.NoError(t, err)

	assert.Equal(t, SubscriptionPending, sub.Status)
	assert.Equal(t, starts.AddDate(0, 0, 30), sub.EndsAt)
	assert.True(t, sub.AutoRenew)
}

func TestSubscription_Activate_FiresOnce(t *testing.T) {
	now := time.Now()
	sub, err := NewSubscription("t1", "m1", testPlan(), now, false)
	require.NoError(t, err)

	// WHEN activated twice
	fired, err := sub.Activate(now)
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = sub.Activate(now)
	require.NoError(t, err)

	// THEN the second call is an idempotent no-op
	assert.False(t, fired)
	assert.Equal(t, SubscriptionActive, sub.Status)
}

func TestSubscription_Activate_RejectsTerminalStates(t *testing.T) {
	now := time.Now()

	sub, err := NewSubscription("t1", "m1", testPlan(), now, false)
	require.NoError(t, err)
	require.NoError(t, sub.Cancel())
	_, err = sub.Activate(now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	sub, err = NewSubscription("t1", "m1", testPlan(), now, false)
	require.NoError(t, err)
	sub.Status = SubscriptionExpired
	_, err = sub.Activate(now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubscription_Activate_RejectsPastWindow(t *testing.T) {
	starts := time.Now().AddDate(0, 0, -60)
	sub, err := NewSubscription("t1", "m1", testPlan(), starts, false)
	require.NoError(t, err)

	// The whole window is already behind us.
	_, err = sub.Activate(time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubscription_Cancel_IsTerminal(t *testing.T) {
	now := time.Now()
	sub, err := NewSubscription("t1", "m1", testPlan(), now, false)
	require.NoError(t, err)

	require.NoError(t, sub.Cancel())
	assert.Equal(t, SubscriptionCancelled, sub.Status)

	// Cancelling again is a no-op; expired rows reject it.
	require.NoError(t, sub.Cancel())

	sub.Status = SubscriptionExpired
	assert.ErrorIs(t, sub.Cancel(), ErrInvalidTransition)
}

func TestSubscription_EffectiveStatus_DerivesExpiry(t *testing.T) {
	now := time.Now()
	sub, err := NewSubscription("t1", "m1", testPlan(), now.AddDate(0, 0, -10), false)
	require.NoError(t, err)
	_, err = sub.Activate(now)
	require.NoError(t, err)

	// GIVEN the stored row is still active
	assert.Equal(t, SubscriptionActive, sub.Status)

	// THEN readers past the window see expired before any sweep runs
	assert.Equal(t, SubscriptionActive, sub.EffectiveStatus(now))
	assert.Equal(t, SubscriptionExpired, sub.EffectiveStatus(now.AddDate(0, 0, 21)))
}
