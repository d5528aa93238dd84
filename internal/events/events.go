// Package events defines the domain events emitted for external consumers
// (notifications, activity log). Emission happens strictly after commit and
// is at-least-once: each envelope carries a delivery id consumers can
// de-duplicate on, and the core guarantees at most one logical trigger per
// state transition, not at most one delivery.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeBooked                = "booking.booked"
	TypeWaitlistPromoted      = "booking.waitlist_promoted"
	TypePaymentSucceeded      = "payment.succeeded"
	TypeSubscriptionActivated = "subscription.activated"
)

// Event is the wire envelope for every domain event.
type Event struct {
	DeliveryID string    `json:"delivery_id"`
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	EntityID   string    `json:"entity_id"`
	MemberID   string    `json:"member_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an envelope with a fresh delivery id.
func New(eventType, tenantID, entityID, memberID string) Event {
	return Event{
		DeliveryID: uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		EntityID:   entityID,
		MemberID:   memberID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to external consumers. Implementations must not
// block domain writes: publishing runs after commit and a failed publish
// never rolls anything back.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
