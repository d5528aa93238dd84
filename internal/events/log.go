package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the application log. Used when no broker is
// configured and as the publisher in tests.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Logger.Info("domain event",
		"type", ev.Type,
		"tenant_id", ev.TenantID,
		"entity_id", ev.EntityID,
		"delivery_id", ev.DeliveryID,
	)
	return nil
}
