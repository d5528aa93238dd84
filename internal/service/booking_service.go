package service

import (
	"context"
	"log/slog"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/events"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"
)

// BookingService is the booking guard: the one place allowed to mutate the
// active-booking count of a schedule. Capacity check and insert run inside a
// single transaction holding a write lock on the schedule, so two callers
// can never both observe "count < capacity" and both insert. Contention is
// scoped per schedule; bookings on other schedules do not block.
type BookingService struct {
	Store  ports.BookingStore
	Events events.Publisher
	Logger *slog.Logger
}

// BookingResult is what a Book call produced.
type BookingResult struct {
	Booking *domain.ClassBooking
}

// Book reserves one unit of the schedule's capacity for the member.
// Deterministic rejections: domain.ErrDuplicateBooking when the member
// already holds an active booking, domain.ErrCapacityReached when the class
// is full. Neither creates a row; the caller decides whether to offer the
// waitlist. The Booked event is emitted after commit.
func (s BookingService) Book(ctx context.Context, sc scope.Scope, scheduleID, memberID string) (*BookingResult, error) {
	var booking *domain.ClassBooking

	err := s.Store.WithScheduleLock(ctx, sc, scheduleID, func(ctx context.Context, tx ports.BookingTx) error {
		dup, err := tx.HasActiveBooking(ctx, scheduleID, memberID)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateBooking
		}

		capacity, err := tx.ScheduleCapacity(ctx, scheduleID)
		if err != nil {
			return err
		}
		if capacity > 0 {
			active, err := tx.ActiveBookingCount(ctx, scheduleID)
			if err != nil {
				return err
			}
			if active >= capacity {
				return domain.ErrCapacityReached
			}
		}

		booking = &domain.ClassBooking{
			ID:         domain.NewID(),
			TenantID:   sc.TenantID,
			ScheduleID: scheduleID,
			MemberID:   memberID,
			Status:     domain.BookingReserved,
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeBooked, sc.TenantID, booking.ID, memberID))
	return &BookingResult{Booking: booking}, nil
}

// JoinWaitlist appends the member to the schedule's waitlist. Position is
// insertion order; unique per member and schedule.
func (s BookingService) JoinWaitlist(ctx context.Context, sc scope.Scope, scheduleID, memberID string) (*domain.WaitlistEntry, error) {
	return s.Store.JoinWaitlist(ctx, sc, scheduleID, memberID)
}

// CancelResult reports what a cancellation freed and, when a pending
// waitlist entry existed, which entry was promoted into the freed slot.
type CancelResult struct {
	Booking  *domain.ClassBooking
	Promoted *domain.ClassBooking
}

// CancelBooking cancels an active booking and, in the same transaction,
// promotes the earliest waitlist entry (by position) into a reserved
// booking, removing it from the waitlist. Entries whose member already
// holds an active booking are stale and get dropped instead of promoted.
// The schedule's active count is unchanged when a promotion happens: one
// slot freed, one filled.
func (s BookingService) CancelBooking(ctx context.Context, sc scope.Scope, bookingID string) (*CancelResult, error) {
	existing, err := s.Store.BookingByID(ctx, sc, bookingID)
	if err != nil {
		return nil, err
	}

	res := &CancelResult{}
	err = s.Store.WithScheduleLock(ctx, sc, existing.ScheduleID, func(ctx context.Context, tx ports.BookingTx) error {
		// Re-read under the lock; status may have moved since the lookup.
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Active() {
			return domain.ErrInvalidTransition
		}
		if err := tx.SetBookingStatus(ctx, b.ID, domain.BookingCancelled); err != nil {
			return err
		}
		b.Status = domain.BookingCancelled
		res.Booking = b

		for {
			next, err := tx.FirstPendingWaitlist(ctx, b.ScheduleID)
			if err != nil {
				if domain.IsNotFound(err) {
					return nil
				}
				return err
			}
			// A queued member may have booked directly since joining.
			// Their entry is stale: drop it and try the next one, or the
			// promotion insert would collide with their active booking.
			dup, err := tx.HasActiveBooking(ctx, b.ScheduleID, next.MemberID)
			if err != nil {
				return err
			}
			if dup {
				if err := tx.RemoveWaitlistEntry(ctx, next.ID); err != nil {
					return err
				}
				continue
			}
			promoted := &domain.ClassBooking{
				ID:         domain.NewID(),
				TenantID:   sc.TenantID,
				ScheduleID: b.ScheduleID,
				MemberID:   next.MemberID,
				Status:     domain.BookingReserved,
			}
			if err := tx.InsertBooking(ctx, promoted); err != nil {
				return err
			}
			if err := tx.RemoveWaitlistEntry(ctx, next.ID); err != nil {
				return err
			}
			res.Promoted = promoted
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if res.Promoted != nil {
		s.publish(ctx, events.New(events.TypeWaitlistPromoted, sc.TenantID, res.Promoted.ID, res.Promoted.MemberID))
		s.publish(ctx, events.New(events.TypeBooked, sc.TenantID, res.Promoted.ID, res.Promoted.MemberID))
	}
	return res, nil
}

// CheckIn moves a reserved booking to checked_in. The booking stays active,
// so capacity accounting is unchanged.
func (s BookingService) CheckIn(ctx context.Context, sc scope.Scope, bookingID string) (*domain.ClassBooking, error) {
	return s.transition(ctx, sc, bookingID, domain.BookingReserved, domain.BookingCheckedIn)
}

// MarkNoShow moves a reserved booking to no_show, freeing its slot.
func (s BookingService) MarkNoShow(ctx context.Context, sc scope.Scope, bookingID string) (*domain.ClassBooking, error) {
	return s.transition(ctx, sc, bookingID, domain.BookingReserved, domain.BookingNoShow)
}

func (s BookingService) transition(ctx context.Context, sc scope.Scope, bookingID string, from, to domain.BookingStatus) (*domain.ClassBooking, error) {
	existing, err := s.Store.BookingByID(ctx, sc, bookingID)
	if err != nil {
		return nil, err
	}

	var out *domain.ClassBooking
	err = s.Store.WithScheduleLock(ctx, sc, existing.ScheduleID, func(ctx context.Context, tx ports.BookingTx) error {
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != from {
			return domain.ErrInvalidTransition
		}
		if err := tx.SetBookingStatus(ctx, b.ID, to); err != nil {
			return err
		}
		b.Status = to
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s BookingService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Logger.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}
