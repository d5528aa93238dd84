package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for rows that do not exist in the caller's
	// tenant. Cross-tenant hits deliberately look identical to misses.
	ErrNotFound = errors.New("not found")

	// ErrCapacityReached is a business outcome, not a fault: the schedule
	// is full and the caller may offer the waitlist instead.
	ErrCapacityReached = errors.New("class capacity reached")

	// ErrDuplicateBooking is returned when the member already holds an
	// active booking for the schedule.
	ErrDuplicateBooking = errors.New("member already booked for this schedule")

	// ErrDuplicateWaitlist is returned when the member is already on the
	// schedule's waitlist.
	ErrDuplicateWaitlist = errors.New("member already on waitlist")

	// ErrInvalidTransition is returned for state-machine moves that are
	// not allowed, e.g. activating a cancelled subscription.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrArchived is returned when a write targets a soft-deleted row.
	ErrArchived = errors.New("record is archived")

	// ErrValidation is the base of all input/invariant validation errors.
	ErrValidation = errors.New("validation failed")
)

// ValidationError names the field and rule that failed, so callers can
// report exactly what was wrong before any write happened.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, rule string) error {
	return &ValidationError{Field: field, Rule: rule}
}

// IsNotFound reports whether the error hides a missing or foreign row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports deliberate business rejections: capacity, duplicates,
// bad transitions. These are deterministic and must not be retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCapacityReached) ||
		errors.Is(err, ErrDuplicateBooking) ||
		errors.Is(err, ErrDuplicateWaitlist) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrArchived)
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsConflict(err)
}
