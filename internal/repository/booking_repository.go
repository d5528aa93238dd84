package repository

import (
	"context"
	"errors"
	"time"

	"gymops-backend/internal/db"
	"gymops-backend/internal/domain"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// BookingRepository implements ports.BookingStore on Postgres. The schedule
// row is the lock: WithScheduleLock takes FOR UPDATE on it, so the capacity
// check-and-insert serializes per schedule while other schedules stay
// uncontended. The partial unique index on active bookings and the capacity
// CHECKs are the storage backstop if anything bypasses this path.
type BookingRepository struct {
	DB *db.Postgres
}

// pgxQuerier is satisfied by both pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

func (r BookingRepository) WithScheduleLock(ctx context.Context, sc scope.Scope, scheduleID string, fn func(ctx context.Context, btx ports.BookingTx) error) error {
	if !sc.Valid() {
		return domain.ErrNotFound
	}
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serialize on this schedule only. A missing row is indistinguishable
	// from a cross-tenant row on purpose.
	var lockedID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM class_schedules
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, sc.TenantID, scheduleID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	if err := fn(ctx, bookingTx{q: tx, scope: sc}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r BookingRepository) BookingByID(ctx context.Context, sc scope.Scope, id string) (*domain.ClassBooking, error) {
	return scanBooking(ctx, r.DB.Pool, sc, id)
}

func (r BookingRepository) JoinWaitlist(ctx context.Context, sc scope.Scope, scheduleID, memberID string) (*domain.WaitlistEntry, error) {
	if !sc.Valid() {
		return nil, domain.ErrNotFound
	}
	tx, err := r.DB.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var schedID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM class_schedules
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, sc.TenantID, scheduleID).Scan(&schedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	entry := &domain.WaitlistEntry{
		ID:         domain.NewID(),
		TenantID:   sc.TenantID,
		ScheduleID: scheduleID,
		MemberID:   memberID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO class_waitlist (id, tenant_id, schedule_id, member_id, position)
		SELECT $1, $2, $3, $4, COALESCE(MAX(position), 0) + 1
		FROM class_waitlist
		WHERE tenant_id = $2 AND schedule_id = $3
		RETURNING position, created_at
	`, entry.ID, sc.TenantID, scheduleID, memberID).Scan(&entry.Position, &entry.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrDuplicateWaitlist
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r BookingRepository) MarkWaitlistNotified(ctx context.Context, sc scope.Scope, entryID string, at time.Time) error {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE class_waitlist SET notified_at = $3
		WHERE tenant_id = $1 AND id = $2
	`, sc.TenantID, entryID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// bookingTx runs inside the schedule lock.
type bookingTx struct {
	q     pgxQuerier
	scope scope.Scope
}

func (t bookingTx) ScheduleCapacity(ctx context.Context, scheduleID string) (int, error) {
	var capacity int
	err := t.q.QueryRow(ctx, `
		SELECT c.capacity
		FROM class_schedules s
		JOIN gym_classes c ON c.id = s.class_id
		WHERE s.tenant_id = $1 AND s.id = $2 AND s.deleted_at IS NULL
	`, t.scope.TenantID, scheduleID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return capacity, nil
}

func (t bookingTx) ActiveBookingCount(ctx context.Context, scheduleID string) (int, error) {
	var n int
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM class_bookings
		WHERE tenant_id = $1 AND schedule_id = $2 AND status IN ('reserved', 'checked_in')
	`, t.scope.TenantID, scheduleID).Scan(&n)
	return n, err
}

func (t bookingTx) HasActiveBooking(ctx context.Context, scheduleID, memberID string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM class_bookings
			WHERE tenant_id = $1 AND schedule_id = $2 AND member_id = $3
			  AND status IN ('reserved', 'checked_in')
		)
	`, t.scope.TenantID, scheduleID, memberID).Scan(&exists)
	return exists, err
}

func (t bookingTx) InsertBooking(ctx context.Context, b *domain.ClassBooking) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO class_bookings (id, tenant_id, schedule_id, member_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, b.ID, t.scope.TenantID, b.ScheduleID, b.MemberID, b.Status).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil && db.IsUniqueViolation(err) {
		// The partial unique index caught a duplicate the in-process check
		// missed; report it as the same business outcome.
		return domain.ErrDuplicateBooking
	}
	return err
}

func (t bookingTx) BookingByID(ctx context.Context, id string) (*domain.ClassBooking, error) {
	return scanBooking(ctx, t.q, t.scope, id)
}

func (t bookingTx) SetBookingStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE class_bookings SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, t.scope.TenantID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t bookingTx) FirstPendingWaitlist(ctx context.Context, scheduleID string) (*domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	err := t.q.QueryRow(ctx, `
		SELECT id, tenant_id, schedule_id, member_id, position, notified_at, created_at
		FROM class_waitlist
		WHERE tenant_id = $1 AND schedule_id = $2
		ORDER BY position ASC
		LIMIT 1
	`, t.scope.TenantID, scheduleID).Scan(
		&e.ID, &e.TenantID, &e.ScheduleID, &e.MemberID, &e.Position, &e.NotifiedAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (t bookingTx) RemoveWaitlistEntry(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `
		DELETE FROM class_waitlist WHERE tenant_id = $1 AND id = $2
	`, t.scope.TenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBooking(ctx context.Context, q pgxQuerier, sc scope.Scope, id string) (*domain.ClassBooking, error) {
	var b domain.ClassBooking
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, schedule_id, member_id, status, created_at, updated_at
		FROM class_bookings
		WHERE tenant_id = $1 AND id = $2
	`, sc.TenantID, id).Scan(
		&b.ID, &b.TenantID, &b.ScheduleID, &b.MemberID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListBookingsBySchedule returns all bookings for a schedule, newest first.
func (r BookingRepository) ListBookingsBySchedule(ctx context.Context, sc scope.Scope, scheduleID string, limit int) ([]domain.ClassBooking, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, tenant_id, schedule_id, member_id, status, created_at, updated_at
		FROM class_bookings
		WHERE tenant_id = $1 AND schedule_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, sc.TenantID, scheduleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ClassBooking
	for rows.Next() {
		var b domain.ClassBooking
		if err := rows.Scan(&b.ID, &b.TenantID, &b.ScheduleID, &b.MemberID, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
