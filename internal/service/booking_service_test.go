package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/events"
	"gymops-backend/internal/memstore"
	"gymops-backend/internal/ports"
	"gymops-backend/internal/scope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBookingFixture(capacity int) (BookingService, *memstore.Store) {
	store := memstore.New()
	store.PutClass(&domain.GymClass{ID: "class1", TenantID: "t1", BranchID: "b1", Name: "Spin", Capacity: capacity})
	store.PutSchedule(&domain.ClassSchedule{
		ID:       "sched1",
		TenantID: "t1",
		ClassID:  "class1",
		StartsAt: time.Now().Add(time.Hour),
		EndsAt:   time.Now().Add(2 * time.Hour),
	})
	svc := BookingService{
		Store:  store,
		Events: events.LogPublisher{Logger: testLogger()},
		Logger: testLogger(),
	}
	return svc, store
}

func activeCount(t *testing.T, store *memstore.Store, sc scope.Scope, scheduleID string) int {
	t.Helper()
	var n int
	err := store.WithScheduleLock(context.Background(), sc, scheduleID, func(ctx context.Context, tx ports.BookingTx) error {
		var err error
		n, err = tx.ActiveBookingCount(ctx, scheduleID)
		return err
	})
	require.NoError(t, err)
	return n
}

func TestBookingService_Book_ReservesSlot(t *testing.T) {
	svc, _ := newBookingFixture(10)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	assert.Equal(t, domain.BookingReserved, res.Booking.Status)
	assert.Equal(t, "sched1", res.Booking.ScheduleID)
	assert.Equal(t, "member1", res.Booking.MemberID)
}

func TestBookingService_Book_RejectsDuplicateActiveBooking(t *testing.T) {
	svc, _ := newBookingFixture(10)
	sc := scope.ForTenant("t1")

	_, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	// Same member, same schedule: no double reservation, no row created.
	_, err = svc.Book(context.Background(), sc, "sched1", "member1")
	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)
}

func TestBookingService_Book_EnforcesCapacity(t *testing.T) {
	// GIVEN a class with two slots
	svc, store := newBookingFixture(2)
	sc := scope.ForTenant("t1")

	_, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)

	// WHEN a third member books
	_, err = svc.Book(context.Background(), sc, "sched1", "member3")

	// THEN the guard rejects without creating a row
	assert.ErrorIs(t, err, domain.ErrCapacityReached)
	assert.Equal(t, 2, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_Book_ZeroCapacityIsUnlimited(t *testing.T) {
	svc, store := newBookingFixture(0)
	sc := scope.ForTenant("t1")

	for _, m := range []string{"m1", "m2", "m3", "m4", "m5"} {
		_, err := svc.Book(context.Background(), sc, "sched1", m)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_Book_ConcurrentRequestsNeverOverbook(t *testing.T) {
	// GIVEN two slots and three racing members
	svc, store := newBookingFixture(2)
	sc := scope.ForTenant("t1")

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, m := range []string{"member1", "member2", "member3"} {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), sc, "sched1", member)
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)

	// THEN exactly two won and one was rejected, regardless of ordering
	var ok, full int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrCapacityReached):
			full++
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, full)
	assert.Equal(t, 2, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_Book_CrossTenantLooksLikeMissing(t *testing.T) {
	svc, _ := newBookingFixture(10)

	// A schedule id from another tenant resolves exactly like a miss.
	_, err := svc.Book(context.Background(), scope.ForTenant("t2"), "sched1", "member1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_CancelBooking_PromotesFirstWaitlisted(t *testing.T) {
	// GIVEN a full class with two members queued
	svc, store := newBookingFixture(1)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	first, err := svc.JoinWaitlist(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)
	second, err := svc.JoinWaitlist(context.Background(), sc, "sched1", "member3")
	require.NoError(t, err)
	require.Less(t, first.Position, second.Position)

	// WHEN the booking is cancelled
	cancel, err := svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)

	// THEN the earliest queued member takes the freed slot atomically
	assert.Equal(t, domain.BookingCancelled, cancel.Booking.Status)
	require.NotNil(t, cancel.Promoted)
	assert.Equal(t, "member2", cancel.Promoted.MemberID)
	assert.Equal(t, domain.BookingReserved, cancel.Promoted.Status)

	// One slot freed, one filled: the active count is unchanged.
	assert.Equal(t, 1, activeCount(t, store, sc, "sched1"))

	// member3 stays queued and is promoted on the next cancellation.
	next, err := svc.CancelBooking(context.Background(), sc, cancel.Promoted.ID)
	require.NoError(t, err)
	require.NotNil(t, next.Promoted)
	assert.Equal(t, "member3", next.Promoted.MemberID)
}

func TestBookingService_CancelBooking_SkipsWaitlistedMemberWhoBookedDirectly(t *testing.T) {
	// GIVEN member2 queued on the waitlist and then booked into a free slot
	svc, store := newBookingFixture(2)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)
	_, err = svc.JoinWaitlist(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)
	res2, err := svc.Book(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)

	// WHEN member1's booking is cancelled
	cancel, err := svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)

	// THEN the stale entry is dropped, not re-booked: member2 keeps exactly
	// one active booking and no promotion happened
	assert.Nil(t, cancel.Promoted)
	assert.Equal(t, 1, activeCount(t, store, sc, "sched1"))

	// The stale row is gone: the next cancellation finds an empty queue.
	again, err := svc.CancelBooking(context.Background(), sc, res2.Booking.ID)
	require.NoError(t, err)
	assert.Nil(t, again.Promoted)
	assert.Equal(t, 0, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_CancelBooking_PromotesPastStaleEntries(t *testing.T) {
	// GIVEN a stale entry (member2 booked directly) queued ahead of member3
	svc, store := newBookingFixture(2)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)
	_, err = svc.JoinWaitlist(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)
	_, err = svc.JoinWaitlist(context.Background(), sc, "sched1", "member3")
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)

	// WHEN a slot frees up
	cancel, err := svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)

	// THEN member3 is promoted past member2's stale entry
	require.NotNil(t, cancel.Promoted)
	assert.Equal(t, "member3", cancel.Promoted.MemberID)
	assert.Equal(t, 2, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_CancelBooking_NoWaitlistLeavesSlotFree(t *testing.T) {
	svc, store := newBookingFixture(1)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	cancel, err := svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)

	assert.Nil(t, cancel.Promoted)
	assert.Equal(t, 0, activeCount(t, store, sc, "sched1"))
}

func TestBookingService_CancelBooking_RejectsInactiveBooking(t *testing.T) {
	svc, _ := newBookingFixture(1)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)
	_, err = svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)

	// Cancelling twice is an invalid transition, not a silent no-op.
	_, err = svc.CancelBooking(context.Background(), sc, res.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBookingService_JoinWaitlist_RejectsDuplicate(t *testing.T) {
	svc, _ := newBookingFixture(1)
	sc := scope.ForTenant("t1")

	_, err := svc.JoinWaitlist(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)

	_, err = svc.JoinWaitlist(context.Background(), sc, "sched1", "member2")
	assert.ErrorIs(t, err, domain.ErrDuplicateWaitlist)
}

func TestBookingService_CheckIn_OnlyFromReserved(t *testing.T) {
	svc, _ := newBookingFixture(10)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	b, err := svc.CheckIn(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCheckedIn, b.Status)

	// Checked-in bookings cannot check in again or become no-shows.
	_, err = svc.CheckIn(context.Background(), sc, res.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = svc.MarkNoShow(context.Background(), sc, res.Booking.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBookingService_MarkNoShow_FreesSlot(t *testing.T) {
	svc, store := newBookingFixture(1)
	sc := scope.ForTenant("t1")

	res, err := svc.Book(context.Background(), sc, "sched1", "member1")
	require.NoError(t, err)

	b, err := svc.MarkNoShow(context.Background(), sc, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingNoShow, b.Status)

	// The slot is free again for another member.
	assert.Equal(t, 0, activeCount(t, store, sc, "sched1"))
	_, err = svc.Book(context.Background(), sc, "sched1", "member2")
	require.NoError(t, err)
}
