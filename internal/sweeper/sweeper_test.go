package sweeper

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"alcyxob/gym-booking/internal/repository/memory"
	"alcyxob/gym-booking/internal/service"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const today = "2026-03-02"

func fixedNow() time.Time { return time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC) }

func TestRunOnce_PromotesAfterCapacityIncrease(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gymID := store.PutGym(domain.Gym{Name: "Downtown"})
	class := domain.ClassSession{GymID: gymID, Name: "Open Mat", Capacity: 1, StartTime: "20:00", Timezone: "UTC", DropInEnabled: true}
	class.ID = store.PutClass(class)

	booking := service.NewBookingService(store.Transactor(), store.Attendance(), store.Classes(), store.Users())
	var ids []primitive.ObjectID
	for _, name := range []string{"a", "b", "c"} {
		m := store.PutUser(domain.User{Name: name, Role: domain.RoleMember, Status: domain.MemberActive, GymIDs: []primitive.ObjectID{gymID}})
		res, err := booking.AttemptBooking(ctx, service.BookingRequest{GymID: gymID, ClassID: class.ID, MemberID: m, Date: today})
		require.NoError(t, err)
		require.False(t, res.Rejected())
		ids = append(ids, res.AttendanceID)
	}

	class.Capacity = 2
	store.PutClass(class)

	s := New(store.Attendance(), store.Classes(), booking, time.Minute)
	s.now = fixedNow

	promoted, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	second, err := store.Attendance().GetByID(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, second.Status)
	third, err := store.Attendance().GetByID(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitlisted, third.Status)

	promoted, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, promoted, "second sweep is a no-op")
}

// seedWaitlist books one seated member and two waitlisted ones, then frees a
// seat by raising capacity.
func seedWaitlist(t *testing.T, store *memory.Store, booking service.BookingService, class domain.ClassSession, date string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		m := store.PutUser(domain.User{Name: name, Role: domain.RoleMember, Status: domain.MemberActive, GymIDs: []primitive.ObjectID{class.GymID}})
		res, err := booking.AttemptBooking(ctx, service.BookingRequest{GymID: class.GymID, ClassID: class.ID, MemberID: m, Date: date})
		require.NoError(t, err)
		require.False(t, res.Rejected())
	}
	class.Capacity = 2
	store.PutClass(class)
}

func TestRunOnce_UsesClassLocalDate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	gymID := store.PutGym(domain.Gym{Name: "Venice"})
	booking := service.NewBookingService(store.Transactor(), store.Attendance(), store.Classes(), store.Users())

	// 21:00 on 2 March in Los Angeles is already 3 March in UTC.
	evening := domain.ClassSession{GymID: gymID, Name: "Evening No-Gi", Capacity: 1, StartTime: "21:30", Timezone: "America/Los_Angeles", DropInEnabled: true}
	evening.ID = store.PutClass(evening)
	seedWaitlist(t, store, booking, evening, "2026-03-02")

	// A UTC class on 2 March is in the past at this instant.
	stale := domain.ClassSession{GymID: gymID, Name: "Morning Drills", Capacity: 1, StartTime: "07:00", Timezone: "UTC", DropInEnabled: true}
	stale.ID = store.PutClass(stale)
	seedWaitlist(t, store, booking, stale, "2026-03-02")

	s := New(store.Attendance(), store.Classes(), booking, time.Minute)
	s.now = func() time.Time { return time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC) }

	promoted, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	page, err := booking.ListSessionRoster(ctx, gymID, evening.ID, "2026-03-02", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, countStatus(page.Items, domain.StatusBooked), "local evening session was reconciled")

	page, err = booking.ListSessionRoster(ctx, gymID, stale.ID, "2026-03-02", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, countStatus(page.Items, domain.StatusBooked), "past UTC session was left alone")
}

func countStatus(items []domain.Attendance, status domain.AttendanceStatus) int {
	n := 0
	for _, a := range items {
		if a.Status == status {
			n++
		}
	}
	return n
}

type stubLister struct {
	keys  map[string][]repository.SessionKey
	dates []string
	err   error
}

func (l *stubLister) SessionsWithWaitlist(_ context.Context, date string) ([]repository.SessionKey, error) {
	l.dates = append(l.dates, date)
	return l.keys[date], l.err
}

type stubClasses struct {
	missing primitive.ObjectID
}

func (c stubClasses) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ClassSession, error) {
	if id == c.missing {
		return nil, repository.ErrNotFound
	}
	return &domain.ClassSession{ID: id, Timezone: "UTC"}, nil
}

type stubReconciler struct {
	calls int
	fail  primitive.ObjectID
}

func (r *stubReconciler) ReconcileWaitlist(_ context.Context, _, classID primitive.ObjectID, _ string) (int, error) {
	r.calls++
	if classID == r.fail {
		return 0, errors.New("boom")
	}
	return 2, nil
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	bad := primitive.NewObjectID()
	gone := primitive.NewObjectID()
	lister := &stubLister{keys: map[string][]repository.SessionKey{today: {
		{GymID: primitive.NewObjectID(), ClassID: bad, Date: today},
		{GymID: primitive.NewObjectID(), ClassID: gone, Date: today},
		{GymID: primitive.NewObjectID(), ClassID: primitive.NewObjectID(), Date: today},
	}}}
	rec := &stubReconciler{fail: bad}
	s := New(lister, stubClasses{missing: gone}, rec, 0)
	s.now = fixedNow

	promoted, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 2, promoted)
	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, []string{"2026-03-01", today, "2026-03-03"}, lister.dates)
}

func TestRunOnce_SkipsSessionsNotTodayLocally(t *testing.T) {
	yesterday := "2026-03-01"
	lister := &stubLister{keys: map[string][]repository.SessionKey{
		yesterday: {{GymID: primitive.NewObjectID(), ClassID: primitive.NewObjectID(), Date: yesterday}},
	}}
	rec := &stubReconciler{}
	s := New(lister, stubClasses{}, rec, 0)
	s.now = fixedNow

	promoted, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, promoted)
	assert.Zero(t, rec.calls)
}

func TestRunOnce_ListError(t *testing.T) {
	s := New(&stubLister{err: errors.New("db down")}, stubClasses{}, &stubReconciler{}, 0)
	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&stubLister{}, stubClasses{}, &stubReconciler{}, 0)
	assert.Error(t, s.Start("not a schedule"))
	<-s.Stop().Done()
}
