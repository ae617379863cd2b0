package service

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository/memory"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testDate = "2026-03-02"

// fakeClock hands out strictly increasing instants so FIFO order is the call order.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store   *memory.Store
	clock   *fakeClock
	booking *bookingService
	gymID   primitive.ObjectID
	classID primitive.ObjectID
	staff   domain.Actor
}

func newFixture(t *testing.T, capacity domain.Capacity) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()

	gymID := store.PutGym(domain.Gym{
		Name: "Downtown",
		Programs: []domain.Program{
			{ID: "bjj", Name: "Brazilian Jiu-Jitsu", Ranks: []domain.Rank{
				{ID: "bb1", Name: "Blue Belt", Order: 2},
				{ID: "wb1", Name: "White Belt", Order: 1},
			}},
			{ID: "open", Name: "Open Mat"},
		},
	})
	classID := store.PutClass(domain.ClassSession{
		GymID:          gymID,
		Name:           "Fundamentals",
		ProgramID:      "bjj",
		Capacity:       capacity,
		AllowedPlanIDs: []string{"unlimited"},
		StartTime:      "18:00",
		Timezone:       "UTC",
	})

	svc := NewBookingService(store.Transactor(), store.Attendance(), store.Classes(), store.Users()).(*bookingService)
	svc.now = clock.Now

	return &fixture{
		store:   store,
		clock:   clock,
		booking: svc,
		gymID:   gymID,
		classID: classID,
		staff:   domain.Actor{UserID: primitive.NewObjectID(), Role: domain.RoleStaff},
	}
}

func (f *fixture) member(name string) primitive.ObjectID {
	return f.store.PutUser(domain.User{
		Name:   name,
		Email:  name + "@example.com",
		Role:   domain.RoleMember,
		Status: domain.MemberActive,
		PlanID: "unlimited",
		GymIDs: []primitive.ObjectID{f.gymID},
	})
}

func (f *fixture) request(memberID primitive.ObjectID) BookingRequest {
	return BookingRequest{GymID: f.gymID, ClassID: f.classID, MemberID: memberID, Date: testDate}
}

func (f *fixture) book(t *testing.T, memberID primitive.ObjectID) *BookingResult {
	t.Helper()
	res, err := f.booking.AttemptBooking(context.Background(), f.request(memberID))
	require.NoError(t, err)
	require.Nil(t, res.Rejection, "unexpected rejection: %+v", res.Rejection)
	return res
}

func (f *fixture) status(t *testing.T, id primitive.ObjectID) domain.AttendanceStatus {
	t.Helper()
	a, err := f.store.Attendance().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func (f *fixture) seated(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Attendance().CountByStatus(context.Background(), f.classID, testDate, domain.SeatStatuses...)
	require.NoError(t, err)
	return n
}

func memberActor(id primitive.ObjectID) domain.Actor {
	return domain.Actor{UserID: id, Role: domain.RoleMember}
}

func defaultMember(f *fixture, name, email string) domain.User {
	return domain.User{
		Name:   name,
		Email:  email,
		Role:   domain.RoleMember,
		Status: domain.MemberActive,
		PlanID: "unlimited",
		GymIDs: []primitive.ObjectID{f.gymID},
	}
}
