package memory

import (
	"alcyxob/gym-booking/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedAttendance(t *testing.T, s *Store, status domain.AttendanceStatus) primitive.ObjectID {
	t.Helper()
	id, err := s.Attendance().Create(context.Background(), &domain.Attendance{
		GymID:       primitive.NewObjectID(),
		ClassID:     primitive.NewObjectID(),
		SessionDate: "2026-03-02",
		MemberID:    primitive.NewObjectID(),
		Status:      status,
		BookedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return id
}

func TestTransition_StampsPromotedAtOnlyOffWaitlist(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Attendance()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	waiting := seedAttendance(t, s, domain.StatusWaitlisted)
	require.NoError(t, repo.Transition(ctx, waiting, domain.StatusBooked, at))
	got, err := repo.GetByID(ctx, waiting)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, got.Status)
	require.NotNil(t, got.PromotedAt)
	assert.True(t, at.Equal(*got.PromotedAt))

	cancelled := seedAttendance(t, s, domain.StatusCancelled)
	require.NoError(t, repo.Transition(ctx, cancelled, domain.StatusBooked, at))
	got, err = repo.GetByID(ctx, cancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, got.Status)
	assert.Nil(t, got.PromotedAt, "re-seating a cancelled record is not a promotion")
}

func TestTransition_StampsMatchingTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Attendance()
	at := time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)

	id := seedAttendance(t, s, domain.StatusBooked)
	require.NoError(t, repo.Transition(ctx, id, domain.StatusAttended, at))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.CheckedInAt)
	assert.Nil(t, got.CancelledAt)
	assert.True(t, at.Equal(got.UpdatedAt))

	require.NoError(t, repo.Transition(ctx, id, domain.StatusCancelled, at.Add(time.Hour)))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	assert.NotNil(t, got.CheckedInAt, "earlier stamps are kept")
}

func TestTransition_RejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id := seedAttendance(t, s, domain.StatusBooked)

	assert.Error(t, s.Attendance().Transition(ctx, id, domain.AttendanceStatus("no_show"), time.Now()))
	got, err := s.Attendance().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, got.Status)
}
