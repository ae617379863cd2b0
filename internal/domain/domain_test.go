package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCapacity_UnmarshalBSON(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.M
		want Capacity
	}{
		{"int32", bson.M{"capacity": int32(12)}, 12},
		{"int64", bson.M{"capacity": int64(30)}, 30},
		{"double", bson.M{"capacity": 8.0}, 8},
		{"numeric string", bson.M{"capacity": " 15 "}, 15},
		{"garbage string", bson.M{"capacity": "lots"}, 0},
		{"null", bson.M{"capacity": nil}, 0},
		{"boolean", bson.M{"capacity": true}, 0},
		{"absent", bson.M{"name": "Open Mat"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			require.NoError(t, err)

			var cs ClassSession
			require.NoError(t, bson.Unmarshal(raw, &cs))
			assert.Equal(t, tt.want, cs.Capacity)
		})
	}
}

func TestCapacity_Effective(t *testing.T) {
	assert.Equal(t, UnlimitedCapacity, Capacity(0).Effective())
	assert.Equal(t, UnlimitedCapacity, Capacity(-4).Effective())
	assert.Equal(t, 2, Capacity(2).Effective())
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]AttendanceStatus{
		{StatusBooked, StatusAttended},
		{StatusBooked, StatusCancelled},
		{StatusWaitlisted, StatusBooked},
		{StatusWaitlisted, StatusCancelled},
		{StatusAttended, StatusCancelled},
		{StatusCancelled, StatusBooked},
		{StatusCancelled, StatusWaitlisted},
	}
	for _, p := range allowed {
		assert.True(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}

	denied := [][2]AttendanceStatus{
		{StatusWaitlisted, StatusAttended},
		{StatusAttended, StatusBooked},
		{StatusCancelled, StatusAttended},
		{StatusBooked, StatusWaitlisted},
		{StatusBooked, StatusBooked},
	}
	for _, p := range denied {
		assert.False(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}
}

func TestAttendance_ApplyTransition(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := &Attendance{Status: StatusWaitlisted}
	a.ApplyTransition(StatusBooked, at)
	require.NotNil(t, a.PromotedAt)
	assert.Equal(t, at, *a.PromotedAt)

	a.ApplyTransition(StatusAttended, at.Add(time.Hour))
	require.NotNil(t, a.CheckedInAt)
	assert.Equal(t, StatusAttended, a.Status)

	b := &Attendance{Status: StatusBooked}
	b.ApplyTransition(StatusCancelled, at)
	require.NotNil(t, b.CancelledAt)
	assert.Nil(t, b.PromotedAt)
}

func TestFIFOLess(t *testing.T) {
	t0 := time.Now()
	a := &Attendance{ID: primitive.NewObjectID(), BookedAt: t0}
	b := &Attendance{ID: primitive.NewObjectID(), BookedAt: t0.Add(time.Second)}
	assert.True(t, FIFOLess(a, b))
	assert.False(t, FIFOLess(b, a))

	c := &Attendance{ID: primitive.NewObjectID(), BookedAt: t0}
	assert.True(t, FIFOLess(a, c), "tie broken by id")
}

func TestSessionStart(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := SessionStart("2026-07-04", "18:30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 4, 22, 30, 0, 0, time.UTC), got)

	_, err = SessionStart("2026-7-4", "18:30", loc)
	assert.ErrorIs(t, err, ErrInvalidSessionDate)

	_, err = SessionStart("2026-07-04", "25:00", nil)
	assert.ErrorIs(t, err, ErrInvalidClockTime)
}

func TestValidateFieldKey(t *testing.T) {
	assert.NoError(t, ValidateFieldKey("bjj"))
	assert.Error(t, ValidateFieldKey(""))
	assert.Error(t, ValidateFieldKey("bjj.kids"))
	assert.Error(t, ValidateFieldKey("$where"))
}

func TestGym_RankLadder(t *testing.T) {
	g := &Gym{Programs: []Program{
		{ID: "bjj", Ranks: []Rank{{ID: "blue", Order: 2}, {ID: "wb1", Name: "White Belt", Order: 1}}},
		{ID: "yoga"},
	}}

	ladder := g.RankLadder("bjj")
	require.Len(t, ladder, 2)
	assert.Equal(t, "wb1", ladder[0].ID)
	assert.Empty(t, g.RankLadder("yoga"))
	assert.Nil(t, g.RankLadder("mma"))
}
