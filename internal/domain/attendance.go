package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttendanceStatus defines the possible states of a member's place in a session.
type AttendanceStatus string

const (
	StatusBooked     AttendanceStatus = "booked"     // Holds a seat
	StatusWaitlisted AttendanceStatus = "waitlisted" // In the FIFO line for a seat
	StatusAttended   AttendanceStatus = "attended"   // Checked in; still holds the seat
	StatusCancelled  AttendanceStatus = "cancelled"  // Released; can be recovered by booking again
)

// OccupiesSeat reports whether the status counts against class capacity.
func (s AttendanceStatus) OccupiesSeat() bool {
	return s == StatusBooked || s == StatusAttended
}

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusWaitlisted, StatusAttended, StatusCancelled:
		return true
	}
	return false
}

// SeatStatuses lists the statuses that occupy a seat.
var SeatStatuses = []AttendanceStatus{StatusBooked, StatusAttended}

var transitions = map[AttendanceStatus][]AttendanceStatus{
	StatusBooked:     {StatusAttended, StatusCancelled},
	StatusWaitlisted: {StatusBooked, StatusCancelled},
	StatusAttended:   {StatusCancelled}, // administrative correction
	StatusCancelled:  {StatusBooked, StatusWaitlisted},
}

// CanTransition reports whether an attendance record may move from one status to another.
func CanTransition(from, to AttendanceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BookingChannel records which eligibility path admitted the booking.
type BookingChannel string

const (
	ChannelMembership BookingChannel = "membership"
	ChannelDropIn     BookingChannel = "drop_in"
)

// Attendance is one member's place in one class session on one date.
// (classId, sessionDate, memberId) is unique.
type Attendance struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GymID        primitive.ObjectID `bson:"gymId" json:"gymId"`
	ClassID      primitive.ObjectID `bson:"classId" json:"classId"`
	ClassName    string             `bson:"className" json:"className"`
	SessionDate  string             `bson:"sessionDate" json:"sessionDate"` // "YYYY-MM-DD"
	SessionStart time.Time          `bson:"sessionStart" json:"sessionStart"`

	MemberID    primitive.ObjectID `bson:"memberId" json:"memberId"`
	MemberName  string             `bson:"memberName" json:"memberName"`
	MemberEmail string             `bson:"memberEmail" json:"memberEmail"`

	Status   AttendanceStatus    `bson:"status" json:"status"`
	Channel  BookingChannel      `bson:"channel" json:"channel"`
	Forced   bool                `bson:"forced,omitempty" json:"forced,omitempty"`
	ForcedBy *primitive.ObjectID `bson:"forcedBy,omitempty" json:"forcedBy,omitempty"`

	BookedAt    time.Time  `bson:"bookedAt" json:"bookedAt"`
	CancelledAt *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CheckedInAt *time.Time `bson:"checkedInAt,omitempty" json:"checkedInAt,omitempty"`
	PromotedAt  *time.Time `bson:"promotedAt,omitempty" json:"promotedAt,omitempty"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// ApplyTransition moves the record to status `to`, stamping the matching timestamp.
// Callers check CanTransition first.
func (a *Attendance) ApplyTransition(to AttendanceStatus, at time.Time) {
	from := a.Status
	a.Status = to
	a.UpdatedAt = at
	switch to {
	case StatusCancelled:
		a.CancelledAt = &at
	case StatusAttended:
		a.CheckedInAt = &at
	case StatusBooked:
		if from == StatusWaitlisted {
			a.PromotedAt = &at
		}
	}
}

// FIFOLess orders records by bookedAt, breaking ties by id.
func FIFOLess(a, b *Attendance) bool {
	if !a.BookedAt.Equal(b.BookedAt) {
		return a.BookedAt.Before(b.BookedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}
