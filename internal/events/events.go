// Package events carries domain events out of the booking engine. Publishing
// happens after a transaction commits; consumers must tolerate redelivery.
package events

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FirstClassAttendedQueue is the durable queue name used by the AMQP driver.
const FirstClassAttendedQueue = "member.first_class_attended"

// FirstClassAttended is emitted when a check-in creates a member's first
// progression entry in a program.
type FirstClassAttended struct {
	MemberID     primitive.ObjectID `json:"memberId"`
	GymID        primitive.ObjectID `json:"gymId"`
	ProgramID    string             `json:"programId"`
	AttendanceID primitive.ObjectID `json:"attendanceId"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

// Publisher sends events to whoever consumes them.
type Publisher interface {
	PublishFirstClassAttended(ctx context.Context, evt FirstClassAttended) error
}

// Handler processes one FirstClassAttended event.
type Handler func(ctx context.Context, evt FirstClassAttended) error

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) PublishFirstClassAttended(context.Context, FirstClassAttended) error { return nil }
