package domain

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnlimitedCapacity is used whenever a class has no usable capacity value.
const UnlimitedCapacity = 999

// Capacity is the maximum number of seated members for a session.
// Zero, negative or undecodable values mean unlimited.
type Capacity int

// Effective returns the capacity the booking engine enforces.
func (c Capacity) Effective() int {
	if c <= 0 {
		return UnlimitedCapacity
	}
	return int(c)
}

// UnmarshalBSONValue tolerates the loosely typed values admin tooling writes
// (int32, int64, double, numeric strings, null). Anything else decodes to 0.
func (c *Capacity) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	*c = 0
	switch t {
	case bsontype.Int32:
		if v, ok := raw.Int32OK(); ok {
			*c = Capacity(v)
		}
	case bsontype.Int64:
		if v, ok := raw.Int64OK(); ok {
			*c = Capacity(v)
		}
	case bsontype.Double:
		if v, ok := raw.DoubleOK(); ok {
			*c = Capacity(int(v))
		}
	case bsontype.String:
		if v, ok := raw.StringValueOK(); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*c = Capacity(n)
			}
		}
	}
	return nil
}

// ClassSession is the scheduled definition of a recurring or one-off class.
type ClassSession struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	GymID          primitive.ObjectID  `bson:"gymId" json:"gymId"`
	Name           string              `bson:"name" json:"name"`
	InstructorID   *primitive.ObjectID `bson:"instructorId,omitempty" json:"instructorId,omitempty"`
	InstructorName string              `bson:"instructorName,omitempty" json:"instructorName,omitempty"`
	ProgramID      string              `bson:"programId,omitempty" json:"programId,omitempty"`

	Capacity       Capacity `bson:"capacity,omitempty" json:"capacity"`
	AllowedPlanIDs []string `bson:"allowedPlanIds,omitempty" json:"allowedPlanIds"`
	DropInEnabled  bool     `bson:"dropInEnabled" json:"dropInEnabled"`

	StartTime       string `bson:"startTime" json:"startTime"` // "HH:MM" in Timezone
	DurationMinutes int    `bson:"durationMinutes,omitempty" json:"durationMinutes,omitempty"`
	Timezone        string `bson:"timezone,omitempty" json:"timezone,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AllowsPlan reports whether planID may book through a membership.
func (c *ClassSession) AllowsPlan(planID string) bool {
	if planID == "" {
		return false
	}
	for _, p := range c.AllowedPlanIDs {
		if p == planID {
			return true
		}
	}
	return false
}

// Location returns the class timezone, falling back to UTC.
func (c *ClassSession) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
