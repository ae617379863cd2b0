package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// MemberStatus is the billing-adjacent lifecycle state of a member.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberTrialing  MemberStatus = "trialing"
	MemberProspect  MemberStatus = "prospect"
	MemberPaused    MemberStatus = "paused"
	MemberCancelled MemberStatus = "cancelled"
	MemberArchived  MemberStatus = "archived"
)

// HasBookingRights reports whether the status allows booking through a membership plan.
func (s MemberStatus) HasBookingRights() bool {
	return s == MemberActive || s == MemberTrialing
}

// GymMembership is the per-gym override used when a member belongs to several gyms.
type GymMembership struct {
	GymID  primitive.ObjectID `bson:"gymId" json:"gymId"`
	Status MemberStatus       `bson:"status" json:"status"`
	PlanID string             `bson:"planId,omitempty" json:"planId,omitempty"`
}

// ProgramProgress tracks a member's rank within one program.
type ProgramProgress struct {
	RankID     string    `bson:"rankId" json:"rankId"`
	Stripes    int       `bson:"stripes" json:"stripes"`
	Credits    int       `bson:"credits" json:"credits"` // classes attended toward the next rank
	EnrolledAt time.Time `bson:"enrolledAt" json:"enrolledAt"`
}

// User represents an account in the system: a member, or a staff/admin user of a gym.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`    // Should be unique
	PasswordHash string               `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role                 `bson:"role" json:"role"`
	GymIDs       []primitive.ObjectID `bson:"gymIds,omitempty" json:"gymIds,omitempty"`

	// --- Eligibility snapshot (owned by the member-profile subsystem) ---
	Status      MemberStatus    `bson:"status,omitempty" json:"status,omitempty"`
	PlanID      string          `bson:"planId,omitempty" json:"planId,omitempty"`
	Memberships []GymMembership `bson:"memberships,omitempty" json:"memberships,omitempty"`

	// --- Progression (mutated only by check-in) ---
	Progression     map[string]ProgramProgress `bson:"progression,omitempty" json:"progression,omitempty"`
	TotalAttendance int                        `bson:"totalAttendance" json:"totalAttendance"`
	ConvertedAt     *time.Time                 `bson:"convertedAt,omitempty" json:"convertedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsStaff reports whether the user may act on behalf of other members.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

// ResolveMembership returns the status and plan that apply for the given gym.
// A matching per-gym entry wins; otherwise the root-level fields are used.
func (u *User) ResolveMembership(gymID primitive.ObjectID) (MemberStatus, string) {
	for _, m := range u.Memberships {
		if m.GymID == gymID {
			return m.Status, m.PlanID
		}
	}
	return u.Status, u.PlanID
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID primitive.ObjectID
	Role   Role
}

// IsStaff reports whether the actor holds an elevated role.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}
