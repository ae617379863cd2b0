package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Rejection codes returned to callers when a booking is refused.
const (
	CodeNoActiveMembership = "no_active_membership"
	CodePlanNotEligible    = "plan_not_eligible"
	CodeDuplicateBooking   = "duplicate_booking"
)

// EligibilityDecision is the outcome of EvaluateEligibility.
type EligibilityDecision struct {
	Allowed bool
	Channel BookingChannel // set when Allowed
	Code    string         // set when not Allowed
	Reason  string
}

// EvaluateEligibility decides whether member may book class at gymID.
// It is pure: no I/O, no clock.
func EvaluateEligibility(class *ClassSession, member *User, gymID primitive.ObjectID) EligibilityDecision {
	status, plan := member.ResolveMembership(gymID)

	if status.HasBookingRights() && class.AllowsPlan(plan) {
		return EligibilityDecision{Allowed: true, Channel: ChannelMembership}
	}
	if class.DropInEnabled {
		return EligibilityDecision{Allowed: true, Channel: ChannelDropIn}
	}
	if status.HasBookingRights() && plan != "" {
		return EligibilityDecision{
			Code:   CodePlanNotEligible,
			Reason: "membership plan is not permitted for this class",
		}
	}
	return EligibilityDecision{
		Code:   CodeNoActiveMembership,
		Reason: "must have an active membership",
	}
}
