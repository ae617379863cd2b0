package service

import (
	"alcyxob/gym-booking/internal/events"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"log"
)

// MembershipPolicy owns the billing-adjacent reaction to attendance: a
// prospect who attends a first program class becomes an active member.
type MembershipPolicy struct {
	users repository.UserRepository
}

// NewMembershipPolicy creates the policy.
func NewMembershipPolicy(users repository.UserRepository) *MembershipPolicy {
	return &MembershipPolicy{users: users}
}

// HandleFirstClassAttended is an events.Handler. It is idempotent: only a
// member still in prospect status is changed.
func (p *MembershipPolicy) HandleFirstClassAttended(ctx context.Context, evt events.FirstClassAttended) error {
	changed, err := p.users.ActivateProspect(ctx, evt.MemberID, evt.OccurredAt)
	if err != nil {
		return err
	}
	if changed {
		log.Printf("INFO: member %s converted from prospect to active after first %s class", evt.MemberID.Hex(), evt.ProgramID)
	}
	return nil
}
