package service

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/events"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrMemberMismatch   = errors.New("attendance record belongs to a different member")
	ErrAlreadyCheckedIn = errors.New("member is already checked in")
	ErrProgramNotFound  = errors.New("program has no rank ladder configured")
)

// --- Service Interface ---
type CheckInService interface {
	// CheckIn marks a booked record attended and applies progression.
	// programID is optional.
	CheckIn(ctx context.Context, gymID, attendanceID, memberID primitive.ObjectID, programID string) error
}

// checkInService implements the CheckInService interface.
type checkInService struct {
	tx         repository.Transactor
	attendance repository.AttendanceRepository
	users      repository.UserRepository
	gyms       repository.GymRepository
	publisher  events.Publisher
	now        func() time.Time
}

// NewCheckInService creates a new instance of checkInService.
func NewCheckInService(
	tx repository.Transactor,
	attendance repository.AttendanceRepository,
	users repository.UserRepository,
	gyms repository.GymRepository,
	publisher events.Publisher,
) CheckInService {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &checkInService{
		tx:         tx,
		attendance: attendance,
		users:      users,
		gyms:       gyms,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn moves the record to attended and updates the member's counters in
// the same transaction, so no reader sees one without the other.
func (s *checkInService) CheckIn(ctx context.Context, gymID, attendanceID, memberID primitive.ObjectID, programID string) error {
	// 1. Validate Inputs
	if programID != "" {
		if err := domain.ValidateFieldKey(programID); err != nil {
			return fmt.Errorf("%w: program id: %v", ErrInvalidInput, err)
		}
	}

	var firstClass *events.FirstClassAttended
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		firstClass = nil

		// 2. Load and verify the record
		record, err := s.attendance.GetByID(ctx, attendanceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAttendanceNotFound
			}
			return err
		}
		if record.GymID != gymID {
			return ErrAttendanceNotFound
		}
		if record.MemberID != memberID {
			return ErrMemberMismatch
		}
		switch {
		case record.Status == domain.StatusAttended:
			return ErrAlreadyCheckedIn
		case !domain.CanTransition(record.Status, domain.StatusAttended):
			return ErrInvalidTransition
		}

		// 3. Attendance status
		if err := s.attendance.LockRoster(ctx, record.ClassID, record.SessionDate); err != nil {
			return err
		}
		now := s.now()
		if err := s.attendance.Transition(ctx, record.ID, domain.StatusAttended, now); err != nil {
			return err
		}

		// 4. Progression
		member, err := s.users.GetByID(ctx, memberID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		if programID == "" {
			return s.users.IncrementAttendance(ctx, memberID, "")
		}
		if _, enrolled := member.Progression[programID]; enrolled {
			return s.users.IncrementAttendance(ctx, memberID, programID)
		}

		ladder, err := s.gyms.GetRankLadder(ctx, gymID, programID)
		if err != nil {
			return err
		}
		if len(ladder) == 0 {
			return ErrProgramNotFound
		}
		progress := domain.ProgramProgress{
			RankID:     ladder[0].ID,
			Stripes:    0,
			Credits:    1, // this class counts
			EnrolledAt: now,
		}
		if err := s.users.EnrollInProgram(ctx, memberID, programID, progress); err != nil {
			return err
		}

		firstClass = &events.FirstClassAttended{
			MemberID:     memberID,
			GymID:        gymID,
			ProgramID:    programID,
			AttendanceID: record.ID,
			OccurredAt:   now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("INFO: member %s checked in to %s", memberID.Hex(), attendanceID.Hex())

	// 5. Announce first enrollment after commit; the check-in itself already succeeded.
	if firstClass != nil {
		if err := s.publisher.PublishFirstClassAttended(ctx, *firstClass); err != nil {
			log.Printf("ERROR: failed to publish first-class event for member %s program %s: %v", memberID.Hex(), programID, err)
		}
	}
	return nil
}
