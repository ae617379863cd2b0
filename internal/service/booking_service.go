package service

import (
	"alcyxob/gym-booking/internal/domain"
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
	ErrClassNotFound      = errors.New("class not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrForbidden          = errors.New("not allowed to perform this action")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("attendance record is not in a state that allows this action")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// BookingRequest identifies who wants which dated session.
type BookingRequest struct {
	GymID    primitive.ObjectID
	ClassID  primitive.ObjectID
	MemberID primitive.ObjectID
	Date     string // "YYYY-MM-DD"
	Time     string // "HH:MM"; the class start time when empty
}

// Rejection is an expected refusal (eligibility or duplicate), not a fault.
type Rejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BookingResult is the outcome of a booking attempt. Exactly one of
// Rejection or AttendanceID is set.
type BookingResult struct {
	AttendanceID primitive.ObjectID      `json:"id,omitempty"`
	Status       domain.AttendanceStatus `json:"status,omitempty"`
	Channel      domain.BookingChannel   `json:"channel,omitempty"`
	Recovered    bool                    `json:"recovered"`
	Rejection    *Rejection              `json:"rejection,omitempty"`
}

// Rejected reports whether the attempt was refused.
func (r *BookingResult) Rejected() bool { return r.Rejection != nil }

// CancelResult tells the caller whether a waitlisted member took the seat.
type CancelResult struct {
	Promoted             bool                `json:"promoted"`
	PromotedAttendanceID *primitive.ObjectID `json:"promotedAttendanceId,omitempty"`
}

// Pagination is the metadata returned with every listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// AttendancePage is one page of attendance records.
type AttendancePage struct {
	Items      []domain.Attendance `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

// rejectionError carries a Rejection out of the transaction callback so the
// transaction aborts. It never leaves the service.
type rejectionError struct {
	Rejection
}

func (e *rejectionError) Error() string { return e.Code + ": " + e.Reason }

// --- Service Interface ---
type BookingService interface {
	AttemptBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)
	// ForceBooking seats the member regardless of capacity and queue. Only staff and admins may call it.
	ForceBooking(ctx context.Context, actor domain.Actor, req BookingRequest) (*BookingResult, error)
	CancelBooking(ctx context.Context, actor domain.Actor, gymID, attendanceID primitive.ObjectID) (*CancelResult, error)
	ReconcileWaitlist(ctx context.Context, gymID, classID primitive.ObjectID, date string) (int, error)

	ListSessionRoster(ctx context.Context, gymID, classID primitive.ObjectID, date string, page, limit int) (*AttendancePage, error)
	ListMemberAttendance(ctx context.Context, actor domain.Actor, gymID, memberID primitive.ObjectID, page, limit int) (*AttendancePage, error)
}

// --- Service Implementation ---

// bookingService implements the BookingService interface.
type bookingService struct {
	tx         repository.Transactor
	attendance repository.AttendanceRepository
	classes    repository.ClassRepository
	users      repository.UserRepository
	now        func() time.Time
}

// NewBookingService creates a new instance of bookingService.
func NewBookingService(
	tx repository.Transactor,
	attendance repository.AttendanceRepository,
	classes repository.ClassRepository,
	users repository.UserRepository,
) BookingService {
	return &bookingService{
		tx:         tx,
		attendance: attendance,
		classes:    classes,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AttemptBooking books a seat or a waitlist place for the member.
func (s *bookingService) AttemptBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	return s.book(ctx, req, nil)
}

// ForceBooking is the administrative manual add.
func (s *bookingService) ForceBooking(ctx context.Context, actor domain.Actor, req BookingRequest) (*BookingResult, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	forcedBy := actor.UserID
	return s.book(ctx, req, &forcedBy)
}

// book runs the whole read-decide-write cycle in one transaction. A non-nil
// forcedBy skips the capacity and queue checks.
func (s *bookingService) book(ctx context.Context, req BookingRequest, forcedBy *primitive.ObjectID) (*BookingResult, error) {
	// 1. Validate Inputs
	if req.GymID.IsZero() || req.ClassID.IsZero() || req.MemberID.IsZero() {
		return nil, fmt.Errorf("%w: gym, class and member are required", ErrInvalidInput)
	}
	if _, err := domain.ParseSessionDate(req.Date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Time != "" {
		if _, _, err := domain.ParseClockTime(req.Time); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	var result *BookingResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		result = nil

		// 2. Claim the roster so concurrent bookings of this session conflict
		if err := s.attendance.LockRoster(ctx, req.ClassID, req.Date); err != nil {
			return err
		}

		// 3. Re-read the authoritative class and member
		class, err := s.loadClass(ctx, req.GymID, req.ClassID)
		if err != nil {
			return err
		}
		member, err := s.users.GetByID(ctx, req.MemberID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		// 4. Eligibility
		decision := domain.EvaluateEligibility(class, member, req.GymID)
		if !decision.Allowed {
			return &rejectionError{Rejection{Code: decision.Code, Reason: decision.Reason}}
		}

		// 5. Existing record: duplicate or recovery
		existing, err := s.attendance.FindForMember(ctx, req.ClassID, req.Date, req.MemberID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			existing = nil
		case err != nil:
			return err
		case existing.Status != domain.StatusCancelled:
			return duplicateRejection()
		}

		// 6. Seat or waitlist
		status := domain.StatusBooked
		if forcedBy == nil {
			seated, err := s.attendance.CountByStatus(ctx, req.ClassID, req.Date, domain.SeatStatuses...)
			if err != nil {
				return err
			}
			waiting, err := s.attendance.CountByStatus(ctx, req.ClassID, req.Date, domain.StatusWaitlisted)
			if err != nil {
				return err
			}
			// A non-empty waitlist is a line; freed seats go through promotion.
			if seated >= int64(class.Capacity.Effective()) || waiting > 0 {
				status = domain.StatusWaitlisted
			}
		}

		// 7. Write
		clock := req.Time
		if clock == "" {
			clock = class.StartTime
		}
		if clock == "" {
			clock = "00:00"
		}
		start, err := domain.SessionStart(req.Date, clock, class.Location())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		now := s.now()
		record := &domain.Attendance{
			GymID:        req.GymID,
			ClassID:      class.ID,
			ClassName:    class.Name,
			SessionDate:  req.Date,
			SessionStart: start,
			MemberID:     member.ID,
			MemberName:   member.Name,
			MemberEmail:  member.Email,
			Status:       status,
			Channel:      decision.Channel,
			Forced:       forcedBy != nil,
			ForcedBy:     forcedBy,
			BookedAt:     now,
			UpdatedAt:    now,
		}

		recovered := existing != nil
		if recovered {
			// Reuse the cancelled record; the previous cycle's timestamps are dropped.
			record.ID = existing.ID
			if err := s.attendance.Replace(ctx, record); err != nil {
				return err
			}
		} else {
			if _, err := s.attendance.Create(ctx, record); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return duplicateRejection()
				}
				return err
			}
		}

		result = &BookingResult{
			AttendanceID: record.ID,
			Status:       record.Status,
			Channel:      record.Channel,
			Recovered:    recovered,
		}
		return nil
	})

	var rej *rejectionError
	if errors.As(err, &rej) {
		log.Printf("INFO: booking rejected for member %s class %s on %s: %s", req.MemberID.Hex(), req.ClassID.Hex(), req.Date, rej.Code)
		return &BookingResult{Rejection: &rej.Rejection}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: member %s %s for class %s on %s (recovered=%t, forced=%t)",
		req.MemberID.Hex(), result.Status, req.ClassID.Hex(), req.Date, result.Recovered, forcedBy != nil)
	return result, nil
}

func duplicateRejection() error {
	return &rejectionError{Rejection{
		Code:   domain.CodeDuplicateBooking,
		Reason: "member already holds a booking for this session",
	}}
}

// CancelBooking cancels a record and, when it held a seat, promotes the head
// of the waitlist.
func (s *bookingService) CancelBooking(ctx context.Context, actor domain.Actor, gymID, attendanceID primitive.ObjectID) (*CancelResult, error) {
	var result *CancelResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		result = &CancelResult{}

		// 1. Load and authorize
		record, err := s.loadAttendance(ctx, gymID, attendanceID)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && record.MemberID != actor.UserID {
			return ErrForbidden
		}
		// Undoing a check-in is an administrative correction; progression is not reversed.
		if record.Status == domain.StatusAttended && !actor.IsStaff() {
			return ErrForbidden
		}

		if err := s.attendance.LockRoster(ctx, record.ClassID, record.SessionDate); err != nil {
			return err
		}

		// 2. Cancelling twice changes nothing
		if record.Status == domain.StatusCancelled {
			return nil
		}
		if !domain.CanTransition(record.Status, domain.StatusCancelled) {
			return ErrInvalidTransition
		}

		// 3. Release
		heldSeat := record.Status.OccupiesSeat()
		now := s.now()
		if err := s.attendance.Transition(ctx, record.ID, domain.StatusCancelled, now); err != nil {
			return err
		}
		if !heldSeat {
			return nil
		}

		// 4. Promote at most one, and only into a seat that exists
		seated, err := s.attendance.CountByStatus(ctx, record.ClassID, record.SessionDate, domain.SeatStatuses...)
		if err != nil {
			return err
		}
		capacity, err := s.capacityOf(ctx, record.ClassID)
		if err != nil {
			return err
		}
		if seated >= int64(capacity) {
			return nil
		}

		head, err := s.attendance.ListWaitlisted(ctx, record.ClassID, record.SessionDate, 1)
		if err != nil {
			return err
		}
		if len(head) == 0 {
			return nil
		}
		if err := s.attendance.Transition(ctx, head[0].ID, domain.StatusBooked, now); err != nil {
			return err
		}
		promotedID := head[0].ID
		result.Promoted = true
		result.PromotedAttendanceID = &promotedID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Promoted {
		log.Printf("INFO: cancellation of %s promoted %s", attendanceID.Hex(), result.PromotedAttendanceID.Hex())
	}
	return result, nil
}

// ReconcileWaitlist fills every free seat of a dated session from the
// waitlist in FIFO order. Running it again without changes promotes nobody.
func (s *bookingService) ReconcileWaitlist(ctx context.Context, gymID, classID primitive.ObjectID, date string) (int, error) {
	if _, err := domain.ParseSessionDate(date); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	promoted := 0
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		promoted = 0

		if err := s.attendance.LockRoster(ctx, classID, date); err != nil {
			return err
		}
		class, err := s.loadClass(ctx, gymID, classID)
		if err != nil {
			return err
		}

		active, err := s.attendance.ListActive(ctx, classID, date)
		if err != nil {
			return err
		}
		seated := 0
		var waitlisted []domain.Attendance
		for _, a := range active {
			switch {
			case a.Status.OccupiesSeat():
				seated++
			case a.Status == domain.StatusWaitlisted:
				waitlisted = append(waitlisted, a) // already FIFO ordered
			}
		}

		available := class.Capacity.Effective() - seated
		now := s.now()
		for i := 0; i < available && i < len(waitlisted); i++ {
			if err := s.attendance.Transition(ctx, waitlisted[i].ID, domain.StatusBooked, now); err != nil {
				return err
			}
			promoted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if promoted > 0 {
		log.Printf("INFO: reconcile promoted %d for class %s on %s", promoted, classID.Hex(), date)
	}
	return promoted, nil
}

// ListSessionRoster returns one page of a dated session's roster.
func (s *bookingService) ListSessionRoster(ctx context.Context, gymID, classID primitive.ObjectID, date string, page, limit int) (*AttendancePage, error) {
	if _, err := domain.ParseSessionDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.loadClass(ctx, gymID, classID); err != nil {
		return nil, err
	}

	p := normalizePage(page, limit)
	items, total, err := s.attendance.ListBySession(ctx, classID, date, p)
	if err != nil {
		return nil, err
	}
	return &AttendancePage{Items: items, Pagination: buildPagination(p, total)}, nil
}

// ListMemberAttendance returns one page of a member's history. Members may only read their own.
func (s *bookingService) ListMemberAttendance(ctx context.Context, actor domain.Actor, gymID, memberID primitive.ObjectID, page, limit int) (*AttendancePage, error) {
	if !actor.IsStaff() && actor.UserID != memberID {
		return nil, ErrForbidden
	}

	p := normalizePage(page, limit)
	items, total, err := s.attendance.ListByMember(ctx, gymID, memberID, p)
	if err != nil {
		return nil, err
	}
	return &AttendancePage{Items: items, Pagination: buildPagination(p, total)}, nil
}

// --- helpers ---

func (s *bookingService) loadClass(ctx context.Context, gymID, classID primitive.ObjectID) (*domain.ClassSession, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if class.GymID != gymID {
		return nil, ErrClassNotFound
	}
	return class, nil
}

func (s *bookingService) loadAttendance(ctx context.Context, gymID, attendanceID primitive.ObjectID) (*domain.Attendance, error) {
	record, err := s.attendance.GetByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}
	if record.GymID != gymID {
		return nil, ErrAttendanceNotFound
	}
	return record, nil
}

// capacityOf returns the enforced capacity; a deleted class counts as unlimited.
func (s *bookingService) capacityOf(ctx context.Context, classID primitive.ObjectID) (int, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.UnlimitedCapacity, nil
		}
		return 0, err
	}
	return class.Capacity.Effective(), nil
}

func normalizePage(page, limit int) repository.Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return repository.Page{Page: page, Limit: limit}
}

func buildPagination(p repository.Page, total int64) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: totalPages}
}
