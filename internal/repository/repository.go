package repository

import (
	"alcyxob/gym-booking/internal/domain" // Import our defined domain models
	"context"                             // Standard for request-scoped deadlines, cancellation signals, etc.
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	// ErrTxConflict is returned once a transaction kept hitting write conflicts
	// after every retry attempt. Callers may retry the whole operation.
	ErrTxConflict = RepositoryError("transaction conflict, retry later")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Skip returns the number of documents before the window.
func (p Page) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

// SessionKey identifies one dated instance of a class.
type SessionKey struct {
	GymID   primitive.ObjectID `bson:"gymId"`
	ClassID primitive.ObjectID `bson:"classId"`
	Date    string             `bson:"sessionDate"`
}

// Transactor runs fn atomically. Repository calls made with the ctx passed to
// fn take part in the transaction. fn may run more than once, so it must not
// have side effects outside the repositories.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// IncrementAttendance bumps totalAttendance and, when programID is not
	// empty, the credits of that one progression entry.
	IncrementAttendance(ctx context.Context, memberID primitive.ObjectID, programID string) error
	// EnrollInProgram sets progression.<programID> and bumps totalAttendance.
	EnrollInProgram(ctx context.Context, memberID primitive.ObjectID, programID string, progress domain.ProgramProgress) error
	// ActivateProspect moves a prospect to active. It reports whether the
	// status changed; members in any other status are left alone.
	ActivateProspect(ctx context.Context, memberID primitive.ObjectID, at time.Time) (bool, error)
}

// MemberSearcher finds members of a gym by a free-text query on name or email.
type MemberSearcher interface {
	Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error)
}

// ClassRepository defines the read access the booking engine needs to class definitions.
type ClassRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClassSession, error)
}

// GymRepository defines the interface for gym configuration lookups.
type GymRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Gym, error)
	// GetRankLadder returns the program's ranks sorted by order.
	GetRankLadder(ctx context.Context, gymID primitive.ObjectID, programID string) ([]domain.Rank, error)
}

// AttendanceRepository defines the interface for the session roster.
type AttendanceRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Attendance, error)
	// FindForMember returns the member's record for the session in any status, or ErrNotFound.
	FindForMember(ctx context.Context, classID primitive.ObjectID, date string, memberID primitive.ObjectID) (*domain.Attendance, error)
	CountByStatus(ctx context.Context, classID primitive.ObjectID, date string, statuses ...domain.AttendanceStatus) (int64, error)
	// ListActive returns all non-cancelled records for the session in FIFO order.
	ListActive(ctx context.Context, classID primitive.ObjectID, date string) ([]domain.Attendance, error)
	// ListWaitlisted returns up to limit waitlisted records in FIFO order. limit <= 0 means all.
	ListWaitlisted(ctx context.Context, classID primitive.ObjectID, date string, limit int) ([]domain.Attendance, error)
	Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error)
	// Replace overwrites an existing record in place (recovery path).
	Replace(ctx context.Context, a *domain.Attendance) error
	// Transition sets the status and the timestamp that belongs to it.
	Transition(ctx context.Context, id primitive.ObjectID, to domain.AttendanceStatus, at time.Time) error
	ListBySession(ctx context.Context, classID primitive.ObjectID, date string, page Page) ([]domain.Attendance, int64, error)
	ListByMember(ctx context.Context, gymID, memberID primitive.ObjectID, page Page) ([]domain.Attendance, int64, error)
	// SessionsWithWaitlist lists sessions on date that have at least one waitlisted record.
	SessionsWithWaitlist(ctx context.Context, date string) ([]SessionKey, error)
	// LockRoster claims the (class, date) roster guard for the current
	// transaction. Two transactions that both lock the same roster conflict.
	LockRoster(ctx context.Context, classID primitive.ObjectID, date string) error
}
