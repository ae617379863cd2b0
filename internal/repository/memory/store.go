// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized and rolled back by snapshot, which
// gives the same all-or-nothing behaviour the booking services rely on.
package memory

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection. Use the accessor methods to get the
// repository views.
type Store struct {
	txMu sync.Mutex // one transaction at a time
	mu   sync.RWMutex

	attendance map[primitive.ObjectID]domain.Attendance
	users      map[primitive.ObjectID]domain.User
	classes    map[primitive.ObjectID]domain.ClassSession
	gyms       map[primitive.ObjectID]domain.Gym
	rosters    map[string]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		attendance: map[primitive.ObjectID]domain.Attendance{},
		users:      map[primitive.ObjectID]domain.User{},
		classes:    map[primitive.ObjectID]domain.ClassSession{},
		gyms:       map[primitive.ObjectID]domain.Gym{},
		rosters:    map[string]int64{},
	}
}

func (s *Store) Attendance() repository.AttendanceRepository { return &attendanceRepo{s: s} }
func (s *Store) Users() repository.UserRepository            { return &userRepo{s: s} }
func (s *Store) Searcher() repository.MemberSearcher         { return &userRepo{s: s} }
func (s *Store) Classes() repository.ClassRepository         { return &classRepo{s: s} }
func (s *Store) Gyms() repository.GymRepository              { return &gymRepo{s: s} }
func (s *Store) Transactor() repository.Transactor           { return &transactor{s: s} }

// PutClass seeds or overwrites a class. A zero ID is assigned.
func (s *Store) PutClass(c domain.ClassSession) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.classes[c.ID] = c
	return c.ID
}

// PutUser seeds or overwrites a user. A zero ID is assigned.
func (s *Store) PutUser(u domain.User) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = copyUser(u)
	return u.ID
}

// PutGym seeds or overwrites a gym. A zero ID is assigned.
func (s *Store) PutGym(g domain.Gym) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	s.gyms[g.ID] = g
	return g.ID
}

// RosterVersion reports how many times a roster guard was claimed.
func (s *Store) RosterVersion(classID primitive.ObjectID, date string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rosters[rosterKey(classID, date)]
}

// AllAttendance returns every record, for assertions.
func (s *Store) AllAttendance() []domain.Attendance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attendance, 0, len(s.attendance))
	for _, a := range s.attendance {
		out = append(out, a)
	}
	return out
}

func rosterKey(classID primitive.ObjectID, date string) string {
	return classID.Hex() + ":" + date
}

func copyUser(u domain.User) domain.User {
	if u.Progression != nil {
		p := make(map[string]domain.ProgramProgress, len(u.Progression))
		for k, v := range u.Progression {
			p[k] = v
		}
		u.Progression = p
	}
	if u.Memberships != nil {
		u.Memberships = append([]domain.GymMembership(nil), u.Memberships...)
	}
	return u
}

type snapshot struct {
	attendance map[primitive.ObjectID]domain.Attendance
	users      map[primitive.ObjectID]domain.User
	rosters    map[string]int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		attendance: make(map[primitive.ObjectID]domain.Attendance, len(s.attendance)),
		users:      make(map[primitive.ObjectID]domain.User, len(s.users)),
		rosters:    make(map[string]int64, len(s.rosters)),
	}
	for k, v := range s.attendance {
		snap.attendance[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = copyUser(v)
	}
	for k, v := range s.rosters {
		snap.rosters[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance = snap.attendance
	s.users = snap.users
	s.rosters = snap.rosters
}

type transactor struct {
	s *Store
}

// WithinTransaction runs fn with exclusive access to the store and rolls all
// attendance, user and roster changes back when fn fails.
func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}
