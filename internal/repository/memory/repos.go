package memory

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type attendanceRepo struct {
	s *Store
}

func (r *attendanceRepo) LockRoster(ctx context.Context, classID primitive.ObjectID, date string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rosters[rosterKey(classID, date)]++
	return nil
}

func (r *attendanceRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attendance[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *attendanceRepo) FindForMember(ctx context.Context, classID primitive.ObjectID, date string, memberID primitive.ObjectID) (*domain.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.attendance {
		if a.ClassID == classID && a.SessionDate == date && a.MemberID == memberID {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *attendanceRepo) CountByStatus(ctx context.Context, classID primitive.ObjectID, date string, statuses ...domain.AttendanceStatus) (int64, error) {
	var n int64
	for _, a := range r.session(classID, date) {
		for _, st := range statuses {
			if a.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *attendanceRepo) ListActive(ctx context.Context, classID primitive.ObjectID, date string) ([]domain.Attendance, error) {
	out := []domain.Attendance{}
	for _, a := range r.session(classID, date) {
		if a.Status != domain.StatusCancelled {
			out = append(out, a)
		}
	}
	sortFIFO(out)
	return out, nil
}

func (r *attendanceRepo) ListWaitlisted(ctx context.Context, classID primitive.ObjectID, date string, limit int) ([]domain.Attendance, error) {
	out := []domain.Attendance{}
	for _, a := range r.session(classID, date) {
		if a.Status == domain.StatusWaitlisted {
			out = append(out, a)
		}
	}
	sortFIFO(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *attendanceRepo) Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error) {
	if a.ClassID.IsZero() || a.MemberID.IsZero() || a.SessionDate == "" {
		return primitive.NilObjectID, errors.New("attendance requires classId, memberId and sessionDate")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.attendance {
		if existing.ClassID == a.ClassID && existing.SessionDate == a.SessionDate && existing.MemberID == a.MemberID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	a.ID = primitive.NewObjectID()
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	r.s.attendance[a.ID] = *a
	return a.ID, nil
}

func (r *attendanceRepo) Replace(ctx context.Context, a *domain.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attendance[a.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.attendance[a.ID] = *a
	return nil
}

func (r *attendanceRepo) Transition(ctx context.Context, id primitive.ObjectID, to domain.AttendanceStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !to.Valid() {
		return fmt.Errorf("unknown attendance status %q", to)
	}
	a, ok := r.s.attendance[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ApplyTransition(to, at)
	r.s.attendance[id] = a
	return nil
}

func (r *attendanceRepo) ListBySession(ctx context.Context, classID primitive.ObjectID, date string, page repository.Page) ([]domain.Attendance, int64, error) {
	items := r.session(classID, date)
	return paginate(items, page), int64(len(items)), nil
}

func (r *attendanceRepo) ListByMember(ctx context.Context, gymID, memberID primitive.ObjectID, page repository.Page) ([]domain.Attendance, int64, error) {
	r.s.mu.RLock()
	var all []domain.Attendance
	for _, a := range r.s.attendance {
		if a.GymID == gymID && a.MemberID == memberID {
			all = append(all, a)
		}
	}
	r.s.mu.RUnlock()
	return paginate(all, page), int64(len(all)), nil
}

func (r *attendanceRepo) SessionsWithWaitlist(ctx context.Context, date string) ([]repository.SessionKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[repository.SessionKey]bool{}
	keys := []repository.SessionKey{}
	for _, a := range r.s.attendance {
		if a.SessionDate != date || a.Status != domain.StatusWaitlisted {
			continue
		}
		k := repository.SessionKey{GymID: a.GymID, ClassID: a.ClassID, Date: date}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ClassID.Hex() < keys[j].ClassID.Hex() })
	return keys, nil
}

func (r *attendanceRepo) session(classID primitive.ObjectID, date string) []domain.Attendance {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Attendance
	for _, a := range r.s.attendance {
		if a.ClassID == classID && a.SessionDate == date {
			out = append(out, a)
		}
	}
	return out
}

func sortFIFO(items []domain.Attendance) {
	sort.Slice(items, func(i, j int) bool { return domain.FIFOLess(&items[i], &items[j]) })
}

// paginate orders by sessionStart descending, then FIFO, and cuts one page.
func paginate(items []domain.Attendance, page repository.Page) []domain.Attendance {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SessionStart.Equal(items[j].SessionStart) {
			return items[i].SessionStart.After(items[j].SessionStart)
		}
		return domain.FIFOLess(&items[i], &items[j])
	})
	start := int(page.Skip())
	if start >= len(items) {
		return []domain.Attendance{}
	}
	end := start + page.Limit
	if page.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = copyUser(*user)
	return user.ID, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			found := copyUser(u)
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := copyUser(u)
	return &found, nil
}

func (r *userRepo) IncrementAttendance(ctx context.Context, memberID primitive.ObjectID, programID string) error {
	if programID != "" {
		if err := domain.ValidateFieldKey(programID); err != nil {
			return err
		}
	}
	return r.update(memberID, func(u *domain.User) {
		u.TotalAttendance++
		if programID != "" {
			if u.Progression == nil {
				u.Progression = map[string]domain.ProgramProgress{}
			}
			p := u.Progression[programID]
			p.Credits++
			u.Progression[programID] = p
		}
	})
}

func (r *userRepo) EnrollInProgram(ctx context.Context, memberID primitive.ObjectID, programID string, progress domain.ProgramProgress) error {
	if err := domain.ValidateFieldKey(programID); err != nil {
		return err
	}
	return r.update(memberID, func(u *domain.User) {
		u.TotalAttendance++
		if u.Progression == nil {
			u.Progression = map[string]domain.ProgramProgress{}
		}
		u.Progression[programID] = progress
	})
}

func (r *userRepo) ActivateProspect(ctx context.Context, memberID primitive.ObjectID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[memberID]
	if !ok || u.Status != domain.MemberProspect {
		return false, nil
	}
	u.Status = domain.MemberActive
	u.ConvertedAt = &at
	u.UpdatedAt = at
	r.s.users[memberID] = u
	return true, nil
}

func (r *userRepo) Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	q := strings.ToLower(query)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.User{}
	for _, u := range r.s.users {
		if u.Role != domain.RoleMember || !belongsTo(u, gymID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			found := copyUser(u)
			found.PasswordHash = ""
			out = append(out, found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func belongsTo(u domain.User, gymID primitive.ObjectID) bool {
	for _, id := range u.GymIDs {
		if id == gymID {
			return true
		}
	}
	for _, m := range u.Memberships {
		if m.GymID == gymID {
			return true
		}
	}
	return false
}

func (r *userRepo) update(id primitive.ObjectID, mutate func(u *domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u = copyUser(u)
	mutate(&u)
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

type classRepo struct {
	s *Store
}

func (r *classRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClassSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type gymRepo struct {
	s *Store
}

func (r *gymRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Gym, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.gyms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (r *gymRepo) GetRankLadder(ctx context.Context, gymID primitive.ObjectID, programID string) ([]domain.Rank, error) {
	g, err := r.GetByID(ctx, gymID)
	if err != nil {
		return nil, err
	}
	return g.RankLadder(programID), nil
}
