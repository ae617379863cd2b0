// Package sweeper periodically promotes waitlisted members into seats that
// were freed without a cancellation, e.g. after a capacity increase.
package sweeper

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionLister finds sessions that still have a waitlist.
type SessionLister interface {
	SessionsWithWaitlist(ctx context.Context, date string) ([]repository.SessionKey, error)
}

// ClassLookup resolves a class so its timezone decides what "today" means.
type ClassLookup interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ClassSession, error)
}

// Reconciler promotes waitlisted members for one session.
type Reconciler interface {
	ReconcileWaitlist(ctx context.Context, gymID, classID primitive.ObjectID, date string) (int, error)
}

type Sweeper struct {
	sessions   SessionLister
	classes    ClassLookup
	reconciler Reconciler
	timeout    time.Duration
	now        func() time.Time
	cron       *cron.Cron
}

func New(sessions SessionLister, classes ClassLookup, reconciler Reconciler, timeout time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Sweeper{
		sessions:   sessions,
		classes:    classes,
		reconciler: reconciler,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Start schedules the sweep. Overlapping runs are skipped.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		promoted, err := s.RunOnce(ctx)
		if err != nil {
			log.Printf("ERROR: [SWEEPER] run failed (promoted=%d): %v", promoted, err)
			return
		}
		if promoted > 0 {
			log.Printf("INFO: [SWEEPER] promoted %d waitlisted booking(s)", promoted)
		}
	})
	if err != nil {
		return fmt.Errorf("sweeper: invalid schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	log.Printf("INFO: [SWEEPER] started schedule=%q timeout=%s", schedule, s.timeout)
	return nil
}

// Stop halts scheduling and returns a context that is done once the
// running sweep, if any, has finished.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce reconciles every waitlisted session whose date is today in its
// class's timezone. Local dates span one day either side of the UTC date, so
// those three dates are scanned and filtered per class. A failing session does
// not stop the others; their errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	utc := now.UTC()

	var (
		total int
		errs  []error
	)
	locations := map[primitive.ObjectID]*time.Location{}
	for _, offset := range []int{-1, 0, 1} {
		date := utc.AddDate(0, 0, offset).Format(domain.SessionDateLayout)
		keys, err := s.sessions.SessionsWithWaitlist(ctx, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing waitlisted sessions for %s: %w", date, err))
			continue
		}

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return total, errors.Join(append(errs, err)...)
			}
			loc, ok := locations[k.ClassID]
			if !ok {
				class, err := s.classes.GetByID(ctx, k.ClassID)
				if err != nil {
					errs = append(errs, fmt.Errorf("class %s: %w", k.ClassID.Hex(), err))
					continue
				}
				loc = class.Location()
				locations[k.ClassID] = loc
			}
			if now.In(loc).Format(domain.SessionDateLayout) != k.Date {
				continue
			}

			n, err := s.reconciler.ReconcileWaitlist(ctx, k.GymID, k.ClassID, k.Date)
			if err != nil {
				errs = append(errs, fmt.Errorf("class %s on %s: %w", k.ClassID.Hex(), k.Date, err))
				continue
			}
			total += n
		}
	}
	return total, errors.Join(errs...)
}
