package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aura-commerce/backend/internal/models"
)

// FakeClock is a manually advanced Clock. Timer callbacks run synchronously inside Advance,
// in fire-time order, with Now() set to the timer's due time.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewFakeClock returns a fake clock set to now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has been advanced past d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, running every timer that comes due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		c.mu.Unlock()
		next.fn()
	}
}

// Live returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *FakeClock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// MemoryStore is an in-memory Store and Transactor. WithinTx restores job statuses when fn
// fails, which mirrors a rolled back compare-and-set.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.ScheduledJob
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store. now stamps updated_at; nil uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{jobs: make(map[uuid.UUID]*models.ScheduledJob), now: now}
}

func (s *MemoryStore) Insert(_ context.Context, job *models.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Status == models.JobStatusPending {
		for _, j := range s.jobs {
			if j.Pending() && j.OfferID == job.OfferID && j.Kind == job.Kind {
				return errors.Wrapf(ErrDuplicatePendingJob, "%s for offer %s", job.Kind, job.OfferID)
			}
		}
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(ErrJobNotFound, "id %s", id)
	}
	return cloneJob(j), nil
}

func (s *MemoryStore) FindPendingByOfferAndKind(_ context.Context, offerID uuid.UUID, kind models.JobKind) ([]*models.ScheduledJob, error) {
	return s.filter(func(j *models.ScheduledJob) bool {
		return j.Pending() && j.OfferID == offerID && j.Kind == kind
	}), nil
}

func (s *MemoryStore) FindAllPending(context.Context) ([]*models.ScheduledJob, error) {
	return s.filter(func(j *models.ScheduledJob) bool { return j.Pending() }), nil
}

func (s *MemoryStore) ListByOffer(_ context.Context, offerID uuid.UUID) ([]*models.ScheduledJob, error) {
	return s.filter(func(j *models.ScheduledJob) bool { return j.OfferID == offerID }), nil
}

func (s *MemoryStore) CompareAndSetFired(_ context.Context, id uuid.UUID) (bool, error) {
	return s.transition(id, models.JobStatusFired), nil
}

func (s *MemoryStore) SetCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	return s.transition(id, models.JobStatusCancelled), nil
}

// WithinTx runs fn and rolls job statuses back if it fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]models.JobStatus, len(s.jobs))
	for id, j := range s.jobs {
		snapshot[id] = j.Status
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		for id, status := range snapshot {
			if j, ok := s.jobs[id]; ok {
				j.Status = status
			}
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Count returns the number of jobs for offerID in status.
func (s *MemoryStore) Count(offerID uuid.UUID, kind models.JobKind, status models.JobStatus) int {
	return len(s.filter(func(j *models.ScheduledJob) bool {
		return j.OfferID == offerID && j.Kind == kind && j.Status == status
	}))
}

func (s *MemoryStore) transition(id uuid.UUID, to models.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || !j.Pending() {
		return false
	}
	j.Status = to
	j.UpdatedAt = s.now()
	return true
}

func (s *MemoryStore) filter(keep func(*models.ScheduledJob) bool) []*models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ScheduledJob
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].FiresAt.Equal(out[b].FiresAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].FiresAt.Before(out[b].FiresAt)
	})
	return out
}

func cloneJob(j *models.ScheduledJob) *models.ScheduledJob {
	c := *j
	c.TargetProductIDs = append([]uuid.UUID(nil), j.TargetProductIDs...)
	return &c
}
