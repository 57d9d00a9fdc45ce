// Package schedule arms, fires and cancels the timed start/end jobs of promotional offers.
//
// Jobs are persisted before their in-process timer is armed, and Reconcile replays the store
// into timers on boot, so a restart loses nothing. Firing marks the job FIRED and applies the
// catalog mutation in one transaction: whichever of fire and cancel moves the job out of
// PENDING first wins, and the loser does nothing.
package schedule

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/internal/models"
)

// Config tunes local retries of failed firings.
type Config struct {
	// MaxAttempts is the number of fire attempts before a job is dead-lettered.
	MaxAttempts int
	// RetryBackoff is the delay before re-firing a job whose mutation failed.
	RetryBackoff time.Duration
}

// DefaultConfig returns 3 attempts spaced 10 seconds apart.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, RetryBackoff: 10 * time.Second}
}

// Engine owns the lifecycle of scheduled offer jobs.
type Engine struct {
	store    Store
	tx       Transactor
	mutator  Mutator
	notifier Notifier
	clock    Clock
	cfg      Config
	logger   *zap.Logger

	timers *registry
	ready  atomic.Bool

	mu       sync.Mutex
	attempts map[uuid.UUID]int
	sweeper  *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a scheduler engine. Call Reconcile before scheduling.
func NewEngine(store Store, tx Transactor, mutator Mutator, clock Clock, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = RealClock()
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    store,
		tx:       tx,
		mutator:  mutator,
		notifier: nopNotifier{},
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("scheduler"),
		timers:   newRegistry(),
		attempts: make(map[uuid.UUID]int),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNotifier sets the receiver of fired and dead-lettered job notifications.
func (e *Engine) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	e.notifier = n
}

// Ready reports whether startup reconciliation has completed.
func (e *Engine) Ready() bool { return e.ready.Load() }

// Armed returns the number of jobs with a live in-process timer.
func (e *Engine) Armed() int { return e.timers.len() }

// Schedule persists a PENDING job and arms its timer. firesAt must be strictly after now.
func (e *Engine) Schedule(ctx context.Context, kind models.JobKind, offerID uuid.UUID, firesAt time.Time, productIDs []uuid.UUID) (uuid.UUID, error) {
	if !e.ready.Load() {
		return uuid.Nil, ErrEngineNotReady
	}
	now := e.clock.Now()
	if !firesAt.After(now) {
		err := errors.Wrapf(ErrInvalidScheduleWindow, "%s job for offer %s at %s", kind, offerID, firesAt.Format(time.RFC3339))
		return uuid.Nil, errors.WithHintf(err, "fire time must be after %s", now.Format(time.RFC3339))
	}

	existing, err := e.store.FindPendingByOfferAndKind(ctx, offerID, kind)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "find pending jobs")
	}
	if len(existing) > 0 {
		return uuid.Nil, errors.Wrapf(ErrDuplicatePendingJob, "%s for offer %s (job %s)", kind, offerID, existing[0].ID)
	}

	targets := make([]uuid.UUID, len(productIDs))
	copy(targets, productIDs)
	job := &models.ScheduledJob{
		ID:               uuid.New(),
		Kind:             kind,
		OfferID:          offerID,
		FiresAt:          firesAt,
		TargetProductIDs: targets,
		Status:           models.JobStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.Insert(ctx, job); err != nil {
		return uuid.Nil, err
	}
	e.arm(job.ID, firesAt.Sub(now))

	e.logger.Info("job scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("offer_id", offerID.String()),
		zap.String("kind", string(kind)),
		zap.Time("fires_at", firesAt),
		zap.Int("products", len(targets)),
	)
	return job.ID, nil
}

// Cancel cancels the PENDING jobs of kind for an offer and disarms their timers.
// Having nothing to cancel is not an error.
func (e *Engine) Cancel(ctx context.Context, offerID uuid.UUID, kind models.JobKind) error {
	jobs, err := e.store.FindPendingByOfferAndKind(ctx, offerID, kind)
	if err != nil {
		return errors.Wrap(err, "find pending jobs")
	}
	for _, job := range jobs {
		ok, err := e.store.SetCancelled(ctx, job.ID)
		if err != nil {
			return errors.Wrapf(err, "cancel job %s", job.ID)
		}
		e.timers.disarm(job.ID)
		e.clearAttempts(job.ID)
		if ok {
			e.logger.Info("job cancelled", zap.String("job_id", job.ID.String()), zap.String("offer_id", offerID.String()), zap.String("kind", string(kind)))
		} else {
			e.logger.Debug("job left pending before cancel", zap.String("job_id", job.ID.String()))
		}
	}
	return nil
}

// CancelAll cancels both the start and end jobs of an offer.
func (e *Engine) CancelAll(ctx context.Context, offerID uuid.UUID) error {
	for _, kind := range []models.JobKind{models.JobKindOfferStart, models.JobKindOfferEnd} {
		if err := e.Cancel(ctx, offerID, kind); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile loads every PENDING job, fires the overdue ones in ascending fire time and arms
// timers for the rest. Schedule is rejected until it returns.
func (e *Engine) Reconcile(ctx context.Context) error {
	jobs, err := e.store.FindAllPending(ctx)
	if err != nil {
		return errors.Wrap(err, "load pending jobs")
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].FiresAt.Before(jobs[j].FiresAt) })

	now := e.clock.Now()
	var overdue, armed int
	for _, job := range jobs {
		if job.FiresAt.After(now) {
			e.arm(job.ID, job.FiresAt.Sub(now))
			armed++
			continue
		}
		overdue++
		if err := e.execute(ctx, job); err != nil {
			e.logger.Warn("overdue job failed during reconciliation", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}
	e.ready.Store(true)
	e.logger.Info("scheduler reconciled", zap.Int("pending", len(jobs)), zap.Int("overdue", overdue), zap.Int("armed", armed))
	return nil
}

// Sweep fires overdue PENDING jobs that have no live timer, such as jobs that exhausted their
// retries. It returns the number of jobs it attempted.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	if !e.ready.Load() {
		return 0, nil
	}
	jobs, err := e.store.FindAllPending(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "load pending jobs")
	}
	now := e.clock.Now()
	n := 0
	for _, job := range jobs {
		if job.FiresAt.After(now) || e.timers.has(job.ID) {
			continue
		}
		n++
		if err := e.execute(ctx, job); err != nil {
			e.logger.Warn("sweep fire failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}
	return n, nil
}

// StartSweeper runs Sweep on the given cron spec (e.g. "@every 5m") until Stop.
func (e *Engine) StartSweeper(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := e.Sweep(e.ctx)
		if err != nil {
			e.logger.Warn("sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			e.logger.Info("sweep fired overdue jobs", zap.Int("jobs", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid sweep spec %q", spec)
	}
	e.mu.Lock()
	e.sweeper = c
	e.mu.Unlock()
	c.Start()
	e.logger.Info("sweeper started", zap.String("spec", spec))
	return nil
}

// Stop disarms every timer and stops the sweeper. Persisted jobs are left untouched.
func (e *Engine) Stop() {
	e.cancel()
	e.mu.Lock()
	sweeper := e.sweeper
	e.sweeper = nil
	e.mu.Unlock()
	if sweeper != nil {
		<-sweeper.Stop().Done()
	}
	e.timers.stopAll()
	e.logger.Info("scheduler stopped")
}

func (e *Engine) arm(id uuid.UUID, d time.Duration) {
	e.timers.arm(id, func() Timer {
		return e.clock.AfterFunc(d, func() { e.onFire(id) })
	})
}

// onFire is the timer callback.
func (e *Engine) onFire(id uuid.UUID) {
	e.timers.remove(id)
	if e.ctx.Err() != nil {
		return
	}
	job, err := e.store.Get(e.ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		e.logger.Warn("fired job no longer exists", zap.String("job_id", id.String()))
		return
	}
	if err != nil {
		e.handleFailure(e.ctx, &models.ScheduledJob{ID: id}, err)
		return
	}
	_ = e.execute(e.ctx, job)
}

// execute fires a loaded job, scheduling a retry on failure.
func (e *Engine) execute(ctx context.Context, job *models.ScheduledJob) error {
	if !job.Pending() {
		e.clearAttempts(job.ID)
		e.logger.Debug("job not pending, skipping", zap.String("job_id", job.ID.String()), zap.String("status", string(job.Status)))
		return nil
	}
	fired, err := e.fire(ctx, job)
	if err != nil {
		e.handleFailure(ctx, job, err)
		return err
	}
	e.clearAttempts(job.ID)
	if !fired {
		e.logger.Info("job left pending before firing", zap.String("job_id", job.ID.String()))
		return nil
	}
	job.Status = models.JobStatusFired
	e.logger.Info("job fired",
		zap.String("job_id", job.ID.String()),
		zap.String("offer_id", job.OfferID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Duration("lateness", e.clock.Now().Sub(job.FiresAt)),
	)
	e.notifier.JobFired(ctx, job)
	return nil
}

// fire marks the job FIRED and applies its mutation in one transaction. It reports false
// without error when the job was no longer PENDING.
func (e *Engine) fire(ctx context.Context, job *models.ScheduledJob) (bool, error) {
	fired := false
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := e.store.CompareAndSetFired(ctx, job.ID)
		if err != nil {
			return errors.Wrap(err, "mark fired")
		}
		if !ok {
			return nil
		}
		if err := e.apply(ctx, job); err != nil {
			return errors.Wrapf(err, "apply %s for offer %s", job.Kind, job.OfferID)
		}
		fired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fired, nil
}

func (e *Engine) apply(ctx context.Context, job *models.ScheduledJob) error {
	switch job.Kind {
	case models.JobKindOfferStart:
		return e.mutator.ApplyStart(ctx, job.OfferID, job.TargetProductIDs)
	case models.JobKindOfferEnd:
		return e.mutator.ApplyEnd(ctx, job.OfferID, job.TargetProductIDs)
	default:
		return errors.Newf("unknown job kind %q", job.Kind)
	}
}

// handleFailure re-arms the job after the retry backoff, or dead-letters it once attempts are
// exhausted. A dead-lettered job stays PENDING for the sweeper and the next reconciliation.
// Nothing is re-armed once the engine has stopped.
func (e *Engine) handleFailure(ctx context.Context, job *models.ScheduledJob, cause error) {
	if e.ctx.Err() != nil {
		e.logger.Info("engine stopped, job left pending", zap.String("job_id", job.ID.String()), zap.Error(cause))
		return
	}
	e.mu.Lock()
	e.attempts[job.ID]++
	n := e.attempts[job.ID]
	if n >= e.cfg.MaxAttempts {
		delete(e.attempts, job.ID)
	}
	e.mu.Unlock()

	if n >= e.cfg.MaxAttempts {
		e.logger.Error("job exhausted fire attempts, left pending",
			zap.String("job_id", job.ID.String()),
			zap.String("offer_id", job.OfferID.String()),
			zap.Int("attempts", n),
			zap.Error(cause),
		)
		e.notifier.JobDeadLettered(ctx, job, n, cause)
		return
	}
	e.logger.Warn("job fire failed, retrying",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", n),
		zap.Duration("backoff", e.cfg.RetryBackoff),
		zap.Error(cause),
	)
	e.arm(job.ID, e.cfg.RetryBackoff)
}

func (e *Engine) clearAttempts(id uuid.UUID) {
	e.mu.Lock()
	delete(e.attempts, id)
	e.mu.Unlock()
}
