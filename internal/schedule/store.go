package schedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-commerce/backend/internal/models"
)

// Store is the durable record of scheduled jobs and the source of truth for reconciliation.
type Store interface {
	Insert(ctx context.Context, job *models.ScheduledJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.ScheduledJob, error)
	FindPendingByOfferAndKind(ctx context.Context, offerID uuid.UUID, kind models.JobKind) ([]*models.ScheduledJob, error)
	// FindAllPending returns every PENDING job ordered by fires_at ascending.
	FindAllPending(ctx context.Context) ([]*models.ScheduledJob, error)
	// CompareAndSetFired moves a job from PENDING to FIRED and reports whether it did.
	CompareAndSetFired(ctx context.Context, id uuid.UUID) (bool, error)
	// SetCancelled moves a job from PENDING to CANCELLED and reports whether it did.
	SetCancelled(ctx context.Context, id uuid.UUID) (bool, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.ScheduledJob, error)
}

// Transactor runs fn atomically: every store and mutator write made through ctx commits or
// rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mutator applies the effect of a fired job to the product catalog.
type Mutator interface {
	ApplyStart(ctx context.Context, offerID uuid.UUID, productIDs []uuid.UUID) error
	ApplyEnd(ctx context.Context, offerID uuid.UUID, productIDs []uuid.UUID) error
}

// Notifier is told about fired and dead-lettered jobs. Implementations must not block for long.
type Notifier interface {
	JobFired(ctx context.Context, job *models.ScheduledJob)
	JobDeadLettered(ctx context.Context, job *models.ScheduledJob, attempts int, err error)
}

type nopNotifier struct{}

func (nopNotifier) JobFired(context.Context, *models.ScheduledJob) {}

func (nopNotifier) JobDeadLettered(context.Context, *models.ScheduledJob, int, error) {}
