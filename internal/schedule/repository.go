package schedule

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/pkg/database"
)

const jobColumns = `id, kind, offer_id, fires_at, target_product_ids, status, created_at, updated_at`

// Repository is the Postgres implementation of Store.
// Statements run inside the caller's transaction when ctx carries one.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a scheduled job repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new job. A second PENDING job for the same offer and kind violates the
// partial unique index and is reported as ErrDuplicatePendingJob.
func (r *Repository) Insert(ctx context.Context, job *models.ScheduledJob) error {
	const q = `INSERT INTO scheduled_jobs (id, kind, offer_id, fires_at, target_product_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q,
		job.ID, string(job.Kind), job.OfferID, job.FiresAt, job.TargetProductIDs, string(job.Status), job.CreatedAt, job.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return errors.Wrapf(ErrDuplicatePendingJob, "%s for offer %s", job.Kind, job.OfferID)
	}
	if err != nil {
		return errors.Wrap(err, "insert scheduled job")
	}
	return nil
}

// Get returns a job by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.ScheduledJob, error) {
	q := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`
	job, err := scanJob(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errors.Wrapf(ErrJobNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get scheduled job")
	}
	return job, nil
}

// FindPendingByOfferAndKind returns the PENDING jobs of kind for an offer.
func (r *Repository) FindPendingByOfferAndKind(ctx context.Context, offerID uuid.UUID, kind models.JobKind) ([]*models.ScheduledJob, error) {
	q := `SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE offer_id = $1 AND kind = $2 AND status = 'PENDING' ORDER BY fires_at`
	return r.list(ctx, q, offerID, string(kind))
}

// FindAllPending returns every PENDING job, oldest fire time first.
func (r *Repository) FindAllPending(ctx context.Context) ([]*models.ScheduledJob, error) {
	q := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE status = 'PENDING' ORDER BY fires_at ASC, created_at ASC`
	return r.list(ctx, q)
}

// ListByOffer returns the full job history of an offer, newest first.
func (r *Repository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.ScheduledJob, error) {
	q := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE offer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, offerID)
}

// CompareAndSetFired marks the job FIRED only if it is still PENDING. Inside a transaction the
// updated row stays locked until commit, so a concurrent cancel waits and then sees FIRED.
func (r *Repository) CompareAndSetFired(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, models.JobStatusFired)
}

// SetCancelled marks the job CANCELLED only if it is still PENDING.
func (r *Repository) SetCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, models.JobStatusCancelled)
}

func (r *Repository) transition(ctx context.Context, id uuid.UUID, to models.JobStatus) (bool, error) {
	const q = `UPDATE scheduled_jobs SET status = $2, updated_at = NOW() WHERE id = $1 AND status = 'PENDING'`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, string(to))
	if err != nil {
		return false, errors.Wrapf(err, "set job %s %s", id, to)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.ScheduledJob, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query scheduled jobs")
	}
	defer rows.Close()
	var list []*models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan scheduled job")
		}
		list = append(list, job)
	}
	return list, rows.Err()
}

func scanJob(row pgx.Row) (*models.ScheduledJob, error) {
	var (
		j      models.ScheduledJob
		kind   string
		status string
	)
	if err := row.Scan(&j.ID, &kind, &j.OfferID, &j.FiresAt, &j.TargetProductIDs, &status, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Kind = models.JobKind(kind)
	j.Status = models.JobStatus(status)
	return &j, nil
}
