package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/pkg/events"
	"github.com/aura-commerce/backend/pkg/queue"
)

const notifyTimeout = 5 * time.Second

// EventPublisher publishes catalog events. Implemented by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, channel, event string, data any) error
}

// DeadLetterSink records exhausted jobs. Implemented by *queue.Queue.
type DeadLetterSink interface {
	Push(ctx context.Context, dl queue.DeadLetter) error
}

// DiscountEvent is published when a fired job changes product discounts.
type DiscountEvent struct {
	OfferID    uuid.UUID   `json:"offer_id"`
	JobID      uuid.UUID   `json:"job_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// RedisNotifier publishes discount changes and records dead letters. Failures are logged and
// never affect the job, which has already committed.
type RedisNotifier struct {
	publisher EventPublisher
	dlq       DeadLetterSink
	logger    *zap.Logger
}

// NewRedisNotifier creates a notifier. Either dependency may be nil to disable it.
func NewRedisNotifier(publisher EventPublisher, dlq DeadLetterSink, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{publisher: publisher, dlq: dlq, logger: logger}
}

// JobFired publishes discount_applied for start jobs and discount_cleared for end jobs.
func (n *RedisNotifier) JobFired(ctx context.Context, job *models.ScheduledJob) {
	if n.publisher == nil || len(job.TargetProductIDs) == 0 {
		return
	}
	event := events.EventDiscountApplied
	if job.Kind == models.JobKindOfferEnd {
		event = events.EventDiscountCleared
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	err := n.publisher.Publish(ctx, events.ChannelDiscounts, event, DiscountEvent{
		OfferID:    job.OfferID,
		JobID:      job.ID,
		ProductIDs: job.TargetProductIDs,
	})
	if err != nil {
		n.logger.Warn("publish discount event failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

// JobDeadLettered pushes the job onto the dead-letter list.
func (n *RedisNotifier) JobDeadLettered(ctx context.Context, job *models.ScheduledJob, attempts int, cause error) {
	if n.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	dl := queue.DeadLetter{
		JobID:    job.ID,
		OfferID:  job.OfferID,
		Kind:     string(job.Kind),
		FiresAt:  job.FiresAt,
		Attempts: attempts,
	}
	if cause != nil {
		dl.Error = cause.Error()
	}
	if err := n.dlq.Push(ctx, dl); err != nil {
		n.logger.Error("dead letter push failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}
