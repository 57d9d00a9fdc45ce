// Package queue keeps a Redis list of scheduler jobs that exhausted their local fire retries.
// Entries are informational: the job itself stays PENDING in Postgres and is retried by the
// sweeper or on the next startup.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// KeyDeadLetters is the Redis list key for dead-lettered scheduler jobs.
	KeyDeadLetters = "scheduler:dlq"
	// MaxDeadLetters caps the list; older entries are trimmed.
	MaxDeadLetters = 1000
)

// DeadLetter records one exhausted fire attempt cycle.
type DeadLetter struct {
	ID       string    `json:"id"`
	JobID    uuid.UUID `json:"job_id"`
	OfferID  uuid.UUID `json:"offer_id"`
	Kind     string    `json:"kind"`
	FiresAt  time.Time `json:"fires_at"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Queue pushes and lists dead letters in Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a Redis-backed dead-letter queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Push prepends a dead letter and trims the list to MaxDeadLetters.
func (q *Queue) Push(ctx context.Context, dl DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now()
	}
	raw, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, KeyDeadLetters, raw)
	pipe.LTrim(ctx, KeyDeadLetters, 0, MaxDeadLetters-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", dl.JobID.String()), zap.Int("attempts", dl.Attempts))
	return nil
}

// List returns up to limit most recent dead letters, newest first.
func (q *Queue) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 || limit > MaxDeadLetters {
		limit = 100
	}
	raws, err := q.client.LRange(ctx, KeyDeadLetters, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	out := make([]DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			q.logger.Warn("invalid dead letter payload", zap.String("raw", raw), zap.Error(err))
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}
