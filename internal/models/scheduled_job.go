package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which boundary of an offer a job executes.
type JobKind string

const (
	JobKindOfferStart JobKind = "OFFER_START"
	JobKindOfferEnd   JobKind = "OFFER_END"
)

// JobStatus is monotonic: PENDING moves to FIRED or CANCELLED and never back.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusFired     JobStatus = "FIRED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// ScheduledJob is a one-shot timed unit of work tied to an offer boundary.
type ScheduledJob struct {
	ID               uuid.UUID   `json:"id"`
	Kind             JobKind     `json:"kind"`
	OfferID          uuid.UUID   `json:"offer_id"`
	FiresAt          time.Time   `json:"fires_at"`
	TargetProductIDs []uuid.UUID `json:"target_product_ids"`
	Status           JobStatus   `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Pending reports whether the job can still fire or be cancelled.
func (j *ScheduledJob) Pending() bool { return j.Status == JobStatusPending }
