package schedule

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidScheduleWindow is returned when a fire time is not strictly in the future.
	ErrInvalidScheduleWindow = errors.New("schedule window is not in the future")
	// ErrDuplicatePendingJob is returned when a pending job of the same kind already exists
	// for the offer. Callers must cancel before re-scheduling.
	ErrDuplicatePendingJob = errors.New("pending job of this kind already exists for the offer")
	// ErrEngineNotReady is returned by Schedule until startup reconciliation has completed.
	ErrEngineNotReady = errors.New("scheduler has not completed startup reconciliation")
	// ErrJobNotFound is returned by Store.Get for unknown ids.
	ErrJobNotFound = errors.New("scheduled job not found")
)
