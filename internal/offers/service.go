// Package offers manages promotional offers and is the only caller of the scheduler: creating,
// editing and deleting an offer keeps its start and end jobs in step with the stored window.
package offers

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/internal/schedule"
	"github.com/aura-commerce/backend/pkg/storage"
)

var maxPercentage = decimal.NewFromInt(100)

// Store persists offers. Implemented by *Repository and *MemoryRepository.
type Store interface {
	SlugChecker
	Create(ctx context.Context, o *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	List(ctx context.Context) ([]models.Offer, error)
	Update(ctx context.Context, o *models.Offer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Scheduler arms and cancels offer jobs. Implemented by *schedule.Engine.
type Scheduler interface {
	Schedule(ctx context.Context, kind models.JobKind, offerID uuid.UUID, firesAt time.Time, productIDs []uuid.UUID) (uuid.UUID, error)
	CancelAll(ctx context.Context, offerID uuid.UUID) error
}

// Catalog writes discounts onto products. Implemented by *catalog.Mutator.
type Catalog interface {
	ApplyShape(ctx context.Context, productIDs []uuid.UUID, shape models.DiscountShape) error
	Revert(ctx context.Context, productIDs []uuid.UUID, resetFull bool) error
	Missing(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error)
}

// JobLister lists an offer's scheduled jobs. Implemented by schedule.Store.
type JobLister interface {
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.ScheduledJob, error)
}

// Archiver stores JSON audit documents. Implemented by *storage.S3.
type Archiver interface {
	ArchiveJSON(ctx context.Context, key string, v any) (string, error)
}

// Input is the editable part of an offer.
type Input struct {
	Title                 string
	Description           string
	StartDateTime         time.Time
	EndDateTime           time.Time
	ProductIDs            []uuid.UUID
	DiscountType          models.DiscountType
	DiscountAmount        decimal.Decimal
	DiscountStartDateTime *time.Time
	DiscountEndDateTime   *time.Time
	ResetFullDiscount     bool
}

// AuditRecord is archived when an offer is deleted.
type AuditRecord struct {
	Offer     *models.Offer          `json:"offer"`
	Jobs      []*models.ScheduledJob `json:"jobs"`
	DeletedAt time.Time              `json:"deleted_at"`
}

// Service implements the offer lifecycle.
type Service struct {
	store     Store
	jobs      JobLister
	scheduler Scheduler
	catalog   Catalog
	archiver  Archiver
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates an offer service. now defaults to time.Now.
func NewService(store Store, jobs JobLister, scheduler Scheduler, catalog Catalog, now func() time.Time, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		jobs:      jobs,
		scheduler: scheduler,
		catalog:   catalog,
		now:       now,
		logger:    logger.Named("offers"),
	}
}

// SetArchiver enables archiving of job history on delete.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

// Create validates and stores a new offer, then schedules its activation.
func (s *Service) Create(ctx context.Context, in Input) (*models.Offer, error) {
	in.ProductIDs = dedupe(in.ProductIDs)
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	o := &models.Offer{ID: uuid.New()}
	in.applyTo(o)
	var err error
	if o.Slug, err = uniqueSlug(ctx, s.store, o.Title, o.ID); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	if err := s.ScheduleOfferActivation(ctx, o.ID, o.StartDateTime, o.EndDateTime, o.ProductIDs, o.Shape()); err != nil {
		s.rollbackCreate(o.ID, err)
		return nil, err
	}
	s.logger.Info("offer created", zap.String("offer_id", o.ID.String()), zap.String("slug", o.Slug), zap.Int("products", len(o.ProductIDs)))
	return o, nil
}

// Update replaces an offer's fields and reschedules it. Products dropped from an offer that
// had already started are reverted. When rescheduling fails the previous offer and its jobs
// are restored.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Offer, error) {
	old, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.ProductIDs = dedupe(in.ProductIDs)
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	o := &models.Offer{ID: id, Slug: old.Slug, CreatedAt: old.CreatedAt}
	in.applyTo(o)
	if o.Title != old.Title {
		if o.Slug, err = uniqueSlug(ctx, s.store, o.Title, id); err != nil {
			return nil, err
		}
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	if err := s.RescheduleOfferActivation(ctx, id, o.StartDateTime, o.EndDateTime, o.ProductIDs, o.Shape()); err != nil {
		s.rollbackUpdate(old, err)
		return nil, err
	}
	if now := s.now(); !old.StartDateTime.After(now) {
		// Moving a running offer back into the future withdraws it from every product
		// until the new start job fires.
		revert := subtract(old.ProductIDs, o.ProductIDs)
		if o.StartDateTime.After(now) {
			revert = old.ProductIDs
		}
		if len(revert) > 0 {
			if err := s.catalog.Revert(ctx, revert, o.ResetFullDiscount); err != nil {
				return nil, errors.Wrap(err, "revert products")
			}
			s.logger.Info("products reverted", zap.String("offer_id", id.String()), zap.Int("products", len(revert)))
		}
	}
	s.logger.Info("offer updated", zap.String("offer_id", id.String()), zap.String("slug", o.Slug))
	return o, nil
}

// Delete cancels an offer's jobs, reverts its products and removes it. resetFull overrides the
// offer's own reset_full_discount flag when set. The job history is archived when an Archiver
// is configured.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, resetFull *bool) error {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	reset := o.ResetFullDiscount
	if resetFull != nil {
		reset = *resetFull
	}
	if err := s.CancelOfferActivation(ctx, id, reset); err != nil {
		return err
	}
	s.archive(ctx, o)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("offer deleted", zap.String("offer_id", id.String()), zap.Bool("reset_full_discount", reset))
	return nil
}

// Get returns an offer by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all offers.
func (s *Service) List(ctx context.Context) ([]models.Offer, error) {
	return s.store.List(ctx)
}

// Jobs returns the scheduled job history of an offer, including offers that were deleted.
func (s *Service) Jobs(ctx context.Context, id uuid.UUID) ([]*models.ScheduledJob, error) {
	return s.jobs.ListByOffer(ctx, id)
}

// ScheduleOfferActivation schedules the end job and either a start job or, when start has
// passed, an immediate discount. The discount is written last so that a failure leaves the
// products untouched. end must be in the future.
func (s *Service) ScheduleOfferActivation(ctx context.Context, offerID uuid.UUID, start, end time.Time, productIDs []uuid.UUID, shape models.DiscountShape) error {
	now := s.now()
	if !end.After(now) {
		return errors.WithHintf(
			errors.Wrapf(schedule.ErrInvalidScheduleWindow, "offer %s ends at %s", offerID, end.Format(time.RFC3339)),
			"end_date_time must be after %s", now.Format(time.RFC3339))
	}
	applyNow := !start.After(now)
	if !applyNow {
		_, err := s.scheduler.Schedule(ctx, models.JobKindOfferStart, offerID, start, productIDs)
		switch {
		case errors.Is(err, schedule.ErrInvalidScheduleWindow):
			// start passed between our check and the scheduler's
			applyNow = true
		case err != nil:
			return errors.Wrap(err, "schedule start")
		}
	}
	if _, err := s.scheduler.Schedule(ctx, models.JobKindOfferEnd, offerID, end, productIDs); err != nil {
		return errors.Wrap(err, "schedule end")
	}
	if applyNow {
		if err := s.catalog.ApplyShape(ctx, productIDs, shape); err != nil {
			return errors.Wrap(err, "apply discount")
		}
	}
	return nil
}

// RescheduleOfferActivation cancels both pending jobs of the offer before scheduling again.
func (s *Service) RescheduleOfferActivation(ctx context.Context, offerID uuid.UUID, start, end time.Time, productIDs []uuid.UUID, shape models.DiscountShape) error {
	if err := s.scheduler.CancelAll(ctx, offerID); err != nil {
		return errors.Wrap(err, "cancel jobs")
	}
	return s.ScheduleOfferActivation(ctx, offerID, start, end, productIDs, shape)
}

// CancelOfferActivation cancels both pending jobs and reverts the offer's products if the
// offer has started. A missing offer or one that has not started only has its jobs cancelled.
func (s *Service) CancelOfferActivation(ctx context.Context, offerID uuid.UUID, resetFullDiscount bool) error {
	if err := s.scheduler.CancelAll(ctx, offerID); err != nil {
		return errors.Wrap(err, "cancel jobs")
	}
	o, err := s.store.GetByID(ctx, offerID)
	if errors.Is(err, models.ErrOfferNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.StartDateTime.After(s.now()) {
		return nil
	}
	if err := s.catalog.Revert(ctx, o.ProductIDs, resetFullDiscount); err != nil {
		return errors.Wrap(err, "revert products")
	}
	return nil
}

func (s *Service) validate(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.Wrap(ErrInvalidOffer, "title is required")
	}
	if !in.DiscountType.Valid() {
		return errors.WithHint(errors.Wrapf(ErrInvalidOffer, "discount_type %q", in.DiscountType), "use percentage or flat")
	}
	if in.DiscountAmount.IsNegative() {
		return errors.Wrap(ErrInvalidOffer, "discount_amount must not be negative")
	}
	if in.DiscountType == models.DiscountPercentage && in.DiscountAmount.GreaterThan(maxPercentage) {
		return errors.Wrap(ErrInvalidOffer, "percentage discount must not exceed 100")
	}
	if !in.EndDateTime.After(in.StartDateTime) {
		return errors.WithHint(
			errors.Wrap(schedule.ErrInvalidScheduleWindow, "end_date_time must be after start_date_time"),
			"move end_date_time past start_date_time")
	}
	if now := s.now(); !in.EndDateTime.After(now) {
		return errors.WithHintf(
			errors.Wrap(schedule.ErrInvalidScheduleWindow, "offer has already ended"),
			"end_date_time must be after %s", now.Format(time.RFC3339))
	}
	if in.DiscountStartDateTime != nil && in.DiscountEndDateTime != nil && !in.DiscountEndDateTime.After(*in.DiscountStartDateTime) {
		return errors.Wrap(ErrInvalidOffer, "discount_end_date_time must be after discount_start_date_time")
	}
	missing, err := s.catalog.Missing(ctx, in.ProductIDs)
	if err != nil {
		return errors.Wrap(err, "check products")
	}
	if len(missing) > 0 {
		return errors.WithHintf(errors.Wrapf(ErrInvalidOffer, "%d unknown products", len(missing)), "unknown product ids: %v", missing)
	}
	return nil
}

// rollbackCreate removes an offer whose scheduling failed half way.
func (s *Service) rollbackCreate(id uuid.UUID, cause error) {
	ctx := context.Background()
	log := s.logger.With(zap.String("offer_id", id.String()), zap.NamedError("cause", cause))
	if err := s.scheduler.CancelAll(ctx, id); err != nil {
		log.Error("rollback: cancel jobs", zap.Error(err))
	}
	if err := s.store.Delete(ctx, id); err != nil {
		log.Error("rollback: delete offer", zap.Error(err))
		return
	}
	log.Warn("offer creation rolled back")
}

// rollbackUpdate puts back the offer as it was before a failed update and re-arms its jobs.
func (s *Service) rollbackUpdate(old *models.Offer, cause error) {
	ctx := context.Background()
	log := s.logger.With(zap.String("offer_id", old.ID.String()), zap.NamedError("cause", cause))
	if err := s.store.Update(ctx, old); err != nil {
		log.Error("rollback: restore offer", zap.Error(err))
		return
	}
	if !old.EndDateTime.After(s.now()) {
		log.Warn("offer restored; previous window has ended, nothing to schedule")
		return
	}
	if err := s.RescheduleOfferActivation(ctx, old.ID, old.StartDateTime, old.EndDateTime, old.ProductIDs, old.Shape()); err != nil {
		log.Error("rollback: reschedule previous window", zap.Error(err))
		return
	}
	log.Warn("offer update rolled back")
}

func (s *Service) archive(ctx context.Context, o *models.Offer) {
	if s.archiver == nil {
		return
	}
	jobs, err := s.jobs.ListByOffer(ctx, o.ID)
	if err != nil {
		s.logger.Warn("archive: list jobs", zap.String("offer_id", o.ID.String()), zap.Error(err))
		return
	}
	now := s.now()
	key, err := s.archiver.ArchiveJSON(ctx, storage.AuditKey(o.ID.String(), now), AuditRecord{Offer: o, Jobs: jobs, DeletedAt: now})
	if err != nil {
		s.logger.Warn("archive offer history failed", zap.String("offer_id", o.ID.String()), zap.Error(err))
		return
	}
	s.logger.Info("offer history archived", zap.String("offer_id", o.ID.String()), zap.String("key", key))
}

func (in Input) applyTo(o *models.Offer) {
	o.Title = strings.TrimSpace(in.Title)
	o.Description = in.Description
	o.StartDateTime = in.StartDateTime
	o.EndDateTime = in.EndDateTime
	o.ProductIDs = in.ProductIDs
	o.DiscountType = in.DiscountType
	o.DiscountAmount = in.DiscountAmount
	o.DiscountStartDateTime = in.DiscountStartDateTime
	o.DiscountEndDateTime = in.DiscountEndDateTime
	o.ResetFullDiscount = in.ResetFullDiscount
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// subtract returns the ids in a that are not in b.
func subtract(a, b []uuid.UUID) []uuid.UUID {
	keep := make(map[uuid.UUID]bool, len(b))
	for _, id := range b {
		keep[id] = true
	}
	var out []uuid.UUID
	for _, id := range a {
		if !keep[id] {
			out = append(out, id)
		}
	}
	return out
}
