package offers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aura-commerce/backend/internal/models"
)

// MemoryRepository is an in-memory offer Store.
type MemoryRepository struct {
	mu     sync.Mutex
	offers map[uuid.UUID]*models.Offer
	now    func() time.Time
}

// NewMemoryRepository creates an empty repository. now stamps created_at/updated_at; nil uses time.Now.
func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{offers: make(map[uuid.UUID]*models.Offer), now: now}
}

func (r *MemoryRepository) Create(_ context.Context, o *models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(o.Slug, o.ID) {
		return errors.Wrapf(ErrSlugConflict, "slug %q", o.Slug)
	}
	o.CreatedAt = r.now()
	o.UpdatedAt = o.CreatedAt
	r.offers[o.ID] = cloneOffer(o)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrOfferNotFound, "id %s", id)
	}
	return cloneOffer(o), nil
}

func (r *MemoryRepository) List(context.Context) ([]models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]models.Offer, 0, len(r.offers))
	for _, o := range r.offers {
		list = append(list, *cloneOffer(o))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartDateTime.After(list[j].StartDateTime) })
	return list, nil
}

func (r *MemoryRepository) Update(_ context.Context, o *models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.offers[o.ID]
	if !ok {
		return errors.Wrapf(models.ErrOfferNotFound, "id %s", o.ID)
	}
	if r.slugTaken(o.Slug, o.ID) {
		return errors.Wrapf(ErrSlugConflict, "slug %q", o.Slug)
	}
	o.CreatedAt = old.CreatedAt
	o.UpdatedAt = r.now()
	r.offers[o.ID] = cloneOffer(o)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.offers[id]; !ok {
		return errors.Wrapf(models.ErrOfferNotFound, "id %s", id)
	}
	delete(r.offers, id)
	return nil
}

func (r *MemoryRepository) SlugExists(_ context.Context, slug string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slugTaken(slug, exclude), nil
}

func (r *MemoryRepository) slugTaken(slug string, exclude uuid.UUID) bool {
	for id, o := range r.offers {
		if id != exclude && o.Slug == slug {
			return true
		}
	}
	return false
}

func cloneOffer(o *models.Offer) *models.Offer {
	c := *o
	c.ProductIDs = append([]uuid.UUID(nil), o.ProductIDs...)
	return &c
}
