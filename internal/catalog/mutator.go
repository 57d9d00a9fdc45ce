// Package catalog applies offer discounts to products. Every write is a single bulk overwrite,
// so replaying a mutation leaves products in the same state.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-commerce/backend/internal/models"
)

// ProductStore persists product discount fields. Implemented by *Repository and *MemoryProducts.
type ProductStore interface {
	SetDiscount(ctx context.Context, ids []uuid.UUID, shape models.DiscountShape) error
	ClearDiscountWindow(ctx context.Context, ids []uuid.UUID) error
	ClearDiscount(ctx context.Context, ids []uuid.UUID) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// OfferSource loads offers. It returns models.ErrOfferNotFound for unknown ids.
type OfferSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

// Mutator writes offer state onto products.
type Mutator struct {
	products ProductStore
	offers   OfferSource
	logger   *zap.Logger
}

// NewMutator creates a Mutator.
func NewMutator(products ProductStore, offers OfferSource, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{products: products, offers: offers, logger: logger.Named("catalog")}
}

// ApplyStart writes the current discount of offerID onto productIDs.
// An offer that no longer exists leaves the products untouched.
func (m *Mutator) ApplyStart(ctx context.Context, offerID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	offer, err := m.offers.GetByID(ctx, offerID)
	if errors.Is(err, models.ErrOfferNotFound) {
		m.logger.Warn("offer gone at start, products left unchanged", zap.String("offer_id", offerID.String()), zap.Int("products", len(productIDs)))
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "load offer %s", offerID)
	}
	return m.ApplyShape(ctx, productIDs, offer.Shape())
}

// ApplyShape writes shape onto productIDs.
func (m *Mutator) ApplyShape(ctx context.Context, productIDs []uuid.UUID, shape models.DiscountShape) error {
	if len(productIDs) == 0 {
		return nil
	}
	if err := m.products.SetDiscount(ctx, productIDs, shape); err != nil {
		return err
	}
	m.logger.Debug("discount applied", zap.Int("products", len(productIDs)), zap.String("type", string(shape.Type)), zap.String("amount", shape.Amount.String()))
	return nil
}

// ApplyEnd clears the discount window of productIDs, and type and amount too when the offer
// asks for a full reset. An offer that no longer exists only has its window cleared.
func (m *Mutator) ApplyEnd(ctx context.Context, offerID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	offer, err := m.offers.GetByID(ctx, offerID)
	if errors.Is(err, models.ErrOfferNotFound) {
		m.logger.Warn("offer gone at end, clearing discount window only", zap.String("offer_id", offerID.String()), zap.Int("products", len(productIDs)))
		return m.Revert(ctx, productIDs, false)
	}
	if err != nil {
		return errors.Wrapf(err, "load offer %s", offerID)
	}
	return m.Revert(ctx, productIDs, offer.ResetFullDiscount)
}

// Revert clears the discount window of productIDs; resetFull also clears type and amount.
func (m *Mutator) Revert(ctx context.Context, productIDs []uuid.UUID, resetFull bool) error {
	if len(productIDs) == 0 {
		return nil
	}
	if resetFull {
		return m.products.ClearDiscount(ctx, productIDs)
	}
	return m.products.ClearDiscountWindow(ctx, productIDs)
}

// Missing returns the ids in productIDs that have no product row.
func (m *Mutator) Missing(ctx context.Context, productIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	found, err := m.products.ListByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(found))
	for _, p := range found {
		seen[p.ID] = true
	}
	var missing []uuid.UUID
	for _, id := range productIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
