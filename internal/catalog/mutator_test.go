package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-commerce/backend/internal/models"
)

type offerMap map[uuid.UUID]*models.Offer

func (m offerMap) GetByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	o, ok := m[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrOfferNotFound, "id %s", id)
	}
	return o, nil
}

var (
	windowStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(2 * time.Hour)
)

func fixture(t *testing.T, resetFull bool) (*Mutator, *MemoryProducts, *models.Offer) {
	t.Helper()
	p1 := models.Product{ID: uuid.New(), Name: "Kettle", Price: decimal.RequireFromString("40.00")}
	p2 := models.Product{ID: uuid.New(), Name: "Toaster", Price: decimal.RequireFromString("25.50")}
	products := NewMemoryProducts(p1, p2)
	offer := &models.Offer{
		ID:                uuid.New(),
		Title:             "Spring sale",
		StartDateTime:     windowStart,
		EndDateTime:       windowEnd,
		ProductIDs:        []uuid.UUID{p1.ID, p2.ID},
		DiscountType:      models.DiscountPercentage,
		DiscountAmount:    decimal.NewFromInt(15),
		ResetFullDiscount: resetFull,
	}
	return NewMutator(products, offerMap{offer.ID: offer}, nil), products, offer
}

func TestApplyStartWritesOfferShape(t *testing.T) {
	m, products, offer := fixture(t, false)

	require.NoError(t, m.ApplyStart(context.Background(), offer.ID, offer.ProductIDs))

	for _, id := range offer.ProductIDs {
		p, ok := products.Get(id)
		require.True(t, ok)
		require.NotNil(t, p.DiscountType)
		assert.Equal(t, models.DiscountPercentage, *p.DiscountType)
		assert.True(t, p.DiscountAmount.Valid)
		assert.True(t, decimal.NewFromInt(15).Equal(p.DiscountAmount.Decimal))
		require.NotNil(t, p.DiscountStartDateTime)
		assert.Equal(t, windowStart, *p.DiscountStartDateTime)
		assert.Equal(t, windowEnd, *p.DiscountEndDateTime)
	}
}

func TestApplyStartIsIdempotent(t *testing.T) {
	m, products, offer := fixture(t, false)
	ctx := context.Background()

	require.NoError(t, m.ApplyStart(ctx, offer.ID, offer.ProductIDs))
	once, _ := products.Get(offer.ProductIDs[0])
	require.NoError(t, m.ApplyStart(ctx, offer.ID, offer.ProductIDs))
	twice, _ := products.Get(offer.ProductIDs[0])

	assert.Equal(t, once, twice)
}

func TestEmptyProductSetIsNoop(t *testing.T) {
	m, products, offer := fixture(t, true)
	ctx := context.Background()

	require.NoError(t, m.ApplyStart(ctx, offer.ID, nil))
	require.NoError(t, m.ApplyEnd(ctx, offer.ID, []uuid.UUID{}))
	require.NoError(t, m.ApplyShape(ctx, nil, offer.Shape()))
	require.NoError(t, m.Revert(ctx, nil, true))
	assert.Zero(t, products.Writes())
}

func TestApplyEndClearsWindowOnly(t *testing.T) {
	m, products, offer := fixture(t, false)
	ctx := context.Background()
	require.NoError(t, m.ApplyStart(ctx, offer.ID, offer.ProductIDs))

	require.NoError(t, m.ApplyEnd(ctx, offer.ID, offer.ProductIDs))

	p, _ := products.Get(offer.ProductIDs[1])
	assert.Nil(t, p.DiscountStartDateTime)
	assert.Nil(t, p.DiscountEndDateTime)
	require.NotNil(t, p.DiscountType)
	assert.Equal(t, models.DiscountPercentage, *p.DiscountType)
	assert.True(t, p.DiscountAmount.Valid)
}

func TestApplyEndWithFullReset(t *testing.T) {
	m, products, offer := fixture(t, true)
	ctx := context.Background()
	require.NoError(t, m.ApplyStart(ctx, offer.ID, offer.ProductIDs))

	require.NoError(t, m.ApplyEnd(ctx, offer.ID, offer.ProductIDs))
	require.NoError(t, m.ApplyEnd(ctx, offer.ID, offer.ProductIDs))

	for _, id := range offer.ProductIDs {
		p, _ := products.Get(id)
		assert.False(t, p.HasDiscount())
	}
}

func TestOfferDeletedBeforeFiring(t *testing.T) {
	p := models.Product{ID: uuid.New(), Name: "Lamp"}
	products := NewMemoryProducts(p)
	m := NewMutator(products, offerMap{}, nil)
	ctx := context.Background()
	shape := models.DiscountShape{Type: models.DiscountFlat, Amount: decimal.NewFromInt(5), StartsAt: &windowStart, EndsAt: &windowEnd}
	require.NoError(t, m.ApplyShape(ctx, []uuid.UUID{p.ID}, shape))

	require.NoError(t, m.ApplyStart(ctx, uuid.New(), []uuid.UUID{p.ID}))
	got, _ := products.Get(p.ID)
	assert.Equal(t, windowEnd, *got.DiscountEndDateTime, "start for a missing offer must not write")

	require.NoError(t, m.ApplyEnd(ctx, uuid.New(), []uuid.UUID{p.ID}))
	got, _ = products.Get(p.ID)
	assert.Nil(t, got.DiscountStartDateTime)
	assert.Nil(t, got.DiscountEndDateTime)
	require.NotNil(t, got.DiscountType)
	assert.Equal(t, models.DiscountFlat, *got.DiscountType)
}

func TestStoreFailureIsReturned(t *testing.T) {
	m, products, offer := fixture(t, false)
	boom := errors.New("connection reset")
	products.FailNext(boom)

	err := m.ApplyStart(context.Background(), offer.ID, offer.ProductIDs)
	require.ErrorIs(t, err, boom)
	p, _ := products.Get(offer.ProductIDs[0])
	assert.False(t, p.HasDiscount())
}

func TestMissing(t *testing.T) {
	m, _, offer := fixture(t, false)
	unknown := uuid.New()

	missing, err := m.Missing(context.Background(), append([]uuid.UUID{unknown}, offer.ProductIDs...))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{unknown}, missing)

	missing, err = m.Missing(context.Background(), offer.ProductIDs)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
