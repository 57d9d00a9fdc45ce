package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aura-commerce/backend/internal/models"
)

// MemoryProducts is an in-memory ProductStore. Writes to unknown ids are ignored, like an
// UPDATE that matches no rows.
type MemoryProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*models.Product
	writes   int
	failNext error
}

// NewMemoryProducts returns a store seeded with products.
func NewMemoryProducts(products ...models.Product) *MemoryProducts {
	m := &MemoryProducts{products: make(map[uuid.UUID]*models.Product)}
	for _, p := range products {
		m.Put(p)
	}
	return m
}

// Put inserts or replaces a product.
func (m *MemoryProducts) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &p
}

// Get returns a copy of the product, or false.
func (m *MemoryProducts) Get(id uuid.UUID) (models.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return models.Product{}, false
	}
	return *p, true
}

// Writes returns the number of successful bulk writes.
func (m *MemoryProducts) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailNext makes the next write return err.
func (m *MemoryProducts) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *MemoryProducts) SetDiscount(_ context.Context, ids []uuid.UUID, shape models.DiscountShape) error {
	return m.update(ids, func(p *models.Product) {
		t := shape.Type
		p.DiscountType = &t
		p.DiscountAmount = decimal.NewNullDecimal(shape.Amount)
		p.DiscountStartDateTime = copyTime(shape.StartsAt)
		p.DiscountEndDateTime = copyTime(shape.EndsAt)
	})
}

func (m *MemoryProducts) ClearDiscountWindow(_ context.Context, ids []uuid.UUID) error {
	return m.update(ids, func(p *models.Product) {
		p.DiscountStartDateTime = nil
		p.DiscountEndDateTime = nil
	})
}

func (m *MemoryProducts) ClearDiscount(_ context.Context, ids []uuid.UUID) error {
	return m.update(ids, func(p *models.Product) {
		p.DiscountType = nil
		p.DiscountAmount = decimal.NullDecimal{}
		p.DiscountStartDateTime = nil
		p.DiscountEndDateTime = nil
	})
}

func (m *MemoryProducts) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryProducts) update(ids []uuid.UUID, fn func(*models.Product)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			fn(p)
		}
	}
	m.writes++
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
