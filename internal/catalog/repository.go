package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/pkg/database"
)

// Repository writes the discount columns of products. Statements join the caller's
// transaction when ctx carries one.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a product catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetDiscount overwrites the discount fields of every product in ids with shape.
func (r *Repository) SetDiscount(ctx context.Context, ids []uuid.UUID, shape models.DiscountShape) error {
	const q = `UPDATE products SET discount_type = $2, discount_amount = $3::numeric,
		discount_start_date_time = $4, discount_end_date_time = $5, updated_at = NOW()
		WHERE id = ANY($1)`
	_, err := database.Conn(ctx, r.pool).Exec(ctx, q, ids, string(shape.Type), shape.Amount.String(), shape.StartsAt, shape.EndsAt)
	if err != nil {
		return errors.Wrapf(err, "set discount on %d products", len(ids))
	}
	return nil
}

// ClearDiscountWindow nulls the discount window and keeps type and amount.
func (r *Repository) ClearDiscountWindow(ctx context.Context, ids []uuid.UUID) error {
	const q = `UPDATE products SET discount_start_date_time = NULL, discount_end_date_time = NULL, updated_at = NOW()
		WHERE id = ANY($1)`
	if _, err := database.Conn(ctx, r.pool).Exec(ctx, q, ids); err != nil {
		return errors.Wrapf(err, "clear discount window on %d products", len(ids))
	}
	return nil
}

// ClearDiscount nulls every discount field.
func (r *Repository) ClearDiscount(ctx context.Context, ids []uuid.UUID) error {
	const q = `UPDATE products SET discount_type = NULL, discount_amount = NULL,
		discount_start_date_time = NULL, discount_end_date_time = NULL, updated_at = NOW()
		WHERE id = ANY($1)`
	if _, err := database.Conn(ctx, r.pool).Exec(ctx, q, ids); err != nil {
		return errors.Wrapf(err, "clear discount on %d products", len(ids))
	}
	return nil
}

// ListByIDs returns the products among ids that exist, ordered by name.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	const q = `SELECT id, name, price::text, discount_type, discount_amount::text,
		discount_start_date_time, discount_end_date_time, updated_at
		FROM products WHERE id = ANY($1) ORDER BY name`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()
	var list []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p            models.Product
		price        string
		discountType *string
		amount       *string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &discountType, &amount, &p.DiscountStartDateTime, &p.DiscountEndDateTime, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, errors.Wrapf(err, "price of product %s", p.ID)
	}
	if discountType != nil {
		t := models.DiscountType(*discountType)
		p.DiscountType = &t
	}
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, errors.Wrapf(err, "discount amount of product %s", p.ID)
		}
		p.DiscountAmount = decimal.NewNullDecimal(d)
	}
	return &p, nil
}
