package offers

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

const offerColumns = `id, title, slug, description, start_date_time, end_date_time, product_ids,
	discount_type, discount_amount::text, discount_start_date_time, discount_end_date_time,
	reset_full_discount, created_at, updated_at`

// Repository handles offer persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an offer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts o using its ID and fills the timestamps.
func (r *Repository) Create(ctx context.Context, o *models.Offer) error {
	const q = `INSERT INTO offers (id, title, slug, description, start_date_time, end_date_time, product_ids,
			discount_type, discount_amount, discount_start_date_time, discount_end_date_time, reset_full_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12)
		RETURNING created_at, updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		o.ID, o.Title, o.Slug, o.Description, o.StartDateTime, o.EndDateTime, o.ProductIDs,
		string(o.DiscountType), o.DiscountAmount.String(), o.DiscountStartDateTime, o.DiscountEndDateTime, o.ResetFullDiscount,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return errors.Wrapf(ErrSlugConflict, "slug %q", o.Slug)
	}
	if err != nil {
		return errors.Wrap(err, "insert offer")
	}
	return nil
}

// GetByID returns an offer by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	o, err := scanOffer(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, errors.Wrapf(models.ErrOfferNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get offer")
	}
	return o, nil
}

// List returns all offers, latest start first.
func (r *Repository) List(ctx context.Context) ([]models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers ORDER BY start_date_time DESC`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list offers")
	}
	defer rows.Close()
	var list []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan offer")
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Update overwrites every editable field of o.
func (r *Repository) Update(ctx context.Context, o *models.Offer) error {
	const q = `UPDATE offers SET title = $2, slug = $3, description = $4, start_date_time = $5, end_date_time = $6,
			product_ids = $7, discount_type = $8, discount_amount = $9::numeric, discount_start_date_time = $10,
			discount_end_date_time = $11, reset_full_discount = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q,
		o.ID, o.Title, o.Slug, o.Description, o.StartDateTime, o.EndDateTime, o.ProductIDs,
		string(o.DiscountType), o.DiscountAmount.String(), o.DiscountStartDateTime, o.DiscountEndDateTime, o.ResetFullDiscount,
	).Scan(&o.UpdatedAt)
	switch {
	case database.IsNoRows(err):
		return errors.Wrapf(models.ErrOfferNotFound, "id %s", o.ID)
	case database.IsUniqueViolation(err):
		return errors.Wrapf(ErrSlugConflict, "slug %q", o.Slug)
	case err != nil:
		return errors.Wrap(err, "update offer")
	}
	return nil
}

// Delete removes an offer by ID. Its scheduled jobs are kept for audit.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM offers WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "delete offer")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrOfferNotFound, "id %s", id)
	}
	return nil
}

// SlugExists reports whether another offer than exclude uses slug.
func (r *Repository) SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM offers WHERE slug = $1 AND id <> $2)`
	var exists bool
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, q, slug, exclude).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check slug")
	}
	return exists, nil
}

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var (
		o            models.Offer
		discountType string
		amount       string
	)
	err := row.Scan(&o.ID, &o.Title, &o.Slug, &o.Description, &o.StartDateTime, &o.EndDateTime, &o.ProductIDs,
		&discountType, &amount, &o.DiscountStartDateTime, &o.DiscountEndDateTime,
		&o.ResetFullDiscount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.DiscountType = models.DiscountType(discountType)
	if o.DiscountAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, errors.Wrapf(err, "discount amount of offer %s", o.ID)
	}
	return &o, nil
}
