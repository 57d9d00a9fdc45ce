package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog record slice the offer engine reads and writes.
// Everything except the discount fields is owned by the catalog.
type Product struct {
	ID                    uuid.UUID           `json:"id"`
	Name                  string              `json:"name"`
	Price                 decimal.Decimal     `json:"price"`
	DiscountType          *DiscountType       `json:"discount_type,omitempty"`
	DiscountAmount        decimal.NullDecimal `json:"discount_amount"`
	DiscountStartDateTime *time.Time          `json:"discount_start_date_time,omitempty"`
	DiscountEndDateTime   *time.Time          `json:"discount_end_date_time,omitempty"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// HasDiscount reports whether any discount field is set.
func (p Product) HasDiscount() bool {
	return p.DiscountType != nil || p.DiscountAmount.Valid || p.DiscountStartDateTime != nil || p.DiscountEndDateTime != nil
}
