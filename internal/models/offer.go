package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrOfferNotFound is returned when an offer id does not resolve to a stored offer.
var ErrOfferNotFound = errors.New("offer not found")

// DiscountType is percentage or flat.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFlat
}

// DiscountShape is what an active offer writes onto each of its products.
type DiscountShape struct {
	Type     DiscountType    `json:"discount_type"`
	Amount   decimal.Decimal `json:"discount_amount"`
	StartsAt *time.Time      `json:"discount_start_date_time,omitempty"`
	EndsAt   *time.Time      `json:"discount_end_date_time,omitempty"`
}

// Offer is a promotional discount over a bounded product set and time window.
type Offer struct {
	ID                    uuid.UUID       `json:"id"`
	Title                 string          `json:"title"`
	Slug                  string          `json:"slug"`
	Description           string          `json:"description"`
	StartDateTime         time.Time       `json:"start_date_time"`
	EndDateTime           time.Time       `json:"end_date_time"`
	ProductIDs            []uuid.UUID     `json:"product_ids"`
	DiscountType          DiscountType    `json:"discount_type"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	DiscountStartDateTime *time.Time      `json:"discount_start_date_time,omitempty"`
	DiscountEndDateTime   *time.Time      `json:"discount_end_date_time,omitempty"`
	ResetFullDiscount     bool            `json:"reset_full_discount"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Shape returns the discount written to products while the offer is active.
// A missing discount window falls back to the offer window.
func (o *Offer) Shape() DiscountShape {
	s := DiscountShape{
		Type:     o.DiscountType,
		Amount:   o.DiscountAmount,
		StartsAt: o.DiscountStartDateTime,
		EndsAt:   o.DiscountEndDateTime,
	}
	if s.StartsAt == nil {
		start := o.StartDateTime
		s.StartsAt = &start
	}
	if s.EndsAt == nil {
		end := o.EndDateTime
		s.EndsAt = &end
	}
	return s
}
