package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// PricingRule adjusts a product's unit price. Override rules pin an explicit
// price; promotional rules apply when the requested quantity falls inside
// [MinQty, MaxQty] and the current time inside [StartsAt, EndsAt].
type PricingRule struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID            `gorm:"column:variant_id;type:uuid"`
	Kind           enums.PricingRuleKind `gorm:"column:kind;type:pricing_rule_kind;not null"`
	UnitPriceCents int                   `gorm:"column:unit_price_cents;not null"`
	MinQty         *int                  `gorm:"column:min_qty"`
	MaxQty         *int                  `gorm:"column:max_qty"`
	StartsAt       *time.Time            `gorm:"column:starts_at"`
	EndsAt         *time.Time            `gorm:"column:ends_at"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Matches reports whether the rule applies to the requested variant, quantity
// and moment.
func (r PricingRule) Matches(variantID *uuid.UUID, qty int, at time.Time) bool {
	if r.VariantID != nil {
		if variantID == nil || *variantID != *r.VariantID {
			return false
		}
	}
	if r.Kind == enums.PricingRuleOverride {
		return true
	}
	if r.MinQty != nil && qty < *r.MinQty {
		return false
	}
	if r.MaxQty != nil && qty > *r.MaxQty {
		return false
	}
	if r.StartsAt != nil && at.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && at.After(*r.EndsAt) {
		return false
	}
	return true
}
