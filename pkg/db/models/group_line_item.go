package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupLineItem is one member's selection of a product within a group.
// BaseUnitPriceCents is the pre-tier snapshot the discount is reapplied to
// whenever the group's member count changes tier; TotalCents is the stored
// post-discount total for the line.
type GroupLineItem struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID            uuid.UUID  `gorm:"column:group_id;type:uuid;not null"`
	MemberID           uuid.UUID  `gorm:"column:member_id;type:uuid;not null;uniqueIndex:ux_group_line_items_selection,priority:1"`
	ProductID          uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_group_line_items_selection,priority:2"`
	VariantID          *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:ux_group_line_items_selection,priority:3"`
	Quantity           int        `gorm:"column:quantity;not null"`
	BaseUnitPriceCents int        `gorm:"column:base_unit_price_cents;not null"`
	UnitPriceCents     int        `gorm:"column:unit_price_cents;not null"`
	TotalCents         int        `gorm:"column:total_cents;not null"`
	Note               *string    `gorm:"column:note"`
	PricingRuleID      *uuid.UUID `gorm:"column:pricing_rule_id;type:uuid"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
