package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the read-only catalog entry consumed by the pricing oracle.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID    uuid.UUID        `gorm:"column:store_id;type:uuid;not null"`
	Title      string           `gorm:"column:title;not null"`
	SKU        string           `gorm:"column:sku;not null"`
	PriceCents int              `gorm:"column:price_cents;not null"`
	StockQty   int              `gorm:"column:stock_qty;not null;default:0"`
	IsActive   bool             `gorm:"column:is_active;not null;default:true"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Rules      []PricingRule    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant narrows a product to a concrete option with its own price
// and stock.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Title      string    `gorm:"column:title;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	StockQty   int       `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
