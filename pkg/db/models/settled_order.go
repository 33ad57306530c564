package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
	"github.com/collectcart/groupbuy-backend/pkg/types"
)

// SettledOrder is the purchase order produced by a checkout. Host-pays-all
// yields one per group; per-member checkout yields one per paying member.
type SettledOrder struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID              uuid.UUID               `gorm:"column:group_id;type:uuid;not null"`
	MemberID             uuid.UUID               `gorm:"column:member_id;type:uuid;not null"`
	PayerUserID          uuid.UUID               `gorm:"column:payer_user_id;type:uuid;not null"`
	StoreID              uuid.UUID               `gorm:"column:store_id;type:uuid;not null"`
	PaymentMethod        enums.PaymentMethodType `gorm:"column:payment_method;type:payment_method_type;not null"`
	PaymentStatus        enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	SubtotalCents        int                     `gorm:"column:subtotal_cents;not null"`
	VoucherDiscountCents int                     `gorm:"column:voucher_discount_cents;not null;default:0"`
	TotalCents           int                     `gorm:"column:total_cents;not null"`
	VoucherID            *uuid.UUID              `gorm:"column:voucher_id;type:uuid"`
	GatewayRef           *string                 `gorm:"column:gateway_ref"`
	ShippingAddress      *types.Address          `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaidAt               *time.Time              `gorm:"column:paid_at"`
	Items                []SettledOrderItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// SettledOrderItem snapshots one group line item at settlement time.
type SettledOrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	LineItemID     uuid.UUID  `gorm:"column:line_item_id;type:uuid;not null"`
	MemberID       uuid.UUID  `gorm:"column:member_id;type:uuid;not null"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	Note           *string    `gorm:"column:note"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
