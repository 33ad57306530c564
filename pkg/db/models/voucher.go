package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// Voucher is a redeemable discount code. Exactly one of PercentOff or
// AmountOffCents is set.
type Voucher struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string            `gorm:"column:code;not null;uniqueIndex:ux_vouchers_code"`
	Type             enums.VoucherType `gorm:"column:type;type:voucher_type;not null"`
	StoreID          *uuid.UUID        `gorm:"column:store_id;type:uuid"`
	PercentOff       *int              `gorm:"column:percent_off"`
	AmountOffCents   *int              `gorm:"column:amount_off_cents"`
	MinSubtotalCents int               `gorm:"column:min_subtotal_cents;not null;default:0"`
	UsageLimit       *int              `gorm:"column:usage_limit"`
	UsedCount        int               `gorm:"column:used_count;not null;default:0"`
	ExpiresAt        *time.Time        `gorm:"column:expires_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// VoucherRedemption records a voucher being applied to a settled order.
type VoucherRedemption struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID  uuid.UUID `gorm:"column:voucher_id;type:uuid;not null"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
