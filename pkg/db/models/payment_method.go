package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// PaymentMethod is a payer's saved settlement method. Card methods carry the
// gateway token used when requesting settlement.
type PaymentMethod struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Type         enums.PaymentMethodType `gorm:"column:type;type:payment_method_type;not null"`
	Label        string                  `gorm:"column:label;not null"`
	GatewayToken *string                 `gorm:"column:gateway_token"`
	IsDefault    bool                    `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
