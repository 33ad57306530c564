package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// GroupOrder is one collective-purchase session.
type GroupOrder struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID           uuid.UUID              `gorm:"column:store_id;type:uuid;not null"`
	HostUserID        uuid.UUID              `gorm:"column:host_user_id;type:uuid;not null"`
	Name              string                 `gorm:"column:name;not null"`
	JoinCode          *string                `gorm:"column:join_code"`
	InviteToken       string                 `gorm:"column:invite_token;not null;uniqueIndex:ux_group_orders_invite_token"`
	State             enums.GroupState       `gorm:"column:state;type:group_state;not null;default:'open'"`
	DeliveryMode      enums.DeliveryMode     `gorm:"column:delivery_mode;type:delivery_mode;not null;default:'host_address'"`
	DiscountPercent   int                    `gorm:"column:discount_percent;not null;default:0"`
	OrderStatus       enums.GroupOrderStatus `gorm:"column:order_status;type:group_order_status;not null;default:'none'"`
	TargetMemberCount *int                   `gorm:"column:target_member_count"`
	ExpiresAt         time.Time              `gorm:"column:expires_at;not null"`
	JoinExpiresAt     *time.Time             `gorm:"column:join_expires_at"`
	CompletedAt       *time.Time             `gorm:"column:completed_at"`
	CancelledAt       *time.Time             `gorm:"column:cancelled_at"`
	Members           []GroupMember          `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	Items             []GroupLineItem        `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	SettledOrders     []SettledOrder         `gorm:"foreignKey:GroupID"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveMembers returns the members whose status still counts toward the
// discount tier and completion quorum.
func (g *GroupOrder) ActiveMembers() []GroupMember {
	active := make([]GroupMember, 0, len(g.Members))
	for _, member := range g.Members {
		if member.Status.IsActive() {
			active = append(active, member)
		}
	}
	return active
}

// HostMember returns the host's membership record, if loaded.
func (g *GroupOrder) HostMember() *GroupMember {
	for i := range g.Members {
		if g.Members[i].IsHost {
			return &g.Members[i]
		}
	}
	return nil
}

// MemberByUser returns the membership record for the given user, if loaded.
func (g *GroupOrder) MemberByUser(userID uuid.UUID) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// ItemsByMember returns the line items owned by the given member.
func (g *GroupOrder) ItemsByMember(memberID uuid.UUID) []GroupLineItem {
	items := make([]GroupLineItem, 0, len(g.Items))
	for _, item := range g.Items {
		if item.MemberID == memberID {
			items = append(items, item)
		}
	}
	return items
}
