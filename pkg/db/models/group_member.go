package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// GroupMember is one user's participation record within a group.
type GroupMember struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupID   uuid.UUID          `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_group_members_group_user,priority:1"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_group_members_group_user,priority:2"`
	IsHost    bool               `gorm:"column:is_host;not null;default:false"`
	Status    enums.MemberStatus `gorm:"column:status;type:member_status;not null;default:'joined'"`
	HasPaid   bool               `gorm:"column:has_paid;not null;default:false"`
	AddressID *uuid.UUID         `gorm:"column:address_id;type:uuid"`
	JoinedAt  time.Time          `gorm:"column:joined_at;not null"`
	LeftAt    *time.Time         `gorm:"column:left_at"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
