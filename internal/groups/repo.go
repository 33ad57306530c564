package groups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
)

// Repository persists group aggregates via GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a group repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) GroupRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new group order.
func (r *Repository) Create(ctx context.Context, group *models.GroupOrder) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// Update saves the group order row.
func (r *Repository) Update(ctx context.Context, group *models.GroupOrder) error {
	return r.db.WithContext(ctx).Omit("Members", "Items", "SettledOrders").Save(group).Error
}

// FindByID loads a group with its members and line items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	var group models.GroupOrder
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Items").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByInviteToken loads a group via its shareable invite token.
func (r *Repository) FindByInviteToken(ctx context.Context, token string) (*models.GroupOrder, error) {
	var group models.GroupOrder
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Items").
		Where("invite_token = ?", token).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindExpired returns groups in the given state whose expiry has elapsed.
func (r *Repository) FindExpired(ctx context.Context, state enums.GroupState, now time.Time, limit int) ([]models.GroupOrder, error) {
	var groups []models.GroupOrder
	query := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", state, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateMember inserts a membership record.
func (r *Repository) CreateMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// UpdateMember saves a membership record.
func (r *Repository) UpdateMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// DeleteMember removes a membership record.
func (r *Repository) DeleteMember(ctx context.Context, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", memberID).
		Delete(&models.GroupMember{}).Error
}

// DeleteMemberItems removes every line item owned by the member.
func (r *Repository) DeleteMemberItems(ctx context.Context, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Delete(&models.GroupLineItem{}).Error
}

// FindAddressOwned loads an address only if it belongs to the given user.
func (r *Repository) FindAddressOwned(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// FindSettledOrders returns the settled orders recorded for the group.
func (r *Repository) FindSettledOrders(ctx context.Context, groupID uuid.UUID) ([]models.SettledOrder, error) {
	var orders []models.SettledOrder
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
