package items

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
)

// Repository persists group line items via GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an item repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ItemRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindGroup loads the group aggregate items belong to.
func (r *Repository) FindGroup(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error) {
	var group models.GroupOrder
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Items").
		Where("id = ?", groupID).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindItem loads one line item by id.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.GroupLineItem, error) {
	var item models.GroupLineItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindSelection returns the member's existing line for the same selection,
// or nil when no line exists yet.
func (r *Repository) FindSelection(ctx context.Context, memberID, productID uuid.UUID, variantID *uuid.UUID) (*models.GroupLineItem, error) {
	query := r.db.WithContext(ctx).
		Where("member_id = ? AND product_id = ?", memberID, productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	var item models.GroupLineItem
	if err := query.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a line item.
func (r *Repository) CreateItem(ctx context.Context, item *models.GroupLineItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem saves a line item.
func (r *Repository) UpdateItem(ctx context.Context, item *models.GroupLineItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem removes a line item.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&models.GroupLineItem{}).Error
}
