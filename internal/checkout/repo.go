package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
)

// Repository persists settled orders via GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CheckoutRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindGroup loads the group aggregate with members, items and orders.
func (r *Repository) FindGroup(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error) {
	var group models.GroupOrder
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Items").
		Preload("SettledOrders").
		Where("id = ?", groupID).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// FindAddress loads a delivery address by id.
func (r *Repository) FindAddress(ctx context.Context, addressID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).Where("id = ?", addressID).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// FindAddressOwned loads a delivery address only if the user owns it.
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

// ProductTitles resolves product ids to titles for order item snapshots.
func (r *Repository) ProductTitles(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	var rows []struct {
		ID    uuid.UUID
		Title string
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("id", "title").
		Where("id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	titles := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}

// CreateOrder inserts a settled order with its item snapshots.
func (r *Repository) CreateOrder(ctx context.Context, order *models.SettledOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// UpdateOrder saves the order row without touching its items.
func (r *Repository) UpdateOrder(ctx context.Context, order *models.SettledOrder) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

// DeleteOrder removes a pending order; item snapshots cascade.
func (r *Repository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", orderID).
		Delete(&models.SettledOrder{}).Error
}

// FindOrder loads one settled order with its item snapshots.
func (r *Repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.SettledOrder, error) {
	var order models.SettledOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateMember saves the membership row.
func (r *Repository) UpdateMember(ctx context.Context, member *models.GroupMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}
