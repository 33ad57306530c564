package items

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
)

// ItemRepository is the persistence surface the item service depends on.
type ItemRepository interface {
	WithTx(tx *gorm.DB) ItemRepository
	FindGroup(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.GroupLineItem, error)
	FindSelection(ctx context.Context, memberID, productID uuid.UUID, variantID *uuid.UUID) (*models.GroupLineItem, error)
	CreateItem(ctx context.Context, item *models.GroupLineItem) error
	UpdateItem(ctx context.Context, item *models.GroupLineItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
