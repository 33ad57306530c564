package groups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
)

// GroupRepository is the persistence surface the group service depends on.
type GroupRepository interface {
	WithTx(tx *gorm.DB) GroupRepository
	Create(ctx context.Context, group *models.GroupOrder) error
	Update(ctx context.Context, group *models.GroupOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	FindByInviteToken(ctx context.Context, token string) (*models.GroupOrder, error)
	FindExpired(ctx context.Context, state enums.GroupState, now time.Time, limit int) ([]models.GroupOrder, error)
	CreateMember(ctx context.Context, member *models.GroupMember) error
	UpdateMember(ctx context.Context, member *models.GroupMember) error
	DeleteMember(ctx context.Context, memberID uuid.UUID) error
	DeleteMemberItems(ctx context.Context, memberID uuid.UUID) error
	FindAddressOwned(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
	FindSettledOrders(ctx context.Context, groupID uuid.UUID) ([]models.SettledOrder, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// tierEngine recomputes every line item's price for the group's current
// member count and returns the resulting discount percent.
type tierEngine interface {
	RecomputeTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
