package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/payments"
	"github.com/collectcart/groupbuy-backend/internal/vouchers"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/vouchershare"
)

// CheckoutRepository is the persistence surface the orchestrator depends on.
type CheckoutRepository interface {
	WithTx(tx *gorm.DB) CheckoutRepository
	FindGroup(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error)
	FindAddress(ctx context.Context, addressID uuid.UUID) (*models.Address, error)
	FindAddressOwned(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
	ProductTitles(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]string, error)
	CreateOrder(ctx context.Context, order *models.SettledOrder) error
	UpdateOrder(ctx context.Context, order *models.SettledOrder) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.SettledOrder, error)
	UpdateMember(ctx context.Context, member *models.GroupMember) error
}

// stockReserver reserves and releases catalog stock inside the settlement
// transactions.
type stockReserver interface {
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error
}

// settler is the payment settlement boundary.
type settler interface {
	Settle(ctx context.Context, req payments.SettleRequest) (*payments.Outcome, error)
}

// voucherEngine validates codes and records redemptions.
type voucherEngine interface {
	Validate(ctx context.Context, input vouchers.ValidateInput) (*vouchers.Validated, error)
	ApplyTx(ctx context.Context, tx *gorm.DB, voucherID, userID, orderID uuid.UUID) error
}

// shareStore caches the host-applied voucher discount for per-member
// pro-ration.
type shareStore interface {
	Put(ctx context.Context, groupID uuid.UUID, share vouchershare.Share) error
	Get(ctx context.Context, groupID uuid.UUID) (*vouchershare.Share, error)
	Drop(ctx context.Context, groupID uuid.UUID) error
}

// groupCompleter flips the group to completed inside the finalize
// transaction once settlement requirements are met.
type groupCompleter interface {
	MarkCompletedTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, at time.Time) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
