package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// VoucherRepository is the persistence surface the voucher service needs.
type VoucherRepository interface {
	WithTx(tx *gorm.DB) VoucherRepository
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	IncrementUsage(ctx context.Context, voucherID uuid.UUID) error
	CreateRedemption(ctx context.Context, redemption *models.VoucherRedemption) error
}

// Validated is a voucher that passed every check, with its computed discount.
type Validated struct {
	Voucher       models.Voucher
	DiscountCents int
}

// ValidateInput carries the order context a voucher is checked against.
type ValidateInput struct {
	Code          string
	UserID        uuid.UUID
	StoreID       uuid.UUID
	SubtotalCents int
}

// Service validates voucher codes against an order and records redemptions.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*Validated, error)
	ApplyTx(ctx context.Context, tx *gorm.DB, voucherID, userID, orderID uuid.UUID) error
}

type service struct {
	repo VoucherRepository
	now  func() time.Time
}

// NewService builds the voucher service.
func NewService(repo VoucherRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*Validated, error) {
	if strings.TrimSpace(input.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher code is required")
	}
	if input.SubtotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "nothing to discount")
	}

	voucher, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "unknown voucher code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistenceFailed, err, "load voucher")
	}

	switch voucher.Type {
	case enums.VoucherTypePlatform:
		// valid everywhere
	case enums.VoucherTypeStore:
		if voucher.StoreID == nil || *voucher.StoreID != input.StoreID {
			return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher is not valid for this store")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "unsupported voucher type")
	}

	if voucher.ExpiresAt != nil && !s.now().Before(*voucher.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher has expired")
	}
	if voucher.UsageLimit != nil && voucher.UsedCount >= *voucher.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher usage limit reached")
	}
	if input.SubtotalCents < voucher.MinSubtotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "order subtotal below voucher minimum")
	}

	discount, err := discountCents(voucher, input.SubtotalCents)
	if err != nil {
		return nil, err
	}

	return &Validated{Voucher: *voucher, DiscountCents: discount}, nil
}

// ApplyTx consumes one voucher use and records the redemption inside the
// caller's settlement transaction.
func (s *service) ApplyTx(ctx context.Context, tx *gorm.DB, voucherID, userID, orderID uuid.UUID) error {
	txRepo := s.repo.WithTx(tx)

	if err := txRepo.IncrementUsage(ctx, voucherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher usage limit reached")
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistenceFailed, err, "consume voucher")
	}

	redemption := &models.VoucherRedemption{
		VoucherID: voucherID,
		UserID:    userID,
		OrderID:   orderID,
	}
	if err := txRepo.CreateRedemption(ctx, redemption); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistenceFailed, err, "record redemption")
	}
	return nil
}

// discountCents computes the voucher's discount, floored to whole cents and
// capped at the subtotal.
func discountCents(voucher *models.Voucher, subtotalCents int) (int, error) {
	switch {
	case voucher.PercentOff != nil:
		pct := *voucher.PercentOff
		if pct <= 0 || pct > 100 {
			return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher percent out of range")
		}
		discount := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromInt(int64(pct))).
			Div(decimal.NewFromInt(100)).
			Floor()
		return int(discount.IntPart()), nil

	case voucher.AmountOffCents != nil:
		amount := *voucher.AmountOffCents
		if amount <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher amount must be positive")
		}
		if amount > subtotalCents {
			amount = subtotalCents
		}
		return amount, nil

	default:
		return 0, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher has no discount configured")
	}
}
