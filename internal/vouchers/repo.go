package vouchers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
)

// Repository persists vouchers and their redemptions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) VoucherRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode loads a voucher by its case-insensitive code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// IncrementUsage bumps used_count while respecting the usage limit.
// Returns gorm.ErrRecordNotFound when the limit is exhausted.
func (r *Repository) IncrementUsage(ctx context.Context, voucherID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", voucherID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateRedemption records a voucher being applied to a settled order.
func (r *Repository) CreateRedemption(ctx context.Context, redemption *models.VoucherRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}
