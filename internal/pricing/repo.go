package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
)

// Repository exposes catalog reads and stock mutations for pricing.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pricing repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindProductDetail loads a product with its variants and pricing rules.
func (r *Repository) FindProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Preload("Rules").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementProductStock atomically reserves qty units of base product stock.
// Returns gorm.ErrRecordNotFound when stock is insufficient.
func (r *Repository) DecrementProductStock(ctx context.Context, productID uuid.UUID, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_qty >= ?", productID, qty).
		Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementVariantStock atomically reserves qty units of variant stock.
// Returns gorm.ErrRecordNotFound when stock is insufficient.
func (r *Repository) DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock_qty >= ?", variantID, qty).
		Update("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RestoreProductStock returns previously reserved units of base product stock.
func (r *Repository) RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty)).Error
}

// RestoreVariantStock returns previously reserved units of variant stock.
func (r *Repository) RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty)).Error
}
