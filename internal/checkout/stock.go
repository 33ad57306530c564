package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/pricing"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// StockKeeper adapts the catalog repository to the orchestrator's
// reserve/release contract. Variant stock is authoritative when the line
// names a variant.
type StockKeeper struct {
	catalog *pricing.Repository
}

// NewStockKeeper wires stock reservation to the catalog repository.
func NewStockKeeper(catalog *pricing.Repository) (*StockKeeper, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &StockKeeper{catalog: catalog}, nil
}

// ReserveTx decrements stock for one line inside the caller's transaction.
func (k *StockKeeper) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	repo := k.catalog.WithTx(tx)
	var err error
	if variantID != nil {
		err = repo.DecrementVariantStock(ctx, *variantID, qty)
	} else {
		err = repo.DecrementProductStock(ctx, productID, qty)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeStockInsufficient, "insufficient stock at settlement")
	}
	return err
}

// ReleaseTx returns previously reserved stock after a rejected settlement.
func (k *StockKeeper) ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	repo := k.catalog.WithTx(tx)
	if variantID != nil {
		return repo.RestoreVariantStock(ctx, *variantID, qty)
	}
	return repo.RestoreProductStock(ctx, productID, qty)
}
