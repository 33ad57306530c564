package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

type fakeProductLoader struct {
	products map[uuid.UUID]*models.Product
}

func (f *fakeProductLoader) FindProductDetail(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.products[id]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestProduct(priceCents, stock int) *models.Product {
	return &models.Product{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		Title:      "Sample Tea",
		SKU:        "TEA-001",
		PriceCents: priceCents,
		StockQty:   stock,
		IsActive:   true,
	}
}

func newOracleWith(t *testing.T, products ...*models.Product) Oracle {
	t.Helper()
	loader := &fakeProductLoader{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		loader.products[p.ID] = p
	}
	oracle, err := NewOracle(loader)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	return oracle
}

func TestPriceBaseProduct(t *testing.T) {
	t.Parallel()

	product := newTestProduct(1500, 10)
	oracle := newOracleWith(t, product)

	quote, err := oracle.Price(context.Background(), product.ID, nil, 2, time.Now())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 1500 {
		t.Fatalf("expected list price 1500, got %d", quote.UnitPriceCents)
	}
	if quote.AppliedRuleID != nil {
		t.Fatalf("expected no applied rule")
	}
}

func TestPriceVariantOverridesListPrice(t *testing.T) {
	t.Parallel()

	product := newTestProduct(1500, 10)
	variant := models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Title: "Large", PriceCents: 2200, StockQty: 4}
	product.Variants = []models.ProductVariant{variant}
	oracle := newOracleWith(t, product)

	quote, err := oracle.Price(context.Background(), product.ID, &variant.ID, 3, time.Now())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 2200 {
		t.Fatalf("expected variant price 2200, got %d", quote.UnitPriceCents)
	}
}

func TestPriceOverrideRuleBeatsPromotional(t *testing.T) {
	t.Parallel()

	product := newTestProduct(1500, 10)
	minQty := 1
	product.Rules = []models.PricingRule{
		{ID: uuid.New(), ProductID: product.ID, Kind: enums.PricingRulePromotional, UnitPriceCents: 1200, MinQty: &minQty},
		{ID: uuid.New(), ProductID: product.ID, Kind: enums.PricingRuleOverride, UnitPriceCents: 1400},
	}
	oracle := newOracleWith(t, product)

	quote, err := oracle.Price(context.Background(), product.ID, nil, 2, time.Now())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 1400 {
		t.Fatalf("expected override price 1400, got %d", quote.UnitPriceCents)
	}
	if quote.AppliedRuleID == nil {
		t.Fatalf("expected an applied rule id")
	}
}

func TestPricePromotionalRespectsWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := now.Add(-time.Minute)

	product := newTestProduct(1500, 10)
	product.Rules = []models.PricingRule{
		{ID: uuid.New(), ProductID: product.ID, Kind: enums.PricingRulePromotional, UnitPriceCents: 1000, StartsAt: &past, EndsAt: &expired},
		{ID: uuid.New(), ProductID: product.ID, Kind: enums.PricingRulePromotional, UnitPriceCents: 1200, StartsAt: &past, EndsAt: &future},
	}
	oracle := newOracleWith(t, product)

	quote, err := oracle.Price(context.Background(), product.ID, nil, 1, now)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 1200 {
		t.Fatalf("expected live promo price 1200, got %d", quote.UnitPriceCents)
	}
}

func TestPricePromotionalRespectsQuantityBand(t *testing.T) {
	t.Parallel()

	minQty := 5
	product := newTestProduct(1500, 20)
	product.Rules = []models.PricingRule{
		{ID: uuid.New(), ProductID: product.ID, Kind: enums.PricingRulePromotional, UnitPriceCents: 1100, MinQty: &minQty},
	}
	oracle := newOracleWith(t, product)

	quote, err := oracle.Price(context.Background(), product.ID, nil, 3, time.Now())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 1500 {
		t.Fatalf("expected list price below min qty, got %d", quote.UnitPriceCents)
	}

	quote, err = oracle.Price(context.Background(), product.ID, nil, 5, time.Now())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if quote.UnitPriceCents != 1100 {
		t.Fatalf("expected promo price at min qty, got %d", quote.UnitPriceCents)
	}
}

func TestPriceInactiveProduct(t *testing.T) {
	t.Parallel()

	product := newTestProduct(1500, 10)
	product.IsActive = false
	oracle := newOracleWith(t, product)

	_, err := oracle.Price(context.Background(), product.ID, nil, 1, time.Now())
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPriceInsufficientStock(t *testing.T) {
	t.Parallel()

	product := newTestProduct(1500, 2)
	oracle := newOracleWith(t, product)

	_, err := oracle.Price(context.Background(), product.ID, nil, 3, time.Now())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStockInsufficient) {
		t.Fatalf("expected stock error, got %v", err)
	}
}

func TestPriceUnknownProduct(t *testing.T) {
	t.Parallel()

	oracle := newOracleWith(t)

	_, err := oracle.Price(context.Background(), uuid.New(), nil, 1, time.Now())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
