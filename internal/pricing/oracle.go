package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// Quote is the authoritative unit price for one selection at one moment.
type Quote struct {
	ProductTitle   string
	StoreID        uuid.UUID
	UnitPriceCents int
	AppliedRuleID  *uuid.UUID
	StockQty       int
}

type productLoader interface {
	FindProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Oracle resolves unit prices and stock for product selections. Override
// rules beat promotional rules, promotional rules beat the list price.
type Oracle interface {
	Price(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int, at time.Time) (*Quote, error)
}

type oracle struct {
	products productLoader
}

// NewOracle builds a catalog-backed pricing oracle.
func NewOracle(products productLoader) (Oracle, error) {
	if products == nil {
		return nil, errors.New("product loader required")
	}
	return &oracle{products: products}, nil
}

func (o *oracle) Price(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int, at time.Time) (*Quote, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := o.products.FindProductDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	listPrice := product.PriceCents
	stock := product.StockQty

	if variantID != nil {
		variant := findVariant(product.Variants, *variantID)
		if variant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		listPrice = variant.PriceCents
		stock = variant.StockQty
	}

	if stock < qty {
		return nil, pkgerrors.New(pkgerrors.CodeStockInsufficient, "insufficient stock for requested quantity")
	}

	quote := &Quote{
		ProductTitle:   product.Title,
		StoreID:        product.StoreID,
		UnitPriceCents: listPrice,
		StockQty:       stock,
	}

	if rule := selectRule(product.Rules, variantID, qty, at); rule != nil {
		id := rule.ID
		quote.UnitPriceCents = rule.UnitPriceCents
		quote.AppliedRuleID = &id
	}

	return quote, nil
}

// selectRule picks the applicable rule with the highest precedence. Among
// promotional rules that match, the cheapest wins.
func selectRule(rules []models.PricingRule, variantID *uuid.UUID, qty int, at time.Time) *models.PricingRule {
	var override *models.PricingRule
	var promo *models.PricingRule

	for i := range rules {
		rule := rules[i]
		if !rule.Matches(variantID, qty, at) {
			continue
		}
		switch rule.Kind {
		case enums.PricingRuleOverride:
			if override == nil || rule.UnitPriceCents < override.UnitPriceCents {
				copied := rule
				override = &copied
			}
		case enums.PricingRulePromotional:
			if promo == nil || rule.UnitPriceCents < promo.UnitPriceCents {
				copied := rule
				promo = &copied
			}
		}
	}

	if override != nil {
		return override
	}
	return promo
}

func findVariant(variants []models.ProductVariant, id uuid.UUID) *models.ProductVariant {
	for i := range variants {
		if variants[i].ID == id {
			return &variants[i]
		}
	}
	return nil
}
