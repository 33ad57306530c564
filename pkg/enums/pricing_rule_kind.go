package enums

import "fmt"

// PricingRuleKind distinguishes how a catalog pricing rule is selected.
type PricingRuleKind string

const (
	// PricingRuleOverride pins an explicit unit price for a product/variant.
	PricingRuleOverride PricingRuleKind = "override"
	// PricingRulePromotional applies inside a quantity and time window.
	PricingRulePromotional PricingRuleKind = "promotional"
)

var validPricingRuleKinds = []PricingRuleKind{
	PricingRuleOverride,
	PricingRulePromotional,
}

// String implements fmt.Stringer.
func (p PricingRuleKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PricingRuleKind.
func (p PricingRuleKind) IsValid() bool {
	for _, candidate := range validPricingRuleKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePricingRuleKind converts raw input into a PricingRuleKind.
func ParsePricingRuleKind(value string) (PricingRuleKind, error) {
	for _, candidate := range validPricingRuleKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing rule kind %q", value)
}
