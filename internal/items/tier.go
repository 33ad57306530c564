package items

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountPercent is the group discount tier step function over the active
// member count.
func DiscountPercent(activeMembers int) int {
	switch {
	case activeMembers >= 8:
		return 10
	case activeMembers >= 5:
		return 6
	case activeMembers >= 3:
		return 4
	case activeMembers >= 2:
		return 2
	default:
		return 0
	}
}

// ApplyDiscount returns the unit price after the tier discount. The result
// is floored to whole cents so repeated recomputes from the same base never
// drift.
func ApplyDiscount(baseUnitCents, percent int) int {
	if percent <= 0 {
		return baseUnitCents
	}
	discounted := decimal.NewFromInt(int64(baseUnitCents)).
		Mul(hundred.Sub(decimal.NewFromInt(int64(percent)))).
		Div(hundred)
	return int(discounted.Floor().IntPart())
}
