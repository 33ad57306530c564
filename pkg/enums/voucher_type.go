package enums

import "fmt"

// VoucherType scopes where a voucher may be redeemed.
type VoucherType string

const (
	VoucherTypePlatform VoucherType = "platform"
	VoucherTypeStore    VoucherType = "store"
)

var validVoucherTypes = []VoucherType{
	VoucherTypePlatform,
	VoucherTypeStore,
}

// String implements fmt.Stringer.
func (v VoucherType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherType.
func (v VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherType converts raw input into a VoucherType.
func ParseVoucherType(value string) (VoucherType, error) {
	for _, candidate := range validVoucherTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}
