package enums

import "fmt"

// PaymentMethodType describes how a payer intends to settle an order.
type PaymentMethodType string

const (
	PaymentMethodCOD  PaymentMethodType = "cod"
	PaymentMethodCard PaymentMethodType = "card"
	PaymentMethodWire PaymentMethodType = "wire"
)

var validPaymentMethodTypes = []PaymentMethodType{
	PaymentMethodCOD,
	PaymentMethodCard,
	PaymentMethodWire,
}

// String implements fmt.Stringer.
func (p PaymentMethodType) String() string {
	return string(p)
}

// IsCOD reports whether settlement happens offline on delivery.
func (p PaymentMethodType) IsCOD() bool {
	return p == PaymentMethodCOD
}

// IsValid reports whether the value is a known PaymentMethodType.
func (p PaymentMethodType) IsValid() bool {
	for _, candidate := range validPaymentMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethodType converts raw input into a PaymentMethodType.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	for _, candidate := range validPaymentMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method type %q", value)
}
