package enums

import "fmt"

// GroupOrderStatus tracks fulfillment progress once a group has settled.
// It is independent of the group lifecycle state.
type GroupOrderStatus string

const (
	GroupOrderStatusNone       GroupOrderStatus = "none"
	GroupOrderStatusProcessing GroupOrderStatus = "processing"
	GroupOrderStatusFulfilled  GroupOrderStatus = "fulfilled"
)

var validGroupOrderStatuses = []GroupOrderStatus{
	GroupOrderStatusNone,
	GroupOrderStatusProcessing,
	GroupOrderStatusFulfilled,
}

// String implements fmt.Stringer.
func (g GroupOrderStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupOrderStatus.
func (g GroupOrderStatus) IsValid() bool {
	for _, candidate := range validGroupOrderStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGroupOrderStatus converts raw input into a GroupOrderStatus.
func ParseGroupOrderStatus(value string) (GroupOrderStatus, error) {
	for _, candidate := range validGroupOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group order status %q", value)
}
