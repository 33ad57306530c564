package enums

import "fmt"

// GroupState tracks the lifecycle of a group order.
type GroupState string

const (
	GroupStateOpen      GroupState = "open"
	GroupStateLocked    GroupState = "locked"
	GroupStateCompleted GroupState = "completed"
	GroupStateCancelled GroupState = "cancelled"
)

var validGroupStates = []GroupState{
	GroupStateOpen,
	GroupStateLocked,
	GroupStateCompleted,
	GroupStateCancelled,
}

// String implements fmt.Stringer.
func (g GroupState) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupState.
func (g GroupState) IsValid() bool {
	for _, candidate := range validGroupStates {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are legal from this state.
func (g GroupState) IsTerminal() bool {
	return g == GroupStateCompleted || g == GroupStateCancelled
}

// ParseGroupState converts raw input into a GroupState.
func ParseGroupState(value string) (GroupState, error) {
	for _, candidate := range validGroupStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group state %q", value)
}
