package enums

import "fmt"

// MemberStatus tracks a user's participation record within a group.
type MemberStatus string

const (
	MemberStatusJoined   MemberStatus = "joined"
	MemberStatusLeft     MemberStatus = "left"
	MemberStatusOrdered  MemberStatus = "ordered"
	MemberStatusRefunded MemberStatus = "refunded"
)

var validMemberStatuses = []MemberStatus{
	MemberStatusJoined,
	MemberStatusLeft,
	MemberStatusOrdered,
	MemberStatusRefunded,
}

// String implements fmt.Stringer.
func (m MemberStatus) String() string {
	return string(m)
}

// IsActive reports whether the member still counts toward the group's
// discount tier and completion quorum.
func (m MemberStatus) IsActive() bool {
	return m == MemberStatusJoined || m == MemberStatusOrdered
}

// IsValid reports whether the value is a known MemberStatus.
func (m MemberStatus) IsValid() bool {
	for _, candidate := range validMemberStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberStatus converts raw input into a MemberStatus.
func ParseMemberStatus(value string) (MemberStatus, error) {
	for _, candidate := range validMemberStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member status %q", value)
}
