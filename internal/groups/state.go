package groups

import (
	"fmt"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// validTransitions is the full lifecycle edge set. The locked -> open edge
// carries an extra no-payments precondition checked in ValidateUnlock.
var validTransitions = map[enums.GroupState][]enums.GroupState{
	enums.GroupStateOpen:   {enums.GroupStateLocked, enums.GroupStateCancelled},
	enums.GroupStateLocked: {enums.GroupStateOpen, enums.GroupStateCompleted, enums.GroupStateCancelled},
}

// CanTransition reports whether the edge from -> to exists in the lifecycle.
func CanTransition(from, to enums.GroupState) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateLock checks every precondition for freezing an open group.
func ValidateLock(group *models.GroupOrder) error {
	if group.State != enums.GroupStateOpen {
		return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("group is %s, expected open", group.State))
	}

	active := group.ActiveMembers()
	if len(active) < 2 {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "insufficient active members")
	}

	for _, member := range active {
		if len(group.ItemsByMember(member.ID)) == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "every active member must have at least one item")
		}
		if group.DeliveryMode == enums.DeliveryModeMemberAddress && member.AddressID == nil {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "member missing delivery address")
		}
	}

	return nil
}

// ValidateUnlock checks the reverse edge: legal only while nobody has paid.
func ValidateUnlock(group *models.GroupOrder) error {
	if group.State != enums.GroupStateLocked {
		return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("group is %s, expected locked", group.State))
	}
	for _, member := range group.Members {
		if member.HasPaid {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "cannot unlock after a member has paid")
		}
	}
	return nil
}
