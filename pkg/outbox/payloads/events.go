package payloads

import (
	"time"

	"github.com/google/uuid"
)

// GroupCreatedEvent announces a new group-buy session.
type GroupCreatedEvent struct {
	GroupID      uuid.UUID `json:"groupId"`
	StoreID      uuid.UUID `json:"storeId"`
	HostUserID   uuid.UUID `json:"hostUserId"`
	DeliveryMode string    `json:"deliveryMode"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// MemberJoinedEvent fires after a successful join, carrying the fresh tier.
type MemberJoinedEvent struct {
	GroupID         uuid.UUID `json:"groupId"`
	MemberID        uuid.UUID `json:"memberId"`
	UserID          uuid.UUID `json:"userId"`
	ActiveMembers   int       `json:"activeMembers"`
	DiscountPercent int       `json:"discountPercent"`
}

// MemberLeftEvent fires after a member leaves or is pruned by the sweep.
type MemberLeftEvent struct {
	GroupID         uuid.UUID `json:"groupId"`
	MemberID        uuid.UUID `json:"memberId"`
	UserID          uuid.UUID `json:"userId"`
	ActiveMembers   int       `json:"activeMembers"`
	DiscountPercent int       `json:"discountPercent"`
}

// GroupLockedEvent fires when a group freezes membership and items.
type GroupLockedEvent struct {
	GroupID       uuid.UUID `json:"groupId"`
	ActiveMembers int       `json:"activeMembers"`
	ExpiresAt     time.Time `json:"expiresAt"`
	AutoLocked    bool      `json:"autoLocked"`
}

// GroupUnlockedEvent fires on a host-initiated unlock.
type GroupUnlockedEvent struct {
	GroupID uuid.UUID `json:"groupId"`
}

// GroupCancelledEvent fires on a terminal cancellation.
type GroupCancelledEvent struct {
	GroupID     uuid.UUID `json:"groupId"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// GroupCompletedEvent fires once every required settlement has succeeded.
type GroupCompletedEvent struct {
	GroupID     uuid.UUID `json:"groupId"`
	CompletedAt time.Time `json:"completedAt"`
}

// ItemPriceChangedEvent reports one line item repriced by a tier change.
type ItemPriceChangedEvent struct {
	GroupID         uuid.UUID `json:"groupId"`
	LineItemID      uuid.UUID `json:"lineItemId"`
	MemberID        uuid.UUID `json:"memberId"`
	OldTotalCents   int       `json:"oldTotalCents"`
	NewTotalCents   int       `json:"newTotalCents"`
	DiscountPercent int       `json:"discountPercent"`
}

// CheckoutProgressEvent reports per-member settlement progress (paid/total).
type CheckoutProgressEvent struct {
	GroupID    uuid.UUID `json:"groupId"`
	MemberID   uuid.UUID `json:"memberId"`
	PaidCount  int       `json:"paidCount"`
	TotalCount int       `json:"totalCount"`
}

// MemberRefundRequiredEvent signals the external refund process after a
// cancellation with already-paid members.
type MemberRefundRequiredEvent struct {
	GroupID  uuid.UUID `json:"groupId"`
	MemberID uuid.UUID `json:"memberId"`
	UserID   uuid.UUID `json:"userId"`
	OrderID  uuid.UUID `json:"orderId"`
}

// OrderSettledEvent fires after a settled order is finalized as paid.
type OrderSettledEvent struct {
	GroupID    uuid.UUID `json:"groupId"`
	OrderID    uuid.UUID `json:"orderId"`
	MemberID   uuid.UUID `json:"memberId"`
	TotalCents int       `json:"totalCents"`
	Method     string    `json:"method"`
}
