package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGroupOrder   OutboxAggregateType = "group_order"
	AggregateGroupMember  OutboxAggregateType = "group_member"
	AggregateLineItem     OutboxAggregateType = "group_line_item"
	AggregateSettledOrder OutboxAggregateType = "settled_order"
)

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventGroupCreated         OutboxEventType = "group.created"
	EventGroupLocked          OutboxEventType = "group.locked"
	EventGroupUnlocked        OutboxEventType = "group.unlocked"
	EventGroupCancelled       OutboxEventType = "group.cancelled"
	EventGroupCompleted       OutboxEventType = "group.completed"
	EventMemberJoined         OutboxEventType = "group.member_joined"
	EventMemberLeft           OutboxEventType = "group.member_left"
	EventMemberRefundRequired OutboxEventType = "group.member_refund_required"
	EventItemPriceChanged     OutboxEventType = "group.item_price_changed"
	EventCheckoutProgress     OutboxEventType = "group.checkout_progress"
	EventOrderSettled         OutboxEventType = "group.order_settled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGroupCreated,
	EventGroupLocked,
	EventGroupUnlocked,
	EventGroupCancelled,
	EventGroupCompleted,
	EventMemberJoined,
	EventMemberLeft,
	EventMemberRefundRequired,
	EventItemPriceChanged,
	EventCheckoutProgress,
	EventOrderSettled,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
