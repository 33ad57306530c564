package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/api/responses"
	"github.com/collectcart/groupbuy-backend/api/validators"
	groupsvc "github.com/collectcart/groupbuy-backend/internal/groups"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
)

type createGroupRequest struct {
	StoreID           uuid.UUID `json:"store_id" validate:"required,uuid4"`
	Name              string    `json:"name" validate:"required,min=3,max=120"`
	DeliveryMode      string    `json:"delivery_mode" validate:"required,oneof=host_address member_address"`
	JoinCode          *string   `json:"join_code,omitempty" validate:"omitempty,min=4,max=32"`
	TargetMemberCount *int      `json:"target_member_count,omitempty" validate:"omitempty,min=2"`
	JoinWindowMinutes *int      `json:"join_window_minutes,omitempty" validate:"omitempty,min=5"`
}

// CreateGroup opens a new group hosted by the caller.
func CreateGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		hostID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createGroupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := groupsvc.CreateGroupInput{
			StoreID:           payload.StoreID,
			HostUserID:        hostID,
			Name:              payload.Name,
			DeliveryMode:      enums.DeliveryMode(payload.DeliveryMode),
			JoinCode:          payload.JoinCode,
			TargetMemberCount: payload.TargetMemberCount,
		}
		if payload.JoinWindowMinutes != nil {
			window := time.Duration(*payload.JoinWindowMinutes) * time.Minute
			input.JoinWindow = &window
		}

		group, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newGroupResponse(group))
	}
}

// GetGroup returns the full group snapshot: members, items and settled orders.
func GetGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.Get(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupResponse(group))
	}
}

// GetGroupByInviteToken resolves an invite link without exposing group ids.
func GetGroupByInviteToken(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		token := chi.URLParam(r, "token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing invite token"))
			return
		}

		group, err := svc.GetByInviteToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupResponse(group))
	}
}

type joinGroupRequest struct {
	JoinCode *string `json:"join_code,omitempty" validate:"omitempty,min=4,max=32"`
}

// JoinGroup adds the caller to an open group.
func JoinGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		userID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload joinGroupRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		group, err := svc.Join(r.Context(), groupID, userID, payload.JoinCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupResponse(group))
	}
}

// LeaveGroup removes the caller from an open group.
func LeaveGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		userID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Leave(r.Context(), groupID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "left"})
	}
}

type assignAddressRequest struct {
	AddressID uuid.UUID `json:"address_id" validate:"required,uuid4"`
}

// AssignAddress sets the caller's delivery address within the group.
func AssignAddress(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		userID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AssignAddress(r.Context(), groupID, userID, payload.AddressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "assigned"})
	}
}

// LockGroup freezes membership and selections ahead of settlement.
func LockGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		actorID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.Lock(r.Context(), groupID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupResponse(group))
	}
}

// UnlockGroup reopens a locked group that has no settled payments yet.
func UnlockGroup(svc groupsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "group service unavailable"))
			return
		}

		actorID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.Unlock(r.Context(), groupID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGroupResponse(group))
	}
}

type groupResponse struct {
	ID                uuid.UUID         `json:"id"`
	StoreID           uuid.UUID         `json:"store_id"`
	HostUserID        uuid.UUID         `json:"host_user_id"`
	Name              string            `json:"name"`
	State             string            `json:"state"`
	DeliveryMode      string            `json:"delivery_mode"`
	DiscountPercent   int               `json:"discount_percent"`
	OrderStatus       string            `json:"order_status"`
	InviteToken       string            `json:"invite_token"`
	HasJoinCode       bool              `json:"has_join_code"`
	TargetMemberCount *int              `json:"target_member_count,omitempty"`
	ExpiresAt         time.Time         `json:"expires_at"`
	JoinExpiresAt     *time.Time        `json:"join_expires_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	Members           []memberResponse  `json:"members"`
	Items             []itemResponse    `json:"items"`
	SettledOrders     []settledResponse `json:"settled_orders,omitempty"`
}

type memberResponse struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	IsHost    bool       `json:"is_host"`
	Status    string     `json:"status"`
	HasPaid   bool       `json:"has_paid"`
	AddressID *uuid.UUID `json:"address_id,omitempty"`
	JoinedAt  time.Time  `json:"joined_at"`
}

type itemResponse struct {
	ID                 uuid.UUID  `json:"id"`
	MemberID           uuid.UUID  `json:"member_id"`
	ProductID          uuid.UUID  `json:"product_id"`
	VariantID          *uuid.UUID `json:"variant_id,omitempty"`
	Quantity           int        `json:"quantity"`
	BaseUnitPriceCents int        `json:"base_unit_price_cents"`
	UnitPriceCents     int        `json:"unit_price_cents"`
	TotalCents         int        `json:"total_cents"`
	Note               *string    `json:"note,omitempty"`
}

type settledResponse struct {
	ID                   uuid.UUID  `json:"id"`
	MemberID             uuid.UUID  `json:"member_id"`
	PayerUserID          uuid.UUID  `json:"payer_user_id"`
	PaymentMethod        string     `json:"payment_method"`
	PaymentStatus        string     `json:"payment_status"`
	SubtotalCents        int        `json:"subtotal_cents"`
	VoucherDiscountCents int        `json:"voucher_discount_cents"`
	TotalCents           int        `json:"total_cents"`
	GatewayRef           *string    `json:"gateway_ref,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
}

func newGroupResponse(group *models.GroupOrder) groupResponse {
	if group == nil {
		return groupResponse{}
	}

	members := make([]memberResponse, 0, len(group.Members))
	for _, member := range group.Members {
		members = append(members, memberResponse{
			ID:        member.ID,
			UserID:    member.UserID,
			IsHost:    member.IsHost,
			Status:    string(member.Status),
			HasPaid:   member.HasPaid,
			AddressID: member.AddressID,
			JoinedAt:  member.JoinedAt,
		})
	}

	items := make([]itemResponse, 0, len(group.Items))
	for _, item := range group.Items {
		items = append(items, itemResponse{
			ID:                 item.ID,
			MemberID:           item.MemberID,
			ProductID:          item.ProductID,
			VariantID:          item.VariantID,
			Quantity:           item.Quantity,
			BaseUnitPriceCents: item.BaseUnitPriceCents,
			UnitPriceCents:     item.UnitPriceCents,
			TotalCents:         item.TotalCents,
			Note:               item.Note,
		})
	}

	settled := make([]settledResponse, 0, len(group.SettledOrders))
	for _, order := range group.SettledOrders {
		settled = append(settled, settledResponse{
			ID:                   order.ID,
			MemberID:             order.MemberID,
			PayerUserID:          order.PayerUserID,
			PaymentMethod:        string(order.PaymentMethod),
			PaymentStatus:        string(order.PaymentStatus),
			SubtotalCents:        order.SubtotalCents,
			VoucherDiscountCents: order.VoucherDiscountCents,
			TotalCents:           order.TotalCents,
			GatewayRef:           order.GatewayRef,
			PaidAt:               order.PaidAt,
		})
	}

	return groupResponse{
		ID:                group.ID,
		StoreID:           group.StoreID,
		HostUserID:        group.HostUserID,
		Name:              group.Name,
		State:             string(group.State),
		DeliveryMode:      string(group.DeliveryMode),
		DiscountPercent:   group.DiscountPercent,
		OrderStatus:       string(group.OrderStatus),
		InviteToken:       group.InviteToken,
		HasJoinCode:       group.JoinCode != nil,
		TargetMemberCount: group.TargetMemberCount,
		ExpiresAt:         group.ExpiresAt,
		JoinExpiresAt:     group.JoinExpiresAt,
		CompletedAt:       group.CompletedAt,
		CancelledAt:       group.CancelledAt,
		Members:           members,
		Items:             items,
		SettledOrders:     settled,
	}
}
