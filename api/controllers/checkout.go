package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/api/responses"
	"github.com/collectcart/groupbuy-backend/api/validators"
	checkoutsvc "github.com/collectcart/groupbuy-backend/internal/checkout"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
)

type hostCheckoutRequest struct {
	AddressID    uuid.UUID `json:"address_id" validate:"required,uuid4"`
	Method       string    `json:"method" validate:"required,oneof=cod card wire"`
	GatewayToken *string   `json:"gateway_token,omitempty" validate:"omitempty,min=1"`
	VoucherCode  *string   `json:"voucher_code,omitempty" validate:"omitempty,min=1,max=64"`
}

// HostCheckout settles the entire group in one order paid by the host.
func HostCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		hostID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload hostCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.HostCheckout(r.Context(), checkoutsvc.HostCheckoutInput{
			GroupID:      groupID,
			HostUserID:   hostID,
			AddressID:    payload.AddressID,
			Method:       enums.PaymentMethodType(payload.Method),
			GatewayToken: payload.GatewayToken,
			VoucherCode:  payload.VoucherCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSettlementResponse(result))
	}
}

type memberCheckoutRequest struct {
	Method       string     `json:"method" validate:"required,oneof=cod card wire"`
	GatewayToken *string    `json:"gateway_token,omitempty" validate:"omitempty,min=1"`
	AddressID    *uuid.UUID `json:"address_id,omitempty" validate:"omitempty,uuid4"`
	VoucherCode  *string    `json:"voucher_code,omitempty" validate:"omitempty,min=1,max=64"`
}

// MemberCheckout settles only the caller's lines within a locked group.
func MemberCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
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

		var payload memberCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MemberCheckout(r.Context(), checkoutsvc.MemberCheckoutInput{
			GroupID:      groupID,
			UserID:       userID,
			Method:       enums.PaymentMethodType(payload.Method),
			GatewayToken: payload.GatewayToken,
			AddressID:    payload.AddressID,
			VoucherCode:  payload.VoucherCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSettlementResponse(result))
	}
}

type settlementResponse struct {
	Status      string        `json:"status"`
	RedirectURL *string       `json:"redirect_url,omitempty"`
	Order       orderResponse `json:"order"`
}

type orderResponse struct {
	ID                   uuid.UUID           `json:"id"`
	GroupID              uuid.UUID           `json:"group_id"`
	MemberID             uuid.UUID           `json:"member_id"`
	PayerUserID          uuid.UUID           `json:"payer_user_id"`
	PaymentMethod        string              `json:"payment_method"`
	PaymentStatus        string              `json:"payment_status"`
	SubtotalCents        int                 `json:"subtotal_cents"`
	VoucherDiscountCents int                 `json:"voucher_discount_cents"`
	TotalCents           int                 `json:"total_cents"`
	GatewayRef           *string             `json:"gateway_ref,omitempty"`
	PaidAt               *time.Time          `json:"paid_at,omitempty"`
	Items                []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	LineItemID     uuid.UUID  `json:"line_item_id"`
	MemberID       uuid.UUID  `json:"member_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	TotalCents     int        `json:"total_cents"`
	Note           *string    `json:"note,omitempty"`
}

func newSettlementResponse(result *checkoutsvc.Result) settlementResponse {
	if result == nil {
		return settlementResponse{}
	}
	return settlementResponse{
		Status:      string(result.Status),
		RedirectURL: result.RedirectURL,
		Order:       newOrderResponse(result.Order),
	}
}

func newOrderResponse(order *models.SettledOrder) orderResponse {
	if order == nil {
		return orderResponse{}
	}

	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			LineItemID:     item.LineItemID,
			MemberID:       item.MemberID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
			Note:           item.Note,
		})
	}

	return orderResponse{
		ID:                   order.ID,
		GroupID:              order.GroupID,
		MemberID:             order.MemberID,
		PayerUserID:          order.PayerUserID,
		PaymentMethod:        string(order.PaymentMethod),
		PaymentStatus:        string(order.PaymentStatus),
		SubtotalCents:        order.SubtotalCents,
		VoucherDiscountCents: order.VoucherDiscountCents,
		TotalCents:           order.TotalCents,
		GatewayRef:           order.GatewayRef,
		PaidAt:               order.PaidAt,
		Items:                items,
	}
}
