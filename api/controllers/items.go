package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/api/responses"
	"github.com/collectcart/groupbuy-backend/api/validators"
	itemsvc "github.com/collectcart/groupbuy-backend/internal/items"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
)

type addItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required,uuid4"`
	VariantID *uuid.UUID `json:"variant_id,omitempty" validate:"omitempty,uuid4"`
	Quantity  int        `json:"quantity" validate:"required,min=1"`
	Note      *string    `json:"note,omitempty" validate:"omitempty,max=500"`
}

// AddItem appends one selection to the caller's lines in an open group.
func AddItem(svc itemsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
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

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddItem(r.Context(), groupID, userID, itemsvc.AddItemInput{
			ProductID: payload.ProductID,
			VariantID: payload.VariantID,
			Quantity:  payload.Quantity,
			Note:      payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

type updateItemRequest struct {
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// UpdateItem changes quantity or note on a line the caller owns.
func UpdateItem(svc itemsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
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

		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItem(r.Context(), groupID, userID, itemID, itemsvc.UpdateItemInput{
			Quantity: payload.Quantity,
			Note:     payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemResponse(item))
	}
}

// RemoveItem deletes a line the caller owns.
func RemoveItem(svc itemsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "item service unavailable"))
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

		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), groupID, userID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

func newItemResponse(item *models.GroupLineItem) itemResponse {
	if item == nil {
		return itemResponse{}
	}
	return itemResponse{
		ID:                 item.ID,
		MemberID:           item.MemberID,
		ProductID:          item.ProductID,
		VariantID:          item.VariantID,
		Quantity:           item.Quantity,
		BaseUnitPriceCents: item.BaseUnitPriceCents,
		UnitPriceCents:     item.UnitPriceCents,
		TotalCents:         item.TotalCents,
		Note:               item.Note,
	}
}
