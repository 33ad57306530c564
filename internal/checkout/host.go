package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/payments"
	"github.com/collectcart/groupbuy-backend/internal/vouchers"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/outbox/payloads"
)

// HostCheckout settles the entire group's items in one order paid by the
// host. On success the group transitions to completed.
func (s *service) HostCheckout(ctx context.Context, input HostCheckoutInput) (*Result, error) {
	if input.GroupID == uuid.Nil || input.HostUserID == uuid.Nil || input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id, host user id and address id are required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		order       *models.SettledOrder
		activeCount int
	)
	err := s.locks.WithLock(input.GroupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, input.GroupID)
			if err != nil {
				return err
			}

			if group.State != enums.GroupStateLocked {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "checkout requires a locked group")
			}
			if group.DeliveryMode != enums.DeliveryModeHostAddress {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "host-pays-all requires host_address delivery")
			}
			if group.HostUserID != input.HostUserID {
				return pkgerrors.New(pkgerrors.CodePermissionDenied, "only the host may settle the whole group")
			}
			host := group.HostMember()
			if host == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "host membership not found")
			}
			if host.HasPaid {
				return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "group has already been settled")
			}

			address, err := txRepo.FindAddressOwned(ctx, input.AddressID, input.HostUserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodePermissionDenied, "address does not belong to the caller")
				}
				return err
			}

			lines := group.Items
			if len(lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "group has no items to settle")
			}
			subtotal := lineSubtotal(lines)

			discount := 0
			var voucherID *uuid.UUID
			if input.VoucherCode != nil {
				validated, err := s.vouchers.Validate(ctx, vouchers.ValidateInput{
					Code:          *input.VoucherCode,
					UserID:        input.HostUserID,
					StoreID:       group.StoreID,
					SubtotalCents: subtotal,
				})
				if err != nil {
					return err
				}
				discount = validated.DiscountCents
				id := validated.Voucher.ID
				voucherID = &id
			}

			titles, err := txRepo.ProductTitles(ctx, productIDs(lines))
			if err != nil {
				return err
			}

			order = &models.SettledOrder{
				GroupID:              group.ID,
				MemberID:             host.ID,
				PayerUserID:          input.HostUserID,
				StoreID:              group.StoreID,
				PaymentMethod:        input.Method,
				PaymentStatus:        enums.PaymentStatusPending,
				SubtotalCents:        subtotal,
				VoucherDiscountCents: discount,
				TotalCents:           subtotal - discount,
				VoucherID:            voucherID,
				ShippingAddress:      addressSnapshot(address),
				Items:                orderItems(lines, titles),
			}
			if err := txRepo.CreateOrder(ctx, order); err != nil {
				return err
			}
			if err := s.reserveLines(ctx, tx, lines); err != nil {
				return err
			}
			activeCount = len(group.ActiveMembers())
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "host checkout")
	}

	outcome, err := s.settle(ctx, order, input.Method, input.GatewayToken, activeCount)
	if err != nil {
		return nil, err
	}
	if outcome.Status == payments.OutcomeRedirectRequired {
		return &Result{Order: order, Status: outcome.Status, RedirectURL: outcome.RedirectURL}, nil
	}

	finalized, err := s.finalizeHost(ctx, input.GroupID, order.ID, outcome.GatewayRef)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithGroupID(ctx, input.GroupID.String())
	s.logg.Info(logCtx, "host checkout settled")
	return &Result{Order: finalized, Status: payments.OutcomeAccepted}, nil
}

func (s *service) finalizeHost(ctx context.Context, groupID, orderID uuid.UUID, gatewayRef *string) (*models.SettledOrder, error) {
	var (
		finalized *models.SettledOrder
		cancelled bool
	)
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			order, err := txRepo.FindOrder(ctx, orderID)
			if err != nil {
				return err
			}
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			now := s.now()
			order.PaymentStatus = enums.PaymentStatusPaid
			order.PaidAt = &now
			order.GatewayRef = gatewayRef
			if err := txRepo.UpdateOrder(ctx, order); err != nil {
				return err
			}

			member := memberByID(group, order.MemberID)
			if member == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "paying membership not found")
			}
			member.HasPaid = true

			// The sweep may have cancelled the group while the gateway call
			// was in flight. The money is taken either way: record the paid
			// order and flag the refund instead of completing.
			if group.State != enums.GroupStateLocked {
				cancelled = true
				member.Status = enums.MemberStatusRefunded
				if err := txRepo.UpdateMember(ctx, member); err != nil {
					return err
				}
				return s.events.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventMemberRefundRequired,
					AggregateType: enums.AggregateGroupMember,
					AggregateID:   member.ID,
					Data: payloads.MemberRefundRequiredEvent{
						GroupID:  group.ID,
						MemberID: member.ID,
						UserID:   member.UserID,
						OrderID:  order.ID,
					},
				})
			}

			member.Status = enums.MemberStatusOrdered
			if err := txRepo.UpdateMember(ctx, member); err != nil {
				return err
			}

			if order.VoucherID != nil {
				if err := s.vouchers.ApplyTx(ctx, tx, *order.VoucherID, order.PayerUserID, order.ID); err != nil {
					return err
				}
			}

			if err := s.groups.MarkCompletedTx(ctx, tx, groupID, now); err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderSettled,
				AggregateType: enums.AggregateSettledOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: order.PayerUserID, Role: "host"},
				Data: payloads.OrderSettledEvent{
					GroupID:    group.ID,
					OrderID:    order.ID,
					MemberID:   order.MemberID,
					TotalCents: order.TotalCents,
					Method:     order.PaymentMethod.String(),
				},
			}); err != nil {
				return err
			}

			finalized = order
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "finalize host checkout")
	}
	if cancelled {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "group was cancelled during settlement; refund required")
	}
	return finalized, nil
}

func memberByID(group *models.GroupOrder, memberID uuid.UUID) *models.GroupMember {
	for i := range group.Members {
		if group.Members[i].ID == memberID {
			return &group.Members[i]
		}
	}
	return nil
}
