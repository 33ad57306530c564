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
	"github.com/collectcart/groupbuy-backend/pkg/types"
	"github.com/collectcart/groupbuy-backend/pkg/vouchershare"
)

// MemberCheckout settles only the caller's items into their own order. The
// group completes once every active member has paid.
func (s *service) MemberCheckout(ctx context.Context, input MemberCheckoutInput) (*Result, error) {
	if input.GroupID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and user id are required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var (
		order          *models.SettledOrder
		activeCount    int
		appliedVoucher bool
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
			member := group.MemberByUser(input.UserID)
			if member == nil || !member.Status.IsActive() {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			if member.HasPaid {
				return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "member has already checked out")
			}

			lines := group.ItemsByMember(member.ID)
			if len(lines) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "no items to settle")
			}
			memberSubtotal := lineSubtotal(lines)

			snapshot, err := s.memberShippingAddress(ctx, txRepo, group, member, input.AddressID, input.UserID)
			if err != nil {
				return err
			}

			discount := 0
			var voucherID *uuid.UUID
			if input.VoucherCode != nil {
				if group.HostUserID != input.UserID {
					return pkgerrors.New(pkgerrors.CodePermissionDenied, "only the host may apply a voucher")
				}
				groupSubtotal := lineSubtotal(group.Items)
				validated, err := s.vouchers.Validate(ctx, vouchers.ValidateInput{
					Code:          *input.VoucherCode,
					UserID:        input.UserID,
					StoreID:       group.StoreID,
					SubtotalCents: groupSubtotal,
				})
				if err != nil {
					return err
				}
				if err := s.shares.Put(ctx, group.ID, vouchershare.Share{
					VoucherID:          validated.Voucher.ID,
					VoucherCode:        validated.Voucher.Code,
					DiscountCents:      validated.DiscountCents,
					GroupSubtotalCents: groupSubtotal,
				}); err != nil {
					return err
				}
				discount = prorate(validated.DiscountCents, memberSubtotal, groupSubtotal)
				id := validated.Voucher.ID
				voucherID = &id
				appliedVoucher = true
			} else {
				share, err := s.shares.Get(ctx, group.ID)
				if err != nil {
					return err
				}
				if share != nil {
					discount = prorate(share.DiscountCents, memberSubtotal, share.GroupSubtotalCents)
					id := share.VoucherID
					voucherID = &id
				}
			}

			titles, err := txRepo.ProductTitles(ctx, productIDs(lines))
			if err != nil {
				return err
			}

			order = &models.SettledOrder{
				GroupID:              group.ID,
				MemberID:             member.ID,
				PayerUserID:          input.UserID,
				StoreID:              group.StoreID,
				PaymentMethod:        input.Method,
				PaymentStatus:        enums.PaymentStatusPending,
				SubtotalCents:        memberSubtotal,
				VoucherDiscountCents: discount,
				TotalCents:           memberSubtotal - discount,
				VoucherID:            voucherID,
				ShippingAddress:      snapshot,
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
		return nil, wrapPersistence(err, "member checkout")
	}

	outcome, err := s.settle(ctx, order, input.Method, input.GatewayToken, activeCount)
	if err != nil {
		return nil, err
	}
	if outcome.Status == payments.OutcomeRedirectRequired {
		return &Result{Order: order, Status: outcome.Status, RedirectURL: outcome.RedirectURL}, nil
	}

	finalized, completed, err := s.finalizeMember(ctx, input.GroupID, order.ID, outcome.GatewayRef, appliedVoucher)
	if err != nil {
		return nil, err
	}
	if completed {
		if err := s.shares.Drop(ctx, input.GroupID); err != nil {
			s.logg.Error(ctx, "drop voucher share", err)
		}
	}

	logCtx := s.logg.WithGroupID(ctx, input.GroupID.String())
	s.logg.Info(logCtx, "member checkout settled")
	return &Result{Order: finalized, Status: payments.OutcomeAccepted}, nil
}

// memberShippingAddress resolves the delivery snapshot for member_address
// groups. A freshly supplied address must belong to the caller and replaces
// the assigned one.
func (s *service) memberShippingAddress(ctx context.Context, txRepo CheckoutRepository, group *models.GroupOrder, member *models.GroupMember, addressID *uuid.UUID, userID uuid.UUID) (*types.Address, error) {
	if group.DeliveryMode != enums.DeliveryModeMemberAddress {
		return nil, nil
	}

	if addressID != nil {
		address, err := txRepo.FindAddressOwned(ctx, *addressID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "address does not belong to the caller")
			}
			return nil, err
		}
		member.AddressID = addressID
		if err := txRepo.UpdateMember(ctx, member); err != nil {
			return nil, err
		}
		return addressSnapshot(address), nil
	}

	if member.AddressID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required before checkout")
	}
	address, err := txRepo.FindAddress(ctx, *member.AddressID)
	if err != nil {
		return nil, err
	}
	return addressSnapshot(address), nil
}

func (s *service) finalizeMember(ctx context.Context, groupID, orderID uuid.UUID, gatewayRef *string, appliedVoucher bool) (*models.SettledOrder, bool, error) {
	var (
		finalized *models.SettledOrder
		completed bool
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

			if appliedVoucher && order.VoucherID != nil {
				if err := s.vouchers.ApplyTx(ctx, tx, *order.VoucherID, order.PayerUserID, order.ID); err != nil {
					return err
				}
			}

			paid, total := settlementProgress(group)
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCheckoutProgress,
				AggregateType: enums.AggregateGroupOrder,
				AggregateID:   group.ID,
				Data: payloads.CheckoutProgressEvent{
					GroupID:    group.ID,
					MemberID:   member.ID,
					PaidCount:  paid,
					TotalCount: total,
				},
			}); err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderSettled,
				AggregateType: enums.AggregateSettledOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: order.PayerUserID, Role: "member"},
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

			if paid == total {
				if err := s.groups.MarkCompletedTx(ctx, tx, groupID, now); err != nil {
					return err
				}
				completed = true
			}

			finalized = order
			return nil
		})
	})
	if err != nil {
		return nil, false, wrapPersistence(err, "finalize member checkout")
	}
	if cancelled {
		return nil, false, pkgerrors.New(pkgerrors.CodeInvalidState, "group was cancelled during settlement; refund required")
	}
	return finalized, completed, nil
}

// settlementProgress counts paid active members against the total.
func settlementProgress(group *models.GroupOrder) (int, int) {
	paid, total := 0, 0
	for _, member := range group.Members {
		if !member.Status.IsActive() {
			continue
		}
		total++
		if member.HasPaid {
			paid++
		}
	}
	return paid, total
}
