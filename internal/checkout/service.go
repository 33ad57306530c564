package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/payments"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/grouplock"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/types"
)

const settlementCurrency = "USD"

// Service converts a locked group into settled purchase orders. Both paths
// follow reserve-intent settlement: the pending order is written first, the
// gateway is called without holding the group lock, then a second
// transaction finalizes or discards the order.
type Service interface {
	HostCheckout(ctx context.Context, input HostCheckoutInput) (*Result, error)
	MemberCheckout(ctx context.Context, input MemberCheckoutInput) (*Result, error)
}

// HostCheckoutInput is the host-pays-all request: one order covering every
// member's items, shipped to the host.
type HostCheckoutInput struct {
	GroupID      uuid.UUID
	HostUserID   uuid.UUID
	AddressID    uuid.UUID
	Method       enums.PaymentMethodType
	GatewayToken *string
	VoucherCode  *string
}

// MemberCheckoutInput is the per-member request: the caller settles only
// their own items. Only the host may carry a voucher code.
type MemberCheckoutInput struct {
	GroupID      uuid.UUID
	UserID       uuid.UUID
	Method       enums.PaymentMethodType
	GatewayToken *string
	AddressID    *uuid.UUID
	VoucherCode  *string
}

// Result reports a settlement that was not rejected. RedirectURL is set
// when the payment boundary needs the payer to complete the flow
// elsewhere; the order stays pending until then.
type Result struct {
	Order       *models.SettledOrder
	Status      payments.OutcomeStatus
	RedirectURL *string
}

type service struct {
	repo     CheckoutRepository
	tx       txRunner
	locks    *grouplock.Keyed
	stock    stockReserver
	settler  settler
	vouchers voucherEngine
	shares   shareStore
	groups   groupCompleter
	events   eventEmitter
	logg     *logger.Logger

	now func() time.Time
}

// NewService builds the checkout orchestrator backed by the provided stack.
func NewService(
	repo CheckoutRepository,
	tx txRunner,
	locks *grouplock.Keyed,
	stock stockReserver,
	sett settler,
	vouch voucherEngine,
	shares shareStore,
	completer groupCompleter,
	events eventEmitter,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locks == nil {
		return nil, fmt.Errorf("group lock required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if sett == nil {
		return nil, fmt.Errorf("settler required")
	}
	if vouch == nil {
		return nil, fmt.Errorf("voucher engine required")
	}
	if shares == nil {
		return nil, fmt.Errorf("voucher share store required")
	}
	if completer == nil {
		return nil, fmt.Errorf("group completer required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		locks:    locks,
		stock:    stock,
		settler:  sett,
		vouchers: vouch,
		shares:   shares,
		groups:   completer,
		events:   events,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// discardPendingOrder undoes a reserve-intent transaction after the payment
// boundary rejected or failed: the pending order is deleted and its stock
// reservations are returned.
func (s *service) discardPendingOrder(ctx context.Context, groupID, orderID uuid.UUID) error {
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			order, err := txRepo.FindOrder(ctx, orderID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			for _, item := range order.Items {
				if err := s.stock.ReleaseTx(ctx, tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
			return txRepo.DeleteOrder(ctx, orderID)
		})
	})
	if err != nil {
		return wrapPersistence(err, "discard pending order")
	}
	return nil
}

func (s *service) reserveLines(ctx context.Context, tx *gorm.DB, lines []models.GroupLineItem) error {
	for _, line := range lines {
		if err := s.stock.ReserveTx(ctx, tx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) settle(ctx context.Context, order *models.SettledOrder, method enums.PaymentMethodType, token *string, memberCount int) (*payments.Outcome, error) {
	outcome, err := s.settler.Settle(ctx, payments.SettleRequest{
		OrderID:      order.ID,
		GroupID:      order.GroupID,
		PayerUserID:  order.PayerUserID,
		Method:       method,
		GatewayToken: token,
		AmountCents:  order.TotalCents,
		Currency:     settlementCurrency,
		MemberCount:  memberCount,
	})
	if err != nil {
		if discardErr := s.discardPendingOrder(ctx, order.GroupID, order.ID); discardErr != nil {
			s.logg.Error(ctx, "discard after settlement failure", discardErr)
		}
		return nil, err
	}
	if outcome.Status == payments.OutcomeRejected {
		if discardErr := s.discardPendingOrder(ctx, order.GroupID, order.ID); discardErr != nil {
			return nil, discardErr
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentRejected, outcome.Reason)
	}
	return outcome, nil
}

// prorate splits the group-wide voucher discount proportionally to the
// member's subtotal, rounding down so the summed shares never exceed the
// validated total.
func prorate(discountCents, memberSubtotalCents, groupSubtotalCents int) int {
	if discountCents <= 0 || memberSubtotalCents <= 0 || groupSubtotalCents <= 0 {
		return 0
	}
	share := decimal.NewFromInt(int64(discountCents)).
		Mul(decimal.NewFromInt(int64(memberSubtotalCents))).
		Div(decimal.NewFromInt(int64(groupSubtotalCents))).
		Floor()
	prorated := int(share.IntPart())
	if prorated > memberSubtotalCents {
		prorated = memberSubtotalCents
	}
	return prorated
}

func lineSubtotal(lines []models.GroupLineItem) int {
	total := 0
	for _, line := range lines {
		total += line.TotalCents
	}
	return total
}

func productIDs(lines []models.GroupLineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func orderItems(lines []models.GroupLineItem, titles map[uuid.UUID]string) []models.SettledOrderItem {
	items := make([]models.SettledOrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.SettledOrderItem{
			LineItemID:     line.ID,
			MemberID:       line.MemberID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Name:           titles[line.ProductID],
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
			Note:           line.Note,
		})
	}
	return items
}

func addressSnapshot(address *models.Address) *types.Address {
	if address == nil {
		return nil
	}
	snapshot := &types.Address{
		Recipient:  address.Recipient,
		Phone:      address.Phone,
		Line1:      address.Line1,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
	if address.Line2 != nil {
		snapshot.Line2 = *address.Line2
	}
	return snapshot
}

func loadGroup(ctx context.Context, repo CheckoutRepository, groupID uuid.UUID) (*models.GroupOrder, error) {
	group, err := repo.FindGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, err
	}
	return group, nil
}

func wrapPersistence(err error, op string) error {
	if err == nil {
		return nil
	}
	var domainErr *pkgerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistenceFailed, err, op)
}
