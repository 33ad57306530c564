package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/payments"
	"github.com/collectcart/groupbuy-backend/internal/vouchers"
	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/grouplock"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/square"
	"github.com/collectcart/groupbuy-backend/pkg/vouchershare"
)

type fakeRepo struct {
	groups        map[uuid.UUID]models.GroupOrder
	members       map[uuid.UUID]models.GroupMember
	items         map[uuid.UUID]models.GroupLineItem
	addresses     map[uuid.UUID]models.Address
	orders        map[uuid.UUID]models.SettledOrder
	orderItems    map[uuid.UUID][]models.SettledOrderItem
	productTitles map[uuid.UUID]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups:        map[uuid.UUID]models.GroupOrder{},
		members:       map[uuid.UUID]models.GroupMember{},
		items:         map[uuid.UUID]models.GroupLineItem{},
		addresses:     map[uuid.UUID]models.Address{},
		orders:        map[uuid.UUID]models.SettledOrder{},
		orderItems:    map[uuid.UUID][]models.SettledOrderItem{},
		productTitles: map[uuid.UUID]string{},
	}
}

func (f *fakeRepo) WithTx(*gorm.DB) CheckoutRepository { return f }

func (f *fakeRepo) FindGroup(_ context.Context, groupID uuid.UUID) (*models.GroupOrder, error) {
	stored, ok := f.groups[groupID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	group := stored
	for _, member := range f.members {
		if member.GroupID == groupID {
			group.Members = append(group.Members, member)
		}
	}
	for _, item := range f.items {
		if item.GroupID == groupID {
			group.Items = append(group.Items, item)
		}
	}
	for _, order := range f.orders {
		if order.GroupID == groupID {
			group.SettledOrders = append(group.SettledOrders, order)
		}
	}
	return &group, nil
}

func (f *fakeRepo) FindAddress(_ context.Context, addressID uuid.UUID) (*models.Address, error) {
	address, ok := f.addresses[addressID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &address, nil
}

func (f *fakeRepo) FindAddressOwned(_ context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	address, ok := f.addresses[addressID]
	if !ok || address.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &address, nil
}

func (f *fakeRepo) ProductTitles(_ context.Context, productIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	titles := map[uuid.UUID]string{}
	for _, id := range productIDs {
		titles[id] = f.productTitles[id]
	}
	return titles, nil
}

func (f *fakeRepo) CreateOrder(_ context.Context, order *models.SettledOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	stored := *order
	stored.Items = nil
	f.orders[order.ID] = stored
	f.orderItems[order.ID] = append([]models.SettledOrderItem(nil), order.Items...)
	return nil
}

func (f *fakeRepo) UpdateOrder(_ context.Context, order *models.SettledOrder) error {
	stored := *order
	stored.Items = nil
	f.orders[order.ID] = stored
	return nil
}

func (f *fakeRepo) DeleteOrder(_ context.Context, orderID uuid.UUID) error {
	delete(f.orders, orderID)
	delete(f.orderItems, orderID)
	return nil
}

func (f *fakeRepo) FindOrder(_ context.Context, orderID uuid.UUID) (*models.SettledOrder, error) {
	stored, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	order := stored
	order.Items = append([]models.SettledOrderItem(nil), f.orderItems[orderID]...)
	return &order, nil
}

func (f *fakeRepo) UpdateMember(_ context.Context, member *models.GroupMember) error {
	f.members[member.ID] = *member
	return nil
}

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeStock struct {
	reserved map[uuid.UUID]int
}

func newFakeStock() *fakeStock {
	return &fakeStock{reserved: map[uuid.UUID]int{}}
}

func (f *fakeStock) key(productID uuid.UUID, variantID *uuid.UUID) uuid.UUID {
	if variantID != nil {
		return *variantID
	}
	return productID
}

func (f *fakeStock) ReserveTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	f.reserved[f.key(productID, variantID)] += qty
	return nil
}

func (f *fakeStock) ReleaseTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	f.reserved[f.key(productID, variantID)] -= qty
	return nil
}

func (f *fakeStock) outstanding() int {
	total := 0
	for _, qty := range f.reserved {
		total += qty
	}
	return total
}

type fakeVouchers struct {
	byCode  map[string]vouchers.Validated
	applied []uuid.UUID
}

func (f *fakeVouchers) Validate(_ context.Context, input vouchers.ValidateInput) (*vouchers.Validated, error) {
	validated, ok := f.byCode[input.Code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeVoucherInvalid, "unknown voucher code")
	}
	if validated.Voucher.PercentOff != nil {
		validated.DiscountCents = input.SubtotalCents * *validated.Voucher.PercentOff / 100
	}
	return &validated, nil
}

func (f *fakeVouchers) ApplyTx(_ context.Context, _ *gorm.DB, voucherID, _, _ uuid.UUID) error {
	f.applied = append(f.applied, voucherID)
	return nil
}

type fakeShares struct {
	byGroup map[uuid.UUID]vouchershare.Share
}

func newFakeShares() *fakeShares {
	return &fakeShares{byGroup: map[uuid.UUID]vouchershare.Share{}}
}

func (f *fakeShares) Put(_ context.Context, groupID uuid.UUID, share vouchershare.Share) error {
	f.byGroup[groupID] = share
	return nil
}

func (f *fakeShares) Get(_ context.Context, groupID uuid.UUID) (*vouchershare.Share, error) {
	share, ok := f.byGroup[groupID]
	if !ok {
		return nil, nil
	}
	return &share, nil
}

func (f *fakeShares) Drop(_ context.Context, groupID uuid.UUID) error {
	delete(f.byGroup, groupID)
	return nil
}

type fakeCompleter struct {
	repo      *fakeRepo
	completed []uuid.UUID
}

func (f *fakeCompleter) MarkCompletedTx(_ context.Context, _ *gorm.DB, groupID uuid.UUID, at time.Time) error {
	group, ok := f.repo.groups[groupID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if group.State != enums.GroupStateLocked {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "cannot complete")
	}
	group.State = enums.GroupStateCompleted
	group.CompletedAt = &at
	group.OrderStatus = enums.GroupOrderStatusProcessing
	f.repo.groups[groupID] = group
	f.completed = append(f.completed, groupID)
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range f.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type fakeGateway struct {
	payment *sq.Payment
	err     error
}

func (f *fakeGateway) CreatePayment(_ context.Context, _ square.PaymentCreateParams) (*sq.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.payment != nil {
		return f.payment, nil
	}
	id := "pay_" + uuid.NewString()[:8]
	status := "COMPLETED"
	return &sq.Payment{ID: &id, Status: &status}, nil
}

func (f *fakeGateway) NewIdempotencyKey(prefix string) string { return prefix + "-key" }

type harness struct {
	svc       Service
	repo      *fakeRepo
	stock     *fakeStock
	vouchers  *fakeVouchers
	shares    *fakeShares
	completer *fakeCompleter
	emitter   *fakeEmitter
	gateway   *fakeGateway
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newFakeRepo()
	stock := newFakeStock()
	vouch := &fakeVouchers{byCode: map[string]vouchers.Validated{}}
	shares := newFakeShares()
	completer := &fakeCompleter{repo: repo}
	emitter := &fakeEmitter{}
	gateway := &fakeGateway{}
	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel})

	cod, err := payments.NewCODSettler(config.GroupsConfig{CODMemberLimit: 5}, logg)
	if err != nil {
		t.Fatalf("cod settler: %v", err)
	}
	online, err := payments.NewOnlineSettler(gateway, logg)
	if err != nil {
		t.Fatalf("online settler: %v", err)
	}
	wire, err := payments.NewWireSettler(config.PaymentsConfig{WireInstructionsBaseURL: "https://pay.example.com/wire"})
	if err != nil {
		t.Fatalf("wire settler: %v", err)
	}
	settler, err := payments.NewService(cod, online, wire)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	svc, err := NewService(repo, fakeTx{}, grouplock.New(), stock, settler, vouch, shares, completer, emitter, logg)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time { return now }

	return &harness{
		svc:       svc,
		repo:      repo,
		stock:     stock,
		vouchers:  vouch,
		shares:    shares,
		completer: completer,
		emitter:   emitter,
		gateway:   gateway,
		now:       now,
	}
}

// lockedGroup seeds a locked group with one host and memberCount-1 extra
// members, each owning one line item worth itemCents.
func (h *harness) lockedGroup(t *testing.T, mode enums.DeliveryMode, memberCount, itemCents int) (*models.GroupOrder, []models.GroupMember) {
	t.Helper()
	groupID := uuid.New()
	group := models.GroupOrder{
		ID:           groupID,
		StoreID:      uuid.New(),
		HostUserID:   uuid.New(),
		Name:         "friday batch",
		InviteToken:  uuid.NewString(),
		State:        enums.GroupStateLocked,
		DeliveryMode: mode,
		ExpiresAt:    h.now.Add(2 * time.Hour),
	}
	h.repo.groups[groupID] = group

	members := make([]models.GroupMember, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		member := models.GroupMember{
			ID:       uuid.New(),
			GroupID:  groupID,
			UserID:   group.HostUserID,
			IsHost:   i == 0,
			Status:   enums.MemberStatusJoined,
			JoinedAt: h.now.Add(-time.Hour),
		}
		if i > 0 {
			member.UserID = uuid.New()
		}
		if mode == enums.DeliveryModeMemberAddress {
			addressID := h.ownedAddress(member.UserID)
			member.AddressID = &addressID
		}
		h.repo.members[member.ID] = member
		members = append(members, member)

		productID := uuid.New()
		h.repo.productTitles[productID] = "single origin beans"
		itemID := uuid.New()
		h.repo.items[itemID] = models.GroupLineItem{
			ID:                 itemID,
			GroupID:            groupID,
			MemberID:           member.ID,
			ProductID:          productID,
			Quantity:           1,
			BaseUnitPriceCents: itemCents,
			UnitPriceCents:     itemCents,
			TotalCents:         itemCents,
		}
	}
	stored := h.repo.groups[groupID]
	return &stored, members
}

func (h *harness) ownedAddress(userID uuid.UUID) uuid.UUID {
	id := uuid.New()
	h.repo.addresses[id] = models.Address{
		ID:         id,
		UserID:     userID,
		Recipient:  "R. Chen",
		Line1:      "42 Dock St",
		City:       "Portland",
		PostalCode: "97201",
		Country:    "US",
	}
	return id
}

func (h *harness) singleOrder(t *testing.T) models.SettledOrder {
	t.Helper()
	if len(h.repo.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(h.repo.orders))
	}
	for _, order := range h.repo.orders {
		return order
	}
	return models.SettledOrder{}
}

func cardToken() *string {
	token := "cnon:card-ok"
	return &token
}

func TestHostCheckoutSettlesWholeGroup(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 100_000)
	addressID := h.ownedAddress(group.HostUserID)

	result, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if err != nil {
		t.Fatalf("host checkout: %v", err)
	}
	if result.Status != payments.OutcomeAccepted {
		t.Fatalf("status = %q, want accepted", result.Status)
	}

	order := h.singleOrder(t)
	if order.SubtotalCents != 300_000 || order.TotalCents != 300_000 {
		t.Fatalf("order totals = %d/%d, want 300000/300000", order.SubtotalCents, order.TotalCents)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %q, want paid", order.PaymentStatus)
	}
	if order.GatewayRef == nil {
		t.Fatalf("paid card order should carry a gateway ref")
	}
	if len(h.repo.orderItems[order.ID]) != 3 {
		t.Fatalf("order items = %d, want 3", len(h.repo.orderItems[order.ID]))
	}
	if order.ShippingAddress == nil || order.ShippingAddress.City != "Portland" {
		t.Fatalf("shipping snapshot missing")
	}

	host := h.repo.members[members[0].ID]
	if !host.HasPaid || host.Status != enums.MemberStatusOrdered {
		t.Fatalf("host member = %+v, want paid and ordered", host)
	}
	if len(h.completer.completed) != 1 || h.completer.completed[0] != group.ID {
		t.Fatalf("group should complete after host settlement")
	}
	if h.emitter.countByType(enums.EventOrderSettled) != 1 {
		t.Fatalf("expected one order settled event")
	}
}

func TestHostCheckoutAppliesVoucherToCombinedOrder(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 100_000)
	addressID := h.ownedAddress(group.HostUserID)

	voucherID := uuid.New()
	percent := 10
	h.vouchers.byCode["SAVE10"] = vouchers.Validated{
		Voucher: models.Voucher{ID: voucherID, Code: "SAVE10", Type: enums.VoucherTypePlatform, PercentOff: &percent},
	}

	code := "SAVE10"
	result, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
		VoucherCode:  &code,
	})
	if err != nil {
		t.Fatalf("host checkout: %v", err)
	}
	if result.Order.VoucherDiscountCents != 30_000 {
		t.Fatalf("discount = %d, want 30000", result.Order.VoucherDiscountCents)
	}
	if result.Order.TotalCents != 270_000 {
		t.Fatalf("total = %d, want 270000", result.Order.TotalCents)
	}
	if len(h.vouchers.applied) != 1 || h.vouchers.applied[0] != voucherID {
		t.Fatalf("voucher should be consumed on finalize")
	}
}

func TestHostCheckoutCODRejectedForLargeGroup(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeHostAddress, 6, 10_000)
	addressID := h.ownedAddress(group.HostUserID)

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:    group.ID,
		HostUserID: group.HostUserID,
		AddressID:  addressID,
		Method:     enums.PaymentMethodCOD,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentRejected) {
		t.Fatalf("error = %v, want payment rejected", err)
	}
	if len(h.repo.orders) != 0 {
		t.Fatalf("pending order should be discarded after rejection")
	}
	if h.stock.outstanding() != 0 {
		t.Fatalf("reserved stock should be released after rejection")
	}

	// An online method succeeds for the same group.
	result, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if err != nil {
		t.Fatalf("card checkout after cod rejection: %v", err)
	}
	if result.Status != payments.OutcomeAccepted {
		t.Fatalf("status = %q, want accepted", result.Status)
	}
}

func TestHostCheckoutCODAcceptedForSmallGroup(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeHostAddress, 5, 10_000)
	addressID := h.ownedAddress(group.HostUserID)

	result, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:    group.ID,
		HostUserID: group.HostUserID,
		AddressID:  addressID,
		Method:     enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("cod checkout: %v", err)
	}
	if result.Status != payments.OutcomeAccepted {
		t.Fatalf("status = %q, want accepted", result.Status)
	}
	order := h.singleOrder(t)
	if order.GatewayRef != nil {
		t.Fatalf("cod order should carry no gateway ref")
	}
}

func TestHostCheckoutRequiresLockedState(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 10_000)
	stored := h.repo.groups[group.ID]
	stored.State = enums.GroupStateOpen
	h.repo.groups[group.ID] = stored
	addressID := h.ownedAddress(group.HostUserID)

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}
}

func TestHostCheckoutRequiresHostAddressMode(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 10_000)
	addressID := h.ownedAddress(group.HostUserID)

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}
}

func TestHostCheckoutDeniedForNonHost(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 10_000)
	outsider := members[1].UserID
	addressID := h.ownedAddress(outsider)

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   outsider,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePermissionDenied) {
		t.Fatalf("error = %v, want permission denied", err)
	}
}

func TestHostCheckoutRejectsForeignAddress(t *testing.T) {
	h := newHarness(t)
	group, _ := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 10_000)
	foreign := h.ownedAddress(uuid.New())

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    foreign,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePermissionDenied) {
		t.Fatalf("error = %v, want permission denied", err)
	}
}

func TestHostCheckoutAlreadySettled(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeHostAddress, 3, 10_000)
	host := h.repo.members[members[0].ID]
	host.HasPaid = true
	h.repo.members[host.ID] = host
	addressID := h.ownedAddress(group.HostUserID)

	_, err := h.svc.HostCheckout(context.Background(), HostCheckoutInput{
		GroupID:      group.ID,
		HostUserID:   group.HostUserID,
		AddressID:    addressID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyPaid) {
		t.Fatalf("error = %v, want already paid", err)
	}
}

func TestMemberCheckoutSettlesOwnItemsOnly(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)

	result, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID:      group.ID,
		UserID:       members[1].UserID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if err != nil {
		t.Fatalf("member checkout: %v", err)
	}
	if result.Order.SubtotalCents != 100_000 {
		t.Fatalf("subtotal = %d, want the member's own 100000", result.Order.SubtotalCents)
	}
	if len(h.repo.orderItems[result.Order.ID]) != 1 {
		t.Fatalf("order items = %d, want 1", len(h.repo.orderItems[result.Order.ID]))
	}

	member := h.repo.members[members[1].ID]
	if !member.HasPaid || member.Status != enums.MemberStatusOrdered {
		t.Fatalf("member = %+v, want paid and ordered", member)
	}
	if h.emitter.countByType(enums.EventCheckoutProgress) != 1 {
		t.Fatalf("expected one progress event")
	}
	if len(h.completer.completed) != 0 {
		t.Fatalf("group must not complete with unpaid members")
	}
}

func TestMemberCheckoutProRatesHostVoucher(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)

	voucherID := uuid.New()
	percent := 10
	h.vouchers.byCode["SAVE10"] = vouchers.Validated{
		Voucher: models.Voucher{ID: voucherID, Code: "SAVE10", Type: enums.VoucherTypePlatform, PercentOff: &percent},
	}

	// Host checks out first with the voucher: discount is validated against
	// the full 300000 subtotal and cached.
	code := "SAVE10"
	hostResult, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID:      group.ID,
		UserID:       group.HostUserID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
		VoucherCode:  &code,
	})
	if err != nil {
		t.Fatalf("host member checkout: %v", err)
	}
	if hostResult.Order.VoucherDiscountCents != 10_000 {
		t.Fatalf("host discount = %d, want 10000", hostResult.Order.VoucherDiscountCents)
	}
	share := h.shares.byGroup[group.ID]
	if share.DiscountCents != 30_000 || share.GroupSubtotalCents != 300_000 {
		t.Fatalf("cached share = %+v, want 30000 over 300000", share)
	}

	// The remaining members pick up their pro-rated slice.
	for _, member := range members[1:] {
		result, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
			GroupID:      group.ID,
			UserID:       member.UserID,
			Method:       enums.PaymentMethodCard,
			GatewayToken: cardToken(),
		})
		if err != nil {
			t.Fatalf("member checkout: %v", err)
		}
		if result.Order.VoucherDiscountCents != 10_000 {
			t.Fatalf("member discount = %d, want 10000", result.Order.VoucherDiscountCents)
		}
		if result.Order.TotalCents != 90_000 {
			t.Fatalf("member total = %d, want 90000", result.Order.TotalCents)
		}
	}

	if len(h.completer.completed) != 1 {
		t.Fatalf("group should complete after all members pay")
	}
	if _, ok := h.shares.byGroup[group.ID]; ok {
		t.Fatalf("voucher share should be dropped after completion")
	}
	// One usage consumed for the whole group, on the host's settlement.
	if len(h.vouchers.applied) != 1 {
		t.Fatalf("voucher applied %d times, want once", len(h.vouchers.applied))
	}
}

func TestMemberCheckoutVoucherDeniedForNonHost(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)

	code := "SAVE10"
	_, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID:      group.ID,
		UserID:       members[1].UserID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
		VoucherCode:  &code,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePermissionDenied) {
		t.Fatalf("error = %v, want permission denied", err)
	}
}

func TestMemberCheckoutAlreadyPaid(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)
	member := h.repo.members[members[1].ID]
	member.HasPaid = true
	h.repo.members[member.ID] = member

	_, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID:      group.ID,
		UserID:       member.UserID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyPaid) {
		t.Fatalf("error = %v, want already paid", err)
	}
}

func TestMemberCheckoutRequiresAddressInMemberMode(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)
	member := h.repo.members[members[1].ID]
	member.AddressID = nil
	h.repo.members[member.ID] = member

	_, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID:      group.ID,
		UserID:       member.UserID,
		Method:       enums.PaymentMethodCard,
		GatewayToken: cardToken(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestMemberCheckoutCODRejectedForLargeGroup(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 6, 10_000)

	_, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID: group.ID,
		UserID:  members[1].UserID,
		Method:  enums.PaymentMethodCOD,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentRejected) {
		t.Fatalf("error = %v, want payment rejected", err)
	}
	if len(h.repo.orders) != 0 {
		t.Fatalf("pending order should be discarded after rejection")
	}
	if h.stock.outstanding() != 0 {
		t.Fatalf("reserved stock should be released after rejection")
	}
}

func TestMemberCheckoutWireLeavesOrderPending(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 3, 100_000)

	result, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
		GroupID: group.ID,
		UserID:  members[1].UserID,
		Method:  enums.PaymentMethodWire,
	})
	if err != nil {
		t.Fatalf("wire checkout: %v", err)
	}
	if result.Status != payments.OutcomeRedirectRequired {
		t.Fatalf("status = %q, want redirect_required", result.Status)
	}
	if result.RedirectURL == nil {
		t.Fatalf("redirect result should carry a URL")
	}

	order := h.singleOrder(t)
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %q, want pending", order.PaymentStatus)
	}
	member := h.repo.members[members[1].ID]
	if member.HasPaid {
		t.Fatalf("member must not be marked paid before the transfer clears")
	}
	stored := h.repo.groups[group.ID]
	if stored.State != enums.GroupStateLocked {
		t.Fatalf("group state = %q, want still locked", stored.State)
	}
}

func TestMemberCheckoutProgressCountsTowardCompletion(t *testing.T) {
	h := newHarness(t)
	group, members := h.lockedGroup(t, enums.DeliveryModeMemberAddress, 2, 50_000)

	for i, member := range members {
		_, err := h.svc.MemberCheckout(context.Background(), MemberCheckoutInput{
			GroupID:      group.ID,
			UserID:       member.UserID,
			Method:       enums.PaymentMethodCard,
			GatewayToken: cardToken(),
		})
		if err != nil {
			t.Fatalf("member %d checkout: %v", i, err)
		}
	}

	if len(h.completer.completed) != 1 {
		t.Fatalf("group should complete after the final member pays")
	}
	if h.emitter.countByType(enums.EventCheckoutProgress) != 2 {
		t.Fatalf("expected two progress events")
	}
	if h.emitter.countByType(enums.EventOrderSettled) != 2 {
		t.Fatalf("expected two order settled events")
	}
}

func TestProRationNeverExceedsValidatedDiscount(t *testing.T) {
	t.Parallel()
	// Uneven subtotals force flooring on every share.
	subtotals := []int{33_333, 33_333, 33_334}
	groupSubtotal := 100_000
	discount := 12_345

	total := 0
	for _, memberSubtotal := range subtotals {
		total += prorate(discount, memberSubtotal, groupSubtotal)
	}
	if total > discount {
		t.Fatalf("pro-rated sum %d exceeds validated discount %d", total, discount)
	}
}
