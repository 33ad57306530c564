package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sq "github.com/square/square-go-sdk"

	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/square"
)

type fakeGateway struct {
	lastParams square.PaymentCreateParams
	payment    *sq.Payment
	err        error
}

func (f *fakeGateway) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func (f *fakeGateway) NewIdempotencyKey(prefix string) string {
	return prefix + "-key"
}

func squarePayment(id, status string) *sq.Payment {
	return &sq.Payment{ID: &id, Status: &status}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.ErrorLevel})
}

func newTestService(t *testing.T, gateway paymentGateway) *Service {
	t.Helper()
	cod, err := NewCODSettler(config.GroupsConfig{CODMemberLimit: 5}, testLogger())
	if err != nil {
		t.Fatalf("cod settler: %v", err)
	}
	online, err := NewOnlineSettler(gateway, testLogger())
	if err != nil {
		t.Fatalf("online settler: %v", err)
	}
	wire, err := NewWireSettler(config.PaymentsConfig{WireInstructionsBaseURL: "https://pay.example.com/wire/"})
	if err != nil {
		t.Fatalf("wire settler: %v", err)
	}
	svc, err := NewService(cod, online, wire)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return svc
}

func baseRequest(method enums.PaymentMethodType) SettleRequest {
	token := "cnon:card-ok"
	return SettleRequest{
		OrderID:      uuid.New(),
		GroupID:      uuid.New(),
		PayerUserID:  uuid.New(),
		Method:       method,
		GatewayToken: &token,
		AmountCents:  25000,
		Currency:     "usd",
		MemberCount:  3,
	}
}

func TestSettleCODWithinLimit(t *testing.T) {
	svc := newTestService(t, &fakeGateway{})

	req := baseRequest(enums.PaymentMethodCOD)
	req.MemberCount = 5

	out, err := svc.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != OutcomeAccepted {
		t.Fatalf("status = %q, want accepted", out.Status)
	}
	if out.GatewayRef != nil {
		t.Fatalf("cod settlement should carry no gateway ref")
	}
}

func TestSettleCODGroupTooLarge(t *testing.T) {
	svc := newTestService(t, &fakeGateway{})

	req := baseRequest(enums.PaymentMethodCOD)
	req.MemberCount = 6

	out, err := svc.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != OutcomeRejected {
		t.Fatalf("status = %q, want rejected", out.Status)
	}
	if !strings.Contains(out.Reason, "5 or fewer") {
		t.Fatalf("reason %q should name the member limit", out.Reason)
	}
}

func TestSettleCardCompleted(t *testing.T) {
	gateway := &fakeGateway{payment: squarePayment("pay_123", "COMPLETED")}
	svc := newTestService(t, gateway)

	req := baseRequest(enums.PaymentMethodCard)
	out, err := svc.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != OutcomeAccepted {
		t.Fatalf("status = %q, want accepted", out.Status)
	}
	if out.GatewayRef == nil || *out.GatewayRef != "pay_123" {
		t.Fatalf("gateway ref = %v, want pay_123", out.GatewayRef)
	}
	if gateway.lastParams.SourceID != "cnon:card-ok" {
		t.Fatalf("source id = %q", gateway.lastParams.SourceID)
	}
	if gateway.lastParams.AmountCents != 25000 {
		t.Fatalf("amount = %d", gateway.lastParams.AmountCents)
	}
	if gateway.lastParams.ReferenceID != req.OrderID.String() {
		t.Fatalf("reference id = %q, want order id", gateway.lastParams.ReferenceID)
	}
}

func TestSettleCardDeclineBecomesRejectedOutcome(t *testing.T) {
	gateway := &fakeGateway{err: pkgerrors.New(pkgerrors.CodePaymentRejected, "square create payment failed")}
	svc := newTestService(t, gateway)

	out, err := svc.Settle(context.Background(), baseRequest(enums.PaymentMethodCard))
	if err != nil {
		t.Fatalf("decline should be an outcome, got error %v", err)
	}
	if out.Status != OutcomeRejected {
		t.Fatalf("status = %q, want rejected", out.Status)
	}
	if out.Reason == "" {
		t.Fatalf("rejected outcome should carry a reason")
	}
}

func TestSettleCardGatewayFailurePropagates(t *testing.T) {
	gateway := &fakeGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "square unreachable")}
	svc := newTestService(t, gateway)

	_, err := svc.Settle(context.Background(), baseRequest(enums.PaymentMethodCard))
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("error = %v, want dependency code", err)
	}
}

func TestSettleCardFailedStatusRejected(t *testing.T) {
	gateway := &fakeGateway{payment: squarePayment("pay_456", "FAILED")}
	svc := newTestService(t, gateway)

	out, err := svc.Settle(context.Background(), baseRequest(enums.PaymentMethodCard))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != OutcomeRejected {
		t.Fatalf("status = %q, want rejected", out.Status)
	}
}

func TestSettleCardMissingToken(t *testing.T) {
	svc := newTestService(t, &fakeGateway{})

	req := baseRequest(enums.PaymentMethodCard)
	req.GatewayToken = nil

	_, err := svc.Settle(context.Background(), req)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation code", err)
	}
}

func TestSettleWireRedirects(t *testing.T) {
	svc := newTestService(t, &fakeGateway{})

	req := baseRequest(enums.PaymentMethodWire)
	out, err := svc.Settle(context.Background(), req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if out.Status != OutcomeRedirectRequired {
		t.Fatalf("status = %q, want redirect_required", out.Status)
	}
	want := "https://pay.example.com/wire/" + req.OrderID.String()
	if out.RedirectURL == nil || *out.RedirectURL != want {
		t.Fatalf("redirect url = %v, want %s", out.RedirectURL, want)
	}
}

func TestSettleRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, &fakeGateway{})

	req := baseRequest(enums.PaymentMethodCard)
	req.AmountCents = 0

	_, err := svc.Settle(context.Background(), req)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation code", err)
	}
}
