package payments

import (
	"context"
	"fmt"

	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/square"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// paymentGateway is the slice of the Square wrapper the online settler uses.
type paymentGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	NewIdempotencyKey(prefix string) string
}

// onlineSettler charges cards through the Square gateway. Gateway declines
// become rejected outcomes; anything else surfaces as an error.
type onlineSettler struct {
	gateway paymentGateway
	logger  *logger.Logger
}

// NewOnlineSettler wires card settlement to the payment gateway.
func NewOnlineSettler(gateway paymentGateway, logg *logger.Logger) (Settler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("online settler gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("online settler logger required")
	}
	return &onlineSettler{gateway: gateway, logger: logg}, nil
}

func (s *onlineSettler) Settle(ctx context.Context, req SettleRequest) (*Outcome, error) {
	if req.GatewayToken == nil || *req.GatewayToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card settlement requires a payment token")
	}

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    int64(req.AmountCents),
		Currency:       req.Currency,
		SourceID:       *req.GatewayToken,
		IdempotencyKey: s.gateway.NewIdempotencyKey("order-" + req.OrderID.String()),
		Note:           fmt.Sprintf("group order %s", req.GroupID),
		ReferenceID:    req.OrderID.String(),
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodePaymentRejected) {
			return &Outcome{Status: OutcomeRejected, Reason: pkgerrors.As(err).Message()}, nil
		}
		return nil, err
	}

	ref := paymentID(payment)
	switch paymentStatus(payment) {
	case "COMPLETED", "APPROVED":
		return &Outcome{Status: OutcomeAccepted, GatewayRef: ref}, nil
	case "FAILED", "CANCELED":
		return &Outcome{Status: OutcomeRejected, Reason: "payment was declined by the gateway"}, nil
	default:
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"order_id": req.OrderID,
			"status":   paymentStatus(payment),
		}), "unexpected gateway payment status")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned an indeterminate payment status")
	}
}

func paymentID(payment *sq.Payment) *string {
	if payment == nil {
		return nil
	}
	return payment.GetID()
}

func paymentStatus(payment *sq.Payment) string {
	if payment == nil || payment.GetStatus() == nil {
		return ""
	}
	return *payment.GetStatus()
}
