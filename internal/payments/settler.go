package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// OutcomeStatus is the result class of one settlement attempt.
type OutcomeStatus string

const (
	OutcomeAccepted         OutcomeStatus = "accepted"
	OutcomeRedirectRequired OutcomeStatus = "redirect_required"
	OutcomeRejected         OutcomeStatus = "rejected"
)

// Outcome is the settlement boundary's answer. Rejections are outcomes,
// not errors; errors are reserved for transport and dependency failures.
type Outcome struct {
	Status      OutcomeStatus
	GatewayRef  *string
	RedirectURL *string
	Reason      string
}

// SettleRequest carries everything a settlement strategy needs.
type SettleRequest struct {
	OrderID      uuid.UUID
	GroupID      uuid.UUID
	PayerUserID  uuid.UUID
	Method       enums.PaymentMethodType
	GatewayToken *string
	AmountCents  int
	Currency     string
	MemberCount  int
}

// Settler requests payment settlement from the configured boundary.
type Settler interface {
	Settle(ctx context.Context, req SettleRequest) (*Outcome, error)
}

// Service dispatches settlement requests to the strategy for the payment
// method. COD eligibility is enforced here so every checkout path shares
// the same rule.
type Service struct {
	cod    Settler
	online Settler
	wire   Settler
}

// NewService wires the per-method settlement strategies.
func NewService(cod, online, wire Settler) (*Service, error) {
	if cod == nil {
		return nil, fmt.Errorf("cod settler required")
	}
	if online == nil {
		return nil, fmt.Errorf("online settler required")
	}
	if wire == nil {
		return nil, fmt.Errorf("wire settler required")
	}
	return &Service{cod: cod, online: online, wire: wire}, nil
}

// Settle routes the request by payment method.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*Outcome, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement amount must be positive")
	}

	switch req.Method {
	case enums.PaymentMethodCOD:
		return s.cod.Settle(ctx, req)
	case enums.PaymentMethodCard:
		return s.online.Settle(ctx, req)
	case enums.PaymentMethodWire:
		return s.wire.Settle(ctx, req)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", req.Method))
	}
}
