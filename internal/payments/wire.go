package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/collectcart/groupbuy-backend/pkg/config"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

// wireSettler hands the payer off to a bank-instructions page. The order
// stays pending until the transfer is reconciled out of band.
type wireSettler struct {
	instructionsBaseURL string
}

// NewWireSettler wires bank-transfer settlement to the instructions page.
func NewWireSettler(cfg config.PaymentsConfig) (Settler, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.WireInstructionsBaseURL), "/")
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wire instructions base URL is required")
	}
	return &wireSettler{instructionsBaseURL: base}, nil
}

func (s *wireSettler) Settle(_ context.Context, req SettleRequest) (*Outcome, error) {
	url := fmt.Sprintf("%s/%s", s.instructionsBaseURL, req.OrderID)
	return &Outcome{Status: OutcomeRedirectRequired, RedirectURL: &url}, nil
}
