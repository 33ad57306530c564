package payments

import (
	"context"
	"fmt"

	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
)

// codSettler accepts cash-on-delivery for small groups. Money changes hands
// at handoff, so acceptance here only records the intent.
type codSettler struct {
	memberLimit int
	logger      *logger.Logger
}

// NewCODSettler enforces the group-size ceiling for cash on delivery.
func NewCODSettler(cfg config.GroupsConfig, logg *logger.Logger) (Settler, error) {
	if logg == nil {
		return nil, fmt.Errorf("cod settler logger required")
	}
	if cfg.CODMemberLimit <= 0 {
		return nil, fmt.Errorf("cod member limit must be positive")
	}
	return &codSettler{memberLimit: cfg.CODMemberLimit, logger: logg}, nil
}

func (s *codSettler) Settle(ctx context.Context, req SettleRequest) (*Outcome, error) {
	if req.MemberCount > s.memberLimit {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"group_id":     req.GroupID,
			"member_count": req.MemberCount,
			"limit":        s.memberLimit,
		}), "cod settlement refused, group too large")
		return &Outcome{
			Status: OutcomeRejected,
			Reason: fmt.Sprintf("cash on delivery is limited to groups of %d or fewer members", s.memberLimit),
		}, nil
	}
	return &Outcome{Status: OutcomeAccepted}, nil
}
