package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/collectcart/groupbuy-backend/internal/groups"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/metrics"
)

// sweeper drives the time-based group transitions.
type sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (groups.SweepStats, error)
}

// GroupExpiryJobParams configure the expiry sweep job.
type GroupExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper sweeper
	Metrics *metrics.CronJobMetrics
	Now     func() time.Time
}

type groupExpiryJob struct {
	logg    *logger.Logger
	sweeper sweeper
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

// NewGroupExpiryJob builds the job that auto-locks ready expired groups and
// cancels the rest.
func NewGroupExpiryJob(params GroupExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &groupExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (j *groupExpiryJob) Name() string { return "group_expiry" }

func (j *groupExpiryJob) Run(ctx context.Context) error {
	stats, err := j.sweeper.SweepExpired(ctx, j.now())

	for i := 0; i < stats.AutoLocked; i++ {
		j.metrics.IncSweepTransition("locked")
	}
	for i := 0; i < stats.Cancelled; i++ {
		j.metrics.IncSweepTransition("cancelled")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"auto_locked":    stats.AutoLocked,
		"cancelled":      stats.Cancelled,
		"pruned_members": stats.PrunedMembers,
		"refunds_marked": stats.RefundsMarked,
	})
	if err != nil {
		j.logg.Error(logCtx, "expiry sweep finished with errors", err)
		return err
	}
	j.logg.Info(logCtx, "expiry sweep complete")
	return nil
}
