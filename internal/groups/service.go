package groups

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/grouplock"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/outbox/payloads"
)

// Service owns the group lifecycle: creation, membership, lock/unlock and
// the time-driven sweep. Every state-mutating operation runs under the
// per-group lock and re-validates state inside its transaction.
type Service interface {
	Create(ctx context.Context, input CreateGroupInput) (*models.GroupOrder, error)
	Get(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error)
	GetByInviteToken(ctx context.Context, token string) (*models.GroupOrder, error)
	Join(ctx context.Context, groupID, userID uuid.UUID, joinCode *string) (*models.GroupOrder, error)
	Leave(ctx context.Context, groupID, userID uuid.UUID) error
	AssignAddress(ctx context.Context, groupID, userID, addressID uuid.UUID) error
	Lock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error)
	Unlock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error)
	MarkCompletedTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, at time.Time) error
	SweepExpired(ctx context.Context, now time.Time) (SweepStats, error)
}

// SweepStats summarizes one expiry sweep for metrics and logging.
type SweepStats struct {
	AutoLocked    int
	Cancelled     int
	PrunedMembers int
	RefundsMarked int
}

// CreateGroupInput captures the payload required to open a new group.
type CreateGroupInput struct {
	StoreID           uuid.UUID
	HostUserID        uuid.UUID
	Name              string
	DeliveryMode      enums.DeliveryMode
	JoinCode          *string
	TargetMemberCount *int
	JoinWindow        *time.Duration
}

type service struct {
	repo   GroupRepository
	tx     txRunner
	locks  *grouplock.Keyed
	events eventEmitter
	tier   tierEngine
	cfg    config.GroupsConfig
	logg   *logger.Logger

	now func() time.Time
}

// NewService builds the group service backed by the provided stack.
func NewService(repo GroupRepository, tx txRunner, locks *grouplock.Keyed, events eventEmitter, tier tierEngine, cfg config.GroupsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("group repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locks == nil {
		return nil, fmt.Errorf("group lock required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if tier == nil {
		return nil, fmt.Errorf("tier engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		locks:  locks,
		events: events,
		tier:   tier,
		cfg:    cfg,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateGroupInput) (*models.GroupOrder, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if input.HostUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "host user id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group name is required")
	}
	if !input.DeliveryMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}
	if input.TargetMemberCount != nil && *input.TargetMemberCount < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target member count must be at least 2")
	}

	joinWindow := s.cfg.DefaultJoinWindow
	if input.JoinWindow != nil && *input.JoinWindow > 0 {
		joinWindow = *input.JoinWindow
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite token")
	}

	now := s.now()
	group := &models.GroupOrder{
		StoreID:           input.StoreID,
		HostUserID:        input.HostUserID,
		Name:              strings.TrimSpace(input.Name),
		JoinCode:          input.JoinCode,
		InviteToken:       token,
		State:             enums.GroupStateOpen,
		DeliveryMode:      input.DeliveryMode,
		OrderStatus:       enums.GroupOrderStatusNone,
		TargetMemberCount: input.TargetMemberCount,
		ExpiresAt:         now.Add(joinWindow),
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, group); err != nil {
			return err
		}

		host := &models.GroupMember{
			GroupID:  group.ID,
			UserID:   input.HostUserID,
			IsHost:   true,
			Status:   enums.MemberStatusJoined,
			JoinedAt: now,
		}
		if err := txRepo.CreateMember(ctx, host); err != nil {
			return err
		}
		group.Members = []models.GroupMember{*host}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupCreated,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   group.ID,
			Actor:         &outbox.ActorRef{UserID: input.HostUserID, Role: "host"},
			Data: payloads.GroupCreatedEvent{
				GroupID:      group.ID,
				StoreID:      group.StoreID,
				HostUserID:   group.HostUserID,
				DeliveryMode: group.DeliveryMode.String(),
				ExpiresAt:    group.ExpiresAt,
			},
		})
	}); err != nil {
		return nil, wrapPersistence(err, "create group")
	}

	logCtx := s.logg.WithGroupID(ctx, group.ID.String())
	s.logg.Info(logCtx, "group created")
	return group, nil
}

func (s *service) Get(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, wrapPersistence(err, "load group")
	}
	return group, nil
}

func (s *service) GetByInviteToken(ctx context.Context, token string) (*models.GroupOrder, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invite token is required")
	}
	group, err := s.repo.FindByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, wrapPersistence(err, "load group")
	}
	return group, nil
}

func (s *service) Join(ctx context.Context, groupID, userID uuid.UUID, joinCode *string) (*models.GroupOrder, error) {
	if groupID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and user id are required")
	}

	var joined *models.GroupOrder
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			if existing := group.MemberByUser(userID); existing != nil && existing.Status.IsActive() {
				joined = group
				return nil
			}

			now := s.now()
			if group.State != enums.GroupStateOpen {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "group is not open for joining")
			}
			if !now.Before(group.ExpiresAt) {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "group has expired")
			}
			if group.JoinExpiresAt != nil && !now.Before(*group.JoinExpiresAt) {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "join window has closed")
			}
			if group.JoinCode != nil {
				if joinCode == nil || *joinCode != *group.JoinCode {
					return pkgerrors.New(pkgerrors.CodePermissionDenied, "join code mismatch")
				}
			}

			activeCount := len(group.ActiveMembers())
			if group.TargetMemberCount != nil && activeCount >= *group.TargetMemberCount {
				return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "group target member count reached")
			}
			if s.cfg.MaxMembers > 0 && activeCount >= s.cfg.MaxMembers {
				return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "group is full")
			}

			var member *models.GroupMember
			if existing := group.MemberByUser(userID); existing != nil {
				existing.Status = enums.MemberStatusJoined
				existing.JoinedAt = now
				existing.LeftAt = nil
				existing.HasPaid = false
				if err := txRepo.UpdateMember(ctx, existing); err != nil {
					return err
				}
				member = existing
			} else {
				member = &models.GroupMember{
					GroupID:  group.ID,
					UserID:   userID,
					Status:   enums.MemberStatusJoined,
					JoinedAt: now,
				}
				if err := txRepo.CreateMember(ctx, member); err != nil {
					return err
				}
				group.Members = append(group.Members, *member)
			}

			percent, err := s.tier.RecomputeTx(ctx, tx, group.ID)
			if err != nil {
				return err
			}
			group.DiscountPercent = percent
			if err := txRepo.Update(ctx, group); err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMemberJoined,
				AggregateType: enums.AggregateGroupMember,
				AggregateID:   member.ID,
				Actor:         &outbox.ActorRef{UserID: userID, Role: "member"},
				Data: payloads.MemberJoinedEvent{
					GroupID:         group.ID,
					MemberID:        member.ID,
					UserID:          userID,
					ActiveMembers:   len(group.ActiveMembers()),
					DiscountPercent: percent,
				},
			}); err != nil {
				return err
			}

			joined = group
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "join group")
	}
	return joined, nil
}

func (s *service) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	if groupID == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id and user id are required")
	}

	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			if group.State != enums.GroupStateOpen {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "members can only leave an open group")
			}

			member := group.MemberByUser(userID)
			if member == nil || !member.Status.IsActive() {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			if member.IsHost {
				return pkgerrors.New(pkgerrors.CodePermissionDenied, "host cannot leave the group")
			}

			memberID := member.ID
			hadItems := len(group.ItemsByMember(memberID)) > 0
			if err := txRepo.DeleteMemberItems(ctx, memberID); err != nil {
				return err
			}

			if hadItems {
				now := s.now()
				member.Status = enums.MemberStatusLeft
				member.LeftAt = &now
				if err := txRepo.UpdateMember(ctx, member); err != nil {
					return err
				}
			} else {
				if err := txRepo.DeleteMember(ctx, memberID); err != nil {
					return err
				}
			}
			dropMember(group, memberID, !hadItems)

			percent, err := s.tier.RecomputeTx(ctx, tx, group.ID)
			if err != nil {
				return err
			}
			group.DiscountPercent = percent
			if err := txRepo.Update(ctx, group); err != nil {
				return err
			}

			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMemberLeft,
				AggregateType: enums.AggregateGroupMember,
				AggregateID:   memberID,
				Actor:         &outbox.ActorRef{UserID: userID, Role: "member"},
				Data: payloads.MemberLeftEvent{
					GroupID:         group.ID,
					MemberID:        memberID,
					UserID:          userID,
					ActiveMembers:   len(group.ActiveMembers()),
					DiscountPercent: percent,
				},
			})
		})
	})
	if err != nil {
		return wrapPersistence(err, "leave group")
	}
	return nil
}

func (s *service) AssignAddress(ctx context.Context, groupID, userID, addressID uuid.UUID) error {
	if groupID == uuid.Nil || userID == uuid.Nil || addressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id, user id and address id are required")
	}

	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			if group.State.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "group is closed")
			}

			member := group.MemberByUser(userID)
			if member == nil || !member.Status.IsActive() {
				return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
			}
			if member.HasPaid {
				return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "address is frozen after payment")
			}

			if _, err := txRepo.FindAddressOwned(ctx, addressID, userID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodePermissionDenied, "address does not belong to the caller")
				}
				return err
			}

			member.AddressID = &addressID
			return txRepo.UpdateMember(ctx, member)
		})
	})
	if err != nil {
		return wrapPersistence(err, "assign address")
	}
	return nil
}

func (s *service) Lock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error) {
	if groupID == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and actor id are required")
	}

	var locked *models.GroupOrder
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			if group.HostUserID != actorID {
				return pkgerrors.New(pkgerrors.CodePermissionDenied, "only the host may lock the group")
			}
			if err := ValidateLock(group); err != nil {
				return err
			}

			now := s.now()
			group.State = enums.GroupStateLocked
			group.ExpiresAt = now.Add(s.cfg.PaymentWindow)
			if err := txRepo.Update(ctx, group); err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupLocked,
				AggregateType: enums.AggregateGroupOrder,
				AggregateID:   group.ID,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: "host"},
				Data: payloads.GroupLockedEvent{
					GroupID:       group.ID,
					ActiveMembers: len(group.ActiveMembers()),
					ExpiresAt:     group.ExpiresAt,
					AutoLocked:    false,
				},
			}); err != nil {
				return err
			}

			locked = group
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "lock group")
	}

	logCtx := s.logg.WithGroupID(ctx, groupID.String())
	s.logg.Info(logCtx, "group locked")
	return locked, nil
}

func (s *service) Unlock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error) {
	if groupID == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and actor id are required")
	}

	var unlocked *models.GroupOrder
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}

			if group.HostUserID != actorID {
				return pkgerrors.New(pkgerrors.CodePermissionDenied, "only the host may unlock the group")
			}
			if err := ValidateUnlock(group); err != nil {
				return err
			}

			group.State = enums.GroupStateOpen
			group.ExpiresAt = s.now().Add(s.cfg.DefaultJoinWindow)
			if err := txRepo.Update(ctx, group); err != nil {
				return err
			}

			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupUnlocked,
				AggregateType: enums.AggregateGroupOrder,
				AggregateID:   group.ID,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: "host"},
				Data:          payloads.GroupUnlockedEvent{GroupID: group.ID},
			}); err != nil {
				return err
			}

			unlocked = group
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "unlock group")
	}

	logCtx := s.logg.WithGroupID(ctx, groupID.String())
	s.logg.Info(logCtx, "group unlocked")
	return unlocked, nil
}

// MarkCompletedTx flips a locked group to completed inside the caller's
// transaction. The checkout orchestrator invokes it after the final
// settlement succeeds.
func (s *service) MarkCompletedTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, at time.Time) error {
	txRepo := s.repo.WithTx(tx)
	group, err := loadGroup(ctx, txRepo, groupID)
	if err != nil {
		return err
	}
	if !CanTransition(group.State, enums.GroupStateCompleted) {
		return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("group is %s, cannot complete", group.State))
	}

	group.State = enums.GroupStateCompleted
	group.CompletedAt = &at
	group.OrderStatus = enums.GroupOrderStatusProcessing
	if err := txRepo.Update(ctx, group); err != nil {
		return err
	}

	return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGroupCompleted,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   group.ID,
		Data: payloads.GroupCompletedEvent{
			GroupID:     group.ID,
			CompletedAt: at,
		},
	})
}

// SweepExpired drives the time-based transitions: expired open groups are
// pruned and auto-locked or cancelled, expired locked groups are cancelled.
// Per-group failures are collected so one bad group cannot stall the sweep.
func (s *service) SweepExpired(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats
	var errs error

	openGroups, err := s.repo.FindExpired(ctx, enums.GroupStateOpen, now, 0)
	if err != nil {
		return stats, wrapPersistence(err, "list expired open groups")
	}
	for _, candidate := range openGroups {
		if err := s.sweepOpenGroup(ctx, candidate.ID, now, &stats); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep open group %s: %w", candidate.ID, err))
		}
	}

	lockedGroups, err := s.repo.FindExpired(ctx, enums.GroupStateLocked, now, 0)
	if err != nil {
		return stats, wrapPersistence(err, "list expired locked groups")
	}
	for _, candidate := range lockedGroups {
		if err := s.sweepLockedGroup(ctx, candidate.ID, now, &stats); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sweep locked group %s: %w", candidate.ID, err))
		}
	}

	return stats, errs
}

func (s *service) sweepOpenGroup(ctx context.Context, groupID uuid.UUID, now time.Time, stats *SweepStats) error {
	return s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}
			// Re-validate under the lock: a racing manual action may have
			// already moved the group.
			if group.State != enums.GroupStateOpen || now.Before(group.ExpiresAt) {
				return nil
			}

			pruned, err := s.pruneItemlessMembers(ctx, tx, txRepo, group)
			if err != nil {
				return err
			}
			stats.PrunedMembers += pruned

			percent, err := s.tier.RecomputeTx(ctx, tx, group.ID)
			if err != nil {
				return err
			}
			group.DiscountPercent = percent

			if len(group.ActiveMembers()) < 2 || ValidateLock(group) != nil {
				if err := s.cancelGroupTx(ctx, tx, txRepo, group, now, "expired before becoming ready", stats); err != nil {
					return err
				}
				stats.Cancelled++
				return nil
			}

			group.State = enums.GroupStateLocked
			group.ExpiresAt = now.Add(s.cfg.PaymentWindow)
			if err := txRepo.Update(ctx, group); err != nil {
				return err
			}
			stats.AutoLocked++

			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupLocked,
				AggregateType: enums.AggregateGroupOrder,
				AggregateID:   group.ID,
				Data: payloads.GroupLockedEvent{
					GroupID:       group.ID,
					ActiveMembers: len(group.ActiveMembers()),
					ExpiresAt:     group.ExpiresAt,
					AutoLocked:    true,
				},
			})
		})
	})
}

func (s *service) sweepLockedGroup(ctx context.Context, groupID uuid.UUID, now time.Time, stats *SweepStats) error {
	return s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, err := loadGroup(ctx, txRepo, groupID)
			if err != nil {
				return err
			}
			if group.State != enums.GroupStateLocked || now.Before(group.ExpiresAt) {
				return nil
			}

			if err := s.cancelGroupTx(ctx, tx, txRepo, group, now, "payment window elapsed", stats); err != nil {
				return err
			}
			stats.Cancelled++
			return nil
		})
	})
}

// pruneItemlessMembers removes every active non-host member without a line
// item. Their membership rows carry no contribution, so they are purged
// rather than marked left.
func (s *service) pruneItemlessMembers(ctx context.Context, tx *gorm.DB, txRepo GroupRepository, group *models.GroupOrder) (int, error) {
	pruned := 0
	for _, member := range group.ActiveMembers() {
		if member.IsHost || len(group.ItemsByMember(member.ID)) > 0 {
			continue
		}
		if err := txRepo.DeleteMember(ctx, member.ID); err != nil {
			return pruned, err
		}
		dropMember(group, member.ID, true)
		pruned++

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberLeft,
			AggregateType: enums.AggregateGroupMember,
			AggregateID:   member.ID,
			Data: payloads.MemberLeftEvent{
				GroupID:         group.ID,
				MemberID:        member.ID,
				UserID:          member.UserID,
				ActiveMembers:   len(group.ActiveMembers()),
				DiscountPercent: group.DiscountPercent,
			},
		}); err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}

func (s *service) cancelGroupTx(ctx context.Context, tx *gorm.DB, txRepo GroupRepository, group *models.GroupOrder, now time.Time, reason string, stats *SweepStats) error {
	group.State = enums.GroupStateCancelled
	group.CancelledAt = &now
	if err := txRepo.Update(ctx, group); err != nil {
		return err
	}

	if err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGroupCancelled,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   group.ID,
		Data: payloads.GroupCancelledEvent{
			GroupID:     group.ID,
			Reason:      reason,
			CancelledAt: now,
		},
	}); err != nil {
		return err
	}

	if group.DeliveryMode != enums.DeliveryModeMemberAddress {
		return nil
	}
	return s.markRefundsTx(ctx, tx, txRepo, group, stats)
}

// markRefundsTx flags already-paid members as refunded; the external refund
// process consumes the emitted events.
func (s *service) markRefundsTx(ctx context.Context, tx *gorm.DB, txRepo GroupRepository, group *models.GroupOrder, stats *SweepStats) error {
	orders, err := txRepo.FindSettledOrders(ctx, group.ID)
	if err != nil {
		return err
	}
	paidOrderByMember := map[uuid.UUID]uuid.UUID{}
	for _, order := range orders {
		if order.PaymentStatus == enums.PaymentStatusPaid {
			paidOrderByMember[order.MemberID] = order.ID
		}
	}

	for i := range group.Members {
		member := &group.Members[i]
		if !member.HasPaid {
			continue
		}
		member.Status = enums.MemberStatusRefunded
		if err := txRepo.UpdateMember(ctx, member); err != nil {
			return err
		}
		stats.RefundsMarked++

		if err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberRefundRequired,
			AggregateType: enums.AggregateGroupMember,
			AggregateID:   member.ID,
			Data: payloads.MemberRefundRequiredEvent{
				GroupID:  group.ID,
				MemberID: member.ID,
				UserID:   member.UserID,
				OrderID:  paidOrderByMember[member.ID],
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func loadGroup(ctx context.Context, repo GroupRepository, groupID uuid.UUID) (*models.GroupOrder, error) {
	group, err := repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, err
	}
	return group, nil
}

// dropMember updates the in-memory aggregate after a membership mutation so
// later checks within the same transaction see the fresh member set.
func dropMember(group *models.GroupOrder, memberID uuid.UUID, deleted bool) {
	for i := range group.Members {
		if group.Members[i].ID != memberID {
			continue
		}
		if deleted {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
		} else {
			group.Members[i].Status = enums.MemberStatusLeft
		}
		break
	}
	items := group.Items[:0]
	for _, item := range group.Items {
		if item.MemberID != memberID {
			items = append(items, item)
		}
	}
	group.Items = items
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

func newInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
