package items

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/internal/pricing"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/grouplock"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/outbox/payloads"
)

// Service owns line item contribution and the tier-driven reprice. An item's
// base price is snapshotted at add time; the tier discount is always
// reapplied to that snapshot so repeated recomputes cannot compound.
type Service interface {
	AddItem(ctx context.Context, groupID, userID uuid.UUID, input AddItemInput) (*models.GroupLineItem, error)
	UpdateItem(ctx context.Context, groupID, userID, itemID uuid.UUID, input UpdateItemInput) (*models.GroupLineItem, error)
	RemoveItem(ctx context.Context, groupID, userID, itemID uuid.UUID) error
	RecomputeTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error)
}

// AddItemInput captures one selection contribution.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	Note      *string
}

// UpdateItemInput mutates quantity and note of an owned line.
type UpdateItemInput struct {
	Quantity int
	Note     *string
}

type service struct {
	repo   ItemRepository
	tx     txRunner
	locks  *grouplock.Keyed
	oracle pricing.Oracle
	events eventEmitter
	logg   *logger.Logger

	now func() time.Time
}

// NewService builds the item service backed by the provided stack.
func NewService(repo ItemRepository, tx txRunner, locks *grouplock.Keyed, oracle pricing.Oracle, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locks == nil {
		return nil, fmt.Errorf("group lock required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("pricing oracle required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		locks:  locks,
		oracle: oracle,
		events: events,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) AddItem(ctx context.Context, groupID, userID uuid.UUID, input AddItemInput) (*models.GroupLineItem, error) {
	if groupID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id and user id are required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var saved *models.GroupLineItem
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, member, err := s.loadOpenGroupMember(ctx, txRepo, groupID, userID)
			if err != nil {
				return err
			}

			existing, err := txRepo.FindSelection(ctx, member.ID, input.ProductID, input.VariantID)
			if err != nil {
				return err
			}

			quantity := input.Quantity
			if existing != nil {
				quantity += existing.Quantity
			}

			// The oracle validates stock against the merged quantity.
			quote, err := s.oracle.Price(ctx, input.ProductID, input.VariantID, quantity, s.now())
			if err != nil {
				return err
			}

			unitPrice := ApplyDiscount(quote.UnitPriceCents, group.DiscountPercent)

			if existing != nil {
				existing.Quantity = quantity
				existing.BaseUnitPriceCents = quote.UnitPriceCents
				existing.UnitPriceCents = unitPrice
				existing.TotalCents = unitPrice * quantity
				existing.PricingRuleID = quote.AppliedRuleID
				if input.Note != nil {
					existing.Note = input.Note
				}
				if err := txRepo.UpdateItem(ctx, existing); err != nil {
					return err
				}
				saved = existing
				return nil
			}

			item := &models.GroupLineItem{
				GroupID:            group.ID,
				MemberID:           member.ID,
				ProductID:          input.ProductID,
				VariantID:          input.VariantID,
				Quantity:           quantity,
				BaseUnitPriceCents: quote.UnitPriceCents,
				UnitPriceCents:     unitPrice,
				TotalCents:         unitPrice * quantity,
				Note:               input.Note,
				PricingRuleID:      quote.AppliedRuleID,
			}
			if err := txRepo.CreateItem(ctx, item); err != nil {
				return err
			}
			saved = item
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "add item")
	}
	return saved, nil
}

func (s *service) UpdateItem(ctx context.Context, groupID, userID, itemID uuid.UUID, input UpdateItemInput) (*models.GroupLineItem, error) {
	if groupID == uuid.Nil || userID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id, user id and item id are required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var saved *models.GroupLineItem
	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, member, err := s.loadOpenGroupMember(ctx, txRepo, groupID, userID)
			if err != nil {
				return err
			}

			item, err := s.loadOwnedItem(ctx, txRepo, group, member, itemID)
			if err != nil {
				return err
			}

			quote, err := s.oracle.Price(ctx, item.ProductID, item.VariantID, input.Quantity, s.now())
			if err != nil {
				return err
			}

			unitPrice := ApplyDiscount(quote.UnitPriceCents, group.DiscountPercent)
			item.Quantity = input.Quantity
			item.BaseUnitPriceCents = quote.UnitPriceCents
			item.UnitPriceCents = unitPrice
			item.TotalCents = unitPrice * input.Quantity
			item.PricingRuleID = quote.AppliedRuleID
			if input.Note != nil {
				item.Note = input.Note
			}
			if err := txRepo.UpdateItem(ctx, item); err != nil {
				return err
			}
			saved = item
			return nil
		})
	})
	if err != nil {
		return nil, wrapPersistence(err, "update item")
	}
	return saved, nil
}

func (s *service) RemoveItem(ctx context.Context, groupID, userID, itemID uuid.UUID) error {
	if groupID == uuid.Nil || userID == uuid.Nil || itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id, user id and item id are required")
	}

	err := s.locks.WithLock(groupID, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			group, member, err := s.loadOpenGroupMember(ctx, txRepo, groupID, userID)
			if err != nil {
				return err
			}

			item, err := s.loadOwnedItem(ctx, txRepo, group, member, itemID)
			if err != nil {
				return err
			}

			return txRepo.DeleteItem(ctx, item.ID)
		})
	})
	if err != nil {
		return wrapPersistence(err, "remove item")
	}
	return nil
}

// RecomputeTx reprices every line from its base snapshot for the current
// member count and reports each change. It runs inside the caller's
// transaction; the caller persists the returned percent on the group row.
func (s *service) RecomputeTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error) {
	txRepo := s.repo.WithTx(tx)
	group, err := txRepo.FindGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return 0, err
	}

	percent := DiscountPercent(len(group.ActiveMembers()))

	for i := range group.Items {
		item := group.Items[i]
		unitPrice := ApplyDiscount(item.BaseUnitPriceCents, percent)
		totalCents := unitPrice * item.Quantity
		if unitPrice == item.UnitPriceCents && totalCents == item.TotalCents {
			continue
		}

		oldTotal := item.TotalCents
		item.UnitPriceCents = unitPrice
		item.TotalCents = totalCents
		if err := txRepo.UpdateItem(ctx, &item); err != nil {
			return 0, err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemPriceChanged,
			AggregateType: enums.AggregateLineItem,
			AggregateID:   item.ID,
			Data: payloads.ItemPriceChangedEvent{
				GroupID:         group.ID,
				LineItemID:      item.ID,
				MemberID:        item.MemberID,
				OldTotalCents:   oldTotal,
				NewTotalCents:   totalCents,
				DiscountPercent: percent,
			},
		}); err != nil {
			return 0, err
		}
	}

	return percent, nil
}

func (s *service) loadOpenGroupMember(ctx context.Context, txRepo ItemRepository, groupID, userID uuid.UUID) (*models.GroupOrder, *models.GroupMember, error) {
	group, err := txRepo.FindGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, nil, err
	}
	if group.State != enums.GroupStateOpen {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidState, "items are frozen unless the group is open")
	}

	member := group.MemberByUser(userID)
	if member == nil || !member.Status.IsActive() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}
	return group, member, nil
}

func (s *service) loadOwnedItem(ctx context.Context, txRepo ItemRepository, group *models.GroupOrder, member *models.GroupMember, itemID uuid.UUID) (*models.GroupLineItem, error) {
	item, err := txRepo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
		}
		return nil, err
	}
	if item.GroupID != group.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
	}
	if item.MemberID != member.ID {
		return nil, pkgerrors.New(pkgerrors.CodePermissionDenied, "line item belongs to another member")
	}
	return item, nil
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
