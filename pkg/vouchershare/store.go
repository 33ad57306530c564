package vouchershare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
	"github.com/collectcart/groupbuy-backend/pkg/redis"
)

// Share is a host-applied voucher discount cached for later per-member
// checkouts to pro-rate against.
type Share struct {
	VoucherID          uuid.UUID `json:"voucherId"`
	VoucherCode        string    `json:"voucherCode"`
	DiscountCents      int       `json:"discountCents"`
	GroupSubtotalCents int       `json:"groupSubtotalCents"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	VoucherShareKey(groupID string) string
}

// Store keeps one voucher share per group with a TTL. Eviction happens on
// read rather than via timers so restarts cannot leak callbacks.
type Store struct {
	kv  kvStore
	ttl time.Duration
	now func() time.Time
}

// NewStore builds a voucher share store over the provided redis client.
func NewStore(kv kvStore, ttl time.Duration) (*Store, error) {
	if kv == nil {
		return nil, errors.New("kv store required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{kv: kv, ttl: ttl, now: time.Now}, nil
}

// Put caches the share for the group, replacing any previous entry.
func (s *Store) Put(ctx context.Context, groupID uuid.UUID, share Share) error {
	share.ExpiresAt = s.now().Add(s.ttl)
	raw, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("marshal voucher share: %w", err)
	}
	key := s.kv.VoucherShareKey(groupID.String())
	if err := s.kv.Set(ctx, key, string(raw), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store voucher share")
	}
	return nil
}

// Get returns the cached share, or nil if it is absent or expired. Expired
// entries are evicted on read.
func (s *Store) Get(ctx context.Context, groupID uuid.UUID) (*Share, error) {
	key := s.kv.VoucherShareKey(groupID.String())
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read voucher share")
	}
	var share Share
	if err := json.Unmarshal([]byte(raw), &share); err != nil {
		return nil, fmt.Errorf("unmarshal voucher share: %w", err)
	}
	if !share.ExpiresAt.IsZero() && s.now().After(share.ExpiresAt) {
		_ = s.kv.Del(ctx, key)
		return nil, nil
	}
	return &share, nil
}

// Drop removes the cached share for the group.
func (s *Store) Drop(ctx context.Context, groupID uuid.UUID) error {
	return s.kv.Del(ctx, s.kv.VoucherShareKey(groupID.String()))
}
