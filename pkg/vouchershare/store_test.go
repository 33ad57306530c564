package vouchershare

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/collectcart/groupbuy-backend/pkg/redis"
)

type fakeKV struct {
	values map[string]string
	dels   []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return val, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
		f.dels = append(f.dels, key)
	}
	return nil
}

func (f *fakeKV) VoucherShareKey(groupID string) string {
	return "gb:voucher_share:" + groupID
}

func TestPutThenGetRoundTrips(t *testing.T) {
	kv := newFakeKV()
	store, err := NewStore(kv, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	groupID := uuid.New()

	share := Share{
		VoucherID:          uuid.New(),
		VoucherCode:        "TENOFF",
		DiscountCents:      30000,
		GroupSubtotalCents: 300000,
	}
	if err := store.Put(context.Background(), groupID, share); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(context.Background(), groupID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached share")
	}
	if got.DiscountCents != 30000 || got.GroupSubtotalCents != 300000 {
		t.Fatalf("unexpected share: %+v", got)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	store, err := NewStore(newFakeKV(), time.Minute)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got, err := store.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestExpiredShareEvictedOnRead(t *testing.T) {
	kv := newFakeKV()
	store, err := NewStore(kv, time.Minute)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	groupID := uuid.New()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	if err := store.Put(context.Background(), groupID, Share{DiscountCents: 100}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	got, err := store.Get(context.Background(), groupID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected expired share to be treated as a miss")
	}
	if len(kv.dels) != 1 {
		t.Fatalf("expected eviction delete, got %d", len(kv.dels))
	}
}
