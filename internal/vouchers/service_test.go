package vouchers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/collectcart/groupbuy-backend/pkg/errors"
)

type fakeVoucherRepo struct {
	vouchers    map[string]models.Voucher
	redemptions []models.VoucherRedemption
}

func newFakeVoucherRepo() *fakeVoucherRepo {
	return &fakeVoucherRepo{vouchers: map[string]models.Voucher{}}
}

func (f *fakeVoucherRepo) WithTx(*gorm.DB) VoucherRepository { return f }

func (f *fakeVoucherRepo) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	voucher, ok := f.vouchers[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &voucher, nil
}

func (f *fakeVoucherRepo) IncrementUsage(_ context.Context, voucherID uuid.UUID) error {
	for key, voucher := range f.vouchers {
		if voucher.ID != voucherID {
			continue
		}
		if voucher.UsageLimit != nil && voucher.UsedCount >= *voucher.UsageLimit {
			return gorm.ErrRecordNotFound
		}
		voucher.UsedCount++
		f.vouchers[key] = voucher
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeVoucherRepo) CreateRedemption(_ context.Context, redemption *models.VoucherRedemption) error {
	if redemption.ID == uuid.Nil {
		redemption.ID = uuid.New()
	}
	f.redemptions = append(f.redemptions, *redemption)
	return nil
}

func (f *fakeVoucherRepo) add(voucher models.Voucher) models.Voucher {
	if voucher.ID == uuid.Nil {
		voucher.ID = uuid.New()
	}
	f.vouchers[strings.ToLower(voucher.Code)] = voucher
	return voucher
}

func intPtr(v int) *int { return &v }

func newVoucherService(t *testing.T, repo *fakeVoucherRepo) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestValidatePercentVoucherFloorsDiscount(t *testing.T) {
	t.Parallel()

	repo := newFakeVoucherRepo()
	repo.add(models.Voucher{Code: "TENOFF", Type: enums.VoucherTypePlatform, PercentOff: intPtr(10)})
	svc := newVoucherService(t, repo)

	validated, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "TENOFF",
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		SubtotalCents: 300000,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.DiscountCents != 30000 {
		t.Fatalf("expected discount 30000, got %d", validated.DiscountCents)
	}

	// 10% of 12345 = 1234.5 -> floors to 1234
	validated, err = svc.Validate(context.Background(), ValidateInput{
		Code:          "TENOFF",
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		SubtotalCents: 12345,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.DiscountCents != 1234 {
		t.Fatalf("expected floored discount 1234, got %d", validated.DiscountCents)
	}
}

func TestValidateAmountVoucherCapsAtSubtotal(t *testing.T) {
	t.Parallel()

	repo := newFakeVoucherRepo()
	repo.add(models.Voucher{Code: "FIVER", Type: enums.VoucherTypePlatform, AmountOffCents: intPtr(500)})
	svc := newVoucherService(t, repo)

	validated, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "FIVER",
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		SubtotalCents: 300,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.DiscountCents != 300 {
		t.Fatalf("expected capped discount 300, got %d", validated.DiscountCents)
	}
}

func TestValidateStoreVoucherScopeMismatch(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	repo := newFakeVoucherRepo()
	repo.add(models.Voucher{Code: "LOCAL", Type: enums.VoucherTypeStore, StoreID: &storeID, PercentOff: intPtr(5)})
	svc := newVoucherService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "LOCAL",
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		SubtotalCents: 1000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected voucher invalid, got %v", err)
	}

	if _, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "LOCAL",
		UserID:        uuid.New(),
		StoreID:       storeID,
		SubtotalCents: 1000,
	}); err != nil {
		t.Fatalf("matching store must validate: %v", err)
	}
}

func TestValidateRejectsExpiredAndExhausted(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Hour)
	repo := newFakeVoucherRepo()
	repo.add(models.Voucher{Code: "OLD", Type: enums.VoucherTypePlatform, PercentOff: intPtr(5), ExpiresAt: &past})
	repo.add(models.Voucher{Code: "USED", Type: enums.VoucherTypePlatform, PercentOff: intPtr(5), UsageLimit: intPtr(1), UsedCount: 1})
	svc := newVoucherService(t, repo)

	for _, code := range []string{"OLD", "USED"} {
		_, err := svc.Validate(context.Background(), ValidateInput{
			Code:          code,
			UserID:        uuid.New(),
			StoreID:       uuid.New(),
			SubtotalCents: 1000,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
			t.Fatalf("expected %s rejected, got %v", code, err)
		}
	}
}

func TestValidateRejectsBelowMinSubtotal(t *testing.T) {
	t.Parallel()

	repo := newFakeVoucherRepo()
	repo.add(models.Voucher{Code: "BIG", Type: enums.VoucherTypePlatform, PercentOff: intPtr(10), MinSubtotalCents: 5000})
	svc := newVoucherService(t, repo)

	_, err := svc.Validate(context.Background(), ValidateInput{
		Code:          "BIG",
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		SubtotalCents: 4999,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected voucher invalid, got %v", err)
	}
}

func TestApplyConsumesUsageAndRecordsRedemption(t *testing.T) {
	t.Parallel()

	repo := newFakeVoucherRepo()
	voucher := repo.add(models.Voucher{Code: "ONCE", Type: enums.VoucherTypePlatform, PercentOff: intPtr(5), UsageLimit: intPtr(1)})
	svc := newVoucherService(t, repo)

	userID, orderID := uuid.New(), uuid.New()
	if err := svc.ApplyTx(context.Background(), nil, voucher.ID, userID, orderID); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(repo.redemptions) != 1 {
		t.Fatalf("expected redemption recorded")
	}

	err := svc.ApplyTx(context.Background(), nil, voucher.ID, uuid.New(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid) {
		t.Fatalf("expected exhausted voucher rejection, got %v", err)
	}
}
