package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	checkoutsvc "github.com/collectcart/groupbuy-backend/internal/checkout"
	groupsvc "github.com/collectcart/groupbuy-backend/internal/groups"
	itemsvc "github.com/collectcart/groupbuy-backend/internal/items"
	pkgAuth "github.com/collectcart/groupbuy-backend/pkg/auth"
	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db/models"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubGroupService struct {
	group *models.GroupOrder
}

func (s stubGroupService) Create(ctx context.Context, input groupsvc.CreateGroupInput) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) Get(ctx context.Context, groupID uuid.UUID) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) GetByInviteToken(ctx context.Context, token string) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) Join(ctx context.Context, groupID, userID uuid.UUID, joinCode *string) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	return nil
}

func (s stubGroupService) AssignAddress(ctx context.Context, groupID, userID, addressID uuid.UUID) error {
	return nil
}

func (s stubGroupService) Lock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) Unlock(ctx context.Context, groupID, actorID uuid.UUID) (*models.GroupOrder, error) {
	return s.group, nil
}

func (s stubGroupService) MarkCompletedTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, at time.Time) error {
	return nil
}

func (s stubGroupService) SweepExpired(ctx context.Context, now time.Time) (groupsvc.SweepStats, error) {
	return groupsvc.SweepStats{}, nil
}

type stubItemService struct{}

func (stubItemService) AddItem(ctx context.Context, groupID, userID uuid.UUID, input itemsvc.AddItemInput) (*models.GroupLineItem, error) {
	return &models.GroupLineItem{ID: uuid.New(), GroupID: groupID, Quantity: input.Quantity}, nil
}

func (stubItemService) UpdateItem(ctx context.Context, groupID, userID, itemID uuid.UUID, input itemsvc.UpdateItemInput) (*models.GroupLineItem, error) {
	return &models.GroupLineItem{ID: itemID, GroupID: groupID, Quantity: input.Quantity}, nil
}

func (stubItemService) RemoveItem(ctx context.Context, groupID, userID, itemID uuid.UUID) error {
	return nil
}

func (stubItemService) RecomputeTx(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error) {
	return 0, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) HostCheckout(ctx context.Context, input checkoutsvc.HostCheckoutInput) (*checkoutsvc.Result, error) {
	return &checkoutsvc.Result{Order: &models.SettledOrder{ID: uuid.New(), GroupID: input.GroupID}}, nil
}

func (stubCheckoutService) MemberCheckout(ctx context.Context, input checkoutsvc.MemberCheckoutInput) (*checkoutsvc.Result, error) {
	return &checkoutsvc.Result{Order: &models.SettledOrder{ID: uuid.New(), GroupID: input.GroupID}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		stubGroupService{group: &models.GroupOrder{ID: uuid.New(), Name: "weekend run"}},
		stubItemService{},
		stubCheckoutService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGroupRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestGetGroupWithToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "weekend run") {
		t.Fatalf("expected group payload, got %s", resp.Body.String())
	}
}

func TestHostCheckoutRejectsMalformedBody(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	body := strings.NewReader(`{"method":"card"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/"+uuid.NewString()+"/checkout/host", body)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing address got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestInviteTokenRouteResolvesGroup(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/invite/sometoken", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
