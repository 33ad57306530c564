package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/collectcart/groupbuy-backend/api/routes"
	"github.com/collectcart/groupbuy-backend/internal/checkout"
	"github.com/collectcart/groupbuy-backend/internal/groups"
	"github.com/collectcart/groupbuy-backend/internal/items"
	"github.com/collectcart/groupbuy-backend/internal/payments"
	"github.com/collectcart/groupbuy-backend/internal/pricing"
	"github.com/collectcart/groupbuy-backend/internal/vouchers"
	"github.com/collectcart/groupbuy-backend/pkg/config"
	"github.com/collectcart/groupbuy-backend/pkg/db"
	"github.com/collectcart/groupbuy-backend/pkg/grouplock"
	"github.com/collectcart/groupbuy-backend/pkg/logger"
	"github.com/collectcart/groupbuy-backend/pkg/migrate"
	"github.com/collectcart/groupbuy-backend/pkg/outbox"
	"github.com/collectcart/groupbuy-backend/pkg/redis"
	"github.com/collectcart/groupbuy-backend/pkg/square"
	"github.com/collectcart/groupbuy-backend/pkg/vouchershare"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	locks := grouplock.New()
	events := outbox.NewService(outbox.NewRepository(gormDB), logg)

	catalogRepo := pricing.NewRepository(gormDB)
	oracle, err := pricing.NewOracle(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing oracle", err)
		os.Exit(1)
	}

	itemService, err := items.NewService(items.NewRepository(gormDB), dbClient, locks, oracle, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create item service", err)
		os.Exit(1)
	}

	groupService, err := groups.NewService(groups.NewRepository(gormDB), dbClient, locks, events, itemService, cfg.Groups, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}

	voucherService, err := vouchers.NewService(vouchers.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}

	codSettler, err := payments.NewCODSettler(cfg.Groups, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cod settler", err)
		os.Exit(1)
	}
	onlineSettler, err := payments.NewOnlineSettler(squareClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create online settler", err)
		os.Exit(1)
	}
	wireSettler, err := payments.NewWireSettler(cfg.Payments)
	if err != nil {
		logg.Error(context.Background(), "failed to create wire settler", err)
		os.Exit(1)
	}
	settler, err := payments.NewService(codSettler, onlineSettler, wireSettler)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	shareStore, err := vouchershare.NewStore(redisClient, cfg.Groups.VoucherShareTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher share store", err)
		os.Exit(1)
	}

	stockKeeper, err := checkout.NewStockKeeper(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock keeper", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		checkout.NewRepository(gormDB),
		dbClient,
		locks,
		stockKeeper,
		settler,
		voucherService,
		shareStore,
		groupService,
		events,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, groupService, itemService, checkoutService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
