package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking-engine/internal/cache"
	"github.com/iliyamo/hotel-booking-engine/internal/config"
	"github.com/iliyamo/hotel-booking-engine/internal/database"
	"github.com/iliyamo/hotel-booking-engine/internal/handler"
	"github.com/iliyamo/hotel-booking-engine/internal/logger"
	"github.com/iliyamo/hotel-booking-engine/internal/metrics"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/observability"
	"github.com/iliyamo/hotel-booking-engine/internal/queue"
	"github.com/iliyamo/hotel-booking-engine/internal/repository"
	"github.com/iliyamo/hotel-booking-engine/internal/router"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/store"
	"github.com/iliyamo/hotel-booking-engine/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, cfgErr := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	if cfgErr != nil {
		log.Fatal("invalid configuration", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// accounts is what the auth endpoints need from the staff account store.
type accounts interface {
	handler.UserStore
	CountByRole(ctx context.Context, role string) (int, error)
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	bcfg := config.LoadBookingConfig()

	shutdownTracing, err := observability.SetupTracing(ctx, config.LoadTracingConfig())
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	var (
		st     store.Store
		users  accounts
		tokens handler.TokenStore
		ping   func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := store.NewMemory()
		mem.LockWait = bcfg.LockWait
		seedMemory(mem)
		acc := store.NewAccounts()
		st, users, tokens = mem, acc, acc
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := database.Open(database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated")
		}
		st = repository.NewStore(db)
		users, tokens = repository.NewUserRepo(db), repository.NewTokenRepo(db)
		ping = db.PingContext
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	inv := service.NewInventoryService(st, log.Named("inventory"), m)
	inv.DaysAhead = bcfg.DaysAhead
	bookings := service.NewBookingService(st, inv, log.Named("booking"), m)

	if err := bootstrapAdmin(ctx, cfg, users, log); err != nil {
		return err
	}
	if bcfg.GenerateOnStartup {
		created, err := inv.GenerateAllInventory(ctx, bcfg.DaysAhead)
		if err != nil {
			return fmt.Errorf("generate inventory: %w", err)
		}
		log.Info("inventory horizon ensured", zap.Int("days", bcfg.DaysAhead), zap.Any("created", created))
	}

	cacheCfg := config.LoadCacheConfig()
	var rdb *redis.Client
	if cacheCfg.Enabled {
		rdb, err = config.NewRedisClient(ctx, config.LoadRedisConfig())
		if err != nil {
			log.Warn("redis unavailable; caching and rate limiting disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	qcfg := config.LoadQueueConfig()
	var events queue.Publisher = queue.NopPublisher{}
	if qcfg.Enabled {
		events = queue.NewAMQPPublisher(qcfg, log.Named("queue"))
		consumer := queue.NewAuditConsumer(qcfg, log.Named("audit"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	hooks := handler.Hooks{
		Cache:  cache.NewInvalidator(rdb, cacheCfg.Prefix, log.Named("cache")),
		Events: events,
		Log:    log,
	}
	e := router.New(router.Deps{
		JWTSecret:      cfg.JWTSecret,
		BookingTimeout: bcfg.TxTimeout,
		Cache:          cacheCfg,
		RateLimit:      config.LoadRateLimitConfig(),
		Redis:          rdb,
		Gatherer:       reg,
		Log:            log.Named("http"),
		Health:         &handler.HealthHandler{Driver: cfg.StoreDriver, Ping: ping},
		Auth:           handler.NewAuthHandler(cfg, users, tokens, log.Named("auth")),
		Bookings:       handler.NewBookingHandler(bookings, hooks),
		Inventory:      handler.NewInventoryHandler(inv, st, hooks),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// bootstrapAdmin creates the configured administrator when no ADMIN
// account exists yet.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users accounts, log *zap.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	n, err := users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	id, err := users.Create(ctx, cfg.AdminEmail, hash, model.RoleAdmin)
	if errors.Is(err, store.ErrEmailExists) {
		log.Warn("bootstrap administrator email belongs to a non-admin account", zap.String("email", cfg.AdminEmail))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Info("bootstrap administrator created", zap.Uint64("user_id", id))
	return nil
}

// seedMemory loads a small catalogue so the memory driver is usable
// without back-office tooling.
func seedMemory(m *store.Memory) {
	for _, rt := range []model.RoomType{
		{Name: "Standard Double", TotalRooms: 20, BasePrice: decimal.RequireFromString("120.00")},
		{Name: "Deluxe King", TotalRooms: 10, BasePrice: decimal.RequireFromString("180.00")},
		{Name: "Family Suite", TotalRooms: 4, BasePrice: decimal.RequireFromString("260.00")},
	} {
		m.PutRoomType(rt)
	}
}
