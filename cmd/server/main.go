package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabrielekerete60/bms/internal/audit"
	"github.com/gabrielekerete60/bms/internal/cache"
	"github.com/gabrielekerete60/bms/internal/config"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/httpapi"
	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/payment"
	"github.com/gabrielekerete60/bms/internal/service"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/store/memory"
	pgstore "github.com/gabrielekerete60/bms/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var st store.Store
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.TxMaxAttempts)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate: %v", err)
		}
		if cfg.SeedCatalog {
			loaded, err := store.LoadCatalogIfEmpty(ctx, pg)
			if err != nil {
				log.Fatalf("seed catalog: %v", err)
			}
			log.Infow("catalog seed", "loaded", loaded)
		}
		st = pg
		closers = append(closers, func() error { pg.Close(); return nil })
		log.Info("store: postgres")
	} else {
		st = memory.NewSeeded(memory.WithMaxAttempts(cfg.TxMaxAttempts))
		log.Info("store: in-memory")
	}

	var guard cache.ReferenceGuard = cache.NewMemoryReferenceGuard()
	if cfg.RedisAddr != "" {
		redisGuard := cache.NewRedisReferenceGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisGuard.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, using in-process reference guard", "error", err)
		} else {
			guard = redisGuard
			closers = append(closers, redisGuard.Close)
			log.Info("reference guard: redis")
		}
	} else {
		log.Info("reference guard: in-process")
	}

	recorder, err := audit.NewRecorder(st, cfg.AuditCompressThreshold, log)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}

	opts := []service.Option{service.WithLocation(loc), service.WithLogger(log)}
	if cfg.PaystackSecretKey != "" {
		opts = append(opts, service.WithPayments(payment.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackBaseURL, nil), guard))
		log.Info("payments: paystack")
	} else {
		log.Info("payments: disabled")
	}
	svc := service.New(st, recorder, opts...)

	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), store.NewUserDirectory(st))
	created, err := bootstrapAdmin(ctx, cfg, st, auth)
	if err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	if created {
		log.Infow("created bootstrap admin", "username", cfg.BootstrapAdminUsername, "staff_id", cfg.BootstrapAdminStaffID)
	} else if len(auth.ListUsers(ctx)) == 0 {
		log.Warn("no login accounts exist; set BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD")
	}
	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginRate:     cfg.LoginRateLimit,
		Logger:        log,
	})
	if err != nil {
		log.Fatalf("invalid LOGIN_RATE_LIMIT %q: %v", cfg.LoginRateLimit, err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("bakery back-office listening", "addr", cfg.Address(), "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warnw("close error", "error", err)
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapAdminUsername != "" && cfg.BootstrapAdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be set with BOOTSTRAP_ADMIN_USERNAME")
	}
	if cfg.PaystackSecretKey != "" && cfg.RedisAddr == "" {
		// The in-process guard only deduplicates within one replica.
		logger.Default().Warn("PAYSTACK_SECRET_KEY is set without REDIS_ADDR; payment references are only guarded per process")
	}
	return nil
}

// bootstrapAdmin gives a deployment without login accounts its first Manager.
// The staff record is created unless one with the configured id exists.
func bootstrapAdmin(ctx context.Context, cfg config.Config, st store.Store, auth *httpapi.AuthManager) (bool, error) {
	if cfg.BootstrapAdminUsername == "" || len(auth.ListUsers(ctx)) > 0 {
		return false, nil
	}
	err := store.EnsureStaff(ctx, st, domain.Staff{
		ID:       cfg.BootstrapAdminStaffID,
		Name:     cfg.BootstrapAdminName,
		Role:     domain.RoleManager,
		IsActive: true,
	})
	if err != nil {
		return false, err
	}
	return auth.BootstrapAdmin(ctx, domain.CreateUserRequest{
		Username: cfg.BootstrapAdminUsername,
		Password: cfg.BootstrapAdminPassword,
		StaffID:  cfg.BootstrapAdminStaffID,
		Role:     domain.RoleManager,
	})
}
