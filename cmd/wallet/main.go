package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"yieldwallet/internal/admin"
	"yieldwallet/internal/handler"
	"yieldwallet/internal/investment"
	"yieldwallet/internal/ledger"
	"yieldwallet/internal/middleware"
	"yieldwallet/internal/repository/memory"
	"yieldwallet/internal/repository/postgres"
	"yieldwallet/internal/scheduler"
	"yieldwallet/internal/store"
	"yieldwallet/internal/wallet"
	"yieldwallet/pkg/cache"
	"yieldwallet/pkg/config"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/validator"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.NewWithLevel("yieldwallet", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting wallet service", map[string]interface{}{
		"port":         cfg.Server.Port,
		"store_driver": cfg.Store.Driver,
	})

	st, closeStore := openStore(cfg, log)
	defer closeStore()

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()
	log.Info("Redis connected", nil)

	wallets := wallet.NewService(st, log)
	led := ledger.NewService(st, log)
	investments := investment.NewService(st, led, log).
		WithPackageCache(redisCache, cfg.Investment.PackageCacheTTL)
	adminSvc := admin.NewService(st, wallets, led, investments, log)

	val := validator.New()
	routes := handler.Routes{
		Wallets:     handler.NewWalletHandler(wallets, led, val, log),
		Investments: handler.NewInvestmentHandler(investments, val, log),
		Admin:       handler.NewAdminHandler(adminSvc, val, log),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"database": st,
			"redis":    redisCache,
		}, log),
		Auth:        middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer),
		Idempotency: middleware.NewIdempotencyMiddleware(redisCache.Client(), cfg.Idempotency.TTL, log),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
	}
	if cfg.RateLimit.Enabled {
		routes.RateLimiter = middleware.NewRateLimiter(redisCache, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
	}

	sched := scheduler.NewScheduler(investments, cfg.Investment.AccrualInterval, cfg.Investment.AccrualWorkers, log)
	sched.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(routes),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Wallet service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down wallet service...", nil)
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Wallet service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	log.Info("Wallet service stopped gracefully", nil)
}

func openStore(cfg *config.Config, log logger.Logger) (store.Store, func()) {
	if cfg.Store.Driver == "memory" {
		log.Warn("Using in-memory store; state is lost on restart", nil)
		return memory.NewStore(), func() {}
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)
	return postgres.NewStore(db), func() { _ = db.Close() }
}
