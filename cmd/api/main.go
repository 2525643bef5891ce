package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"session-auth/internal/config"
	"session-auth/internal/db"
	apihttp "session-auth/internal/http"
	"session-auth/internal/repository"
	"session-auth/internal/service"
)

const storeReadyAttempts = 5

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.EphemeralSecret {
		logger.Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("credential store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	hasher := service.NewBcryptHasher(cfg.BcryptCost, cfg.HashWorkers)
	tokens := service.NewJWTService(cfg.JWTSecret, cfg.TokenTTL, cfg.JWTIssuer)
	authSvc := service.NewAuthService(logger, users, hasher, tokens)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	service.RegisterMetrics(reg)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, apihttp.CookiePolicy{
		MaxAge: cfg.TokenTTL,
		Secure: cfg.CookieSecure,
	}, users)
	router := apihttp.NewRouter(logger, authHandler, apihttp.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Production:     cfg.IsProduction(),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// openStore construye el credential store elegido por STORE_BACKEND y devuelve su cierre.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.WaitReady(ctx, pool, storeReadyAttempts); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			logger.Info("migrations applied")
		}
		return repository.NewPgUserRepository(pool), pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		users := repository.NewRedisUserRepository(client)
		if err := db.WaitReady(ctx, users, storeReadyAttempts); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return users, func() { _ = client.Close() }, nil

	default:
		logger.Warn("using in-memory credential store; users are lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil
	}
}
