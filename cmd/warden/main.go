package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/identity"
	"github.com/warden-auth/warden/internal/permission"
	"github.com/warden-auth/warden/internal/platform/cache"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/policy"
	"github.com/warden-auth/warden/internal/principal"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/token"
	"github.com/warden-auth/warden/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec, err := token.NewCodecFromPEM([]byte(cfg.JWTPrivateKey))
	if err != nil {
		logger.Error("parse signing key", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)

	principalRepo := principal.NewRepository(dbpool)
	principalService := principal.NewService(principalRepo)

	policyRepo := policy.NewRepository(dbpool)
	policyService := policy.NewService(policyRepo)

	permissionRepo := permission.NewRepository(dbpool)
	permissionService := permission.NewService(permissionRepo, principalService)

	tokenService := token.NewService(token.ServiceConfig{
		Codec:       codec,
		Store:       token.NewRevocationStore(redisClient),
		Books:       token.NewRepository(dbpool),
		Principals:  principalService,
		Permissions: permissionService,
		Audit:       auditLogger,
		TTL:         cfg.TokenTTL,
	})

	identityService := identity.NewService(principalService)

	requireAuth := app.RequireAuth(tokenService, logger)
	guard := shared.Guard{Logger: logger}

	tokenHandler := token.NewHandler(logger, tokenService, requireAuth)
	identityHandler := identity.NewHandler(logger, identityService)
	principalHandler := principal.NewHandler(logger, principalService, requireAuth, guard)
	policyHandler := policy.NewHandler(logger, policyService, requireAuth, guard)
	permissionHandler := permission.NewHandler(logger, permissionService, requireAuth, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		TokenHandler:      tokenHandler,
		IdentityHandler:   identityHandler,
		PrincipalHandler:  principalHandler,
		PolicyHandler:     policyHandler,
		PermissionHandler: permissionHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
