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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/database"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/mailer"
	"github.com/vrrprepo/rprepo/pkg/rprepo/messaging"
	"github.com/vrrprepo/rprepo/pkg/rprepo/scheduler"
	"github.com/vrrprepo/rprepo/pkg/rprepo/server"
	"github.com/vrrprepo/rprepo/pkg/rprepo/uploads"
)

// @title VR Roleplay Repo API
// @version 1.0
// @description A catalog of VR roleplay projects with schedules, owners and an update feed.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session JWT. Format: "Bearer {token}"; the session cookie is accepted too.

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log, cfg.Server.Production)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	zl.Info("database ready", zap.String("driver", cfg.Database.Driver))

	publisher, err := messaging.New(cfg.NATS, zl)
	if err != nil {
		zl.Warn("nats unavailable, activity events disabled", zap.Error(err))
		publisher = messaging.Nop{}
	}

	deps := server.Deps{
		DB:        db,
		Config:    cfg,
		Logger:    zl,
		Tokens:    auth.NewTokens(cfg.Auth),
		Providers: identityProviders(cfg.Auth, zl),
		Mailer:    mailer.New(cfg.Mail),
		Publisher: publisher,
	}

	if cfg.Uploads.Endpoint != "" {
		storage, err := uploads.NewMinioStorage(cfg.Uploads)
		if err != nil {
			zl.Fatal("failed to create object storage", zap.Error(err))
		}
		deps.Storage = storage
	}

	router, err := server.NewRouter(deps)
	if err != nil {
		zl.Fatal("failed to build router", zap.Error(err))
	}

	sched, err := scheduler.New(db, cfg.Scheduler, zl)
	if err != nil {
		zl.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		zl.Error("scheduler shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		zl.Error("nats close failed", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zl.Error("database close failed", zap.Error(err))
	}

	zl.Info("server exited gracefully")
}

// identityProviders builds the enabled login providers. A Google provider
// whose discovery fails is skipped so the server still starts.
func identityProviders(cfg config.AuthConfig, zl *zap.Logger) []auth.Provider {
	var providers []auth.Provider
	if cfg.Discord.Enabled() {
		providers = append(providers, auth.NewDiscord(cfg.Discord))
	}
	if cfg.Google.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		google, err := auth.NewGoogle(ctx, cfg.Google)
		if err != nil {
			zl.Error("google login disabled", zap.Error(err))
		} else {
			providers = append(providers, google)
		}
	}
	zl.Info("identity providers configured", zap.Int("count", len(providers)))
	return providers
}
