package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"speechplay/internal/config"
	"speechplay/internal/database"
	"speechplay/internal/handlers"
	"speechplay/internal/lock"
	"speechplay/internal/metrics"
	"speechplay/internal/presets"
	"speechplay/internal/repository"
	"speechplay/internal/security"
	"speechplay/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logrus.WithField("type", cfg.DatabaseType).Info("Database connection established")

	if err := db.RunMigrations(ctx); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	logrus.Info("Migrations completed successfully")

	set, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		logrus.Fatalf("Failed to load difficulty presets: %v", err)
	}

	contacts, err := service.LoadContacts(cfg.ContactsPath)
	if err != nil {
		logrus.Fatalf("Failed to load contacts: %v", err)
	}
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, contacts)
	if err != nil {
		logrus.Fatalf("Failed to initialize email service: %v", err)
	}

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize game locks: %v", err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		logrus.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := security.NewTokenIssuer(secret, cfg.TokenTTL)
	if err != nil {
		logrus.Fatalf("Failed to initialize token issuer: %v", err)
	}

	m := metrics.New()
	gameService := service.NewGameService(
		repository.NewGameRepository(db),
		locker,
		set,
		m,
		emailService,
		service.GameServiceOptions{LockWait: cfg.LockTTL / 2},
	)

	// Background workers
	var bg workers
	timer := service.NewTurnTimer(gameService, cfg.TurnTickInterval)
	bg.Go(func() { timer.Run(ctx) })

	var limiter *security.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		bg.Go(func() { limiter.Run(ctx, cfg.RateLimitWindow) })
	}

	handler := handlers.NewHandler(gameService, tokens, limiter, m.Handler())

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
		os.Exit(1)
	}
	if err := bg.Wait(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Background workers did not stop in time")
	}
	logrus.Info("Server stopped")
}

// newLocker returns a Redis-backed locker when REDIS_ADDR is set and an
// in-process one otherwise
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		logrus.Info("REDIS_ADDR not set, game locks are in-process")
		return lock.NewLocalLocker(), nil
	}

	client, err := lock.NewRedisClient(ctx, lock.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("Game locks are held in Redis")
	return lock.NewRedisLocker(client, cfg.LockTTL), nil
}
