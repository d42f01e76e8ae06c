package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medisync/registry/internal/config"
	healthHandler "github.com/medisync/registry/internal/handler/health"
	registryHandler "github.com/medisync/registry/internal/handler/registry"
	"github.com/medisync/registry/internal/repository/sqlite"
	"github.com/medisync/registry/internal/router"
	"github.com/medisync/registry/internal/session"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging"
	"github.com/medisync/registry/pkg/messaging/memory"
	"github.com/medisync/registry/pkg/messaging/redisbus"
	"github.com/medisync/registry/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	m := metrics.New("registry")

	// Initialize the store and repository
	store := sqlite.NewStore(sqlite.Config{Path: cfg.Store.Path})
	defer store.Close()
	repo := sqlite.NewPatientRepository(store, m)

	// Initialize the broadcast bus
	var bus messaging.Bus
	switch cfg.Bus.Backend {
	case "redis":
		bus, err = redisbus.NewBus(redisbus.Config{
			URL:          cfg.Bus.RedisURL,
			PoolSize:     cfg.Bus.PoolSize,
			MinIdleConns: cfg.Bus.MinIdleConns,
		}, appLogger.Zerolog())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
	case "memory":
		bus = memory.NewBus()
	default:
		log.Fatal().Str("backend", cfg.Bus.Backend).Msg("unknown bus backend")
	}
	defer bus.Close()

	var limiter *rate.Limiter
	if cfg.Sync.FilterRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Sync.FilterRate), cfg.Sync.FilterBurst)
	}

	// Start this process's session
	sess, err := session.New(repo, bus, limiter, appLogger, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start session")
	}
	defer sess.Close()

	// Initialize handlers and router
	regH := registryHandler.NewHandler(sess, appLogger)
	healthH := healthHandler.NewHandler(store)

	r := router.NewRouter(regH, healthH)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("session started", "port", cfg.Server.Port, "bus", cfg.Bus.Backend)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down session...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("session exited properly")
}
