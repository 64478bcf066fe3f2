package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-tracker/internal/api/http"
	"github.com/spec-kit/ticket-tracker/internal/api/http/handlers"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/relay"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/store"
	"github.com/spec-kit/ticket-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer kv.Close()

	metrics := observability.NewMetrics()
	clk := clock.Real()
	st := store.New(kv, events.NewChangeFeed(), logger, store.Options{
		KeyPrefix: cfg.Storage.KeyPrefix,
		Metrics:   metrics,
	})

	if cfg.Storage.Seed {
		data, err := store.Fixtures(clk.Now().UTC(), func(p string) (string, error) {
			return auth.HashPassword(p, cfg.Auth.BcryptCost)
		})
		if err != nil {
			logger.Fatal("failed to build seed data", zap.Error(err))
		}
		st.Seed(ctx, data)
	}

	var changeRelay *relay.Relay
	if cfg.Relay.Enabled {
		rdb := persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		changeRelay = relay.New(st.Feed(), relay.NewRedisTransport(rdb.Client), cfg.Relay.Channel, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	emailService := service.NewEmailService(st, clk)
	notificationService := service.NewNotificationService(dispatcher, emailService, logger, cfg.Notification)
	workers := worker.NewRunner(notificationService, changeRelay, logger)
	if err := workers.Start(ctx); err != nil {
		logger.Fatal("failed to start background workers", zap.Error(err))
	}
	defer workers.Stop()

	authService := service.NewAuthService(cfg.Auth, st, clk, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      st,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
		Config:     cfg.Tickets,
	})
	userService := service.NewUserService(st, logger)
	changesHandler := handlers.NewChangesHandler(st, logger)

	app := httptransport.NewServer(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Storage.Driver, st, metrics),
			Auth:           handlers.NewAuthHandler(authService),
			Tickets:        handlers.NewTicketsHandler(ticketService, userService),
			Emails:         handlers.NewEmailsHandler(emailService, userService),
			Admin:          handlers.NewAdminHandler(userService),
			Changes:        changesHandler,
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st),
		},
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("storage", cfg.Storage.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	changesHandler.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
