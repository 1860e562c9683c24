package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/db"
	"github.com/diewo77/invoicehub/internal/logging"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.Must(cfg.App.Dev)
	defer func() { _ = logger.Sync() }()

	if *migrateOnlyFlag || *seedOnlyFlag {
		conn, err := db.Open(cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if *migrateOnlyFlag {
			if err := db.Migrate(conn, cfg.Database, cfg.App.Migrations, logger); err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}
			logger.Info("migrations completed")
			return
		}
		if err := db.Seed(conn); err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
		logger.Info("seeding completed")
		return
	}

	conn, err := db.ConnectAndMigrate(cfg, logger)
	if err != nil {
		logger.Fatal("database setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, conn, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := app.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	<-relayDone
	logger.Info("server stopped gracefully")
}
