package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/auth"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/events"
	"github.com/diewo77/invoicehub/internal/server"
)

// App bundles the HTTP handler with the background relay and everything
// that must be closed on shutdown.
type App struct {
	Handler http.Handler
	Relay   *events.Relay
	closers []func() error
}

// NewApp wires auth, the event publisher and the router on top of an open database.
func NewApp(ctx context.Context, conn *gorm.DB, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{}

	auth.SetSecret(cfg.Auth.SessionSecret)
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	var revoked auth.RevocationStore = auth.NewMemoryRevocationStore()
	if cfg.Redis.URL != "" {
		client, err := auth.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		revoked = auth.NewRedisRevocationStore(client)
		logger.Info("token revocation backed by redis")
	}

	var publisher events.Publisher = events.NewLoggingPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, nil)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, kp.Close)
		publisher = kp
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	app.Relay = events.NewRelay(conn, publisher, logger, cfg.Outbox.Interval, cfg.Outbox.BatchSize)

	app.Handler = server.New(server.Deps{
		DB:            conn,
		Authenticator: auth.NewAuthenticator(tokens, revoked, logger),
		Logger:        logger,
		App:           cfg.App,
	})
	return app, nil
}

// Close releases external clients in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
