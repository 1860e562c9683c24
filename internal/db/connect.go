package db

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/invoicehub/internal/config"
)

// Open connects to the configured database, retrying while postgres starts.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("db")
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	if cfg.Driver == "sqlite" {
		log.Info("opening sqlite database", zap.String("path", cfg.SQLitePath))
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
	}

	dsn := NormalizeDSN(cfg.DSN())
	if dsn == "" {
		return nil, errors.New("database DSN is empty, check DATABASE_DSN or DB_* variables")
	}
	log.Info("connecting to postgres", zap.String("dsn", MaskDSN(dsn)))
	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err == nil {
			break
		}
		log.Warn("retrying database connection", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return conn, nil
}

// Demo account created when DB_SEED is set.
const (
	DemoEmail    = "demo@invoicehub.test"
	DemoPassword = "demo-password"
)

// ConnectAndMigrate opens the database, applies the schema and inserts the
// reference data. The demo account is only seeded when DB_SEED is set.
func ConnectAndMigrate(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	conn, err := Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, cfg.Database, cfg.App.Migrations, log); err != nil {
		return nil, err
	}
	if err := Seed(conn); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if cfg.App.Seed {
		if _, err := SeedDemo(conn, DemoEmail, DemoPassword); err != nil {
			return nil, fmt.Errorf("seed demo: %w", err)
		}
	}
	return conn, nil
}
