package db

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// requiredTables must exist once the schema is applied.
var requiredTables = []string{"users", "clients", "invoices", "invoice_items", "payments", "outbox_events"}

// Migrate applies versioned SQL migrations when sqlMigrations is set and the
// driver is postgres; otherwise it falls back to AutoMigrate.
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if sqlMigrations && cfg.Driver != "sqlite" {
		log.Info("running sql migrations")
		if err := runSQLMigrations(ToURLDSN(NormalizeDSN(cfg.DSN()))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else if err := AutoMigrate(conn); err != nil {
		return err
	}
	for _, table := range requiredTables {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// AutoMigrate runs gorm AutoMigrate for every model.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func runSQLMigrations(dsnURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsnURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
