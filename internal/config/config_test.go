package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_DSN", "TOTAL_MISMATCH_POLICY", "TOTAL_TOLERANCE", "KAFKA_BROKERS", "JWT_TTL", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, MismatchReject, cfg.App.TotalMismatchPolicy)
	assert.Nil(t, cfg.App.TotalTolerance)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOTAL_MISMATCH_POLICY", "LOG")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("JWT_TTL", "90")
	t.Setenv("OUTBOX_INTERVAL", "500ms")
	t.Setenv("MIGRATIONS", "yes")
	cfg := Load()
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, MismatchLog, cfg.App.TotalMismatchPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Auth.TokenTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.Interval)
	assert.True(t, cfg.App.Migrations)
}

func TestUnknownMismatchPolicyFallsBackToReject(t *testing.T) {
	t.Setenv("TOTAL_MISMATCH_POLICY", "whatever")
	assert.Equal(t, MismatchReject, Load().App.TotalMismatchPolicy)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "inv", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=inv sslmode=disable", d.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/inv?sslmode=disable", d.URL())

	d.RawDSN = "postgres://x:y@h/z"
	assert.Equal(t, "postgres://x:y@h/z", d.DSN())
	assert.Equal(t, "postgres://x:y@h/z", d.URL())
}

func TestTotalToleranceZeroIsKept(t *testing.T) {
	t.Setenv("TOTAL_TOLERANCE", "0")
	cfg := Load()
	if assert.NotNil(t, cfg.App.TotalTolerance) {
		assert.Zero(t, *cfg.App.TotalTolerance)
	}

	t.Setenv("TOTAL_TOLERANCE", "-1")
	assert.Nil(t, Load().App.TotalTolerance)
}
