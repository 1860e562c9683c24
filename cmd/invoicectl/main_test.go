package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/db"
	"github.com/diewo77/invoicehub/internal/models"
)

func testEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}
	return &env{cfg: cfg, logger: zap.NewNop(), conn: conn}
}

func run(t *testing.T, e *env, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp(e)
	app.Writer = &out
	if err := app.Run(append([]string{"invoicectl"}, args...)); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestMigrateAndSeed(t *testing.T) {
	e := testEnv(t)
	run(t, e, "migrate")
	out := run(t, e, "seed", "--demo")
	if !strings.Contains(out, db.DemoEmail) {
		t.Fatalf("expected demo user in output, got %q", out)
	}
	run(t, e, "seed", "--demo")

	var users, flags int64
	e.conn.Model(&models.User{}).Count(&users)
	e.conn.Model(&models.FeatureFlag{}).Count(&flags)
	if users != 1 || flags == 0 {
		t.Fatalf("seed not idempotent: users=%d flags=%d", users, flags)
	}

	run(t, e, "flags", "set", "--enabled=false", "pdf_export")
	var f models.FeatureFlag
	e.conn.Where("key = ?", "pdf_export").First(&f)
	if f.Enabled {
		t.Fatalf("flag should be disabled")
	}
}

func TestReconcileRepairsDriftedInvoice(t *testing.T) {
	e := testEnv(t)
	run(t, e, "migrate")
	u, err := db.SeedDemo(e.conn, "rec@test", "password1")
	if err != nil {
		t.Fatalf("seed demo: %v", err)
	}
	var client models.Client
	e.conn.Where("user_id = ?", u.ID).First(&client)

	due := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := models.Invoice{
		UserID: u.ID, ClientID: client.ID, Number: "INV-2026-0001",
		IssueDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DueDate: &due,
		Status: billing.StatusSent, Total: decimal.NewFromInt(100), AmountPaid: decimal.Zero, Currency: "EUR", Version: 1,
	}
	if err := e.conn.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	p := models.Payment{InvoiceID: inv.ID, UserID: u.ID, Amount: decimal.NewFromInt(40), PaymentDate: time.Now().UTC(), Method: models.PaymentCash}
	if err := e.conn.Create(&p).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}

	out := run(t, e, "reconcile", fmt.Sprint(inv.ID))
	if !strings.Contains(out, "sent -> partially_paid") {
		t.Fatalf("unexpected output %q", out)
	}
	var got models.Invoice
	e.conn.First(&got, inv.ID)
	if got.Status != billing.StatusPartiallyPaid || !got.AmountPaid.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("invoice not reconciled: status=%s paid=%s", got.Status, got.AmountPaid)
	}
}

func TestMarkOverdue(t *testing.T) {
	e := testEnv(t)
	run(t, e, "migrate")
	u, err := db.SeedDemo(e.conn, "late@test", "password1")
	if err != nil {
		t.Fatalf("seed demo: %v", err)
	}
	var client models.Client
	e.conn.Where("user_id = ?", u.ID).First(&client)
	due := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	inv := models.Invoice{
		UserID: u.ID, ClientID: client.ID, Number: "INV-2020-0001",
		IssueDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), DueDate: &due,
		Status: billing.StatusSent, Total: decimal.NewFromInt(50), AmountPaid: decimal.Zero, Currency: "EUR", Version: 1,
	}
	if err := e.conn.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	out := run(t, e, "mark-overdue")
	if !strings.Contains(out, "1 invoice(s) marked overdue") {
		t.Fatalf("unexpected output %q", out)
	}
	run(t, e, "outbox")
	var pending int64
	e.conn.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&pending)
	if pending != 0 {
		t.Fatalf("expected outbox drained, %d pending", pending)
	}
}
