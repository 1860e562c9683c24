package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) (models.User, models.Client) {
	t.Helper()
	u := models.User{Email: email, Password: "x"}
	require.NoError(t, db.Create(&u).Error)
	c := models.Client{UserID: u.ID, Name: "Acme " + email}
	require.NoError(t, db.Create(&c).Error)
	return u, c
}

func newInvoiceService(db *gorm.DB, mode string) *InvoiceService {
	svc := NewInvoiceService(db, policy.NewDefaultGate(), nil, config.AppConfig{TotalMismatchPolicy: mode})
	svc.now = fixedNow
	return svc
}

func newPaymentService(db *gorm.DB) *PaymentService {
	svc := NewPaymentService(db, policy.NewDefaultGate(), nil)
	svc.now = fixedNow
	return svc
}

func item(desc, qty, price string) ItemInput {
	return ItemInput{LineItem: billing.LineItem{Description: desc, Quantity: billing.Numeric(qty), Price: billing.Numeric(price)}}
}

// sampleInput totals 125.00 + 12.50 tax = 137.50.
func sampleInput(clientID uint) InvoiceInput {
	return InvoiceInput{
		ClientID:  clientID,
		IssueDate: "2026-01-10",
		TaxRate:   "10",
		Items:     []ItemInput{item("Design", "2", "50"), item("Hosting", "1", "25")},
	}
}
