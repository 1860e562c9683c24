package db

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

// defaultFlags are created once; later edits in the table are kept.
var defaultFlags = []models.FeatureFlag{
	{Key: "analytics_dashboard", Description: "Revenue and expense summary", Enabled: true, RolloutPercent: 100},
	{Key: "pdf_export", Description: "Invoice PDF download", Enabled: true, RolloutPercent: 100},
	{Key: "csv_export", Description: "Invoice and expense CSV export", Enabled: true, RolloutPercent: 100},
	{Key: "mobile_payments", Description: "Record payments from the mobile app", Enabled: true, RolloutPercent: 50},
	{Key: "expense_receipts", Description: "Attach receipts to expenses", Enabled: false, RolloutPercent: 0},
}

// Seed inserts reference data. Running it twice is a no-op.
func Seed(conn *gorm.DB) error {
	for _, f := range defaultFlags {
		var existing models.FeatureFlag
		err := conn.Where("key = ?", f.Key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		flag := f
		if err := conn.Create(&flag).Error; err != nil {
			return fmt.Errorf("seed flag %s: %w", f.Key, err)
		}
	}
	return nil
}

// SeedDemo creates a demo account with one client, unless the email already exists.
func SeedDemo(conn *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := conn.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	err = conn.Transaction(func(tx *gorm.DB) error {
		user = models.User{Email: email, Password: string(hash), FirstName: "Demo", OnboardingStep: "done"}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		company := models.CompanySettings{UserID: user.ID, Name: "Demo Studio", Currency: "EUR", PaymentTerms: 30}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		client := models.Client{UserID: user.ID, Name: "Acme Corp", Email: "billing@acme.test"}
		return tx.Create(&client).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
