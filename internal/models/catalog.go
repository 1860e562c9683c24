package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is a reusable billable item from the user's catalog.
type Service struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      uint            `gorm:"index;not null" json:"user_id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Unit        string          `gorm:"size:30;default:'unit'" json:"unit"`
	Active      bool            `gorm:"not null" json:"active"`
}

// GetUserID implements the Ownable interface.
func (s *Service) GetUserID() uint { return s.UserID }

// Expense categories.
var ExpenseCategories = []string{"office", "travel", "software", "hardware", "marketing", "taxes", "other"}

// Expense is money spent by the business.
type Expense struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      uint            `gorm:"index;not null" json:"user_id"`
	Category    string          `gorm:"size:30;not null;index" json:"category"`
	Description string          `gorm:"size:500" json:"description,omitempty"`
	Vendor      string          `gorm:"size:255" json:"vendor,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	ExpenseDate time.Time       `gorm:"not null;index" json:"expense_date"`
	ReceiptURL  string          `gorm:"size:500" json:"receipt_url,omitempty"`
}

// GetUserID implements the Ownable interface.
func (e *Expense) GetUserID() uint { return e.UserID }

// BankAccount is where clients are asked to pay.
type BankAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        uint   `gorm:"index;not null" json:"user_id"`
	BankName      string `gorm:"size:255;not null" json:"bank_name"`
	AccountHolder string `gorm:"size:255;not null" json:"account_holder"`
	IBAN          string `gorm:"size:34;not null" json:"iban"`
	BIC           string `gorm:"size:11" json:"bic,omitempty"`
	IsDefault     bool   `gorm:"not null;default:false" json:"is_default"`
}

// GetUserID implements the Ownable interface.
func (b *BankAccount) GetUserID() uint { return b.UserID }

// MaskedIBAN keeps the country code and the last four characters.
func (b *BankAccount) MaskedIBAN() string {
	if len(b.IBAN) <= 6 {
		return b.IBAN
	}
	masked := []byte(b.IBAN)
	for i := 2; i < len(masked)-4; i++ {
		if masked[i] != ' ' {
			masked[i] = '*'
		}
	}
	return string(masked)
}
