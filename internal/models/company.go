package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanySettings holds the issuer details printed on invoices.
type CompanySettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	Name       string `gorm:"size:255;not null" json:"name"`
	Email      string `gorm:"size:255" json:"email,omitempty"`
	Phone      string `gorm:"size:50" json:"phone,omitempty"`
	Address    string `gorm:"size:500" json:"address,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:100" json:"country,omitempty"`
	TaxID      string `gorm:"size:50" json:"tax_id,omitempty"`

	// Defaults applied to new invoices.
	DefaultTaxRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"default_tax_rate"`
	Currency       string          `gorm:"size:3;not null;default:'EUR'" json:"currency"`
	PaymentTerms   int             `gorm:"not null;default:30" json:"payment_terms_days"`
}

// GetUserID implements the Ownable interface.
func (c *CompanySettings) GetUserID() uint {
	return c.UserID
}

// FullAddress returns the formatted address block.
func (c *CompanySettings) FullAddress() string {
	return formatAddress(c.Address, c.PostalCode, c.City, c.Country)
}
