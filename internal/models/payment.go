package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment methods accepted by the ledger.
const (
	PaymentBankTransfer = "bank_transfer"
	PaymentCard         = "card"
	PaymentCash         = "cash"
	PaymentCheck        = "check"
	PaymentPayPal       = "paypal"
	PaymentOther        = "other"
)

// PaymentMethods lists the accepted payment methods.
var PaymentMethods = []string{PaymentBankTransfer, PaymentCard, PaymentCash, PaymentCheck, PaymentPayPal, PaymentOther}

// Payment is money received against an invoice. Payments are created and
// deleted, never updated.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PublicID  string    `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`
	UserID    uint `gorm:"index;not null" json:"user_id"`

	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Method        string          `gorm:"size:30;not null" json:"payment_method"`
	TransactionID *string         `gorm:"size:100" json:"transaction_id,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
}

// BeforeCreate assigns the public id.
func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.PublicID == "" {
		p.PublicID = uuid.NewString()
	}
	return nil
}

// GetUserID implements the Ownable interface.
func (p *Payment) GetUserID() uint {
	return p.UserID
}
