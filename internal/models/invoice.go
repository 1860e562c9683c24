package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/billing"
)

// Invoice represents a billing invoice.
// Implements the Ownable interface for ownership-based authorization.
type Invoice struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// UserID is the owner of this invoice (for multi-tenant isolation)
	UserID uint   `gorm:"not null;uniqueIndex:idx_invoices_user_number,priority:1" json:"user_id"`
	Number string `gorm:"size:50;not null;uniqueIndex:idx_invoices_user_number,priority:2" json:"number"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	PaidDate  *time.Time `json:"paid_date,omitempty"`

	Status billing.Status `gorm:"size:20;not null;default:'draft';index" json:"status"`

	TaxRate    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Tax        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	Currency   string          `gorm:"size:3;not null;default:'EUR'" json:"currency"`

	Notes        string `gorm:"type:text" json:"notes,omitempty"`
	PaymentTerms string `gorm:"size:500" json:"payment_terms,omitempty"`

	// Version is bumped on every write that touches money or status.
	Version int `gorm:"not null;default:1" json:"version"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (i *Invoice) GetUserID() uint {
	return i.UserID
}

// State extracts what the ledger needs.
func (i *Invoice) State() billing.InvoiceState {
	st := billing.InvoiceState{Status: i.Status, Total: i.Total}
	if i.DueDate != nil {
		st.DueDate = *i.DueDate
	}
	return st
}

// Remaining is the unpaid balance.
func (i *Invoice) Remaining() decimal.Decimal {
	return billing.Remaining(i.Total, i.AmountPaid)
}

// InvoiceItem represents a line item on an invoice.
type InvoiceItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`
	// ServiceID is set when the line was picked from the catalog.
	ServiceID *uint `gorm:"index" json:"service_id,omitempty"`

	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`

	// Position for ordering
	Position int `gorm:"default:0" json:"position"`
}

const numberPrefix = "INV-"

// GenerateInvoiceNumber returns the next number for the user and year.
// Format: INV-YYYY-NNNN (e.g., INV-2026-0001). Soft-deleted invoices keep
// their numbers so a number is never handed out twice.
func GenerateInvoiceNumber(db *gorm.DB, userID uint, year int) (string, error) {
	prefix := fmt.Sprintf("%s%d-", numberPrefix, year)
	var last []string
	err := db.Unscoped().Model(&Invoice{}).
		Where("user_id = ? AND number LIKE ?", userID, prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &last).Error
	if err != nil {
		return "", err
	}
	next := 1
	if len(last) == 1 {
		if n, convErr := strconv.Atoi(strings.TrimPrefix(last[0], prefix)); convErr == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}
