package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Client is a customer billed by the user.
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint `gorm:"index;not null" json:"user_id"`

	Name       string `gorm:"size:255;not null" json:"name"`
	Email      string `gorm:"size:255" json:"email,omitempty"`
	Phone      string `gorm:"size:50" json:"phone,omitempty"`
	Address    string `gorm:"size:500" json:"address,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:100" json:"country,omitempty"`
	TaxID      string `gorm:"size:50" json:"tax_id,omitempty"`
	Notes      string `gorm:"type:text" json:"notes,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (c *Client) GetUserID() uint {
	return c.UserID
}

// FullAddress returns the formatted address for display.
func (c *Client) FullAddress() string {
	return formatAddress(c.Address, c.PostalCode, c.City, c.Country)
}

func formatAddress(street, postal, city, country string) string {
	var lines []string
	if street != "" {
		lines = append(lines, street)
	}
	if cityLine := strings.TrimSpace(postal + " " + city); cityLine != "" {
		lines = append(lines, cityLine)
	}
	if country != "" {
		lines = append(lines, country)
	}
	return strings.Join(lines, "\n")
}
