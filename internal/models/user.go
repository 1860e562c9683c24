package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an authenticated account owner.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"` // bcrypt hash, never exposed
	FirstName string         `gorm:"size:100" json:"first_name,omitempty"`
	LastName  string         `gorm:"size:100" json:"last_name,omitempty"`
	Phone     string         `gorm:"size:50" json:"phone,omitempty"`

	// OnboardingStep is the next step the user has to complete.
	OnboardingStep string `gorm:"size:30;not null;default:'profile'" json:"onboarding_step"`
	// OnboardingSkipped lists skipped steps, comma separated.
	OnboardingSkipped string `gorm:"size:100" json:"onboarding_skipped,omitempty"`
}

// DisplayName prefers the full name and falls back to the email.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}
