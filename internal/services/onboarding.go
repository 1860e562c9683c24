package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/validation"
)

// Onboarding steps in the order they must be completed.
const (
	StepProfile     = "profile"
	StepCompany     = "company"
	StepBankAccount = "bank_account"
	StepFirstClient = "first_client"
	StepDone        = "done"
)

var onboardingSteps = []string{StepProfile, StepCompany, StepBankAccount, StepFirstClient, StepDone}

var skippableSteps = []string{StepBankAccount, StepFirstClient}

// OnboardingState is returned by every onboarding call.
type OnboardingState struct {
	Step      string   `json:"step"`
	Steps     []string `json:"steps"`
	Skipped   []string `json:"skipped"`
	Completed bool     `json:"completed"`
}

// ProfileInput completes the profile step.
type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// CompanyInput completes the company step.
type CompanyInput struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	PostalCode     string          `json:"postal_code"`
	Country        string          `json:"country"`
	TaxID          string          `json:"tax_id"`
	DefaultTaxRate billing.Numeric `json:"default_tax_rate"`
	Currency       string          `json:"currency"`
	PaymentTerms   int             `json:"payment_terms_days"`
}

// OnboardingService walks a new user through profile, company, bank
// account and first client. The last two may be skipped.
type OnboardingService struct {
	db      *gorm.DB
	clients *ClientService
	banks   *BankAccountService
}

func NewOnboardingService(db *gorm.DB, clients *ClientService, banks *BankAccountService) *OnboardingService {
	return &OnboardingService{db: db, clients: clients, banks: banks}
}

func stateOf(u *models.User) OnboardingState {
	skipped := []string{}
	if u.OnboardingSkipped != "" {
		skipped = strings.Split(u.OnboardingSkipped, ",")
	}
	step := u.OnboardingStep
	if step == "" {
		step = StepProfile
	}
	return OnboardingState{Step: step, Steps: onboardingSteps, Skipped: skipped, Completed: step == StepDone}
}

func nextStep(step string) string {
	i := slices.Index(onboardingSteps, step)
	if i < 0 || i == len(onboardingSteps)-1 {
		return StepDone
	}
	return onboardingSteps[i+1]
}

func (s *OnboardingService) State(ctx context.Context, userID uint) (OnboardingState, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return OnboardingState{}, notFound(err, "user")
	}
	return stateOf(&u), nil
}

// advance locks the user, checks that step is the current one, runs fn and
// moves to the next step.
func (s *OnboardingService) advance(ctx context.Context, userID uint, step string, skip bool, fn func(tx *gorm.DB) error) (OnboardingState, error) {
	if !slices.Contains(onboardingSteps, step) || step == StepDone {
		return OnboardingState{}, validation.Violations{"step": "unknown"}
	}
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
			return notFound(err, "user")
		}
		current := stateOf(&u).Step
		if current != step {
			return fmt.Errorf("%w: expected %s, got %s", ErrOnboardingOrder, current, step)
		}
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}
		updates := map[string]any{"onboarding_step": nextStep(step)}
		if skip {
			skipped := stateOf(&u).Skipped
			updates["onboarding_skipped"] = strings.Join(append(skipped, step), ",")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&u, u.ID).Error
	})
	if err != nil {
		return OnboardingState{}, err
	}
	return stateOf(&u), nil
}

// Skip jumps over an optional step.
func (s *OnboardingService) Skip(ctx context.Context, userID uint, step string) (OnboardingState, error) {
	if !slices.Contains(skippableSteps, step) {
		return OnboardingState{}, validation.Violations{"step": "not_skippable"}
	}
	return s.advance(ctx, userID, step, true, nil)
}

func (s *OnboardingService) CompleteProfile(ctx context.Context, userID uint, in ProfileInput) (OnboardingState, error) {
	v := make(validation.Violations)
	validation.Required("first_name", in.FirstName, v)
	validation.MaxLen("first_name", in.FirstName, 100, v)
	validation.MaxLen("last_name", in.LastName, 100, v)
	if err := v.Err(); err != nil {
		return OnboardingState{}, err
	}
	return s.advance(ctx, userID, StepProfile, false, func(tx *gorm.DB) error {
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"first_name": strings.TrimSpace(in.FirstName),
			"last_name":  strings.TrimSpace(in.LastName),
			"phone":      in.Phone,
		}).Error
	})
}

func (s *OnboardingService) CompleteCompany(ctx context.Context, userID uint, in CompanyInput) (OnboardingState, error) {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	if in.Email != "" {
		validation.Email("email", in.Email, v)
	}
	rate := decimal.Zero
	if !in.DefaultTaxRate.IsZero() {
		f, ok := in.DefaultTaxRate.Float()
		if !ok {
			v["default_tax_rate"] = "invalid"
		} else {
			validation.RangeFloat("default_tax_rate", f, 0, 100, v)
			rate = decimal.NewFromFloat(f)
		}
	}
	if in.PaymentTerms < 0 || in.PaymentTerms > 365 {
		v["payment_terms_days"] = "out_of_range"
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "EUR"
	}
	if len(currency) != 3 {
		v["currency"] = "invalid"
	}
	if err := v.Err(); err != nil {
		return OnboardingState{}, err
	}
	terms := in.PaymentTerms
	if terms == 0 {
		terms = 30
	}
	return s.advance(ctx, userID, StepCompany, false, func(tx *gorm.DB) error {
		cs := models.CompanySettings{
			UserID:         userID,
			Name:           strings.TrimSpace(in.Name),
			Email:          in.Email,
			Phone:          in.Phone,
			Address:        in.Address,
			City:           in.City,
			PostalCode:     in.PostalCode,
			Country:        in.Country,
			TaxID:          in.TaxID,
			DefaultTaxRate: rate,
			Currency:       currency,
			PaymentTerms:   terms,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(&cs).Error
	})
}

func (s *OnboardingService) CompleteBankAccount(ctx context.Context, userID uint, in BankAccountInput) (OnboardingState, error) {
	return s.advance(ctx, userID, StepBankAccount, false, func(tx *gorm.DB) error {
		_, err := s.banks.create(tx, userID, in)
		return err
	})
}

func (s *OnboardingService) CompleteFirstClient(ctx context.Context, userID uint, in ClientInput) (OnboardingState, error) {
	return s.advance(ctx, userID, StepFirstClient, false, func(tx *gorm.DB) error {
		_, err := s.clients.create(tx, userID, in)
		return err
	})
}
