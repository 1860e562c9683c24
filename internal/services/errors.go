package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/policy"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotEditable      = errors.New("invoice is no longer editable")
	ErrConcurrentUpdate = errors.New("invoice was modified concurrently")
	ErrOnboardingOrder  = errors.New("onboarding step out of order")
	ErrInUse            = errors.New("record is referenced by invoices")
)

// TotalMismatchError is returned when the client total disagrees with the
// calculated one and the mismatch policy is reject.
type TotalMismatchError struct {
	ClientTotal     string
	CalculatedTotal string
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("total mismatch: client %s, calculated %s", e.ClientTotal, e.CalculatedTotal)
}

// notFound folds missing rows and foreign resources into ErrNotFound so
// callers cannot probe for ids owned by someone else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, policy.ErrUnauthorized) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
