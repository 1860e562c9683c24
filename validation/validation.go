// Package validation collects field-level input problems for API requests.
package validation

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Violations maps a field name to a machine-readable reason.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns v as an error, or nil when there is nothing to report.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v Violations) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func RequiredID(field string, id uint, v Violations) {
	if id == 0 {
		v[field] = "required"
	}
}

func MaxLen(field, value string, n int, v Violations) {
	if len(value) > n {
		v[field] = "too_long"
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
	}
}

func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// OneOf checks value against an allowed set; empty values are left to Required.
func OneOf(field, value string, allowed []string, v Violations) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	v[field] = "invalid_choice"
}

// Date parses YYYY-MM-DD. Empty input yields the zero time without a violation.
func Date(field, value string, v Violations) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		v[field] = "invalid_date"
		return time.Time{}
	}
	return t
}
