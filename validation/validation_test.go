package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	RequiredID("client_id", 0, v)
	Email("email", "not-an-email", v)
	Email("cc", "", v)
	PositiveDecimal("amount", decimal.Zero, v)
	NonNegativeDecimal("price", decimal.NewFromInt(-1), v)
	RangeFloat("tax_rate", 120, 0, 100, v)
	OneOf("method", "barter", []string{"cash", "card"}, v)
	MaxLen("notes", "abcdef", 3, v)
	Date("due_date", "2026-13-40", v)

	want := map[string]string{
		"name":      "required",
		"client_id": "required",
		"email":     "invalid_email",
		"amount":    "must_be_positive",
		"price":     "must_not_be_negative",
		"tax_rate":  "out_of_range",
		"method":    "invalid_choice",
		"notes":     "too_long",
		"due_date":  "invalid_date",
	}
	if len(v) != len(want) {
		t.Fatalf("expected %d violations, got %v", len(want), v)
	}
	for k, reason := range want {
		if v[k] != reason {
			t.Errorf("%s: got %q want %q", k, v[k], reason)
		}
	}
}

func TestViolationsErr(t *testing.T) {
	if (Violations{}).Err() != nil {
		t.Fatal("empty violations must not be an error")
	}
	err := Violations{"b": "required", "a": "too_long"}.Err()
	var got Violations
	if !errors.As(err, &got) {
		t.Fatalf("expected Violations, got %T", err)
	}
	if err.Error() != "validation failed: a: too_long, b: required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDate(t *testing.T) {
	v := Violations{}
	d := Date("issue_date", "2026-02-01", v)
	if !v.Empty() || d.Year() != 2026 || d.Month() != 2 || d.Day() != 1 {
		t.Fatalf("unexpected parse %v %v", d, v)
	}
	if !Date("issue_date", "", v).IsZero() || !v.Empty() {
		t.Fatal("empty date should be zero without violation")
	}
}
