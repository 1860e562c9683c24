package billing

import (
	"encoding/json"
	"errors"
	"testing"
)

func items(pairs ...string) []LineItem {
	out := make([]LineItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, LineItem{Description: "line", Quantity: Numeric(pairs[i]), Price: Numeric(pairs[i+1])})
	}
	return out
}

func TestCalculateTotals(t *testing.T) {
	cases := []struct {
		name  string
		items []LineItem
		rate  Numeric
		want  Totals
	}{
		{"two lines ten percent", items("2", "50", "1", "25"), "10", Totals{"125.00", "12.50", "137.50"}},
		{"zero rate", items("2", "50", "1", "25"), "0", Totals{"125.00", "0.00", "125.00"}},
		{"empty rate", items("3", "10"), "", Totals{"30.00", "0.00", "30.00"}},
		{"no items", nil, "20", Totals{"0.00", "0.00", "0.00"}},
		{"free line", items("1", "0"), "20", Totals{"0.00", "0.00", "0.00"}},
		{"fractional quantity", items("1.5", "80"), "20", Totals{"120.00", "24.00", "144.00"}},
		{"full rate", items("1", "40"), "100", Totals{"40.00", "40.00", "80.00"}},
		{"half cent rounds up", items("1", "1.005"), "0", Totals{"1.01", "0.00", "1.01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateTotals(tc.items, tc.rate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestCalculateTotalsInvalidLineItems(t *testing.T) {
	cases := map[string][]LineItem{
		"zero quantity":     items("0", "10"),
		"negative quantity": items("-1", "10"),
		"negative price":    items("1", "-0.01"),
		"not a number":      items("abc", "10"),
		"NaN":               items("NaN", "10"),
		"infinite price":    items("1", "Inf"),
		"missing price":     items("1", ""),
		"bad second line":   items("1", "10", "2", "x"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := CalculateTotals(in, "10")
			if !errors.Is(err, ErrInvalidLineItem) {
				t.Fatalf("expected ErrInvalidLineItem, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Message != MsgInvalidLineItem {
				t.Fatalf("expected validation message %q, got %v", MsgInvalidLineItem, err)
			}
			if got != (Totals{}) {
				t.Fatalf("expected no partial result, got %+v", got)
			}
		})
	}
}

func TestCalculateTotalsInvalidTaxRate(t *testing.T) {
	for _, rate := range []Numeric{"-1", "100.01", "250", "ten", "NaN"} {
		_, err := CalculateTotals(items("1", "10"), rate)
		if !errors.Is(err, ErrInvalidTaxRate) {
			t.Fatalf("rate %q: expected ErrInvalidTaxRate, got %v", rate, err)
		}
		if err.Error() != MsgInvalidTaxRate {
			t.Fatalf("rate %q: unexpected message %q", rate, err.Error())
		}
	}
}

func TestCalculateTotalsLineItemsCheckedBeforeRate(t *testing.T) {
	_, err := CalculateTotals(items("0", "10"), "500")
	if !errors.Is(err, ErrInvalidLineItem) {
		t.Fatalf("expected line item error first, got %v", err)
	}
}

func TestLineItemDecodesNumbersAndStrings(t *testing.T) {
	var req struct {
		Items   []LineItem `json:"items"`
		TaxRate Numeric    `json:"tax_rate"`
	}
	body := `{"items":[{"description":"Design","quantity":"2","price":50},{"description":"Hosting","quantity":1,"price":"25.00"}],"tax_rate":10}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := CalculateTotals(req.Items, req.TaxRate)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got.Total != "137.50" {
		t.Fatalf("expected 137.50, got %s", got.Total)
	}
}

func TestTotalsDecimals(t *testing.T) {
	sub, tax, total := Totals{"125.00", "12.50", "137.50"}.Decimals()
	if !sub.Add(tax).Equal(total) {
		t.Fatalf("subtotal + tax != total: %s + %s != %s", sub, tax, total)
	}
}
