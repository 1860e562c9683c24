// Package billing holds the money rules of InvoiceHub: invoice totals, the
// client total check, payment acceptance and invoice status settlement.
// Everything here is pure; persistence and locking live in the services
// package.
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItem is one billable row as submitted by a client.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    Numeric `json:"quantity"`
	Price       Numeric `json:"price"`
}

// Totals are fixed-point strings with two decimals, e.g. "137.50".
type Totals struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// Decimals returns the totals as decimals for persistence.
func (t Totals) Decimals() (subtotal, tax, total decimal.Decimal) {
	return decimal.RequireFromString(t.Subtotal),
		decimal.RequireFromString(t.Tax),
		decimal.RequireFromString(t.Total)
}

// CalculateTotals computes subtotal, tax and total. Amounts are summed in
// float64 and rounded to two decimals only when formatted. An empty tax
// rate is read as 0. Any invalid input aborts the whole computation.
func CalculateTotals(items []LineItem, taxRate Numeric) (Totals, error) {
	var subtotal float64
	for i, it := range items {
		qty, okQty := it.Quantity.Float()
		price, okPrice := it.Price.Float()
		if !okQty || !okPrice || qty <= 0 || price < 0 {
			return Totals{}, &ValidationError{
				Err:     ErrInvalidLineItem,
				Message: MsgInvalidLineItem,
				Details: fmt.Sprintf("item %d", i),
			}
		}
		subtotal += qty * price
	}

	rate := 0.0
	if !taxRate.IsZero() {
		var ok bool
		rate, ok = taxRate.Float()
		if !ok || rate < 0 || rate > 100 {
			return Totals{}, &ValidationError{Err: ErrInvalidTaxRate, Message: MsgInvalidTaxRate}
		}
	}

	tax := subtotal * (rate / 100)
	total := subtotal + tax
	return Totals{
		Subtotal: fixed2(subtotal),
		Tax:      fixed2(tax),
		Total:    fixed2(total),
	}, nil
}

func fixed2(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}
