package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTolerance is how far a payment may exceed the remaining balance.
var PaymentTolerance = decimal.New(1, -2)

// Settlement reasons reported in StatusDecision.Reason.
const (
	ReasonTerminal      = "terminal"
	ReasonFullyPaid     = "fully_paid"
	ReasonPastDue       = "past_due"
	ReasonPartiallyPaid = "partially_paid"
	ReasonUnpaid        = "unpaid"
)

// InvoiceState is the part of an invoice the ledger needs.
type InvoiceState struct {
	Status  Status
	Total   decimal.Decimal
	DueDate time.Time // zero means no due date
}

// StatusDecision is the ledger's verdict after the payment set changed.
type StatusDecision struct {
	From       Status          `json:"from"`
	To         Status          `json:"to"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Remaining  decimal.Decimal `json:"remaining"`
	Reason     string          `json:"reason"`
}

// Changed reports whether the status must be updated.
func (d StatusDecision) Changed() bool { return d.From != d.To }

// Remaining is total minus what has already been paid.
func Remaining(total, amountPaid decimal.Decimal) decimal.Decimal {
	return total.Sub(amountPaid)
}

// SumPayments adds payment amounts.
func SumPayments(amounts []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// CheckPayment rejects non-positive amounts and amounts exceeding the
// remaining balance by more than PaymentTolerance.
func CheckPayment(total, amountPaid, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Err: ErrNonPositiveAmount, Message: MsgNonPositiveAmount}
	}
	remaining := Remaining(total, amountPaid)
	if amount.GreaterThan(remaining.Add(PaymentTolerance)) {
		return &ValidationError{
			Err:     ErrOverpayment,
			Message: MsgOverpayment,
			Details: "remaining balance is " + remaining.StringFixed(2),
		}
	}
	return nil
}

// Settle recomputes amount paid from the full payment set and decides the
// resulting status. Terminal invoices keep their status; a fully paid
// invoice is paid; an issued invoice past its due date is overdue; any
// payment makes it partially paid; otherwise a draft stays a draft and
// everything else falls back to sent.
func Settle(state InvoiceState, payments []decimal.Decimal, now time.Time) StatusDecision {
	paid := SumPayments(payments)
	d := StatusDecision{
		From:       state.Status,
		To:         state.Status,
		AmountPaid: paid,
		Remaining:  Remaining(state.Total, paid),
	}
	pastDue := !state.DueDate.IsZero() && now.After(state.DueDate)
	switch {
	case state.Status.Terminal():
		d.Reason = ReasonTerminal
	case state.Total.IsPositive() && paid.GreaterThanOrEqual(state.Total.Sub(PaymentTolerance)):
		d.To, d.Reason = StatusPaid, ReasonFullyPaid
	case pastDue && (state.Status != StatusDraft || paid.IsPositive()):
		d.To, d.Reason = StatusOverdue, ReasonPastDue
	case paid.IsPositive():
		d.To, d.Reason = StatusPartiallyPaid, ReasonPartiallyPaid
	case state.Status == StatusDraft:
		d.Reason = ReasonUnpaid
	default:
		d.To, d.Reason = StatusSent, ReasonUnpaid
	}
	return d
}
