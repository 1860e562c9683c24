package billing

import "errors"

// Sentinel errors. Callers match them with errors.Is; the wrapping
// ValidationError carries the user-facing message.
var (
	ErrInvalidLineItem   = errors.New("invalid line item")
	ErrInvalidTaxRate    = errors.New("invalid tax rate")
	ErrNonPositiveAmount = errors.New("non-positive payment amount")
	ErrOverpayment       = errors.New("payment exceeds remaining balance")
	ErrInvoiceNotPayable = errors.New("invoice does not accept payments")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrHasPayments       = errors.New("invoice has recorded payments")
)

// Messages returned to API clients.
const (
	MsgInvalidLineItem   = "Invalid quantity or price in line items"
	MsgInvalidTaxRate    = "Tax rate must be between 0 and 100"
	MsgNonPositiveAmount = "Payment amount must be greater than zero"
	MsgOverpayment       = "Payment amount exceeds remaining balance"
)

// ValidationError wraps a sentinel with a message safe to show end users.
type ValidationError struct {
	Err     error
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	}
	if e.Details != "" {
		return msg + ": " + e.Details
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
