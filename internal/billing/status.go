package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the closed set of invoice states.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
	StatusRefunded      Status = "refunded"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid,
	StatusOverdue, StatusCancelled, StatusRefunded,
}

var transitions = map[Status][]Status{
	StatusDraft:         {StatusSent, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled},
	StatusSent:          {StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled},
	StatusPartiallyPaid: {StatusSent, StatusPaid, StatusOverdue, StatusRefunded},
	StatusOverdue:       {StatusSent, StatusPartiallyPaid, StatusPaid, StatusCancelled},
	StatusPaid:          {StatusSent, StatusPartiallyPaid, StatusOverdue, StatusRefunded},
	StatusCancelled:     nil,
	StatusRefunded:      nil,
}

// ParseStatus validates a status coming from storage or a query string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown invoice status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Payable reports whether new payments may be recorded.
func (s Status) Payable() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusOverdue:
		return true
	}
	return false
}

// Editable reports whether line items and tax rate may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusSent
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Action is a manual status change requested by a user.
type Action string

const (
	ActionSend        Action = "send"
	ActionCancel      Action = "cancel"
	ActionRefund      Action = "refund"
	ActionMarkOverdue Action = "mark_overdue"
)

// ApplyAction decides the outcome of a manual action. The invoice is not
// modified; the caller persists decision.To.
func ApplyAction(state InvoiceState, action Action, amountPaid decimal.Decimal, now time.Time) (StatusDecision, error) {
	d := StatusDecision{
		From:       state.Status,
		To:         state.Status,
		AmountPaid: amountPaid,
		Remaining:  Remaining(state.Total, amountPaid),
		Reason:     string(action),
	}
	var target Status
	switch action {
	case ActionSend:
		if state.Status != StatusDraft {
			return d, fmt.Errorf("%w: only draft invoices can be sent", ErrInvalidTransition)
		}
		target = StatusSent
	case ActionCancel:
		if amountPaid.IsPositive() {
			return d, fmt.Errorf("%w: refund instead of cancelling", ErrHasPayments)
		}
		target = StatusCancelled
	case ActionRefund:
		target = StatusRefunded
	case ActionMarkOverdue:
		if state.DueDate.IsZero() || !now.After(state.DueDate) {
			return d, fmt.Errorf("%w: invoice is not past due", ErrInvalidTransition)
		}
		if state.Status == StatusDraft || state.Status == StatusPaid {
			return d, fmt.Errorf("%w: %s invoice cannot become overdue", ErrInvalidTransition, state.Status)
		}
		target = StatusOverdue
	default:
		return d, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if !CanTransition(state.Status, target) {
		return d, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state.Status, target)
	}
	d.To = target
	return d, nil
}
