package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Fatalf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("final"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStatusPredicates(t *testing.T) {
	cases := []struct {
		s                            Status
		terminal, payable, editable bool
	}{
		{StatusDraft, false, true, true},
		{StatusSent, false, true, true},
		{StatusPartiallyPaid, false, true, false},
		{StatusOverdue, false, true, false},
		{StatusPaid, false, false, false},
		{StatusCancelled, true, false, false},
		{StatusRefunded, true, false, false},
	}
	for _, tc := range cases {
		if tc.s.Terminal() != tc.terminal || tc.s.Payable() != tc.payable || tc.s.Editable() != tc.editable {
			t.Errorf("%s: terminal=%v payable=%v editable=%v", tc.s, tc.s.Terminal(), tc.s.Payable(), tc.s.Editable())
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusRefunded} {
		for _, to := range AllStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal %s should not move to %s", from, to)
			}
		}
	}
}

func TestApplyAction(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -5)
	future := now.AddDate(0, 0, 5)
	zero := decimal.Zero

	cases := []struct {
		name    string
		status  Status
		due     time.Time
		action  Action
		paid    decimal.Decimal
		want    Status
		wantErr error
	}{
		{"send draft", StatusDraft, future, ActionSend, zero, StatusSent, nil},
		{"send twice", StatusSent, future, ActionSend, zero, StatusSent, ErrInvalidTransition},
		{"cancel sent", StatusSent, future, ActionCancel, zero, StatusCancelled, nil},
		{"cancel draft", StatusDraft, future, ActionCancel, zero, StatusCancelled, nil},
		{"cancel with payments", StatusPartiallyPaid, future, ActionCancel, dec("10"), StatusPartiallyPaid, ErrHasPayments},
		{"cancel cancelled", StatusCancelled, future, ActionCancel, zero, StatusCancelled, ErrInvalidTransition},
		{"refund paid", StatusPaid, future, ActionRefund, dec("100"), StatusRefunded, nil},
		{"refund partial", StatusPartiallyPaid, future, ActionRefund, dec("10"), StatusRefunded, nil},
		{"refund sent", StatusSent, future, ActionRefund, zero, StatusSent, ErrInvalidTransition},
		{"overdue when past due", StatusSent, past, ActionMarkOverdue, zero, StatusOverdue, nil},
		{"overdue before due", StatusSent, future, ActionMarkOverdue, zero, StatusSent, ErrInvalidTransition},
		{"overdue without due date", StatusSent, time.Time{}, ActionMarkOverdue, zero, StatusSent, ErrInvalidTransition},
		{"overdue draft", StatusDraft, past, ActionMarkOverdue, zero, StatusDraft, ErrInvalidTransition},
		{"overdue paid", StatusPaid, past, ActionMarkOverdue, dec("100"), StatusPaid, ErrInvalidTransition},
		{"unknown", StatusDraft, future, Action("archive"), zero, StatusDraft, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := InvoiceState{Status: tc.status, Total: dec("100"), DueDate: tc.due}
			d, err := ApplyAction(state, tc.action, tc.paid, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.To != tc.want {
				t.Fatalf("got %s want %s", d.To, tc.want)
			}
		})
	}
}
