package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/internal/services"
	"github.com/diewo77/invoicehub/validation"
)

// validationCodes maps billing sentinels to error codes.
var validationCodes = []struct {
	err  error
	code string
}{
	{billing.ErrInvalidLineItem, "invalid_line_items"},
	{billing.ErrInvalidTaxRate, "invalid_tax_rate"},
	{billing.ErrNonPositiveAmount, "invalid_amount"},
	{billing.ErrOverpayment, "overpayment"},
}

// conflicts are reported as 409.
var conflicts = []struct {
	err  error
	code string
}{
	{billing.ErrInvoiceNotPayable, "invoice_not_payable"},
	{billing.ErrInvalidTransition, "invalid_transition"},
	{billing.ErrHasPayments, "invoice_has_payments"},
	{services.ErrNotEditable, "invoice_not_editable"},
	{services.ErrConcurrentUpdate, "concurrent_update"},
	{services.ErrOnboardingOrder, "onboarding_step_out_of_order"},
	{services.ErrInUse, "in_use"},
}

// WriteError writes the response for err. Unknown errors become 500
// without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	var ve *billing.ValidationError
	if errors.As(err, &ve) {
		code := "validation_failed"
		for _, c := range validationCodes {
			if errors.Is(ve.Err, c.err) {
				code = c.code
				break
			}
		}
		httpx.JSON(w, http.StatusBadRequest, httpx.ErrorResponse{Error: code, Message: ve.Message, Details: ve.Details})
		return
	}
	var violations validation.Violations
	if errors.As(err, &violations) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations)
		return
	}
	var mismatch *services.TotalMismatchError
	if errors.As(err, &mismatch) {
		httpx.JSONError(w, http.StatusBadRequest, "total_mismatch", map[string]string{
			"client_total":     mismatch.ClientTotal,
			"calculated_total": mismatch.CalculatedTotal,
		})
		return
	}
	switch {
	case errors.Is(err, httpx.ErrInvalidJSON):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	case errors.Is(err, services.ErrNotFound), errors.Is(err, policy.ErrUnauthorized):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			httpx.JSON(w, http.StatusConflict, httpx.ErrorResponse{Error: c.code, Message: err.Error()})
			return
		}
	}
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
