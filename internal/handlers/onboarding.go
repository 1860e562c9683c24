package handlers

import (
	"net/http"

	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/services"
)

type OnboardingHandler struct {
	svc *services.OnboardingService
}

func NewOnboardingHandler(svc *services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{svc: svc}
}

func (h *OnboardingHandler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(r.Context(), currentUser(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

// Complete: POST /api/onboarding/{step}. The body depends on the step.
func (h *OnboardingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, uid := r.Context(), currentUser(r)
	var (
		st  services.OnboardingState
		err error
	)
	switch r.PathValue("step") {
	case services.StepProfile:
		var in services.ProfileInput
		if err = httpx.DecodeJSON(r, &in); err == nil {
			st, err = h.svc.CompleteProfile(ctx, uid, in)
		}
	case services.StepCompany:
		var in services.CompanyInput
		if err = httpx.DecodeJSON(r, &in); err == nil {
			st, err = h.svc.CompleteCompany(ctx, uid, in)
		}
	case services.StepBankAccount:
		var in services.BankAccountInput
		if err = httpx.DecodeJSON(r, &in); err == nil {
			st, err = h.svc.CompleteBankAccount(ctx, uid, in)
		}
	case services.StepFirstClient:
		var in services.ClientInput
		if err = httpx.DecodeJSON(r, &in); err == nil {
			st, err = h.svc.CompleteFirstClient(ctx, uid, in)
		}
	default:
		httpx.JSONError(w, http.StatusNotFound, "unknown_step", nil)
		return
	}
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

// Skip: POST /api/onboarding/{step}/skip
func (h *OnboardingHandler) Skip(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Skip(r.Context(), currentUser(r), r.PathValue("step"))
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
