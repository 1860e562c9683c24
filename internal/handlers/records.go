package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/services"
)

type ClientHandler struct {
	svc *services.ClientService
}

func NewClientHandler(svc *services.ClientService) *ClientHandler {
	return &ClientHandler{svc: svc}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.List(r.Context(), currentUser(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": clients})
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ClientInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), currentUser(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), currentUser(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.ClientInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.svc.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), currentUser(r), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CatalogHandler struct {
	svc *services.CatalogService
}

func NewCatalogHandler(svc *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), currentUser(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ServiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.svc.Create(r.Context(), currentUser(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.ServiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	s, err := h.svc.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), currentUser(r), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ExpenseHandler struct {
	svc *services.ExpenseService
}

func NewExpenseHandler(svc *services.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{svc: svc}
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r, time.Time{}, time.Time{})
	if err != nil {
		WriteError(w, err)
		return
	}
	items, err := h.svc.List(r.Context(), currentUser(r), from, to)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	e, err := h.svc.Create(r.Context(), currentUser(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.ExpenseInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	e, err := h.svc.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), currentUser(r), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type BankAccountHandler struct {
	svc *services.BankAccountService
}

func NewBankAccountHandler(svc *services.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{svc: svc}
}

// bankAccountView masks the IBAN in list responses.
type bankAccountView struct {
	ID            uint   `json:"id"`
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic,omitempty"`
	IsDefault     bool   `json:"is_default"`
}

func (h *BankAccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.List(r.Context(), currentUser(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]bankAccountView, len(accounts))
	for i, a := range accounts {
		out[i] = bankAccountView{ID: a.ID, BankName: a.BankName, AccountHolder: a.AccountHolder, IBAN: a.MaskedIBAN(), BIC: a.BIC, IsDefault: a.IsDefault}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *BankAccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.BankAccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	a, err := h.svc.Create(r.Context(), currentUser(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *BankAccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), currentUser(r), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
