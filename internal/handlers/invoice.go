package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/billing"
	"github.com/diewo77/invoicehub/internal/services"
)

type InvoiceHandler struct {
	invoices *services.InvoiceService
	exports  *services.ExportService
}

func NewInvoiceHandler(invoices *services.InvoiceService, exports *services.ExportService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, exports: exports}
}

// List: GET /api/invoices?status=&q=&page=&per_page=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.invoices.List(r.Context(), currentUser(r), services.ListQuery{
		Status:  q.Get("status"),
		Q:       q.Get("q"),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	inv, err := h.invoices.Create(r.Context(), currentUser(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(r.Context(), currentUser(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	inv, err := h.invoices.Update(r.Context(), currentUser(r), id, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(r.Context(), currentUser(r), id); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var actions = map[string]billing.Action{
	"send":   billing.ActionSend,
	"cancel": billing.ActionCancel,
	"refund": billing.ActionRefund,
}

// Action: POST /api/invoices/{id}/{action}
func (h *InvoiceHandler) Action(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	action, ok := actions[r.PathValue("action")]
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "unknown_action", nil)
		return
	}
	inv, decision, err := h.invoices.Transition(r.Context(), currentUser(r), id, action)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv, "decision": decision})
}

type totalsRequest struct {
	Items   []billing.LineItem `json:"items"`
	TaxRate billing.Numeric    `json:"tax_rate"`
	Total   billing.Numeric    `json:"total"`
}

// Totals: POST /api/invoices/totals previews the calculator.
func (h *InvoiceHandler) Totals(w http.ResponseWriter, r *http.Request) {
	var in totalsRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.invoices.Preview(in.Items, in.TaxRate, in.Total)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// PDF: GET /api/invoices/{id}/pdf
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	inv, err := h.exports.InvoicePDF(r.Context(), currentUser(r), id, &buf)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(inv.Number, `"`, "")+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type PaymentHandler struct {
	svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.svc.List(r.Context(), currentUser(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

// Record: POST /api/invoices/{id}/payments
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	res, err := h.svc.Record(r.Context(), currentUser(r), id, in)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

// Delete: DELETE /api/payments/{id}
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.Delete(r.Context(), currentUser(r), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
