package handlers

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/flags"
	"github.com/diewo77/invoicehub/internal/services"
)

// ReportHandler serves analytics, CSV exports and feature flags.
type ReportHandler struct {
	analytics *services.AnalyticsService
	exports   *services.ExportService
	flags     *flags.Service
	logger    *zap.Logger
	now       func() time.Time
}

func NewReportHandler(analytics *services.AnalyticsService, exports *services.ExportService, fl *flags.Service, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{analytics: analytics, exports: exports, flags: fl, logger: logger.Named("reports"), now: time.Now}
}

// Summary: GET /api/analytics/summary?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Defaults to the current calendar year.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	from, to, err := dateRange(r,
		time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		WriteError(w, err)
		return
	}
	sum, err := h.analytics.Summary(r.Context(), currentUser(r), from, to)
	if err != nil {
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func writeCSV(w http.ResponseWriter, name string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *ReportHandler) InvoicesCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.exports.InvoicesCSV(r.Context(), currentUser(r), &buf); err != nil {
		WriteError(w, err)
		return
	}
	writeCSV(w, "invoices.csv", &buf)
}

func (h *ReportHandler) ExpensesCSV(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r, time.Time{}, time.Time{})
	if err != nil {
		WriteError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.exports.ExpensesCSV(r.Context(), currentUser(r), from, to, &buf); err != nil {
		WriteError(w, err)
		return
	}
	writeCSV(w, "expenses.csv", &buf)
}

// Flags: GET /api/flags
func (h *ReportHandler) Flags(w http.ResponseWriter, r *http.Request) {
	out, err := h.flags.Evaluate(r.Context(), currentUser(r))
	if err != nil {
		h.logger.Error("evaluate flags", zap.Error(err))
		WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
