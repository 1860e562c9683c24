package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/flags"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/internal/services"
)

func newReportHandler(t *testing.T) (*ReportHandler, fixture) {
	f := newFixture(t)
	gate := policy.NewDefaultGate()
	inv := services.NewInvoiceService(f.db, gate, nil, config.AppConfig{})
	h := NewReportHandler(services.NewAnalyticsService(f.db), services.NewExportService(f.db, gate, inv), flags.NewService(f.db, 0), nil)
	return h, f
}

func TestReportSummaryDefaultsToCurrentYear(t *testing.T) {
	h, f := newReportHandler(t)
	h.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	user, client := seedFixtures(t, f.db, "sum@test")
	createInvoice(t, f, user.ID, client.ID)

	w := do(h.Summary, http.MethodGet, "/api/analytics/summary", "", user.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var sum struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.From != "2026-01-01" || sum.To != "2026-12-31" {
		t.Fatalf("unexpected range %s..%s", sum.From, sum.To)
	}
}

func TestReportSummaryRejectsBadRange(t *testing.T) {
	h, _ := newReportHandler(t)
	w := do(h.Summary, http.MethodGet, "/api/analytics/summary?from=2026-05-01&to=2026-04-01", "", 1)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	w = do(h.Summary, http.MethodGet, "/api/analytics/summary?from=yesterday", "", 1)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date got %d", w.Code)
	}
}

func TestReportInvoicesCSV(t *testing.T) {
	h, f := newReportHandler(t)
	user, client := seedFixtures(t, f.db, "csv@test")
	inv := createInvoice(t, f, user.ID, client.ID)

	w := do(h.InvoicesCSV, http.MethodGet, "/api/export/invoices.csv", "", user.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], inv.Number) {
		t.Fatalf("row does not contain invoice number %s: %s", inv.Number, lines[1])
	}
}

func TestReportFlags(t *testing.T) {
	h, f := newReportHandler(t)
	f.db.Create(&models.FeatureFlag{Key: "pdf_export", Enabled: true, RolloutPercent: 100})
	f.db.Create(&models.FeatureFlag{Key: "beta", Enabled: false, RolloutPercent: 100})

	w := do(h.Flags, http.MethodGet, "/api/flags", "", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var out map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["pdf_export"] || out["beta"] {
		t.Fatalf("unexpected flags %v", out)
	}
}

func TestOnboardingHandler(t *testing.T) {
	f := newFixture(t)
	user, _ := seedFixtures(t, f.db, "onb@test")
	gate := policy.NewDefaultGate()
	h := NewOnboardingHandler(services.NewOnboardingService(f.db, services.NewClientService(f.db, gate), services.NewBankAccountService(f.db, gate)))

	w := do(h.Complete, http.MethodPost, "/api/onboarding/company", `{"name":"Studio"}`, user.ID, "step", "company")
	if w.Code != http.StatusConflict || errorCode(t, w) != "onboarding_step_out_of_order" {
		t.Fatalf("expected 409 out of order got %d body=%s", w.Code, w.Body.String())
	}
	w = do(h.Skip, http.MethodPost, "/api/onboarding/profile/skip", "", user.ID, "step", "profile")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("profile skip: expected 400 got %d", w.Code)
	}
	w = do(h.Complete, http.MethodPost, "/api/onboarding/profile", `{"first_name":"Ada","last_name":"L"}`, user.ID, "step", "profile")
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	w = do(h.Complete, http.MethodPost, "/api/onboarding/nope", `{}`, user.ID, "step", "nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown step: expected 404 got %d", w.Code)
	}
	w = do(h.State, http.MethodGet, "/api/onboarding", "", user.ID)
	var st services.OnboardingState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Step != services.StepCompany {
		t.Fatalf("expected company step got %s", st.Step)
	}
}
