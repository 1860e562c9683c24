package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/auth"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/db"
	"github.com/diewo77/invoicehub/internal/models"
)

func setupRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(conn); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", "invoicehub-test", time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	h := New(Deps{
		DB:            conn,
		Authenticator: auth.NewAuthenticator(tokens, auth.NewMemoryRevocationStore(), nil),
		App:           config.AppConfig{TotalMismatchPolicy: config.MismatchReject},
	})
	return h, conn
}

func call(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func signup(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	w := call(t, h, http.MethodPost, "/api/auth/signup", "", `{"email":"`+email+`","password":"supersecret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Token == "" {
		t.Fatalf("signup returned no token: %v %s", err, w.Body.String())
	}
	return out.Token
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := setupRouter(t)
	for _, path := range []string{"/health", "/healthz"} {
		w := call(t, h, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"ok"`) {
			t.Fatalf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	h, _ := setupRouter(t)
	for _, path := range []string{"/api/invoices", "/api/clients", "/api/flags", "/api/analytics/summary"} {
		if w := call(t, h, http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, w.Code)
		}
	}
	if w := call(t, h, http.MethodGet, "/api/invoices", "not-a-jwt", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401 got %d", w.Code)
	}
}

func TestInvoiceLifecycleThroughRouter(t *testing.T) {
	h, conn := setupRouter(t)
	token := signup(t, h, "flow@test")

	w := call(t, h, http.MethodPost, "/api/clients", token, `{"name":"Acme"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("client: expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var client models.Client
	_ = json.Unmarshal(w.Body.Bytes(), &client)

	// The literal totals route must win over /api/invoices/{id}/{action}.
	w = call(t, h, http.MethodPost, "/api/invoices/totals", token, `{"items":[{"description":"a","quantity":1,"price":10}],"tax_rate":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("totals: expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	body := fmt.Sprintf(`{"client_id":%d,"due_date":"2099-12-31","tax_rate":"10","total":"137.50","items":[`+
		`{"description":"Design","quantity":2,"price":50},{"description":"Hosting","quantity":1,"price":25}]}`, client.ID)
	w = call(t, h, http.MethodPost, "/api/invoices", token, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("invoice: expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var inv models.Invoice
	_ = json.Unmarshal(w.Body.Bytes(), &inv)
	base := fmt.Sprintf("/api/invoices/%d", inv.ID)

	if w = call(t, h, http.MethodPost, base+"/send", token, ""); w.Code != http.StatusOK {
		t.Fatalf("send: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if w = call(t, h, http.MethodPost, base+"/payments", token, `{"amount":"137.50"}`); w.Code != http.StatusCreated {
		t.Fatalf("payment: expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	w = call(t, h, http.MethodGet, base, token, "")
	_ = json.Unmarshal(w.Body.Bytes(), &inv)
	if inv.Status != "paid" {
		t.Fatalf("expected paid got %s", inv.Status)
	}
	if w = call(t, h, http.MethodGet, base+"/pdf", token, ""); w.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if w = call(t, h, http.MethodGet, "/api/export/invoices.csv", token, ""); w.Code != http.StatusOK {
		t.Fatalf("csv: expected 200 got %d", w.Code)
	}

	var events int64
	conn.Model(&models.OutboxEvent{}).Count(&events)
	if events < 3 {
		t.Fatalf("expected outbox events for create, send and payment, got %d", events)
	}

	// Another user sees nothing.
	other := signup(t, h, "other@test")
	if w = call(t, h, http.MethodGet, base, other, ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign invoice: expected 404 got %d", w.Code)
	}
}

func TestDisabledFeatureIsHidden(t *testing.T) {
	h, conn := setupRouter(t)
	token := signup(t, h, "flags@test")
	if err := conn.Model(&models.FeatureFlag{}).Where("key = ?", "csv_export").Update("enabled", false).Error; err != nil {
		t.Fatalf("disable flag: %v", err)
	}
	w := call(t, h, http.MethodGet, "/api/export/invoices.csv", token, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for disabled export got %d", w.Code)
	}
}

func TestLogoutRevokesBearerToken(t *testing.T) {
	h, _ := setupRouter(t)
	token := signup(t, h, "logout@test")

	if w := call(t, h, http.MethodGet, "/api/auth/me", token, ""); w.Code != http.StatusOK {
		t.Fatalf("me: expected 200 got %d", w.Code)
	}
	if w := call(t, h, http.MethodPost, "/api/auth/logout", token, ""); w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204 got %d", w.Code)
	}
	if w := call(t, h, http.MethodGet, "/api/auth/me", token, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401 got %d", w.Code)
	}
}
