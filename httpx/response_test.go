package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	if err := DecodeJSON(r, &dst); err != nil || dst.Name != "ok" {
		t.Fatalf("decode failed: %v %+v", err, dst)
	}
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(r, &dst); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON for empty body, got %v", err)
	}
}

func TestJSONNilPayload(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil)
	if w.Body.String() != "null" {
		t.Fatalf("expected null got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
