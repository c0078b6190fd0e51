package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func call(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rr, req)
	return rr
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		key      string // configured
		sent     string // sent by client
		wantCode int
	}{
		{"mode none passes through", "none", "secret", "", http.StatusOK},
		{"empty configured key passes through", "apikey", "", "", http.StatusOK},
		{"correct key", "apikey", "secret", "secret", http.StatusOK},
		{"missing key", "apikey", "secret", "", http.StatusUnauthorized},
		{"wrong key", "apikey", "secret", "guess", http.StatusUnauthorized},
		{"prefix of key", "apikey", "secret", "secr", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := call(t, APIKey(tc.mode, "x-api-key", tc.key), "x-api-key", tc.sent)
			if rr.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tc.wantCode)
			}
		})
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	mw := APIKey("apikey", "X-Flowpulse-Key", "k1")
	if rr := call(t, mw, "X-Flowpulse-Key", "k1"); rr.Code != http.StatusOK {
		t.Errorf("custom header: got %d", rr.Code)
	}
	if rr := call(t, mw, "x-api-key", "k1"); rr.Code != http.StatusUnauthorized {
		t.Errorf("default header should not be accepted: got %d", rr.Code)
	}
}

func TestAPIKey_UnauthorizedBodyIsJSON(t *testing.T) {
	rr := call(t, APIKey("apikey", "x-api-key", "secret"), "x-api-key", "nope")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if body := rr.Body.String(); body != "{\"error\":\"invalid api key\"}\n" {
		t.Errorf("body: got %q", body)
	}
}
