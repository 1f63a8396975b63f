package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func protected(t *testing.T, principal *string) http.Handler {
	t.Helper()
	keys, err := ParseStaticKeys("k1:alice:studio_reader,k2:bob:studio_admin")
	if err != nil {
		t.Fatalf("ParseStaticKeys() error = %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return Middleware(logger, keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		*principal = identity.Principal
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestMiddlewareAcceptsCredentials(t *testing.T) {
	cases := []struct {
		header, value, principal string
	}{
		{"X-API-Key", "k1", "alice"},
		{"Authorization", "Bearer k2", "bob"},
		{"Authorization", "bearer  k1 ", "alice"},
	}
	for _, tc := range cases {
		var principal string
		req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
		req.Header.Set(tc.header, tc.value)
		rr := httptest.NewRecorder()
		protected(t, &principal).ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s %q: status = %d", tc.header, tc.value, rr.Code)
		}
		if principal != tc.principal {
			t.Fatalf("%s %q: principal = %q", tc.header, tc.value, principal)
		}
	}
}

func TestMiddlewareRejectsWithReason(t *testing.T) {
	cases := []struct {
		header, value, reason string
	}{
		{"", "", "missing_key"},
		{"Authorization", "Bearer ", "missing_key"},
		{"Authorization", "Basic YWxpY2U6cw==", "unsupported_scheme"},
		{"X-API-Key", "nope", "invalid_key"},
		{"Authorization", "Bearer nope", "invalid_key"},
	}
	for _, tc := range cases {
		var principal string
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		rr := httptest.NewRecorder()
		protected(t, &principal).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d", tc.value, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("%q: WWW-Authenticate missing", tc.value)
		}
		var body struct {
			ErrorCode string         `json:"error_code"`
			Message   string         `json:"message"`
			Context   map[string]any `json:"context"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.ErrorCode != "UNAUTHORIZED" || body.Message == "" || body.Context["reason"] != tc.reason {
			t.Fatalf("%q: body = %#v, want reason %s", tc.value, body, tc.reason)
		}
		if principal != "" {
			t.Fatalf("%q: handler ran for rejected request", tc.value)
		}
	}
}

func TestMiddlewareNilLogger(t *testing.T) {
	keys, err := ParseStaticKeys("k1:alice:studio_reader")
	if err != nil {
		t.Fatalf("ParseStaticKeys() error = %v", err)
	}
	handler := Middleware(nil, keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}
