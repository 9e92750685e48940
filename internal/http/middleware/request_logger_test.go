package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	mw := RequestLogger(logging.NewWithWriter("info", io.Discard))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	var seen string
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})).ServeHTTP(rec, req)

	if seen == "" {
		t.Fatalf("expected a request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestLoggerHonorsIncomingRequestID(t *testing.T) {
	mw := RequestLogger(logging.NewWithWriter("info", io.Discard))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()

	var seen string
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})).ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Fatalf("expected request ID %q, got %q", "req-123", seen)
	}
}
