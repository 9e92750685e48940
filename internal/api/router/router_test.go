package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/coaching"
	"github.com/edallison777/vitracka-sub003/internal/http/handlers"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

type staticSpecialist struct{}

func (staticSpecialist) ID() string    { return "static" }
func (staticSpecialist) Priority() int { return 5 }
func (staticSpecialist) CanHandle(coaching.ConversationMessage, coaching.ConversationContext) bool {
	return true
}
func (staticSpecialist) Process(context.Context, coaching.SpecialistRequest) (coaching.SpecialistResponse, error) {
	return coaching.SpecialistResponse{AgentID: "static", Text: "hello!", Confidence: 0.8}, nil
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	logger := logging.NewWithWriter("error", io.Discard)
	auditor := audit.NewLogger(audit.NewMemoryStore(), logger)
	t.Cleanup(func() { _ = auditor.Close() })

	sessions := coaching.NewSessionManager(logger)
	sentinel := coaching.NewSentinel(auditor, nil, logger)
	boundary := coaching.NewMedicalBoundary(auditor, nil, logger)
	registry := coaching.NewRegistry(logger, staticSpecialist{})
	concierge := coaching.NewConcierge(sessions, sentinel, boundary, registry, auditor, nil, logger)

	cfg.Logger = logger
	cfg.ConciergeHandler = handlers.NewConciergeHandler(concierge, logger)
	cfg.AdminAuditHandler = handlers.NewAdminAuditHandler(auditor, logger)
	return New(cfg)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, &Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestConciergeRouteWired(t *testing.T) {
	r := newTestRouter(t, &Config{})

	body := `{"user_id":"u1","session_id":"s1","message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/concierge/message", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello!")
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	// Without a secret the admin routes are not mounted at all.
	r := newTestRouter(t, &Config{})
	req := httptest.NewRequest(http.MethodGet, "/admin/audit/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// With a secret they are mounted and require a token.
	r = newTestRouter(t, &Config{AdminAuthSecret: "secret"})
	req = httptest.NewRequest(http.MethodGet, "/admin/audit/", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsRouteWired(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRouter(t, &Config{
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMessageRateLimit(t *testing.T) {
	r := newTestRouter(t, &Config{MessageRateLimit: 0.001, MessageRateBurst: 1})

	body := `{"user_id":"u1","session_id":"s1","message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/concierge/message", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.9:41000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/concierge/message", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.9:41000"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
