package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/http/middleware"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// AdminAuditHandler exposes the compliance trail to authenticated admins.
type AdminAuditHandler struct {
	auditor *audit.Logger
	logger  *logging.Logger
}

// NewAdminAuditHandler creates the handler.
func NewAdminAuditHandler(auditor *audit.Logger, logger *logging.Logger) *AdminAuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAuditHandler{
		auditor: auditor,
		logger:  logger,
	}
}

// ListEntries returns audit entries matching the query filters.
// GET /admin/audit
func (h *AdminAuditHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.auditor.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit list failed", "error", err)
		jsonError(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// PendingReview returns entries awaiting admin review.
// GET /admin/audit/review
func (h *AdminAuditHandler) PendingReview(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.auditor.GetEntriesForReview(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit review list failed", "error", err)
		jsonError(w, "failed to list entries for review", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// MarkReviewedRequest identifies the entries an admin has reviewed.
type MarkReviewedRequest struct {
	EntryIDs []string `json:"entry_ids"`
}

// MarkReviewed marks entries as reviewed by the authenticated admin.
// POST /admin/audit/review
func (h *AdminAuditHandler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	reviewer := middleware.AdminSubject(r.Context())
	if reviewer == "" {
		jsonError(w, "missing admin identity", http.StatusUnauthorized)
		return
	}

	var req MarkReviewedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.auditor.MarkReviewed(r.Context(), req.EntryIDs, reviewer)
	if err != nil {
		if errors.Is(err, audit.ErrNoIDs) {
			jsonError(w, "entry_ids is required", http.StatusBadRequest)
			return
		}
		h.logger.Error("audit mark reviewed failed", "error", err, "reviewer", reviewer)
		jsonError(w, "failed to mark entries reviewed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"updated":  updated,
		"reviewer": reviewer,
	})
}

func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		EventType: audit.EventType(q.Get("event_type")),
		Severity:  audit.Severity(q.Get("severity")),
	}

	if raw := q.Get("safety_only"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return audit.Filter{}, errors.New("invalid safety_only")
		}
		filter.SafetyOnly = parsed
	}
	if raw := q.Get("pending_review"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return audit.Filter{}, errors.New("invalid pending_review")
		}
		filter.PendingReview = parsed
	}
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("invalid since, expected RFC3339")
		}
		filter.Since = parsed
	}
	if raw := q.Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New("invalid until, expected RFC3339")
		}
		filter.Until = parsed
	}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return audit.Filter{}, errors.New("invalid limit")
		}
		filter.Limit = parsed
	}

	return filter, nil
}
