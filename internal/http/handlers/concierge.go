package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edallison777/vitracka-sub003/internal/coaching"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// maxMessageBytes bounds the request body; coaching messages are short.
const maxMessageBytes = 16 << 10

// ConciergeHandler exposes the turn pipeline over HTTP.
type ConciergeHandler struct {
	concierge *coaching.Concierge
	logger    *logging.Logger
}

// NewConciergeHandler creates the handler.
func NewConciergeHandler(concierge *coaching.Concierge, logger *logging.Logger) *ConciergeHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConciergeHandler{
		concierge: concierge,
		logger:    logger,
	}
}

// MessageRequest is one user turn.
type MessageRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// HandleMessage runs one turn through the pipeline.
// POST /concierge/message
func (h *ConciergeHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	body := http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.UserID == "" || req.SessionID == "" {
		jsonError(w, "user_id and session_id are required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	result, err := h.concierge.HandleMessage(r.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		h.logger.Error("turn failed", "error", err, "session_id", req.SessionID)
		jsonError(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ClearSession discards the conversation state for a session.
// POST /concierge/session/{sessionID}/clear
func (h *ConciergeHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		jsonError(w, "missing sessionID", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	h.concierge.ClearSession(r.Context(), sessionID, userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "session_id": sessionID})
}
