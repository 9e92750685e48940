package coaching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/observability/metrics"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// TurnResult is the orchestrator's answer for one user turn.
type TurnResult struct {
	SessionID        string   `json:"session_id"`
	Reply            string   `json:"reply"`
	AgentID          string   `json:"agent_id"`
	ContributorIDs   []string `json:"contributor_ids,omitempty"`
	SafetyOverride   bool     `json:"safety_override"`
	MedicalRedirect  bool     `json:"medical_redirect"`
	RequiresFollowUp bool     `json:"requires_follow_up"`
	UsedFallback     bool     `json:"used_fallback"`
}

// Concierge runs the turn pipeline: sentinel first, medical boundary second,
// then routing, invocation, composition, and outgoing review. The sentinel
// always has the final word on what leaves the pipeline.
type Concierge struct {
	sessions *SessionManager
	sentinel *Sentinel
	boundary *MedicalBoundary
	registry *Registry
	auditor  *audit.Logger
	metrics  *metrics.ConciergeMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// ConciergeOption customizes the orchestrator.
type ConciergeOption func(*Concierge)

func WithConciergeClock(now func() time.Time) ConciergeOption {
	return func(c *Concierge) { c.now = now }
}

// NewConcierge wires the pipeline. All collaborators are required except
// metrics, which may be nil.
func NewConcierge(
	sessions *SessionManager,
	sentinel *Sentinel,
	boundary *MedicalBoundary,
	registry *Registry,
	auditor *audit.Logger,
	m *metrics.ConciergeMetrics,
	logger *logging.Logger,
	opts ...ConciergeOption,
) *Concierge {
	if sessions == nil || sentinel == nil || boundary == nil || registry == nil || auditor == nil {
		panic("coaching: concierge requires sessions, sentinel, boundary, registry, and auditor")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Concierge{
		sessions: sessions,
		sentinel: sentinel,
		boundary: boundary,
		registry: registry,
		auditor:  auditor,
		metrics:  m,
		logger:   logger.Component("concierge"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleMessage processes one user turn end to end. Safety screening always
// runs first; when it intervenes, no specialist sees the message.
func (c *Concierge) HandleMessage(ctx context.Context, sessionID, userID, message string) (TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return TurnResult{}, fmt.Errorf("coaching: empty message")
	}
	start := c.now()
	defer func() {
		c.metrics.ObserveTurnDuration(c.now().Sub(start).Seconds())
	}()

	session, release := c.sessions.Acquire(ctx, sessionID, userID)
	defer release()

	userMsg := NewUserMessage(message, c.now())
	session.AppendMessage(userMsg)

	safety := c.sentinel.ScreenInput(ctx, message, userID)
	if safety.IsIntervention {
		session.AddSafetyFlag(string(safety.Category))
		session.AppendMessage(NewAgentMessage(safety.Response, "sentinel", c.now(), true))
		c.sessions.Persist(ctx, session)
		return TurnResult{
			SessionID:        session.SessionID,
			Reply:            safety.Response,
			AgentID:          "sentinel",
			ContributorIDs:   []string{"sentinel"},
			SafetyOverride:   true,
			RequiresFollowUp: safety.FollowUpRequired,
		}, nil
	}

	if medical := c.boundary.Screen(ctx, message, userID); medical.Redirected {
		session.AppendMessage(NewAgentMessage(medical.Response, "medical_boundary", c.now(), true))
		c.sessions.Persist(ctx, session)
		return TurnResult{
			SessionID:       session.SessionID,
			Reply:           medical.Response,
			AgentID:         "medical_boundary",
			ContributorIDs:  []string{"medical_boundary"},
			MedicalRedirect: true,
		}, nil
	}

	snapshot := session.Snapshot()
	accepted := c.registry.Route(userMsg, snapshot)
	req := SpecialistRequest{Message: userMsg, Context: snapshot}
	results := c.registry.Invoke(ctx, accepted, req, func(agentID string, err error) {
		c.metrics.ObserveSpecialistError(agentID)
		if _, auditErr := c.auditor.LogEvent(ctx, audit.Event{
			EventType:   audit.EventSystemDecision,
			Severity:    audit.SeverityError,
			UserID:      userID,
			AgentID:     agentID,
			SessionID:   session.SessionID,
			Action:      "specialist_failure",
			Description: "specialist failed to process message",
			Metadata:    map[string]any{"error": err.Error()},
		}); auditErr != nil {
			c.logger.Error("failed to audit specialist failure", "error", auditErr, "agent", agentID)
		}
	})

	composed := Compose(results)
	reply := composed.Text
	agentID := composed.PrimaryAgentID
	if composed.UsedFallback {
		agentID = "concierge"
	}

	medicalOut := false
	if violation := c.boundary.ScreenOutgoing(ctx, reply, userID); violation.Violated {
		reply = violation.Replacement
		medicalOut = true
	}

	safetyOverride := false
	if veto := c.sentinel.VetoResponse(ctx, reply, message, userID); veto.ShouldVeto {
		reply = veto.AlternativeResponse
		agentID = "sentinel"
		safetyOverride = true
		session.AddSafetyFlag("veto")
	}

	session.AppendMessage(NewAgentMessage(reply, agentID, c.now(), true))
	c.sessions.Persist(ctx, session)

	if _, err := c.auditor.LogEvent(ctx, audit.Event{
		EventType:   audit.EventAgentInteraction,
		Severity:    audit.SeverityInfo,
		UserID:      userID,
		AgentID:     agentID,
		SessionID:   session.SessionID,
		Action:      "turn_completed",
		Description: "concierge turn completed",
		Metadata: map[string]any{
			"contributors":     composed.ContributorIDs,
			"used_fallback":    composed.UsedFallback,
			"safety_override":  safetyOverride,
			"medical_outgoing": medicalOut,
			"specialists":      len(accepted),
		},
	}); err != nil {
		c.logger.Error("failed to audit turn", "error", err, "session_id", session.SessionID)
	}

	return TurnResult{
		SessionID:        session.SessionID,
		Reply:            reply,
		AgentID:          agentID,
		ContributorIDs:   composed.ContributorIDs,
		SafetyOverride:   safetyOverride,
		MedicalRedirect:  medicalOut,
		RequiresFollowUp: composed.RequiresFollowUp,
		UsedFallback:     composed.UsedFallback,
	}, nil
}

// ClearSession discards a session's state and audits the deletion.
func (c *Concierge) ClearSession(ctx context.Context, sessionID, userID string) {
	c.sessions.Clear(ctx, sessionID)
	if _, err := c.auditor.LogEvent(ctx, audit.Event{
		EventType:   audit.EventDataDeletion,
		Severity:    audit.SeverityInfo,
		UserID:      userID,
		SessionID:   sessionID,
		Action:      "session_cleared",
		Description: "conversation session state cleared on request",
	}); err != nil {
		c.logger.Error("failed to audit session clear", "error", err, "session_id", sessionID)
	}
}
