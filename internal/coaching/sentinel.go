package coaching

import (
	"context"
	"time"

	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/observability/metrics"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// Detector maps text to trigger matches. The default is the package table
// detector; tests inject failing implementations to exercise the fail-closed
// path.
type Detector interface {
	Detect(text string) []TriggerMatch
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(text string) []TriggerMatch

// Detect implements Detector.
func (f DetectorFunc) Detect(text string) []TriggerMatch { return f(text) }

// Notifier delivers admin notifications for interventions that require one.
// Failures are logged but never block the intervention reply.
type Notifier func(ctx context.Context, intervention SafetyIntervention) error

// Sentinel decides whether to intervene on an incoming message and whether
// to veto an already-composed reply. Highest authority in the pipeline.
type Sentinel struct {
	detector Detector
	picker   *templatePicker
	auditor  *audit.Logger
	notifier Notifier
	metrics  *metrics.ConciergeMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// SentinelOption configures the sentinel.
type SentinelOption func(*Sentinel)

// WithDetector overrides the trigger detector.
func WithDetector(d Detector) SentinelOption {
	return func(s *Sentinel) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithNotifier installs the admin notification path.
func WithNotifier(n Notifier) SentinelOption {
	return func(s *Sentinel) { s.notifier = n }
}

// WithTemplateSeed seeds template selection so tests can assert exact
// responses.
func WithTemplateSeed(seed int64) SentinelOption {
	return func(s *Sentinel) { s.picker = newTemplatePicker(seed) }
}

// WithSentinelClock overrides the time source.
func WithSentinelClock(now func() time.Time) SentinelOption {
	return func(s *Sentinel) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSentinel creates the safety sentinel. The audit logger is mandatory:
// an intervention without an audit trail is a compliance failure.
func NewSentinel(auditor *audit.Logger, m *metrics.ConciergeMetrics, logger *logging.Logger, opts ...SentinelOption) *Sentinel {
	if auditor == nil {
		panic("coaching: sentinel audit logger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sentinel{
		detector: DetectorFunc(Detect),
		picker:   newTemplatePicker(time.Now().UnixNano()),
		auditor:  auditor,
		metrics:  m,
		logger:   logger.Component("sentinel"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScreenInput screens an incoming user message. If the detector or template
// selection panics, the sentinel fails closed: the turn is treated as a
// crisis intervention rather than allowed through unchecked.
func (s *Sentinel) ScreenInput(ctx context.Context, message, userID string) (resp SafetyResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sentinel screening failed, failing closed", "panic", r, "user_id", userID)
			resp = s.failClosed(ctx, userID)
		}
	}()

	matches := s.detector.Detect(message)
	dominant, ok := Dominant(matches)
	if !ok {
		return SafetyResponse{IsIntervention: false}
	}

	kind := templateKindFor(dominant.Category, dominant.Severity)
	response := s.picker.pick(kind)
	notify := notificationRequired(dominant.Category, dominant.Severity)

	resp = SafetyResponse{
		IsIntervention:       true,
		Category:             dominant.Category,
		Severity:             dominant.Severity,
		Response:             response,
		OverridesOtherAgents: true,
		FollowUpRequired:     dominant.Severity == SeverityCritical || dominant.Severity == SeverityHigh,
		MatchedPhrases:       MatchedPhrases(matches),
	}

	intervention := SafetyIntervention{
		UserID:           userID,
		Category:         dominant.Category,
		Severity:         dominant.Severity,
		TriggerContent:   dominant.Phrase,
		Response:         response,
		FollowUpRequired: resp.FollowUpRequired,
		Timestamp:        s.now(),
	}

	if notify {
		intervention.AdminNotified = s.notifyAdmin(ctx, intervention)
		resp.AdminNotified = intervention.AdminNotified
	}

	s.recordIntervention(ctx, intervention, resp.MatchedPhrases, "input_screen")
	return resp
}

// VetoResponse re-screens both the original message and the candidate reply.
// If either still triggers detection the composed reply is replaced.
func (s *Sentinel) VetoResponse(ctx context.Context, candidateReply, originalMessage, userID string) (decision VetoDecision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sentinel veto check failed, failing closed", "panic", r, "user_id", userID)
			decision = VetoDecision{
				ShouldVeto:          true,
				Reason:              "veto check failure",
				AlternativeResponse: genericCrisisResponse,
			}
			s.recordVeto(ctx, originalMessage, userID, decision)
		}
	}()

	inputMatches := s.detector.Detect(originalMessage)
	replyMatches := s.detector.Detect(candidateReply)

	if len(inputMatches) == 0 && len(replyMatches) == 0 {
		return VetoDecision{ShouldVeto: false}
	}

	all := append(sortMatches(inputMatches), replyMatches...)
	reason := "composed reply re-triggered detection"
	if len(inputMatches) > 0 {
		reason = "original message triggered detection after composition"
	}

	decision = VetoDecision{
		ShouldVeto:          true,
		Reason:              reason,
		AlternativeResponse: vetoResponseText,
		MatchedPhrases:      MatchedPhrases(all),
	}
	s.recordVeto(ctx, originalMessage, userID, decision)
	return decision
}

// failClosed builds the generic crisis intervention. The raw message is
// withheld from the record since detection state is unknown.
func (s *Sentinel) failClosed(ctx context.Context, userID string) SafetyResponse {
	resp := SafetyResponse{
		IsIntervention:       true,
		Category:             CategorySelfHarm,
		Severity:             SeverityCritical,
		Response:             genericCrisisResponse,
		OverridesOtherAgents: true,
		FollowUpRequired:     true,
	}

	intervention := SafetyIntervention{
		UserID:           userID,
		Category:         resp.Category,
		Severity:         resp.Severity,
		TriggerContent:   "detection failure",
		Response:         resp.Response,
		FollowUpRequired: true,
		Timestamp:        s.now(),
	}
	intervention.AdminNotified = s.notifyAdmin(ctx, intervention)
	resp.AdminNotified = intervention.AdminNotified

	s.recordIntervention(ctx, intervention, nil, "fail_closed")
	return resp
}

// notificationRequired implements the single admin-notification rule:
// critical severity always notifies; high severity notifies for self-harm
// and medical emergencies.
func notificationRequired(category TriggerCategory, severity TriggerSeverity) bool {
	if severity == SeverityCritical {
		return true
	}
	if severity == SeverityHigh {
		return category == CategorySelfHarm || category == CategoryMedicalEmergency
	}
	return false
}

func (s *Sentinel) notifyAdmin(ctx context.Context, intervention SafetyIntervention) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier(ctx, intervention); err != nil {
		s.logger.Error("admin notification failed",
			"error", err,
			"user_id", intervention.UserID,
			"category", string(intervention.Category),
		)
		return false
	}
	return true
}

// recordIntervention writes the SafetyIntervention audit record before the
// turn completes. Persistence failure is itself a critical condition but the
// intervention reply is still returned to the caller.
func (s *Sentinel) recordIntervention(ctx context.Context, intervention SafetyIntervention, matchedPhrases []string, trigger string) {
	s.metrics.ObserveIntervention(string(intervention.Category), string(intervention.Severity))

	_, err := s.auditor.LogSafetyEvent(ctx, audit.Event{
		Severity:    auditSeverityFor(intervention.Severity),
		UserID:      intervention.UserID,
		AgentID:     "safety_sentinel",
		Action:      "safety_intervention",
		Description: "sentinel intervened on " + trigger,
		Metadata: map[string]any{
			"category":           string(intervention.Category),
			"severity":           string(intervention.Severity),
			"trigger_content":    intervention.TriggerContent,
			"matched_phrases":    matchedPhrases,
			"response":           intervention.Response,
			"admin_notified":     intervention.AdminNotified,
			"follow_up_required": intervention.FollowUpRequired,
			"timestamp":          intervention.Timestamp,
		},
	})
	if err != nil {
		s.metrics.ObserveAuditFailure()
		s.logger.Error("CRITICAL: safety intervention not durably audited",
			"error", err,
			"user_id", intervention.UserID,
			"category", string(intervention.Category),
		)
	}
}

func (s *Sentinel) recordVeto(ctx context.Context, originalMessage, userID string, decision VetoDecision) {
	s.metrics.ObserveVeto()

	_, err := s.auditor.LogSafetyEvent(ctx, audit.Event{
		Severity:    audit.SeverityWarning,
		UserID:      userID,
		AgentID:     "safety_sentinel",
		Action:      "response_vetoed",
		Description: decision.Reason,
		Metadata: map[string]any{
			"matched_phrases":  decision.MatchedPhrases,
			"original_message": originalMessage,
		},
	})
	if err != nil {
		s.metrics.ObserveAuditFailure()
		s.logger.Error("CRITICAL: veto decision not durably audited", "error", err, "user_id", userID)
	}
}

func auditSeverityFor(severity TriggerSeverity) audit.Severity {
	switch severity {
	case SeverityCritical:
		return audit.SeverityCritical
	case SeverityHigh:
		return audit.SeverityError
	case SeverityMedium:
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}
