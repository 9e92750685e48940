// Package audit provides the compliance audit trail for the coaching
// concierge: append-only entries with automatic classification, retention
// assignment, and an admin review workflow.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// EventType represents the type of audited event.
type EventType string

const (
	// EventAgentInteraction is logged for every completed conversation turn.
	EventAgentInteraction EventType = "agent_interaction"
	// EventSafetyIntervention is logged when the safety sentinel intervenes or vetoes.
	EventSafetyIntervention EventType = "safety_intervention"
	// EventSystemDecision is logged for routing and composition decisions.
	EventSystemDecision EventType = "system_decision"
	// EventAdminAction is logged for admin operations, including audit review itself.
	EventAdminAction EventType = "admin_action"
	// EventDataExport is logged when audit data leaves the system.
	EventDataExport EventType = "data_export"
	// EventDataDeletion is logged when audit data is removed.
	EventDataDeletion EventType = "data_deletion"
	// EventAuthentication is logged for authentication decisions.
	EventAuthentication EventType = "authentication"
	// EventProfileUpdate is logged when a user profile snapshot changes.
	EventProfileUpdate EventType = "profile_update"
	// EventWeightEntry is logged when a weight entry is recorded.
	EventWeightEntry EventType = "weight_entry"
)

// Severity ranks how urgently an audit entry should be looked at.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Classification is the sensitivity tier governing retention and access.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// Retention tiers in days. Retention strictly increases with sensitivity.
const (
	retentionPublicDays       = 90
	retentionInternalDays     = 180
	retentionConfidentialDays = 365
	retentionRestrictedDays   = 2555 // seven years
)

// Entry is an immutable audit record. Only the review fields are ever
// updated after creation.
type Entry struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	EventType           EventType       `json:"event_type"`
	Severity            Severity        `json:"severity"`
	UserID              string          `json:"user_id,omitempty"`
	AgentID             string          `json:"agent_id,omitempty"`
	SessionID           string          `json:"session_id,omitempty"`
	RequestID           string          `json:"request_id,omitempty"`
	Action              string          `json:"action"`
	Description         string          `json:"description,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	SafetyRelated       bool            `json:"safety_related"`
	RequiresAdminReview bool            `json:"requires_admin_review"`
	AdminReviewed       bool            `json:"admin_reviewed"`
	ReviewedBy          string          `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time      `json:"reviewed_at,omitempty"`
	Classification      Classification  `json:"classification"`
	RetentionDays       int             `json:"retention_days"`
}

// ExpiresAt returns the earliest instant the entry becomes eligible for
// cleanup. Eligibility additionally requires AdminReviewed.
func (e Entry) ExpiresAt() time.Time {
	return e.Timestamp.AddDate(0, 0, e.RetentionDays)
}

// Event is the caller-facing input to LogEvent.
type Event struct {
	EventType   EventType
	Severity    Severity
	UserID      string
	AgentID     string
	SessionID   string
	RequestID   string
	Action      string
	Description string
	Metadata    map[string]any
	// ClassificationOverride forces a classification instead of deriving it
	// from the event type. Must not lower a safety event below restricted.
	ClassificationOverride Classification
	SafetyRelated          bool
}

// Filter selects entries for the query surface.
type Filter struct {
	EventType     EventType
	Severity      Severity
	SafetyOnly    bool
	PendingReview bool
	Since         time.Time
	Until         time.Time
	Limit         int
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	MarkReviewed(ctx context.Context, ids []string, reviewer string, at time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// AlertFunc receives safety entries on the synchronous alert path.
type AlertFunc func(ctx context.Context, entry Entry)

// ErrNoIDs is returned when MarkReviewed is called with an empty id set.
var ErrNoIDs = errors.New("audit: no entry ids supplied")

// Logger is the append-only audit sink. Safety entries are written
// synchronously; routine entries may be batched when async mode is enabled.
type Logger struct {
	store     Store
	log       *logging.Logger
	alert     AlertFunc
	now       func() time.Time
	writer    *asyncWriter
	onError   func(Entry, error)
	requestID func(context.Context) string
}

// Option configures the Logger.
type Option func(*Logger)

// WithAlertFunc installs the synchronous alert path for safety entries.
func WithAlertFunc(fn AlertFunc) Option {
	return func(l *Logger) { l.alert = fn }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithAsyncRoutineWrites batches non-safety entries and flushes them on the
// given interval. Safety entries always bypass the batch. Close drains it.
func WithAsyncRoutineWrites(interval time.Duration) Option {
	return func(l *Logger) {
		if interval > 0 {
			l.writer = newAsyncWriter(l, interval)
		}
	}
}

// WithPersistenceErrorHook is invoked when a write fails after the entry has
// already been handed back to the caller.
func WithPersistenceErrorHook(fn func(Entry, error)) Option {
	return func(l *Logger) { l.onError = fn }
}

// WithRequestIDFromContext fills Event.RequestID from the request context
// when the caller left it empty, correlating audit entries with HTTP logs.
func WithRequestIDFromContext(fn func(context.Context) string) Option {
	return func(l *Logger) { l.requestID = fn }
}

// NewLogger creates an audit logger over the supplied store.
func NewLogger(store Store, log *logging.Logger, opts ...Option) *Logger {
	if store == nil {
		panic("audit: store cannot be nil")
	}
	if log == nil {
		log = logging.Default()
	}
	l := &Logger{
		store: store,
		log:   log.Component("audit"),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEvent records an audit entry. Classification and retention are derived
// from the event type unless the caller overrides them.
func (l *Logger) LogEvent(ctx context.Context, evt Event) (Entry, error) {
	l.fillRequestID(ctx, &evt)
	entry := l.build(evt)

	if entry.SafetyRelated || l.writer == nil {
		if err := l.store.Insert(ctx, entry); err != nil {
			return Entry{}, fmt.Errorf("audit: failed to insert entry: %w", err)
		}
		return entry, nil
	}

	l.writer.enqueue(entry)
	return entry, nil
}

// LogSafetyEvent records a safety entry: always restricted, always flagged
// for admin review, always written synchronously, and always pushed down the
// alert path before returning.
func (l *Logger) LogSafetyEvent(ctx context.Context, evt Event) (Entry, error) {
	evt.EventType = EventSafetyIntervention
	evt.SafetyRelated = true
	if evt.Severity == "" {
		evt.Severity = SeverityCritical
	}
	l.fillRequestID(ctx, &evt)

	entry := l.build(evt)
	if err := l.store.Insert(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("audit: failed to insert safety entry: %w", err)
	}

	if l.alert != nil {
		l.alert(ctx, entry)
	}
	return entry, nil
}

func (l *Logger) fillRequestID(ctx context.Context, evt *Event) {
	if evt.RequestID == "" && l.requestID != nil {
		evt.RequestID = l.requestID(ctx)
	}
}

func (l *Logger) build(evt Event) Entry {
	classification := evt.ClassificationOverride
	if classification == "" {
		classification = ClassificationFor(evt.EventType)
	}
	if evt.SafetyRelated {
		// Safety entries never drop below restricted, even on override.
		classification = ClassificationRestricted
	}

	severity := evt.Severity
	if severity == "" {
		severity = SeverityInfo
	}

	var metadata json.RawMessage
	if len(evt.Metadata) > 0 {
		if data, err := json.Marshal(evt.Metadata); err == nil {
			metadata = data
		} else {
			l.log.Warn("failed to encode audit metadata", "error", err, "action", evt.Action)
		}
	}

	return Entry{
		ID:                  uuid.NewString(),
		Timestamp:           l.now(),
		EventType:           evt.EventType,
		Severity:            severity,
		UserID:              evt.UserID,
		AgentID:             evt.AgentID,
		SessionID:           evt.SessionID,
		RequestID:           evt.RequestID,
		Action:              evt.Action,
		Description:         evt.Description,
		Metadata:            metadata,
		SafetyRelated:       evt.SafetyRelated,
		RequiresAdminReview: evt.SafetyRelated || severity == SeverityCritical,
		Classification:      classification,
		RetentionDays:       RetentionDays(classification),
	}
}

// GetEntriesForReview lists entries awaiting admin review, oldest first.
func (l *Logger) GetEntriesForReview(ctx context.Context, limit int) ([]Entry, error) {
	return l.store.List(ctx, Filter{PendingReview: true, Limit: limit})
}

// List exposes the filtered query surface.
func (l *Logger) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return l.store.List(ctx, filter)
}

// MarkReviewed completes review for the given entries. The review itself is
// audited as an admin action.
func (l *Logger) MarkReviewed(ctx context.Context, ids []string, reviewer string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}
	updated, err := l.store.MarkReviewed(ctx, ids, reviewer, l.now())
	if err != nil {
		return 0, fmt.Errorf("audit: failed to mark entries reviewed: %w", err)
	}

	if _, err := l.LogEvent(ctx, Event{
		EventType:   EventAdminAction,
		Severity:    SeverityInfo,
		UserID:      reviewer,
		Action:      "audit_review_completed",
		Description: fmt.Sprintf("reviewer marked %d audit entries as reviewed", updated),
		Metadata:    map[string]any{"entry_ids": ids, "reviewed_count": updated},
	}); err != nil {
		l.log.Error("failed to audit the review action", "error", err, "reviewer", reviewer)
	}
	return updated, nil
}

// CleanupExpired removes entries whose retention has elapsed and which have
// already been reviewed. Unreviewed entries are never deleted.
func (l *Logger) CleanupExpired(ctx context.Context) (int, error) {
	deleted, err := l.store.DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup failed: %w", err)
	}
	if deleted > 0 {
		if _, err := l.LogEvent(ctx, Event{
			EventType:   EventDataDeletion,
			Severity:    SeverityInfo,
			Action:      "audit_retention_cleanup",
			Description: fmt.Sprintf("removed %d expired, reviewed audit entries", deleted),
		}); err != nil {
			l.log.Error("failed to audit retention cleanup", "error", err)
		}
	}
	return deleted, nil
}

// Close drains any batched routine entries and reports writes that failed
// after their entries were already acknowledged to callers.
func (l *Logger) Close() error {
	if l.writer != nil {
		return l.writer.close()
	}
	return nil
}

func (l *Logger) persistError(entry Entry, err error) {
	l.log.Error("audit entry persistence failed",
		"error", err,
		"entry_id", entry.ID,
		"event_type", string(entry.EventType),
	)
	if l.onError != nil {
		l.onError(entry, err)
	}
}

// ClassificationFor derives the sensitivity tier from the event type.
func ClassificationFor(eventType EventType) Classification {
	switch eventType {
	case EventSafetyIntervention:
		return ClassificationRestricted
	case EventAgentInteraction, EventAuthentication, EventProfileUpdate, EventWeightEntry:
		return ClassificationConfidential
	case EventSystemDecision, EventAdminAction, EventDataExport, EventDataDeletion:
		return ClassificationInternal
	default:
		return ClassificationInternal
	}
}

// RetentionDays maps a classification to its retention tier.
func RetentionDays(classification Classification) int {
	switch classification {
	case ClassificationRestricted:
		return retentionRestrictedDays
	case ClassificationConfidential:
		return retentionConfidentialDays
	case ClassificationInternal:
		return retentionInternalDays
	case ClassificationPublic:
		return retentionPublicDays
	default:
		return retentionRestrictedDays
	}
}
