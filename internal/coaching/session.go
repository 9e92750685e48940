package coaching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// maxHistoryMessages bounds per-session history; oldest messages are evicted
// first.
const maxHistoryMessages = 20

// ConversationContext is the per-session conversational state. Owned
// exclusively by the orchestrator and mutated only under the session's lock.
type ConversationContext struct {
	SessionID       string                `json:"session_id"`
	UserID          string                `json:"user_id"`
	Messages        []ConversationMessage `json:"messages"`
	Profile         UserProfile           `json:"profile"`
	CurrentTopic    string                `json:"current_topic,omitempty"`
	LastInteraction time.Time             `json:"last_interaction"`
	SafetyFlags     []string              `json:"safety_flags,omitempty"`
}

// AppendMessage adds a message, evicting the oldest when the bound is hit.
func (c *ConversationContext) AppendMessage(msg ConversationMessage) {
	c.Messages = append(c.Messages, msg)
	if len(c.Messages) > maxHistoryMessages {
		c.Messages = c.Messages[len(c.Messages)-maxHistoryMessages:]
	}
	c.LastInteraction = msg.Timestamp
}

// AddSafetyFlag accumulates a safety flag string on the session.
func (c *ConversationContext) AddSafetyFlag(flag string) {
	c.SafetyFlags = append(c.SafetyFlags, flag)
}

// Snapshot returns a deep copy safe to hand to specialists, which must not
// mutate context.
func (c *ConversationContext) Snapshot() ConversationContext {
	clone := *c
	clone.Messages = make([]ConversationMessage, len(c.Messages))
	copy(clone.Messages, c.Messages)
	clone.SafetyFlags = make([]string, len(c.SafetyFlags))
	copy(clone.SafetyFlags, c.SafetyFlags)
	clone.Profile.MedicalFlags = make([]string, len(c.Profile.MedicalFlags))
	copy(clone.Profile.MedicalFlags, c.Profile.MedicalFlags)
	return clone
}

// NewUserMessage builds an immutable user message.
func NewUserMessage(content string, at time.Time) ConversationMessage {
	return ConversationMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: at,
		Sender:    SenderUser,
	}
}

// NewAgentMessage builds an immutable agent message.
func NewAgentMessage(content, agentID string, at time.Time, safetyChecked bool) ConversationMessage {
	return ConversationMessage{
		ID:            uuid.NewString(),
		Content:       content,
		Timestamp:     at,
		Sender:        SenderAgent,
		AgentID:       agentID,
		SafetyChecked: safetyChecked,
	}
}

// SnapshotStore optionally persists session state across restarts. The
// in-memory map remains the source of truth during a turn.
type SnapshotStore interface {
	Save(ctx context.Context, session ConversationContext) error
	Load(ctx context.Context, sessionID string) (ConversationContext, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type sessionEntry struct {
	mu  sync.Mutex
	ctx *ConversationContext
}

// SessionManager owns the session-id → ConversationContext map. Access is
// serialized per key: one turn per session completes before the next begins,
// while different sessions proceed in parallel.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	snapshots SnapshotStore
	ttl       time.Duration
	sweepEach time.Duration
	lastSweep time.Time
	logger    *logging.Logger
	now       func() time.Time
}

// SessionOption configures the manager.
type SessionOption func(*SessionManager)

// WithSnapshotStore enables cross-restart persistence of session state.
func WithSnapshotStore(store SnapshotStore) SessionOption {
	return func(m *SessionManager) { m.snapshots = store }
}

// WithSessionTTL overrides the idle eviction TTL.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSweepInterval overrides how often the idle sweep runs.
func WithSweepInterval(every time.Duration) SessionOption {
	return func(m *SessionManager) {
		if every > 0 {
			m.sweepEach = every
		}
	}
}

// WithSessionClock overrides the time source. Used by tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager creates an empty manager.
func NewSessionManager(logger *logging.Logger, opts ...SessionOption) *SessionManager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &SessionManager{
		sessions:  make(map[string]*sessionEntry),
		ttl:       24 * time.Hour,
		sweepEach: 10 * time.Minute,
		logger:    logger.Component("sessions"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

// Acquire returns the session context with its per-session lock held. The
// returned release function must be called when the turn completes. Sessions
// are created on first use, hydrating from the snapshot store when present.
func (m *SessionManager) Acquire(ctx context.Context, sessionID, userID string) (*ConversationContext, func()) {
	m.mu.Lock()
	m.maybeSweepLocked()
	entry, ok := m.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{}
		m.sessions[sessionID] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	if entry.ctx == nil {
		entry.ctx = m.hydrate(ctx, sessionID, userID)
	}
	return entry.ctx, entry.mu.Unlock
}

func (m *SessionManager) hydrate(ctx context.Context, sessionID, userID string) *ConversationContext {
	if m.snapshots != nil {
		snapshot, found, err := m.snapshots.Load(ctx, sessionID)
		if err != nil {
			m.logger.Warn("session snapshot load failed, starting fresh", "error", err, "session_id", sessionID)
		} else if found {
			return &snapshot
		}
	}
	return &ConversationContext{
		SessionID:       sessionID,
		UserID:          userID,
		LastInteraction: m.now(),
	}
}

// Persist writes the session to the snapshot store, if one is configured.
// Called by the orchestrator after the terminal append.
func (m *SessionManager) Persist(ctx context.Context, session *ConversationContext) {
	if m.snapshots == nil || session == nil {
		return
	}
	if err := m.snapshots.Save(ctx, session.Snapshot()); err != nil {
		m.logger.Warn("session snapshot save failed", "error", err, "session_id", session.SessionID)
	}
}

// Clear destroys a session explicitly. It waits for any in-flight turn on
// the session to finish first, so that turn's terminal Persist cannot
// resurrect state the caller asked to delete.
func (m *SessionManager) Clear(ctx context.Context, sessionID string) {
	m.mu.Lock()
	entry, ok := m.sessions[sessionID]
	m.mu.Unlock()

	if ok {
		entry.mu.Lock()
		m.mu.Lock()
		if m.sessions[sessionID] == entry {
			delete(m.sessions, sessionID)
		}
		m.mu.Unlock()
		entry.mu.Unlock()
	}

	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, sessionID); err != nil {
			m.logger.Warn("session snapshot delete failed", "error", err, "session_id", sessionID)
		}
	}
}

// Len reports the number of resident sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// maybeSweepLocked evicts idle sessions. Caller holds m.mu. Entries whose
// per-session lock is currently held are skipped; they are by definition not
// idle.
func (m *SessionManager) maybeSweepLocked() {
	now := m.now()
	if now.Sub(m.lastSweep) < m.sweepEach {
		return
	}
	m.lastSweep = now

	for id, entry := range m.sessions {
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.ctx != nil && now.Sub(entry.ctx.LastInteraction) > m.ttl
		entry.mu.Unlock()
		if idle {
			delete(m.sessions, id)
		}
	}
}
