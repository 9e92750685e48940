package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationFor(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      Classification
	}{
		{EventSafetyIntervention, ClassificationRestricted},
		{EventAgentInteraction, ClassificationConfidential},
		{EventAuthentication, ClassificationConfidential},
		{EventProfileUpdate, ClassificationConfidential},
		{EventWeightEntry, ClassificationConfidential},
		{EventSystemDecision, ClassificationInternal},
		{EventAdminAction, ClassificationInternal},
		{EventType("unknown"), ClassificationInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassificationFor(tt.eventType), "event type %s", tt.eventType)
	}
}

func TestRetentionStrictlyIncreasesWithSensitivity(t *testing.T) {
	public := RetentionDays(ClassificationPublic)
	internal := RetentionDays(ClassificationInternal)
	confidential := RetentionDays(ClassificationConfidential)
	restricted := RetentionDays(ClassificationRestricted)

	assert.Less(t, public, internal)
	assert.Less(t, internal, confidential)
	assert.Less(t, confidential, restricted)
}

func TestLogEventDerivesFlags(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, nil)

	entry, err := logger.LogEvent(context.Background(), Event{
		EventType: EventAgentInteraction,
		Severity:  SeverityInfo,
		UserID:    "user-1",
		SessionID: "sess-1",
		Action:    "turn_completed",
		Metadata:  map[string]any{"agent": "coach"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, ClassificationConfidential, entry.Classification)
	assert.Equal(t, 365, entry.RetentionDays)
	assert.False(t, entry.RequiresAdminReview)
	assert.False(t, entry.SafetyRelated)
	assert.NotEmpty(t, entry.Metadata)
}

func TestCriticalSeverityForcesReview(t *testing.T) {
	logger := NewLogger(NewMemoryStore(), nil)

	entry, err := logger.LogEvent(context.Background(), Event{
		EventType: EventSystemDecision,
		Severity:  SeverityCritical,
		Action:    "audit_write_failed",
	})
	require.NoError(t, err)
	assert.True(t, entry.RequiresAdminReview)
}

func TestLogSafetyEventAlwaysRestrictedAndAlerted(t *testing.T) {
	store := NewMemoryStore()
	alerted := 0
	logger := NewLogger(store, nil, WithAlertFunc(func(_ context.Context, entry Entry) {
		alerted++
		assert.True(t, entry.SafetyRelated)
	}))

	entry, err := logger.LogSafetyEvent(context.Background(), Event{
		UserID: "user-1",
		Action: "crisis_intervention",
		// Override attempts must not lower the classification.
		ClassificationOverride: ClassificationPublic,
	})
	require.NoError(t, err)

	assert.Equal(t, EventSafetyIntervention, entry.EventType)
	assert.Equal(t, ClassificationRestricted, entry.Classification)
	assert.True(t, entry.SafetyRelated)
	assert.True(t, entry.RequiresAdminReview)
	assert.Equal(t, 1, alerted)

	stored, err := store.List(context.Background(), Filter{SafetyOnly: true})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestMarkReviewedAuditsItself(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		entry, err := logger.LogSafetyEvent(ctx, Event{Action: "crisis_intervention"})
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	updated, err := logger.MarkReviewed(ctx, ids, "dr-admin")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	// Exactly one new admin-action entry referencing the reviewed set.
	adminEntries, err := store.List(ctx, Filter{EventType: EventAdminAction})
	require.NoError(t, err)
	require.Len(t, adminEntries, 1)
	for _, id := range ids {
		assert.Contains(t, string(adminEntries[0].Metadata), id)
	}

	pending, err := logger.GetEntriesForReview(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkReviewedRequiresIDs(t *testing.T) {
	logger := NewLogger(NewMemoryStore(), nil)
	_, err := logger.MarkReviewed(context.Background(), nil, "dr-admin")
	assert.ErrorIs(t, err, ErrNoIDs)
}

func TestCleanupExpiredRequiresReview(t *testing.T) {
	store := NewMemoryStore()
	past := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	logger := NewLogger(store, nil, WithClock(func() time.Time { return past }))
	ctx := context.Background()

	reviewed, err := logger.LogEvent(ctx, Event{EventType: EventSystemDecision, Action: "routing"})
	require.NoError(t, err)
	_, err = logger.LogEvent(ctx, Event{EventType: EventSystemDecision, Severity: SeverityCritical, Action: "unreviewed"})
	require.NoError(t, err)

	_, err = store.MarkReviewed(ctx, []string{reviewed.ID}, "dr-admin", past)
	require.NoError(t, err)

	// Jump far past every retention tier.
	now := past.AddDate(30, 0, 0)
	cleanupLogger := NewLogger(store, nil, WithClock(func() time.Time { return now }))
	deleted, err := cleanupLogger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.List(ctx, Filter{EventType: EventSystemDecision})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "unreviewed", remaining[0].Action)

	// The cleanup itself was audited.
	deletions, err := store.List(ctx, Filter{EventType: EventDataDeletion})
	require.NoError(t, err)
	assert.Len(t, deletions, 1)
}

func TestAsyncRoutineWritesFlushOnClose(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, nil, WithAsyncRoutineWrites(time.Hour))
	ctx := context.Background()

	_, err := logger.LogEvent(ctx, Event{EventType: EventAgentInteraction, Action: "turn_completed"})
	require.NoError(t, err)

	// Safety events bypass the batch and are visible immediately.
	_, err = logger.LogSafetyEvent(ctx, Event{Action: "crisis_intervention"})
	require.NoError(t, err)
	safety, err := store.List(ctx, Filter{SafetyOnly: true})
	require.NoError(t, err)
	assert.Len(t, safety, 1)

	logger.Close()

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPersistenceErrorHookFires(t *testing.T) {
	failing := &failingStore{err: errors.New("db down")}
	var hookErr error
	logger := NewLogger(failing, nil,
		WithAsyncRoutineWrites(time.Hour),
		WithPersistenceErrorHook(func(_ Entry, err error) { hookErr = err }),
	)

	_, err := logger.LogEvent(context.Background(), Event{EventType: EventAgentInteraction, Action: "turn"})
	require.NoError(t, err)

	logger.Close()
	assert.ErrorContains(t, hookErr, "db down")
}

func TestCloseReportsDrainFailures(t *testing.T) {
	failing := &failingStore{err: errors.New("db down")}
	logger := NewLogger(failing, nil, WithAsyncRoutineWrites(time.Hour))

	_, err := logger.LogEvent(context.Background(), Event{EventType: EventAgentInteraction, Action: "turn"})
	require.NoError(t, err)

	assert.ErrorContains(t, logger.Close(), "db down")
}

func TestCloseWithoutAsyncWritesReturnsNil(t *testing.T) {
	logger := NewLogger(NewMemoryStore(), nil)
	assert.NoError(t, logger.Close())
}

type failingStore struct {
	err error
}

func (f *failingStore) Insert(context.Context, Entry) error { return f.err }
func (f *failingStore) List(context.Context, Filter) ([]Entry, error) {
	return nil, f.err
}
func (f *failingStore) MarkReviewed(context.Context, []string, string, time.Time) (int, error) {
	return 0, f.err
}
func (f *failingStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, f.err
}

func TestRequestIDFilledFromContext(t *testing.T) {
	type ctxKey struct{}
	store := NewMemoryStore()
	logger := NewLogger(store, nil,
		WithRequestIDFromContext(func(ctx context.Context) string {
			id, _ := ctx.Value(ctxKey{}).(string)
			return id
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")

	entry, err := logger.LogEvent(ctx, Event{EventType: EventAgentInteraction, Action: "turn_completed"})
	require.NoError(t, err)
	assert.Equal(t, "req-42", entry.RequestID)

	// Explicit request ids are never overwritten.
	entry, err = logger.LogSafetyEvent(ctx, Event{Action: "intervention", RequestID: "req-explicit"})
	require.NoError(t, err)
	assert.Equal(t, "req-explicit", entry.RequestID)
}
