package coaching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisSnapshotStore persists session snapshots to Redis with an idle TTL,
// so conversations survive process restarts.
type RedisSnapshotStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

var _ SnapshotStore = (*RedisSnapshotStore)(nil)

// NewRedisSnapshotStore creates a Redis-backed snapshot store.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if client == nil {
		panic("coaching: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSnapshotStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("vitracka.internal.coaching.sessions"),
	}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Save persists a session snapshot, refreshing its TTL.
func (s *RedisSnapshotStore) Save(ctx context.Context, session ConversationContext) error {
	ctx, span := s.tracer.Start(ctx, "coaching.save_session")
	defer span.End()
	span.SetAttributes(attribute.String("vitracka.session_id", session.SessionID))

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("coaching: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.SessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("coaching: failed to persist session: %w", err)
	}
	return nil
}

// Load retrieves a session snapshot. The second return is false when the
// session is unknown or expired.
func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID string) (ConversationContext, bool, error) {
	ctx, span := s.tracer.Start(ctx, "coaching.load_session")
	defer span.End()
	span.SetAttributes(attribute.String("vitracka.session_id", sessionID))

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ConversationContext{}, false, nil
		}
		span.RecordError(err)
		return ConversationContext{}, false, fmt.Errorf("coaching: failed to load session: %w", err)
	}

	var session ConversationContext
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return ConversationContext{}, false, fmt.Errorf("coaching: failed to decode session: %w", err)
	}
	return session, true, nil
}

// Delete removes a session snapshot.
func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "coaching.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("coaching: failed to delete session: %w", err)
	}
	return nil
}
