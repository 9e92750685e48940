package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Insert appends an entry.
func (s *MemoryStore) Insert(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

// List returns entries matching the filter, oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for _, entry := range s.entries {
		if !matches(entry, filter) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matches(entry Entry, filter Filter) bool {
	if filter.EventType != "" && entry.EventType != filter.EventType {
		return false
	}
	if filter.Severity != "" && entry.Severity != filter.Severity {
		return false
	}
	if filter.SafetyOnly && !entry.SafetyRelated {
		return false
	}
	if filter.PendingReview && (!entry.RequiresAdminReview || entry.AdminReviewed) {
		return false
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && entry.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

// MarkReviewed sets the review fields on each known entry.
func (s *MemoryStore) MarkReviewed(_ context.Context, ids []string, reviewer string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, id := range ids {
		entry, ok := s.entries[id]
		if !ok || entry.AdminReviewed {
			continue
		}
		entry.AdminReviewed = true
		entry.ReviewedBy = reviewer
		reviewedAt := at
		entry.ReviewedAt = &reviewedAt
		s.entries[id] = entry
		updated++
	}
	return updated, nil
}

// DeleteExpired removes entries past retention that have been reviewed.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, entry := range s.entries {
		if entry.AdminReviewed && now.After(entry.ExpiresAt()) {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}
