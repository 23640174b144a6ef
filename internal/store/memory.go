package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

// MemoryStore keeps meetings in process memory. It backs tests and
// short-lived development runs; nothing survives a restart.
type MemoryStore struct {
	retention time.Duration

	mu       sync.RWMutex
	meetings map[string]meeting.Meeting
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		meetings:  make(map[string]meeting.Meeting),
	}
}

// Save upserts the meeting keyed by id.
func (s *MemoryStore) Save(_ context.Context, m *meeting.Meeting) (string, error) {
	stampExpiry(m, s.retention, time.Now().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = *m
	return m.ID, nil
}

// Load returns the meeting, treating expired entries as absent.
func (s *MemoryStore) Load(_ context.Context, id string) (*meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok || !m.ExpiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}
	out := m
	return &out, nil
}

// Recent lists the latest unexpired meetings for a guild, newest first.
func (s *MemoryStore) Recent(_ context.Context, guildID string, limit int) ([]meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []meeting.Meeting
	for _, m := range s.meetings {
		if m.GuildID == guildID && m.ExpiresAt.After(now) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneExpired deletes meetings past their retention expiry.
func (s *MemoryStore) PruneExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var pruned int64
	for id, m := range s.meetings {
		if !m.ExpiresAt.After(now) {
			delete(s.meetings, id)
			pruned++
		}
	}
	return pruned, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Len reports the number of stored meetings, for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}
