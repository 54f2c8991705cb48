// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory StateStore intended for tests and local
// iteration. Not durable; not suitable for production.
type MemoryStore struct {
	mu sync.RWMutex

	sessions    map[string]*SessionRecord
	transitions map[string][]TransitionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*SessionRecord),
		transitions: make(map[string][]TransitionRecord),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	cpy := *rec
	m.sessions[rec.SessionID] = &cpy
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cpy := *rec
	return &cpy, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, filter Filter) ([]*SessionRecord, error) {
	m.mu.RLock()
	list := make([]*SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		if !filter.matches(rec.State) {
			continue
		}
		cpy := *rec
		list = append(list, &cpy)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAtMs != list[j].UpdatedAtMs {
			return list[i].UpdatedAtMs > list[j].UpdatedAtMs
		}
		return list[i].SessionID < list[j].SessionID
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.transitions, id)
	return nil
}

func (m *MemoryStore) AppendTransition(ctx context.Context, tr TransitionRecord) error {
	m.mu.Lock()
	m.transitions[tr.SessionID] = append(m.transitions[tr.SessionID], tr)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Transitions(ctx context.Context, sessionID string) ([]TransitionRecord, error) {
	m.mu.RLock()
	src := m.transitions[sessionID]
	out := make([]TransitionRecord, len(src))
	copy(out, src)
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Ensure interface compliance at compile time.
var _ StateStore = (*MemoryStore)(nil)
