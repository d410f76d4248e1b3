package session

import (
	"context"
	"sync"
	"time"

	"duit/internal/core"
)

// MemoryStore keeps sessions in a process-local map. Sessions live for the
// process lifetime unless cleared.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[core.OwnerID]*Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[core.OwnerID]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, owner core.OwnerID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[owner]
	if !ok {
		s = &Session{Owner: owner, State: Idle, UpdatedAt: time.Now()}
		m.sessions[owner] = s
	}
	copied := *s
	return &copied, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	copied.UpdatedAt = time.Now()
	m.sessions[s.Owner] = &copied
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, owner core.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, owner)
	return nil
}
