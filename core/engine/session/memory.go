package session

import (
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore constructs the in-memory Store implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for an identity if it exists.
func (m *memoryStore) Get(identity string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[identity]
	return s, ok
}

// GetOrCreate returns the existing session or stores and returns a fresh one.
func (m *memoryStore) GetOrCreate(identity string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[identity]; ok {
		return s
	}
	s := New(identity)
	m.sessions[identity] = s
	return s
}

// Put replaces the stored session for an identity.
func (m *memoryStore) Put(identity string, s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[identity] = s
}

// Clear removes the entire session for an identity.
func (m *memoryStore) Clear(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
}

// ClearAll removes every session.
func (m *memoryStore) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}

// IdleSince returns identities last seen before cutoff.
func (m *memoryStore) IdleSince(cutoff time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var idle []string
	for id, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

// Len reports the number of live sessions.
func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
