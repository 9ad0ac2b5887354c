// Package session provides the in-memory conversation state store keyed by
// user identity. Sessions are ephemeral: nothing survives a process restart
// and the store is wiped on start.
package session

import "time"

// Flag names recorded on a session when terminal states are reached.
const (
	FlagValidated      = "validated"
	FlagOrderConfirmed = "order_confirmed"
)

// Session stores conversation position and scratch data for one identity.
// Flow == "" means the identity is awaiting entry dispatch; StepIndex is
// meaningful only while Flow is set.
type Session struct {
	Identity  string
	Fields    map[string]any
	Flow      string
	StepIndex int
	PrevFlow  string
	LastSeen  time.Time
	Flags     map[string]bool
}

// New returns a Session with defaults for the given identity.
func New(identity string) *Session {
	return &Session{
		Identity: identity,
		Fields:   make(map[string]any),
		Flags:    make(map[string]bool),
		LastSeen: time.Now(),
	}
}

// InFlow reports whether the session is positioned inside a flow.
func (s *Session) InFlow() bool {
	return s != nil && s.Flow != ""
}

// Set stores a scratch field captured by a step.
func (s *Session) Set(key string, value any) {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	s.Fields[key] = value
}

// Get retrieves a scratch field. Steps referencing a field that was never
// captured receive ok=false and must treat the value as unknown.
func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Fields == nil {
		return nil, false
	}
	v, ok := s.Fields[key]
	return v, ok
}

// GetString retrieves a scratch field as string.
func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// GetInt retrieves a scratch field as int.
func (s *Session) GetInt(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// GetFloat retrieves a scratch field as float64.
func (s *Session) GetFloat(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// SetFlag marks a terminal state as reached.
func (s *Session) SetFlag(name string) {
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}
	s.Flags[name] = true
}

// HasFlag reports whether a terminal state was reached.
func (s *Session) HasFlag(name string) bool {
	return s != nil && s.Flags[name]
}

// Touch refreshes the last-interaction timestamp.
func (s *Session) Touch() {
	s.LastSeen = time.Now()
}

// Store is the session store contract. Callers always read-modify-write:
// Get/GetOrCreate, mutate, Put. Per-identity serialization of that cycle is
// the engine's responsibility (one mailbox per identity); the store itself
// only guarantees that independent identities never block each other.
type Store interface {
	Get(identity string) (*Session, bool)
	GetOrCreate(identity string) *Session
	Put(identity string, s *Session)
	Clear(identity string)
	// ClearAll wipes every session; called at process start before the
	// transport begins delivering events.
	ClearAll()
	// IdleSince returns identities whose last interaction is before cutoff.
	IdleSince(cutoff time.Time) []string
	Len() int
}
