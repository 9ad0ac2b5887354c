package transport

import (
	"sync"
	"time"
)

// Limiter enforces a minimum interval between inbound messages from the
// same identity. A zero or negative interval disables limiting.
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewLimiter builds a per-identity limiter.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// Allow reports whether a message from identity may pass now, and records
// the arrival when it does.
func (l *Limiter) Allow(identity string) bool {
	if l == nil || l.interval <= 0 {
		return true
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[identity]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[identity] = now
	return true
}
