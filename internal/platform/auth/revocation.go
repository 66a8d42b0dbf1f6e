package auth

import (
	"sync"
	"time"
)

// RevocationList remembers the ids (jti) of tokens signed out before their
// natural expiry. Entries are dropped once the token would have expired.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocationList() *RevocationList {
	return &RevocationList{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke marks jti as unusable until expiresAt.
func (l *RevocationList) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jti] = expiresAt
}

func (l *RevocationList) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[jti]
	return ok
}

func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Sweep removes entries whose tokens have expired and returns how many
// were dropped.
func (l *RevocationList) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for jti, exp := range l.entries {
		if now.After(exp) {
			delete(l.entries, jti)
			n++
		}
	}
	return n
}
