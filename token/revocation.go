package token

import (
	"sync"
	"time"
)

// RevocationList remembers revoked access token IDs until the tokens would have expired
// anyway. Expired entries are pruned whenever a token is revoked.
type RevocationList struct {
	revoked map[string]time.Time
	now     func() time.Time
	mu      sync.RWMutex
}

func NewRevocationList() *RevocationList {
	return &RevocationList{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks jti as revoked until exp
func (l *RevocationList) Revoke(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, until := range l.revoked {
		if now.After(until) {
			delete(l.revoked, id)
		}
	}
	l.revoked[jti] = exp
}

func (l *RevocationList) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.revoked[jti]
	return exists
}

func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}
