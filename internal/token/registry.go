package token

import (
	"sync"
	"time"
)

// Registry tracks active tokens for revocation and replay prevention. A
// token id leaves the registry on revocation or when observed expired; it is
// never re-added.
type Registry struct {
	mu     sync.Mutex
	active map[string]Payload

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]Payload),
		now:    time.Now,
	}
}

func (r *Registry) Add(payload Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[payload.TokenID] = payload
}

func (r *Registry) IsActive(tokenID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, ok := r.active[tokenID]
	if !ok {
		return false
	}
	if r.now().Unix() >= payload.ExpiresAt {
		delete(r.active, tokenID)
		return false
	}
	return true
}

// RevokeSession deactivates every token issued for the session. Idempotent.
func (r *Registry) RevokeSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, payload := range r.active {
		if payload.SessionID == sessionID {
			delete(r.active, id)
		}
	}
}

// RevokeID deactivates one token. Revoking an unknown or already-inactive
// token is not an error.
func (r *Registry) RevokeID(tokenID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, tokenID)
}
