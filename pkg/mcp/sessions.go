package mcp

import "sync"

// SessionRegistry maps organizations to MCP session IDs.
// Populated automatically when tools are called with an organization.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // organization → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates an organization with a session ID.
// An organization already holding a session is overwritten (reconnect).
func (r *SessionRegistry) Register(organization, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[organization] = sessionID
}

// SessionFor returns the session ID for the given organization, if connected.
func (r *SessionRegistry) SessionFor(organization string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[organization]
	return sid, ok
}

// Organizations returns every organization with a registered session.
func (r *SessionRegistry) Organizations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orgs := make([]string, 0, len(r.sessions))
	for org := range r.sessions {
		orgs = append(orgs, org)
	}
	return orgs
}

// Remove deletes all organization mappings for the given session ID.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for org, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, org)
		}
	}
}
