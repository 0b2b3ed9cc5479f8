package realtime

import "sync"

// PresenceRegistry maps connected subject ids to their live connection id.
// One entry per connected subject; a reconnect overwrites the previous
// entry, a disconnect removes it. Replaces scanning every live connection
// when resolving whether a squad member is online.
type PresenceRegistry struct {
	mu        sync.RWMutex
	bySubject map[string]string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{bySubject: make(map[string]string)}
}

func (r *PresenceRegistry) Bind(subjectID, connID string) {
	r.mu.Lock()
	r.bySubject[subjectID] = connID
	r.mu.Unlock()
}

// Unbind removes the entry only if it still points at connID, so a stale
// disconnect cannot evict a newer connection of the same subject.
func (r *PresenceRegistry) Unbind(subjectID, connID string) {
	r.mu.Lock()
	if r.bySubject[subjectID] == connID {
		delete(r.bySubject, subjectID)
	}
	r.mu.Unlock()
}

// Lookup resolves a subject to its live connection id.
func (r *PresenceRegistry) Lookup(subjectID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.bySubject[subjectID]
	return connID, ok
}
