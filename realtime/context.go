package realtime

import (
	"sync"

	"github.com/rmacedo/patrol-ops/models"
)

// ConnectionContext is the per-connection state bound at connect time and
// destroyed on disconnect. SubjectID, Role, WorkKind and SquadID are fixed
// after binding; the rest is mutated by handlers (including handlers of
// peer connections) and is guarded by the mutex.
type ConnectionContext struct {
	SubjectID string
	Role      models.UserType
	WorkKind  models.WorkKind
	SquadID   string

	mu           sync.Mutex
	peers        map[string]string // squad member id -> connection id, "" while offline
	workID       string
	occurrenceID string
	aggregate    bool // connection speaks for the whole squad
}

func (c *ConnectionContext) initPeers(memberIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = make(map[string]string, len(memberIDs))
	for _, id := range memberIDs {
		if id != c.SubjectID {
			c.peers[id] = ""
		}
	}
}

func (c *ConnectionContext) setPeer(subjectID, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peers != nil {
		if _, ok := c.peers[subjectID]; ok {
			c.peers[subjectID] = connID
		}
	}
}

// Peers returns a copy of the peer map.
func (c *ConnectionContext) Peers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	peers := make(map[string]string, len(c.peers))
	for id, connID := range c.peers {
		peers[id] = connID
	}
	return peers
}

// OnlinePeers returns the connection ids of peers currently online.
func (c *ConnectionContext) OnlinePeers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var online []string
	for _, connID := range c.peers {
		if connID != "" {
			online = append(online, connID)
		}
	}
	return online
}

// OfflinePeers returns the subject ids of peers currently offline.
func (c *ConnectionContext) OfflinePeers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var offline []string
	for id, connID := range c.peers {
		if connID == "" {
			offline = append(offline, id)
		}
	}
	return offline
}

func (c *ConnectionContext) SetWork(id string) {
	c.mu.Lock()
	c.workID = id
	c.mu.Unlock()
}

func (c *ConnectionContext) Work() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workID
}

func (c *ConnectionContext) SetOccurrence(id string) {
	c.mu.Lock()
	c.occurrenceID = id
	c.mu.Unlock()
}

func (c *ConnectionContext) Occurrence() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occurrenceID
}

func (c *ConnectionContext) SetAggregate(v bool) {
	c.mu.Lock()
	c.aggregate = v
	c.mu.Unlock()
}

func (c *ConnectionContext) Aggregate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregate
}
