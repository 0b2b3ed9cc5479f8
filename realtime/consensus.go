package realtime

import "sync"

// ConsensusCoordinator gates squad-wide transitions behind a known number
// of acknowledgements. Counters are keyed by squad id; decrement-and-check
// is a single operation under the lock so concurrent acks for the same
// squad serialize correctly.
//
// No expiry exists: a quorum stays open until satisfied or abandoned.
type ConsensusCoordinator struct {
	mu      sync.Mutex
	pending map[string]int
}

func NewConsensusCoordinator() *ConsensusCoordinator {
	return &ConsensusCoordinator{pending: make(map[string]int)}
}

// Open starts a quorum expecting count acks. A second open for the same
// key is rejected with ErrAlreadyPending and the existing quorum is kept.
func (c *ConsensusCoordinator) Open(key string, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[key]; ok {
		return ErrAlreadyPending
	}
	c.pending[key] = count
	return nil
}

// Ack records one acknowledgement. It returns true when the quorum is
// satisfied, clearing the counter so the guarded transition runs exactly
// once. Acks without an open quorum return ErrInvalidState.
func (c *ConsensusCoordinator) Ack(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	left, ok := c.pending[key]
	if !ok {
		return false, ErrInvalidState
	}
	left--
	if left <= 0 {
		delete(c.pending, key)
		return true, nil
	}
	c.pending[key] = left
	return false, nil
}

// Grow raises an open quorum by one ack (a previously offline member came
// back and must confirm too). Returns false when no quorum is open.
func (c *ConsensusCoordinator) Grow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[key]; !ok {
		return false
	}
	c.pending[key]++
	return true
}

// Abandon drops an open quorum, if any.
func (c *ConsensusCoordinator) Abandon(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

// Pending reports the remaining ack count of an open quorum.
func (c *ConsensusCoordinator) Pending(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	left, ok := c.pending[key]
	return left, ok
}
