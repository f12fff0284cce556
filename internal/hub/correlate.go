package hub

import "sync"

// CorrelationIndex tracks which (user, event id) pairs have captures
// that arrived before their notification was committed, so a later
// notification insert can retroactively link them. Captures whose
// notification never arrives stay persisted unlinked. Keys carry the
// user id because event ids are only unique per user.
type CorrelationIndex struct {
	mu      sync.Mutex
	pending map[correlationKey]struct{}
}

type correlationKey struct {
	userID  uint
	eventID string
}

func NewCorrelationIndex() *CorrelationIndex {
	return &CorrelationIndex{pending: make(map[correlationKey]struct{})}
}

// MarkUnresolved records that eventID has at least one capture from
// userID still waiting on a notification.
func (c *CorrelationIndex) MarkUnresolved(userID uint, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[correlationKey{userID, eventID}] = struct{}{}
}

// Resolve clears the pair from the pending set, once the caller has
// linked every capture waiting on it.
func (c *CorrelationIndex) Resolve(userID uint, eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, correlationKey{userID, eventID})
}

// IsPending reports whether the pair still has unresolved captures,
// letting callers skip a DB lookup for event ids never seen unlinked.
func (c *CorrelationIndex) IsPending(userID uint, eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[correlationKey{userID, eventID}]
	return ok
}
