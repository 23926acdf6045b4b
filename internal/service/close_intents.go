package service

import "sync"

// closeIntents tracks the close each channel still wants. A timer that has
// already fired may run its continuation after a reopen; the continuation
// consumes its token and does nothing if the intent was revoked meanwhile.
type closeIntents struct {
	mu   sync.Mutex
	next uint64
	live map[string]uint64
}

func newCloseIntents() *closeIntents {
	return &closeIntents{live: make(map[string]uint64)}
}

// arm registers a new close for channelID, replacing any earlier one.
func (c *closeIntents) arm(channelID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.live[channelID] = c.next
	return c.next
}

func (c *closeIntents) pending(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[channelID]
	return ok
}

// revoke drops the close of channelID and reports whether one was live.
func (c *closeIntents) revoke(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[channelID]
	delete(c.live, channelID)
	return ok
}

// consume reports whether token is still the live close of channelID and
// clears it.
func (c *closeIntents) consume(channelID string, token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live[channelID] != token {
		return false
	}
	delete(c.live, channelID)
	return true
}
