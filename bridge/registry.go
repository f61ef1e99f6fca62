package bridge

import (
	"sync"

	"github.com/cyberinferno/streambridge/logger"
)

// Registry holds the active clients in connection-accept order. Register is
// called from the server's accept goroutine while Prune and Snapshot run on
// the tick loop, so access is serialized with a mutex.
type Registry struct {
	mu      sync.Mutex
	clients []*Client
}

// Register appends a client to the registry.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.clients = append(r.clients, c)
	r.mu.Unlock()
}

// Prune removes every client flagged as disconnected, preserving the
// relative order of survivors. Each removed client is logged by identifier
// and its connection force-closed. Returns the number of clients removed.
//
// A client may flip to disconnected after this pass and before the tick
// ends; it is picked up on the next tick.
func (r *Registry) Prune(log logger.Logger) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	survivors := r.clients[:0]
	var removed []*Client
	for _, c := range r.clients {
		if c.Disconnected() {
			removed = append(removed, c)
			continue
		}

		survivors = append(survivors, c)
	}

	// Clear trailing slots so removed clients can be collected.
	for i := len(survivors); i < len(r.clients); i++ {
		r.clients[i] = nil
	}
	r.clients = survivors

	for _, c := range removed {
		log.Info("client disconnected", logger.Field{Key: "client", Value: c.Identifier()})
		c.close()
	}

	return len(removed)
}

// Snapshot returns the current clients in registry order for fan-out.
func (r *Registry) Snapshot() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CloseAll force-closes every registered client's connection, disconnected
// or not. The registry itself is left untouched; process teardown follows.
func (r *Registry) CloseAll() {
	for _, c := range r.Snapshot() {
		c.close()
	}
}
