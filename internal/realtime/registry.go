package realtime

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the concurrent-safe directory of live sessions. It is owned
// by the server's top-level lifecycle and injected into every component
// that needs it; there is deliberately no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// NewSessionID generates a fresh connection id. Ids are never reused: the
// timestamp plus a uuid fragment keeps a new connection from colliding
// with a recently closed one.
func NewSessionID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// Register adds a session. A duplicate id silently overwrites the previous
// entry; callers are expected to use NewSessionID.
func (r *Registry) Register(id string, client *Client) {
	r.mu.Lock()
	r.clients[id] = client
	r.mu.Unlock()
}

// Unregister removes a session. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// ForEach calls fn for every live session over a snapshot, so concurrent
// Register/Unregister during iteration is safe.
func (r *Registry) ForEach(fn func(*Client)) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every connection and empties the registry. Used at
// shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for id, c := range clients {
		c.Close()
		log.Printf("Closed connection for client: %s", id)
	}
}
