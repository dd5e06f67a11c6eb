package hub

import (
	"fmt"
	"sync"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

// Registry is the set of live connections keyed by id. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Insert adds c. A duplicate id is a programming error and is reported as
// ErrDuplicateID. After Drain every insert fails with ErrRegistryClosed.
func (r *Registry) Insert(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("insert %s: %w", c.id, domain.ErrRegistryClosed)
	}
	if _, exists := r.conns[c.id]; exists {
		return fmt.Errorf("insert %s: %w", c.id, domain.ErrDuplicateID)
	}
	r.conns[c.id] = c
	return nil
}

// Remove deletes id and returns the removed connection. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEach visits a snapshot of the registry without holding the lock, so
// visitors may insert or remove. Visitors must not block.
func (r *Registry) ForEach(visit func(*Connection)) {
	for _, c := range r.snapshot() {
		visit(c)
	}
}

// Drain empties the registry, closes it to further inserts and returns what it held.
func (r *Registry) Drain() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*Connection, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, c)
		delete(r.conns, id)
	}
	return out
}

func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}
