package connector

import (
	"fmt"
	"sync"
)

// Registry maps a channel type to its connector. It is the orchestrator's
// only lookup table.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	for _, c := range connectors {
		r.MustRegister(c)
	}
	return r
}

// Register adds c under c.Type(). Registering a type twice is an error.
func (r *Registry) Register(c Connector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		return fmt.Errorf("register connector: nil connector")
	}
	typ := c.Type()
	if typ == "" {
		return fmt.Errorf("register connector: empty type")
	}
	if _, dup := r.connectors[typ]; dup {
		return fmt.Errorf("register connector: type %q already registered", typ)
	}
	r.connectors[typ] = c
	return nil
}

func (r *Registry) MustRegister(c Connector) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(typ string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[typ]
	return c, ok
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return SortedKeys(r.connectors)
}
