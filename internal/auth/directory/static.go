// Package directory provides a static, in-memory ClientDirectory for
// deployments where the registered-client set is fixed at startup and
// for tests. Dynamic registration lives outside this module.
package directory

import (
	"context"
	"sync"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
)

type Static struct {
	mu      sync.RWMutex
	clients map[string]domain.Client
}

func NewStatic(clients ...domain.Client) *Static {
	d := &Static{clients: make(map[string]domain.Client, len(clients))}
	for _, c := range clients {
		d.clients[c.ID] = c
	}
	return d
}

// Register adds or replaces a client, keyed by its registration id.
func (d *Static) Register(c domain.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.ID] = c
}

// FindClientByID returns the client, or nil when unknown.
func (d *Static) FindClientByID(ctx context.Context, id string) (*domain.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
