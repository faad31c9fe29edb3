// Package cache provides the response cache consulted by the router
// before dispatching a query. Two stores are available: an in-process
// LRU with TTL for single-node deployments and a Redis-backed store for
// shared deployments.
package cache

import (
	"context"
	"fmt"
	"time"

	"concierge/internal/core"
)

// Store is the response cache contract. Lookups are best-effort: a
// store failure surfaces as a miss, never as a request failure.
type Store interface {
	Get(ctx context.Context, key string) (core.ResponseEnvelope, bool)
	Set(ctx context.Context, key string, env core.ResponseEnvelope)
}

// Key derives a cache key for a routed query. Window bounds and currency
// are part of the key so the same question over different days or
// currencies never collides.
func Key(kind, query string, spec *core.WindowSpec, currency string) string {
	since, until := "", ""
	if spec != nil {
		since, until = spec.Since, spec.Until
	}
	return fmt.Sprintf("route:v1:%s:%s:%s:%s:%s", kind, query, since, until, currency)
}

// Cleaner is implemented by stores that hold expired entries until
// swept.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic sweep of registered stores.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a store to the manager for cleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered stores.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range m.caches {
				c.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
