package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"concierge/internal/core"
)

// Memory is an in-process response store with TTL and size-based LRU
// eviction. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
}

type memoryEntry struct {
	key       string
	env       core.ResponseEnvelope
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates a memory store holding at most maxSize entries,
// each valid for ttl.
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	return &Memory{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (m *Memory) Get(_ context.Context, key string) (core.ResponseEnvelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return core.ResponseEnvelope{}, false
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.evict(elem)
		return core.ResponseEnvelope{}, false
	}

	m.order.MoveToFront(elem)
	return entry.env, true
}

func (m *Memory) Set(_ context.Context, key string, env core.ResponseEnvelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &memoryEntry{
		key:       key,
		env:       env,
		expiresAt: time.Now().Add(m.ttl),
	}

	if elem, ok := m.items[key]; ok {
		elem.Value = entry
		m.order.MoveToFront(elem)
		return
	}

	m.items[key] = m.order.PushFront(entry)

	if m.order.Len() > m.maxSize {
		if oldest := m.order.Back(); oldest != nil {
			m.evict(oldest)
		}
	}
}

// CleanExpired removes all expired entries and returns how many were
// dropped. Called by the cache manager on its sweep interval.
func (m *Memory) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for elem := m.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*memoryEntry).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		m.evict(elem)
	}
	return len(expired)
}

// Size returns the current number of entries, expired ones included.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) evict(elem *list.Element) {
	delete(m.items, elem.Value.(*memoryEntry).key)
	m.order.Remove(elem)
}
