package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process cache backed by go-cache.
type Memory struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewMemory creates a memory cache whose entries live for ttl.
// Expired entries are purged every 2*ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (m *Memory) Get(_ context.Context, id string) ([]byte, bool, error) {
	value, found := m.store.Get(id)
	if !found {
		return nil, false, nil
	}
	b, ok := value.([]byte)
	return b, ok, nil
}

func (m *Memory) Set(_ context.Context, id string, value []byte) error {
	m.store.Set(id, value, m.ttl)
	return nil
}

// Len returns the number of entries, including expired ones not yet purged.
func (m *Memory) Len() int {
	return m.store.ItemCount()
}

func (m *Memory) Close() error {
	m.store.Flush()
	return nil
}
