package store

import (
	"context"
	"sync"
)

// MemoryStore keeps slots and processed event ids in process memory.
// It is used when no database is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	slots     map[string][]byte
	processed map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:     make(map[string][]byte),
		processed: make(map[string]string),
	}
}

// LoadSlot returns a copy of the value under key, or nil when the slot is empty
func (m *MemoryStore) LoadSlot(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// SaveSlot stores a copy of value under key
func (m *MemoryStore) SaveSlot(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots[key] = append([]byte(nil), value...)
	return nil
}

// DeleteSlot removes the slot under key
func (m *MemoryStore) DeleteSlot(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, key)
	return nil
}

// IsEventProcessed checks if an event has been processed
func (m *MemoryStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.processed[eventID]
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (m *MemoryStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed[eventID] = eventType
	return nil
}
