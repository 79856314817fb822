package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store.
// It is the default and suits single-server deployments. Sessions that must
// resume on another instance need RedisStore or SQLStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	closed  bool
	done    chan struct{}
}

var _ Store = (*MemoryStore)(nil)

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired snapshots are swept.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{
		cleanupInterval: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		records: make(map[string]*memoryRecord),
		done:    make(chan struct{}),
	}

	go store.sweepLoop(cfg.cleanupInterval)
	return store
}

// Save stores a snapshot with an expiry.
func (m *MemoryStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	// Copy so later caller mutations can't reach stored state.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.records[sessionID] = &memoryRecord{
		data:      dataCopy,
		expiresAt: expiresAt,
	}
	return nil
}

// Load retrieves a snapshot if it exists and hasn't expired.
func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	rec, ok := m.records[sessionID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(rec.expiresAt) {
		return nil, nil
	}

	dataCopy := make([]byte, len(rec.data))
	copy(dataCopy, rec.data)
	return dataCopy, nil
}

// Delete removes a snapshot from the store.
func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.records, sessionID)
	return nil
}

// Touch updates the expiry for a snapshot.
func (m *MemoryStore) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	if rec, ok := m.records[sessionID]; ok {
		rec.expiresAt = expiresAt
	}
	return nil
}

// SaveAll saves multiple snapshots under one lock acquisition.
func (m *MemoryStore) SaveAll(ctx context.Context, records map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	for id, rec := range records {
		dataCopy := make([]byte, len(rec.Data))
		copy(dataCopy, rec.Data)

		m.records[id] = &memoryRecord{
			data:      dataCopy,
			expiresAt: rec.ExpiresAt,
		}
	}
	return nil
}

// Close shuts down the store and releases resources.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.records = nil
	return nil
}

// Count returns the number of stored snapshots.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// sweepLoop periodically removes expired snapshots.
func (m *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.done:
			return
		}
	}
}

// sweep removes expired snapshots.
func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	now := time.Now()
	var expired []string

	for id, rec := range m.records {
		if now.After(rec.expiresAt) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(m.records, id)
	}
}
