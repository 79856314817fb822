package snapshot

import (
	"context"
	"time"
)

// Store defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a snapshot. Called on periodic flushes and on graceful
	// shutdown. An existing snapshot under the same sessionID is overwritten.
	Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error

	// Load retrieves a snapshot by session ID.
	// Returns (nil, nil) if the snapshot doesn't exist or has expired.
	// Returns (data, nil) if found and not expired.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes a snapshot. Called when a session ends for good.
	// Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Touch extends the expiry without rewriting the payload.
	// More efficient than Load+Save for keep-alives.
	// Touching a missing snapshot is not an error.
	Touch(ctx context.Context, sessionID string, expiresAt time.Time) error

	// SaveAll persists multiple snapshots, atomically where the backend
	// allows it. Used during graceful shutdown to flush every live session.
	// Backends without atomic writes save sequentially.
	SaveAll(ctx context.Context, records map[string]Record) error

	// Close releases any resources held by the store.
	Close() error
}

// Record pairs a serialized snapshot with its expiry.
type Record struct {
	// Data is the serialized snapshot payload.
	Data []byte

	// ExpiresAt is when the snapshot should expire.
	ExpiresAt time.Time
}

// NotFoundError is returned when a snapshot doesn't exist.
// Note: Load returns (nil, nil) for missing snapshots, not this error.
// It is for callers that need the miss as an explicit error, such as the
// server's resume path.
type NotFoundError struct {
	SessionID string
}

func (e NotFoundError) Error() string {
	return "snapshot not found: " + e.SessionID
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "snapshot store is closed"
}
