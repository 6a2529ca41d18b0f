package lockout

import (
	"context"
	"time"
)

// Record is the tracked failure state for one (identity, purpose) pair.
type Record struct {
	Count       int
	WindowStart time.Time
	LockedUntil time.Time // zero when not locked
}

// Store persists lockout records keyed by identity+purpose. Keys are
// independent, so implementations only need per-key atomic increments - no
// cross-key coordination.
type Store interface {
	// Get returns the record, or nil when the pair has never failed within
	// the current window.
	Get(ctx context.Context, key string) (*Record, error)

	// Incr increments the failure counter, creating the record lazily. The
	// record (and its window) expires after windowTTL. Returns the count
	// after the increment.
	Incr(ctx context.Context, key string, windowTTL time.Duration) (int, error)

	// Lock marks the pair locked until the given instant. The record is
	// retained for at least ttl so the lock outlives the tracking window.
	Lock(ctx context.Context, key string, until time.Time, ttl time.Duration) error

	// Delete clears the record entirely (successful verification).
	Delete(ctx context.Context, key string) error
}
