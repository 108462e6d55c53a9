// Package provider defines the byte store a swrcache.Store writes entries into.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. The keyspace "entry:<ns>:" is
// owned by the store; foreign writes under it are treated as corruption and
// deleted on read.
//
// The ttl passed to Set is provider retention, not freshness. Freshness lives
// inside the entry, so a provider must keep bytes past the logical expiry for
// stale-while-revalidate to see them. ttl <= 0 means "keep until overwritten".
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with retention. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value, replacing any previous value whole. cost is the encoded
	// size in bytes; providers that do not budget by cost may ignore it.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
