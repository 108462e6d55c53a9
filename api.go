package swrcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	pr "github.com/unkn0wn-root/swrcache/provider"
)

// Store is the key -> Entry[V] cache used by list screens.
// Expiry is lazy: entries are checked on read, never swept. Staleness is the
// caller's decision, so Get returns expired entries too.
type Store[V any] interface {
	// Get returns the entry for key even if it is past ExpiresAt.
	// A miss, a corrupt entry or a provider error all report ok=false.
	Get(ctx context.Context, key string) (e Entry[V], ok bool)
	// Set stores value under key, replacing any previous entry whole.
	Set(ctx context.Context, key string, value V, o SetOptions) error
	// IsStale is true when key has no entry or its entry is past ExpiresAt.
	IsStale(ctx context.Context, key string) bool

	// SnapshotGen returns the current generation of key. Take it before a
	// remote fetch and pass it to SetWithGen.
	SnapshotGen(ctx context.Context, key string) uint64
	// SetWithGen is Set, skipped when key was invalidated after observedGen.
	SetWithGen(ctx context.Context, key string, value V, observedGen uint64, o SetOptions) error
	// Invalidate bumps the generation of key and deletes its entry.
	Invalidate(ctx context.Context, key string) error

	Enabled() bool
	Close(context.Context) error
}

// Options tune the Store. Every field is optional.
type Options[V any] struct {
	Namespace string      // isolates keyspaces sharing a provider; "" => "swr"
	Provider  pr.Provider // nil => provider/memory (unbounded)
	Codec     c.Codec[V]  // nil => codec.JSON[V]
	GenStore  gen.GenStore

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	DefaultTTL time.Duration // SetOptions.TTL == 0 => DefaultTTL; 0 => 5m
	// Retention is how long the provider keeps bytes, independent of ExpiresAt.
	// 0 keeps them until overwritten; a positive value must exceed the TTLs in use
	// or stale entries vanish before they can be revalidated.
	Retention time.Duration

	Now      func() time.Time // nil => time.Now
	Disabled bool             // every Get misses, every Set is dropped
}

func New[V any](opts Options[V]) (Store[V], error) {
	return newStore[V](opts)
}
