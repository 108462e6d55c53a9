package swrcache

import "time"

// Entry is one stored value with its freshness window. Entries are never
// mutated in place: a refresh writes a new Entry that replaces the old one.
type Entry[V any] struct {
	Value                V
	StoredAt             time.Time
	ExpiresAt            time.Time
	StaleWhileRevalidate bool
}

// Stale reports whether the entry is past its freshness window at now.
func (e Entry[V]) Stale(now time.Time) bool { return now.After(e.ExpiresAt) }

// Usable reports whether the value may be served at now, either because it is
// still fresh or because the entry allows stale-while-revalidate.
func (e Entry[V]) Usable(now time.Time) bool { return !e.Stale(now) || e.StaleWhileRevalidate }

// Age is how long ago the entry was stored.
func (e Entry[V]) Age(now time.Time) time.Duration { return now.Sub(e.StoredAt) }

// SetOptions control the freshness of a written entry.
type SetOptions struct {
	TTL                  time.Duration // 0 => Options.DefaultTTL
	StaleWhileRevalidate bool
}
