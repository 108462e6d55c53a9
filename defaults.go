package swrcache

import "time"

const (
	DefaultTTL       = 5 * time.Minute
	defaultNamespace = "swr"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Minutes converts the expire-time-in-minutes knob used by list screens into a TTL.
func Minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
