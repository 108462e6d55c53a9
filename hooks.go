package swrcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store, orchestrator and prefetcher call them on hot paths.
type Hooks interface {
	// A read found an entry. stale reports whether it was past ExpiresAt.
	CacheHit(key string, stale bool)
	// A read found nothing usable and went to the remote service.
	CacheMiss(key string)

	// A background refresh of a stale entry finished (err == nil on success).
	Revalidated(key string, err error)
	// A Load received the result of a fetch shared with other callers of key.
	FetchShared(key string)

	// An entry was deleted by the store on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)
	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
	// Provider Get/Set/Del returned an IO error.
	ProviderError(op, storageKey string, err error)
	// GenStore errors (snapshot or bump).
	GenSnapshotError(storageKey string, err error)
	GenBumpError(storageKey string, err error)

	// Prefetch lifecycle for the next page key.
	PrefetchScheduled(key string)
	PrefetchCancelled(key string)
	PrefetchDone(key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string, bool)               {}
func (NopHooks) CacheMiss(string)                    {}
func (NopHooks) Revalidated(string, error)           {}
func (NopHooks) FetchShared(string)                  {}
func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) ProviderError(string, string, error) {}
func (NopHooks) GenSnapshotError(string, error)      {}
func (NopHooks) GenBumpError(string, error)          {}
func (NopHooks) PrefetchScheduled(string)            {}
func (NopHooks) PrefetchCancelled(string)            {}
func (NopHooks) PrefetchDone(string, error)          {}

// HooksOrNop returns h, or NopHooks when h is nil.
func HooksOrNop(h Hooks) Hooks { return coalesce[Hooks](h, NopHooks{}) }
