package swrcache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	"github.com/unkn0wn-root/swrcache/internal/wire"
	pr "github.com/unkn0wn-root/swrcache/provider"
	"github.com/unkn0wn-root/swrcache/provider/memory"
)

type store[V any] struct {
	ns         string
	provider   pr.Provider
	codec      c.Codec[V]
	gen        gen.GenStore
	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
	retention  time.Duration
	now        func() time.Time
}

func newStore[V any](opts Options[V]) (*store[V], error) {
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("swrcache: negative DefaultTTL %s", opts.DefaultTTL)
	}
	if opts.Retention < 0 {
		return nil, fmt.Errorf("swrcache: negative Retention %s", opts.Retention)
	}

	s := &store[V]{
		ns:      coalesce(opts.Namespace, defaultNamespace),
		enabled: !opts.Disabled,
	}

	// defaults
	s.provider = opts.Provider
	if s.provider == nil {
		s.provider = memory.New(memory.Config{})
	}
	s.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})
	s.gen = opts.GenStore
	if s.gen == nil {
		// in-process generations; nothing to prune since keys are bounded by the provider
		s.gen = gen.NewLocalGenStore(0, 0)
	}
	s.log = OrNop(opts.Logger)
	s.hooks = HooksOrNop(opts.Hooks)
	s.defaultTTL = coalesce(opts.DefaultTTL, DefaultTTL)
	s.retention = opts.Retention
	s.now = opts.Now
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *store[V]) Enabled() bool { return s.enabled }

func (s *store[V]) Close(ctx context.Context) error {
	// gen store first (best effort)
	_ = s.gen.Close(ctx)
	return s.provider.Close(ctx)
}

func (s *store[V]) Get(ctx context.Context, key string) (Entry[V], bool) {
	var zero Entry[V]
	if !s.enabled {
		return zero, false
	}
	k := s.storageKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		s.log.Warn("provider get failed; treating as miss", Fields{"key": key, "err": err})
		s.hooks.ProviderError("get", k, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	w, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, k, "corrupt")
		return zero, false
	}
	if w.Gen != s.snapshotGen(ctx, k) {
		s.heal(ctx, k, "gen_mismatch")
		return zero, false
	}
	v, err := s.codec.Decode(w.Payload)
	if err != nil {
		s.heal(ctx, k, "value_decode")
		return zero, false
	}
	return Entry[V]{
		Value:                v,
		StoredAt:             w.StoredAt,
		ExpiresAt:            w.ExpiresAt,
		StaleWhileRevalidate: w.StaleWhileRevalidate,
	}, true
}

func (s *store[V]) IsStale(ctx context.Context, key string) bool {
	e, ok := s.Get(ctx, key)
	return !ok || e.Stale(s.now())
}

func (s *store[V]) Set(ctx context.Context, key string, value V, o SetOptions) error {
	if !s.enabled {
		return nil
	}
	k := s.storageKey(key)
	return s.write(ctx, key, k, value, s.snapshotGen(ctx, k), o)
}

func (s *store[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64, o SetOptions) error {
	if !s.enabled {
		return nil
	}
	k := s.storageKey(key)
	if s.snapshotGen(ctx, k) != observedGen {
		// invalidated while the caller was fetching; skip stale write
		s.log.Debug("SetWithGen skipped (gen mismatch)", Fields{"key": key, "obs": observedGen})
		return nil
	}
	return s.write(ctx, key, k, value, observedGen, o)
}

func (s *store[V]) write(ctx context.Context, key, storageKey string, value V, g uint64, o SetOptions) error {
	if o.TTL < 0 {
		return fmt.Errorf("swrcache: negative TTL %s for %q", o.TTL, key)
	}
	payload, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("swrcache: encode %q: %w", key, err)
	}
	now := s.now()
	raw := wire.Encode(wire.Entry{
		Gen:                  g,
		StoredAt:             now,
		ExpiresAt:            now.Add(coalesce(o.TTL, s.defaultTTL)),
		StaleWhileRevalidate: o.StaleWhileRevalidate,
		Payload:              payload,
	})
	ok, err := s.provider.Set(ctx, storageKey, raw, int64(len(raw)), s.retention)
	if err != nil {
		s.hooks.ProviderError("set", storageKey, err)
		return fmt.Errorf("swrcache: store %q: %w", key, err)
	}
	if !ok {
		s.log.Debug("Set rejected by provider (pressure)", Fields{"key": key})
		s.hooks.ProviderSetRejected(storageKey)
	}
	return nil
}

func (s *store[V]) SnapshotGen(ctx context.Context, key string) uint64 {
	return s.snapshotGen(ctx, s.storageKey(key))
}

func (s *store[V]) Invalidate(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	k := s.storageKey(key)
	newGen, bumpErr := s.gen.Bump(ctx, k)
	if bumpErr != nil {
		s.hooks.GenBumpError(k, bumpErr)
	}
	delErr := s.provider.Del(ctx, k)
	if delErr != nil {
		s.hooks.ProviderError("del", k, delErr)
	}
	if bumpErr != nil || delErr != nil {
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	s.log.Debug("invalidated key (bumped gen + deleted entry)", Fields{"key": key, "newGen": newGen})
	return nil
}

func (s *store[V]) heal(ctx context.Context, storageKey, reason string) {
	_ = s.provider.Del(ctx, storageKey)
	s.hooks.SelfHeal(storageKey, reason)
}

func (s *store[V]) snapshotGen(ctx context.Context, storageKey string) uint64 {
	g, err := s.gen.Snapshot(ctx, storageKey)
	if err != nil {
		// Conservative: treat as 0 so CAS writes against a bumped key skip; reads self-heal
		s.log.Warn("gen snapshot error", Fields{"key": storageKey, "err": err})
		s.hooks.GenSnapshotError(storageKey, err)
		return 0
	}
	return g
}

func (s *store[V]) storageKey(userKey string) string {
	// isolate by namespace
	return "entry:" + s.ns + ":" + userKey
}
