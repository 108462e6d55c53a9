package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/safego"
	"github.com/unkn0wn-root/swrcache/prefetch"
)

const DefaultFetchTimeout = 15 * time.Second

type Options struct {
	Resource string        // "" => "events"
	TTL      time.Duration // 0 => swrcache.DefaultTTL

	// Entries are written with stale-while-revalidate unless this is set.
	DisableStaleWhileRevalidate bool

	FetchTimeout time.Duration // 0 => 15s; < 0 disables

	PrefetchDelay   time.Duration // 0 => prefetch.DefaultDelay
	DisablePrefetch bool

	// Without dedup every Load on a miss calls the Fetcher, even when a call
	// for the same key is already running.
	DisableDedup bool

	Logger swrcache.Logger
	Hooks  swrcache.Hooks
	Now    func() time.Time // must match the store's clock
}

// Orchestrator is safe for concurrent use.
type Orchestrator[R any] struct {
	store    swrcache.Store[Result[R]]
	fetcher  Fetcher[R]
	resource string
	setOpts  swrcache.SetOptions
	timeout  time.Duration
	dedup    bool
	log      swrcache.Logger
	hooks    swrcache.Hooks
	now      func() time.Time

	sf       singleflight.Group
	prefetch *prefetch.Prefetcher

	// lifetime context for shared fetches and background refreshes
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	revalidating map[string]struct{}
	closed       bool
	wg           sync.WaitGroup
}

func New[R any](store swrcache.Store[Result[R]], f Fetcher[R], opts Options) (*Orchestrator[R], error) {
	if store == nil {
		return nil, errors.New("query: nil store")
	}
	if f == nil {
		return nil, ErrNilFetcher
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("query: negative TTL %s", opts.TTL)
	}
	if opts.Resource == "" {
		opts.Resource = DefaultResource
	}
	if opts.TTL == 0 {
		opts.TTL = swrcache.DefaultTTL
	}
	switch {
	case opts.FetchTimeout == 0:
		opts.FetchTimeout = DefaultFetchTimeout
	case opts.FetchTimeout < 0:
		opts.FetchTimeout = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator[R]{
		store:    store,
		fetcher:  f,
		resource: opts.Resource,
		setOpts: swrcache.SetOptions{
			TTL:                  opts.TTL,
			StaleWhileRevalidate: !opts.DisableStaleWhileRevalidate,
		},
		timeout:      opts.FetchTimeout,
		dedup:        !opts.DisableDedup,
		log:          swrcache.OrNop(opts.Logger),
		hooks:        swrcache.HooksOrNop(opts.Hooks),
		now:          opts.Now,
		ctx:          ctx,
		cancel:       cancel,
		revalidating: make(map[string]struct{}),
	}
	if !opts.DisablePrefetch {
		o.prefetch = prefetch.New(o.cached, prefetch.Options{
			Delay:  opts.PrefetchDelay,
			Logger: opts.Logger,
			Hooks:  opts.Hooks,
			Now:    opts.Now,
		})
	}
	return o, nil
}

// Key is the cache key of q.
func (o *Orchestrator[R]) Key(q Query) swrcache.Key {
	return swrcache.BuildKey(o.resource, q.Params())
}

// Load returns the page for q. Remote errors are returned as is, except a
// fetch that hit FetchTimeout, which is returned as *swrcache.TimeoutError.
// Errors are never cached.
func (o *Orchestrator[R]) Load(ctx context.Context, q Query) (Result[R], Outcome, error) {
	if o.isClosed() {
		return Result[R]{}, Fetched, swrcache.ErrClosed
	}
	key := o.Key(q).String()
	// only the next page of q may stay scheduled
	o.retarget(o.Key(q.WithPage(q.Page + 1)).String())

	if e, ok := o.store.Get(ctx, key); ok {
		now := o.now()
		if !e.Stale(now) {
			o.hooks.CacheHit(key, false)
			o.afterLoad(q, e.Value)
			return e.Value, Fresh, nil
		}
		if e.StaleWhileRevalidate {
			o.hooks.CacheHit(key, true)
			o.revalidate(key, q)
			o.afterLoad(q, e.Value)
			return e.Value, Stale, nil
		}
	}

	o.hooks.CacheMiss(key)
	res, err := o.fetch(ctx, key, q)
	if err != nil {
		o.retarget("")
		return Result[R]{}, Fetched, err
	}
	o.afterLoad(q, res)
	return res, Fetched, nil
}

// Invalidate drops the entry for q. A fetch for q already running will not store its result.
func (o *Orchestrator[R]) Invalidate(ctx context.Context, q Query) error {
	return o.store.Invalidate(ctx, o.Key(q).String())
}

// PendingPrefetch returns the key waiting to be warmed, if any.
func (o *Orchestrator[R]) PendingPrefetch() (string, bool) {
	if o.prefetch == nil {
		return "", false
	}
	in, ok := o.prefetch.Pending()
	return in.Key, ok
}

// Close cancels scheduled prefetches and in-flight background work and waits for it.
// The store is not closed.
func (o *Orchestrator[R]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	if o.prefetch != nil {
		o.prefetch.Close()
	}
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator[R]) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// track registers background work with Close. It reports false once closed.
func (o *Orchestrator[R]) track() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.wg.Add(1)
	return true
}

// fetch calls the remote service for key and stores the result. With dedup on,
// the call runs once per key on the lifetime context and ctx only bounds how
// long this caller waits for it.
func (o *Orchestrator[R]) fetch(ctx context.Context, key string, q Query) (Result[R], error) {
	if !o.dedup {
		return o.fetchAndStore(ctx, key, q)
	}

	ch := o.sf.DoChan(key, func() (any, error) {
		if !o.track() {
			return Result[R]{}, swrcache.ErrClosed
		}
		defer o.wg.Done()
		return o.fetchAndStore(o.ctx, key, q)
	})
	select {
	case r := <-ch:
		if r.Shared {
			o.hooks.FetchShared(key)
		}
		if r.Err != nil {
			return Result[R]{}, r.Err
		}
		return r.Val.(Result[R]), nil
	case <-ctx.Done():
		return Result[R]{}, ctx.Err()
	}
}

type fetchResult[R any] struct {
	res Result[R]
	err error
}

func (o *Orchestrator[R]) fetchAndStore(ctx context.Context, key string, q Query) (Result[R], error) {
	// snapshot before the call so an Invalidate during it discards our write
	obs := o.store.SnapshotGen(ctx, key)

	fctx, cancel := ctx, context.CancelFunc(func() {})
	if o.timeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, o.timeout)
	}
	defer cancel()

	start := o.now()
	done := make(chan fetchResult[R], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchResult[R]{err: fmt.Errorf("query: fetcher panicked: %v", p)}
			}
		}()
		res, err := o.fetcher.FetchPage(fctx, q)
		done <- fetchResult[R]{res: res, err: err}
	}()

	var out fetchResult[R]
	select {
	case out = <-done:
	case <-fctx.Done():
		out.err = fctx.Err()
	}

	if out.err != nil {
		if o.timeout > 0 && ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
			out.err = &swrcache.TimeoutError{Key: key, After: o.timeout, Err: out.err}
		}
		o.log.Warn("remote fetch failed", swrcache.Fields{"key": key, "err": out.err})
		return Result[R]{}, out.err
	}

	res := normalize(out.res, q)
	if err := o.store.SetWithGen(ctx, key, res, obs, o.setOpts); err != nil {
		// the caller still gets its page; only the cache missed out
		o.log.Warn("cache write failed", swrcache.Fields{"key": key, "err": err})
	}
	o.log.Debug("fetched page", swrcache.Fields{
		"key":     key,
		"events":  len(res.Events),
		"page":    res.Metadata.CurrentPage,
		"of":      res.Metadata.TotalPages,
		"elapsed": o.now().Sub(start),
	})
	return res, nil
}

// revalidate refreshes a stale key in the background, at most once at a time per key.
func (o *Orchestrator[R]) revalidate(key string, q Query) {
	o.mu.Lock()
	if _, running := o.revalidating[key]; running || o.closed {
		o.mu.Unlock()
		return
	}
	o.revalidating[key] = struct{}{}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer func() {
			o.mu.Lock()
			delete(o.revalidating, key)
			o.mu.Unlock()
			o.wg.Done()
		}()
		safego.Run(o.log, "revalidate "+key, func() {
			_, err := o.fetch(o.ctx, key, q)
			o.hooks.Revalidated(key, err)
			if err != nil {
				o.log.Warn("background revalidation failed; keeping stale entry", swrcache.Fields{"key": key, "err": err})
			}
		})
	}()
}

func (o *Orchestrator[R]) retarget(key string) {
	if o.prefetch != nil {
		o.prefetch.Retarget(key)
	}
}

// afterLoad hands the next page to the prefetcher when one exists, and
// otherwise drops whatever intent is still scheduled.
func (o *Orchestrator[R]) afterLoad(q Query, res Result[R]) {
	if o.prefetch == nil {
		return
	}
	if !res.Metadata.HasNext() {
		o.prefetch.Retarget("")
		return
	}
	next := q.WithPage(res.Metadata.CurrentPage + 1)
	nextKey := o.Key(next).String()
	o.prefetch.Retarget(nextKey)
	o.prefetch.Schedule(nextKey, func(ctx context.Context) error {
		_, err := o.fetch(ctx, nextKey, next)
		return err
	})
}

// cached reports whether key holds an entry a Load could serve.
func (o *Orchestrator[R]) cached(ctx context.Context, key string) bool {
	e, ok := o.store.Get(ctx, key)
	return ok && e.Usable(o.now())
}
