// Package prefetch warms the next page of a list in the background.
//
// A Prefetcher holds at most one scheduled intent. It moves through
// Idle -> Scheduled -> Fetching -> Idle; scheduling a different key while one
// is Scheduled cancels the old intent first, and Retarget drops an intent that
// no longer belongs to the query on screen. Failures never reach the caller:
// they are logged and reported through Hooks, and the warm function is
// expected to store nothing unless it succeeded.
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/safego"
)

// DefaultDelay is the quiet period before a scheduled intent starts fetching.
const DefaultDelay = 2 * time.Second

// Lookup reports whether key is already cached. It is checked when an intent
// is scheduled and again when its timer fires.
type Lookup func(ctx context.Context, key string) bool

// WarmFunc fetches and stores one key.
type WarmFunc func(ctx context.Context) error

type Options struct {
	Delay  time.Duration    // <= 0 => DefaultDelay
	Logger swrcache.Logger  // nil => NopLogger
	Hooks  swrcache.Hooks   // nil => NopHooks
	Now    func() time.Time // nil => time.Now
}

// Intent is one scheduled warm-up.
type Intent struct {
	ID          string
	Key         string
	ScheduledAt time.Time
}

type intent struct {
	Intent
	warm  WarmFunc
	timer *time.Timer
}

type Prefetcher struct {
	lookup Lookup
	delay  time.Duration
	log    swrcache.Logger
	hooks  swrcache.Hooks
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  *intent
	fetching map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(lookup Lookup, opts Options) *Prefetcher {
	if lookup == nil {
		lookup = func(context.Context, string) bool { return false }
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		lookup:   lookup,
		delay:    opts.Delay,
		log:      swrcache.OrNop(opts.Logger),
		hooks:    swrcache.HooksOrNop(opts.Hooks),
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		fetching: make(map[string]struct{}),
	}
}

// Schedule arms a warm-up of key after the quiet delay. It returns false, and
// does nothing, when key is already scheduled, already being fetched, already
// cached, or the Prefetcher is closed.
func (p *Prefetcher) Schedule(key string, warm WarmFunc) bool {
	if warm == nil || p.busy(key) {
		return false
	}
	if p.lookup(p.ctx, key) {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.busyLocked(key) {
		return false
	}
	p.cancelLocked()

	in := &intent{
		Intent: Intent{ID: uuid.NewString(), Key: key, ScheduledAt: p.now()},
		warm:   warm,
	}
	in.timer = time.AfterFunc(p.delay, func() { p.fire(in) })
	p.pending = in
	p.hooks.PrefetchScheduled(key)
	p.log.Debug("prefetch scheduled", swrcache.Fields{"key": key, "intent": in.ID, "delay": p.delay})
	return true
}

// Cancel drops the scheduled intent for key. A fetch already running is not interrupted.
func (p *Prefetcher) Cancel(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil || p.pending.Key != key {
		return false
	}
	p.cancelLocked()
	return true
}

// Retarget cancels the scheduled intent unless it is for key; "" cancels any.
// It reports whether an intent was cancelled.
func (p *Prefetcher) Retarget(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil || (key != "" && p.pending.Key == key) {
		return false
	}
	p.cancelLocked()
	return true
}

// Pending returns the scheduled intent, if one is waiting for its delay.
func (p *Prefetcher) Pending() (Intent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return Intent{}, false
	}
	return p.pending.Intent, true
}

// Fetching reports whether a warm-up of key is running.
func (p *Prefetcher) Fetching(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.fetching[key]
	return ok
}

// Close cancels the scheduled intent, cancels the context of running
// warm-ups and waits for them to return.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancelLocked()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Prefetcher) busy(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || p.busyLocked(key)
}

func (p *Prefetcher) busyLocked(key string) bool {
	if p.pending != nil && p.pending.Key == key {
		return true
	}
	_, ok := p.fetching[key]
	return ok
}

func (p *Prefetcher) cancelLocked() {
	if p.pending == nil {
		return
	}
	p.pending.timer.Stop()
	p.hooks.PrefetchCancelled(p.pending.Key)
	p.log.Debug("prefetch cancelled", swrcache.Fields{"key": p.pending.Key, "intent": p.pending.ID})
	p.pending = nil
}

func (p *Prefetcher) fire(in *intent) {
	p.mu.Lock()
	if p.closed || p.pending != in {
		// cancelled or replaced after the timer was already due
		p.mu.Unlock()
		return
	}
	p.pending = nil
	p.fetching[in.Key] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.fetching, in.Key)
		p.mu.Unlock()
		p.wg.Done()
	}()
	safego.Run(p.log, "prefetch "+in.Key, func() { p.run(in) })
}

func (p *Prefetcher) run(in *intent) {
	if p.lookup(p.ctx, in.Key) {
		p.log.Debug("prefetch skipped; key cached meanwhile", swrcache.Fields{"key": in.Key, "intent": in.ID})
		return
	}
	start := p.now()
	err := in.warm(p.ctx)
	p.hooks.PrefetchDone(in.Key, err)
	if err != nil {
		p.log.Warn("prefetch failed", swrcache.Fields{"key": in.Key, "intent": in.ID, "err": err})
		return
	}
	p.log.Debug("prefetch done", swrcache.Fields{
		"key":     in.Key,
		"intent":  in.ID,
		"waited":  start.Sub(in.ScheduledAt),
		"elapsed": p.now().Sub(start),
	})
}
