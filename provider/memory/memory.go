// Package memory is the default process-local provider: a mutex-guarded map,
// optionally bounded by entry count with least-recently-used eviction.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/swrcache/provider"
)

type Config struct {
	// MaxEntries bounds the map; the least recently used key is evicted on
	// overflow. 0 = unbounded (entries live for the whole session).
	MaxEntries int
	// Now overrides the clock used for retention. nil => time.Now.
	Now func() time.Time
}

type item struct {
	key   string
	value []byte
	exp   time.Time // zero => kept until overwritten
}

// Provider keeps entries in memory. Reads and writes take one mutex; values
// are stored as given and must not be mutated by callers.
type Provider struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
	max   int
	now   func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) *Provider {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		items: make(map[string]*list.Element),
		order: list.New(),
		max:   cfg.MaxEntries,
		now:   now,
	}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.items[key]
	if !ok {
		return nil, false, nil
	}
	it := el.Value.(*item)
	if !it.exp.IsZero() && p.now().After(it.exp) {
		p.removeLocked(el)
		return nil, false, nil
	}
	p.order.MoveToFront(el)
	return it.value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.items[key]; ok {
		// whole-value replacement; never merge
		el.Value = &item{key: key, value: value, exp: exp}
		p.order.MoveToFront(el)
		return true, nil
	}
	p.items[key] = p.order.PushFront(&item{key: key, value: value, exp: exp})
	if p.max > 0 && p.order.Len() > p.max {
		p.removeLocked(p.order.Back())
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.items[key]; ok {
		p.removeLocked(el)
	}
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = make(map[string]*list.Element)
	p.order.Init()
	return nil
}

func (p *Provider) removeLocked(el *list.Element) {
	it := p.order.Remove(el).(*item)
	delete(p.items, it.key)
}
