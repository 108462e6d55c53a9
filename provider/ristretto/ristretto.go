// Package ristretto backs a store with dgraph-io/ristretto, bounding memory by
// encoded entry size instead of entry count.
package ristretto

import (
	"context"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/swrcache/provider"
)

type Config struct {
	NumCounters int64 // ~10x the expected number of pages
	MaxCost     int64 // total bytes of encoded entries
	BufferItems int64 // 0 = 64
	// MaxItemCost rejects a single page larger than this, so one oversized
	// result cannot evict the whole list. 0 = MaxCost/8.
	MaxItemCost int64
	Metrics     bool
}

type Provider struct {
	c       *rc.Cache
	maxItem int64
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("ristretto: NumCounters and MaxCost must be positive (got %d, %d)", cfg.NumCounters, cfg.MaxCost)
	}
	if cfg.BufferItems < 0 || cfg.MaxItemCost < 0 {
		return nil, fmt.Errorf("ristretto: negative BufferItems or MaxItemCost")
	}
	buf := cfg.BufferItems
	if buf == 0 {
		buf = 64
	}
	maxItem := cfg.MaxItemCost
	if maxItem == 0 {
		maxItem = max(cfg.MaxCost/8, 1)
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: buf,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, maxItem: maxItem}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for ristretto's write buffer so a Get right after a successful Set
// sees the new entry; list screens read back what they just fetched.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost > p.maxItem {
		return false, nil
	}
	if !p.c.SetWithTTL(key, value, cost, max(ttl, 0)) {
		return false, nil
	}
	p.c.Wait()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's own counters (nil unless Config.Metrics).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
