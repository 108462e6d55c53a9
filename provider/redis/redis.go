// Package redis backs a store with Redis, so several processes of the same
// client share warm pages. Pair it with genstore.RedisGenStore so invalidation
// is visible to every process.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/swrcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Config struct {
	Client goredis.UniversalClient
	// Prefix is prepended to every key, for sharing one database between apps.
	Prefix string
	// OpTimeout bounds each round-trip so a slow server degrades to a miss
	// instead of stalling a page load. 0 = rely on the caller's context.
	OpTimeout time.Duration
	// MaxCost rejects pages whose encoded size exceeds it (ok=false). 0 = no cap.
	MaxCost int64
	// CloseClient is set only if this provider exclusively owns Client.
	CloseClient bool
}

type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	opTimeout   time.Duration
	maxCost     int64
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.OpTimeout < 0 || cfg.MaxCost < 0 {
		return nil, errors.New("redis provider: negative OpTimeout or MaxCost")
	}
	return &Redis{
		rdb:         cfg.Client,
		prefix:      cfg.Prefix,
		opTimeout:   cfg.OpTimeout,
		maxCost:     cfg.MaxCost,
		closeClient: cfg.CloseClient,
	}, nil
}

func (p *Redis) op(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opTimeout == 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opTimeout)
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := p.op(ctx)
	defer cancel()
	b, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return b, true, nil
}

// Set writes value with retention ttl; ttl <= 0 keeps it until overwritten.
func (p *Redis) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if p.maxCost > 0 && cost > p.maxCost {
		return false, nil
	}
	ctx, cancel := p.op(ctx)
	defer cancel()
	if err := p.rdb.Set(ctx, p.prefix+key, value, max(ttl, 0)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	ctx, cancel := p.op(ctx)
	defer cancel()
	return p.rdb.Del(ctx, p.prefix+key).Err()
}

// Close releases the client only when this provider owns it. Repeated calls are no-ops.
func (p *Redis) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
