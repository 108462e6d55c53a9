package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Client redis.UniversalClient
	// Prefix matches the provider's key prefix so one FLUSH pattern covers both.
	Prefix string
	// TTL expires idle generation keys; 0 keeps them. An expired generation
	// reads as 0 and any entry written under a later one self-heals.
	TTL time.Duration
	// OpTimeout bounds each round-trip. 0 = rely on the caller's context.
	OpTimeout time.Duration
}

// RedisGenStore shares per-key generations across processes, so an
// invalidation in one process discards in-flight writes in all of them.
type RedisGenStore struct {
	rdb       redis.UniversalClient
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

var _ GenStore = (*RedisGenStore)(nil)

func NewRedisGenStore(cfg RedisConfig) (*RedisGenStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis genstore: nil client")
	}
	return &RedisGenStore{
		rdb:       cfg.Client,
		prefix:    cfg.Prefix,
		ttl:       max(cfg.TTL, 0),
		opTimeout: max(cfg.OpTimeout, 0),
	}, nil
}

func (s *RedisGenStore) key(storageKey string) string { return s.prefix + "gen:" + storageKey }

func (s *RedisGenStore) op(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout == 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Snapshot returns the current generation; a missing key is generation 0.
func (s *RedisGenStore) Snapshot(ctx context.Context, storageKey string) (uint64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	res, err := s.rdb.Get(ctx, s.key(storageKey)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, err
	}
	g, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis genstore: parse %q: %w", res, err)
	}
	return g, nil
}

// Bump increments the generation and refreshes its TTL in one transaction.
func (s *RedisGenStore) Bump(ctx context.Context, storageKey string) (uint64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	k := s.key(storageKey)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Uint64()
}

// Cleanup is a no-op; Redis expires keys itself when TTL is set.
func (s *RedisGenStore) Cleanup(time.Duration) {}

// Close is a no-op: the client is shared with the provider and owned by the caller.
func (s *RedisGenStore) Close(context.Context) error { return nil }
