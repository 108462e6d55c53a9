// Package wiring builds the swrcache stack described by a config.Config.
package wiring

import (
	"context"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"
	"time"

	apexlog "github.com/apex/log"
	apexjson "github.com/apex/log/handlers/json"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/swrcache"
	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	asynchook "github.com/unkn0wn-root/swrcache/hooks/async"
	"github.com/unkn0wn-root/swrcache/hooks/prom"
	"github.com/unkn0wn-root/swrcache/internal/config"
	apexadapter "github.com/unkn0wn-root/swrcache/log/apex"
	logrusadapter "github.com/unkn0wn-root/swrcache/log/logrus"
	slogadapter "github.com/unkn0wn-root/swrcache/log/slog"
	zapadapter "github.com/unkn0wn-root/swrcache/log/zap"
	pr "github.com/unkn0wn-root/swrcache/provider"
	"github.com/unkn0wn-root/swrcache/provider/bigcache"
	"github.com/unkn0wn-root/swrcache/provider/memory"
	redisprovider "github.com/unkn0wn-root/swrcache/provider/redis"
	"github.com/unkn0wn-root/swrcache/provider/ristretto"
)

// NewLogger builds the configured backend writing JSON to w (nil => stderr).
// The returned flush func must be called before exit.
func NewLogger(cfg config.LogConfig, w io.Writer) (swrcache.Logger, func(), error) {
	if w == nil {
		w = os.Stderr
	}
	level := strings.ToLower(cfg.Level)

	switch cfg.Backend {
	case "", "zap":
		var zl zapcore.Level
		if err := zl.UnmarshalText([]byte(level)); err != nil {
			return nil, nil, fmt.Errorf("wiring: log level %q: %w", cfg.Level, err)
		}
		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(w)), zl)
		l := zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)).With(zap.String("component", "swrcache"))
		return zapadapter.New(l), func() { _ = l.Sync() }, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("wiring: log level %q: %w", cfg.Level, err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return logrusadapter.New(l, "swrcache"), func() {}, nil

	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, nil, fmt.Errorf("wiring: log level %q: %w", cfg.Level, err)
		}
		h := stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: lvl})
		return slogadapter.New(stdslog.New(h).With("component", "swrcache")), func() {}, nil

	case "apex":
		lvl, err := apexlog.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("wiring: log level %q: %w", cfg.Level, err)
		}
		l := &apexlog.Logger{Handler: apexjson.New(w), Level: lvl}
		return apexadapter.New(l.WithField("component", "swrcache")), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("wiring: unknown log backend %q", cfg.Backend)
	}
}

// NewCodec picks the configured codec and caps it at MaxValueBytes when set.
func NewCodec[V any](cfg config.CacheConfig) (c.Codec[V], error) {
	cd, ok := c.ByName[V](cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("wiring: unknown codec %q", cfg.Codec)
	}
	if cfg.MaxValueBytes > 0 {
		return c.Limit[V]{Inner: cd, Max: cfg.MaxValueBytes}, nil
	}
	return cd, nil
}

// NewHooks returns Prometheus hooks behind an async queue when metrics are
// enabled, otherwise nil. flush drains the queue.
func NewHooks(cfg config.MetricsConfig, reg prometheus.Registerer) (h swrcache.Hooks, flush func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	async := asynchook.New(prom.New(reg, cfg.Namespace), 1, 4096)
	return async, async.Close
}

// Stack is a built store plus whatever it owns.
type Stack[V any] struct {
	Store    swrcache.Store[V]
	Provider pr.Provider
	closers  []func()
}

// Close closes the store (provider and generation store) and then any shared clients.
func (s *Stack[V]) Close(ctx context.Context) error {
	err := s.Store.Close(ctx)
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	return err
}

// NewStack builds provider, generation store and codec from cfg and opens a
// Store over them. One redis client is shared when both provider and
// generation store use redis.
func NewStack[V any](ctx context.Context, cfg *config.Config, log swrcache.Logger, hooks swrcache.Hooks) (*Stack[V], error) {
	st := &Stack[V]{}

	var rdb goredis.UniversalClient
	redisClient := func() goredis.UniversalClient {
		if rdb == nil {
			rdb = goredis.NewClient(&goredis.Options{
				Addr:     cfg.Provider.Redis.Address,
				Password: cfg.Provider.Redis.Password,
				DB:       cfg.Provider.Redis.DB,
			})
			st.closers = append(st.closers, func() { _ = rdb.Close() })
		}
		return rdb
	}
	fail := func(err error) (*Stack[V], error) {
		for _, cl := range st.closers {
			cl()
		}
		return nil, err
	}

	p, err := newProvider(ctx, cfg, redisClient)
	if err != nil {
		return fail(err)
	}
	st.Provider = p

	var gs gen.GenStore
	switch cfg.GenStore.Kind {
	case "redis":
		gs, err = gen.NewRedisGenStore(gen.RedisConfig{
			Client:    redisClient(),
			Prefix:    cfg.Provider.Redis.Prefix,
			TTL:       cfg.GenStore.Retention,
			OpTimeout: cfg.Provider.Redis.OpTimeout,
		})
		if err != nil {
			_ = p.Close(ctx)
			return fail(err)
		}
	default:
		gs = gen.NewLocalGenStore(cfg.GenStore.CleanupInterval, cfg.GenStore.Retention,
			gen.WithLiveCheck(providerHolds(p)))
	}

	cd, err := NewCodec[V](cfg.Cache)
	if err != nil {
		_ = p.Close(ctx)
		_ = gs.Close(ctx)
		return fail(err)
	}

	store, err := swrcache.New[V](swrcache.Options[V]{
		Namespace:  cfg.Cache.Namespace,
		Provider:   p,
		Codec:      cd,
		GenStore:   gs,
		Logger:     log,
		Hooks:      hooks,
		DefaultTTL: cfg.Cache.TTL,
		Retention:  cfg.Cache.Retention,
		Disabled:   cfg.Cache.Disabled,
	})
	if err != nil {
		_ = p.Close(ctx)
		_ = gs.Close(ctx)
		return fail(err)
	}
	st.Store = store
	swrcache.OrNop(log).Debug("cache stack ready", swrcache.Fields{
		"provider": cfg.Provider.Kind,
		"genstore": cfg.GenStore.Kind,
		"codec":    cfg.Cache.Codec,
	})
	return st, nil
}

// providerHolds reports whether p still has bytes for a storage key. A provider
// error counts as held, so a flaky backend never causes a prune.
func providerHolds(p pr.Provider) func(string) bool {
	return func(storageKey string) bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, ok, err := p.Get(ctx, storageKey)
		return ok || err != nil
	}
}

func newProvider(ctx context.Context, cfg *config.Config, rdb func() goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.Provider.Kind {
	case "", "memory":
		return memory.New(memory.Config{MaxEntries: cfg.Provider.MaxEntries}), nil
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: cfg.Provider.NumCounters,
			MaxCost:     cfg.Provider.MaxCost,
			BufferItems: 64,
		})
	case "bigcache":
		life := cfg.Cache.Retention
		if life <= 0 {
			// bigcache always evicts by age; keep bytes well past logical expiry
			life = 12 * cfg.Cache.TTL
		}
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         life,
			HardMaxCacheSizeMB: cfg.Provider.MaxSizeMB,
		})
	case "redis":
		// the client is shared and closed by the Stack, not the provider
		return redisprovider.New(redisprovider.Config{
			Client:    rdb(),
			Prefix:    cfg.Provider.Redis.Prefix,
			OpTimeout: cfg.Provider.Redis.OpTimeout,
			MaxCost:   int64(cfg.Cache.MaxValueBytes),
		})
	default:
		return nil, fmt.Errorf("wiring: unknown provider %q", cfg.Provider.Kind)
	}
}
