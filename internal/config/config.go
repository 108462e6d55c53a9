// Package config loads swrcache settings from a YAML file and SWRCACHE_*
// environment variables. Environment wins over the file; the file wins over defaults.
//
//	cache.ttl          -> SWRCACHE_CACHE_TTL
//	provider.kind      -> SWRCACHE_PROVIDER_KIND
//	query.fetch_timeout -> SWRCACHE_QUERY_FETCH_TIMEOUT
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/swrcache"
)

const envPrefix = "SWRCACHE"

type CacheConfig struct {
	Namespace            string        `mapstructure:"namespace"`
	TTL                  time.Duration `mapstructure:"ttl"`
	StaleWhileRevalidate bool          `mapstructure:"stale_while_revalidate"`
	Retention            time.Duration `mapstructure:"retention"` // provider retention; 0 = keep
	Codec                string        `mapstructure:"codec"`     // json | cbor | msgpack
	MaxValueBytes        int           `mapstructure:"max_value_bytes"`
	Disabled             bool          `mapstructure:"disabled"`
}

type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"` // Optional
	DB        int           `mapstructure:"db"`       // Optional
	Prefix    string        `mapstructure:"prefix"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type ProviderConfig struct {
	Kind        string      `mapstructure:"kind"` // memory | ristretto | bigcache | redis
	MaxEntries  int         `mapstructure:"max_entries"`
	MaxCost     int64       `mapstructure:"max_cost"`     // ristretto, bytes
	NumCounters int64       `mapstructure:"num_counters"` // ristretto
	MaxSizeMB   int         `mapstructure:"max_size_mb"`  // bigcache hard cap
	Redis       RedisConfig `mapstructure:"redis"`
}

type GenStoreConfig struct {
	Kind            string        `mapstructure:"kind"` // local | redis
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Retention       time.Duration `mapstructure:"retention"`
}

type QueryConfig struct {
	Resource        string        `mapstructure:"resource"`
	PageSize        int           `mapstructure:"page_size"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	DebounceDelay   time.Duration `mapstructure:"debounce_delay"`
	PrefetchDelay   time.Duration `mapstructure:"prefetch_delay"`
	DisablePrefetch bool          `mapstructure:"disable_prefetch"`
	DisableDedup    bool          `mapstructure:"disable_dedup"`
}

type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`   // debug | info | warn | error
	Backend string `mapstructure:"backend"` // zap | logrus | slog | apex
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Provider ProviderConfig `mapstructure:"provider"`
	GenStore GenStoreConfig `mapstructure:"genstore"`
	Query    QueryConfig    `mapstructure:"query"`
	Service  ServiceConfig  `mapstructure:"service"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.namespace", "events")
	v.SetDefault("cache.ttl", swrcache.DefaultTTL)
	v.SetDefault("cache.stale_while_revalidate", true)
	v.SetDefault("cache.retention", time.Duration(0))
	v.SetDefault("cache.codec", "json")
	v.SetDefault("cache.max_value_bytes", 0)
	v.SetDefault("cache.disabled", false)

	v.SetDefault("provider.kind", "memory")
	v.SetDefault("provider.max_entries", 0)
	v.SetDefault("provider.max_cost", int64(64<<20))
	v.SetDefault("provider.num_counters", int64(100_000))
	v.SetDefault("provider.max_size_mb", 0)
	v.SetDefault("provider.redis.address", "localhost:6379")
	v.SetDefault("provider.redis.password", "")
	v.SetDefault("provider.redis.db", 0)
	v.SetDefault("provider.redis.prefix", "swrcache:")
	v.SetDefault("provider.redis.op_timeout", 250*time.Millisecond)

	v.SetDefault("genstore.kind", "local")
	v.SetDefault("genstore.cleanup_interval", time.Duration(0))
	v.SetDefault("genstore.retention", time.Duration(0))

	v.SetDefault("query.resource", "events")
	v.SetDefault("query.page_size", 6)
	v.SetDefault("query.fetch_timeout", 15*time.Second)
	v.SetDefault("query.debounce_delay", 500*time.Millisecond)
	v.SetDefault("query.prefetch_delay", 2*time.Second)
	v.SetDefault("query.disable_prefetch", false)
	v.SetDefault("query.disable_dedup", false)

	v.SetDefault("service.base_url", "")
	v.SetDefault("service.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.backend", "zap")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "swrcache")
}

// Validate rejects settings the rest of the module would fail on later.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.Retention < 0 {
		errs = append(errs, fmt.Errorf("cache.retention must not be negative, got %s", c.Cache.Retention))
	}
	if c.Cache.Retention > 0 && c.Cache.StaleWhileRevalidate && c.Cache.Retention < c.Cache.TTL {
		errs = append(errs, fmt.Errorf("cache.retention %s is shorter than cache.ttl %s; stale entries would vanish before revalidation",
			c.Cache.Retention, c.Cache.TTL))
	}
	if !oneOf(c.Cache.Codec, "json", "cbor", "msgpack") {
		errs = append(errs, fmt.Errorf("cache.codec %q is not one of json, cbor, msgpack", c.Cache.Codec))
	}
	if !oneOf(c.Provider.Kind, "memory", "ristretto", "bigcache", "redis") {
		errs = append(errs, fmt.Errorf("provider.kind %q is not one of memory, ristretto, bigcache, redis", c.Provider.Kind))
	}
	if !oneOf(c.GenStore.Kind, "local", "redis") {
		errs = append(errs, fmt.Errorf("genstore.kind %q is not one of local, redis", c.GenStore.Kind))
	}
	if c.Query.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("query.page_size must be positive, got %d", c.Query.PageSize))
	}
	if c.Query.Resource == "" {
		errs = append(errs, errors.New("query.resource must not be empty"))
	}
	if !oneOf(c.Log.Backend, "zap", "logrus", "slog", "apex") {
		errs = append(errs, fmt.Errorf("log.backend %q is not one of zap, logrus, slog, apex", c.Log.Backend))
	}
	if !oneOf(strings.ToLower(c.Log.Level), "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Source holds the current Config and can follow edits of its file.
type Source struct {
	v   *viper.Viper
	log swrcache.Logger

	mu  sync.RWMutex
	cfg *Config
}

// Load reads path (when non-empty) or ./swrcache.yaml if present, then the
// environment. A missing default file is not an error; a missing explicit path is.
func Load(path string, log swrcache.Logger) (*Source, error) {
	log = swrcache.OrNop(log)
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("swrcache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("config: read %s: %w", describe(path), err)
		}
		log.Debug("config file not found; using defaults and environment", nil)
	}

	s := &Source{v: v, log: log}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	log.Info("configuration loaded", swrcache.Fields{"file": v.ConfigFileUsed()})
	return s, nil
}

func describe(path string) string {
	if path == "" {
		return "swrcache.yaml"
	}
	return path
}

// Get returns the current configuration. Callers must not modify it.
func (s *Source) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Watch follows edits of the config file and calls fn with each valid new
// Config. Invalid edits are logged and the previous Config stays current.
// Without a config file Watch does nothing.
func (s *Source) Watch(fn func(*Config)) {
	if s.v.ConfigFileUsed() == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.log.Info("config file changed", swrcache.Fields{"name": e.Name, "op": e.Op.String()})
		if cfg, ok := s.reload(); ok && fn != nil {
			fn(cfg)
		}
	})
	s.v.WatchConfig()
}

func (s *Source) reload() (*Config, bool) {
	cfg, err := s.decode()
	if err != nil {
		s.log.Error("config reload rejected; keeping previous configuration", swrcache.Fields{"err": err})
		return nil, false
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return cfg, true
}

func (s *Source) decode() (*Config, error) {
	cfg := &Config{}
	if err := s.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
