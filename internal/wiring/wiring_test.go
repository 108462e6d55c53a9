package wiring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/swrcache"
	c "github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/internal/config"
	"github.com/unkn0wn-root/swrcache/provider/memory"
)

type row struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func baseConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			Namespace:            "events",
			TTL:                  swrcache.DefaultTTL,
			StaleWhileRevalidate: true,
			Codec:                "json",
		},
		Provider: config.ProviderConfig{Kind: "memory", MaxCost: 1 << 20, NumCounters: 1000},
		GenStore: config.GenStoreConfig{Kind: "local"},
		Log:      config.LogConfig{Level: "info", Backend: "zap"},
	}
}

func TestNewStackProviders(t *testing.T) {
	for _, kind := range []string{"memory", "ristretto", "bigcache"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			cfg := baseConfig()
			cfg.Provider.Kind = kind
			cfg.Cache.Codec = "msgpack"

			st, err := NewStack[row](ctx, cfg, nil, nil)
			if err != nil {
				t.Fatalf("NewStack: %v", err)
			}
			defer st.Close(ctx)

			want := row{ID: "1", Title: "Board games"}
			if err := st.Store.Set(ctx, "k", want, swrcache.SetOptions{StaleWhileRevalidate: true}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			e, ok := st.Store.Get(ctx, "k")
			if !ok || e.Value != want {
				t.Fatalf("Get: ok=%v value=%+v", ok, e.Value)
			}
		})
	}
}

func TestNewStackUnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Provider.Kind = "memcached"
	if _, err := NewStack[row](context.Background(), cfg, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewCodecLimit(t *testing.T) {
	cd, err := NewCodec[row](config.CacheConfig{Codec: "cbor", MaxValueBytes: 16})
	if err != nil {
		t.Fatal(err)
	}
	_, err = cd.Encode(row{ID: "1", Title: strings.Repeat("x", 64)})
	var tooLarge *c.ErrTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := NewCodec[row](config.CacheConfig{Codec: "xml"}); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestNewLoggerBackendsWriteJSON(t *testing.T) {
	for _, backend := range []string{"zap", "logrus", "slog", "apex"} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, flush, err := NewLogger(config.LogConfig{Level: "info", Backend: backend}, &buf)
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			l.Debug("hidden", nil)
			l.Info("fetched page", swrcache.Fields{"key": "events:{}"})
			flush()

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != 1 {
				t.Fatalf("expected one line at info level, got %q", buf.String())
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
				t.Fatalf("not JSON: %q", lines[0])
			}
			if !strings.Contains(lines[0], "fetched page") || !strings.Contains(lines[0], "events:{}") {
				t.Fatalf("record missing message or field: %s", lines[0])
			}
		})
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, _, err := NewLogger(config.LogConfig{Level: "loud", Backend: "zap"}, nil); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if _, _, err := NewLogger(config.LogConfig{Level: "info", Backend: "syslog"}, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewHooks(t *testing.T) {
	h, flush := NewHooks(config.MetricsConfig{}, nil)
	if h != nil {
		t.Fatalf("metrics disabled must yield nil hooks")
	}
	flush()

	reg := prometheus.NewRegistry()
	h, flush = NewHooks(config.MetricsConfig{Enabled: true, Namespace: "demo"}, reg)
	h.CacheMiss("k")
	flush()

	n, err := testutil.GatherAndCount(reg, "demo_swrcache_lookups_total")
	if err != nil || n != 1 {
		t.Fatalf("lookups series: n=%d err=%v", n, err)
	}
}

type downProvider struct{ memory.Provider }

func (*downProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestProviderHoldsGuardsGenerationPruning(t *testing.T) {
	ctx := context.Background()
	p := memory.New(memory.Config{})
	defer p.Close(ctx)
	if _, err := p.Set(ctx, "entry:swr:page1", []byte("x"), 1, 0); err != nil {
		t.Fatal(err)
	}
	holds := providerHolds(p)
	if !holds("entry:swr:page1") {
		t.Fatalf("stored key must count as held")
	}
	if holds("entry:swr:page2") {
		t.Fatalf("missing key must not count as held")
	}
	if !providerHolds(&downProvider{})("entry:swr:page2") {
		t.Fatalf("a provider error must count as held")
	}
}
