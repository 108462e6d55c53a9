package prom

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg, "test")

	h.CacheHit("k", false)
	h.CacheHit("k", false)
	h.CacheHit("k", true)
	h.CacheMiss("k")
	h.Revalidated("k", errors.New("503"))
	h.SelfHeal("k", "corrupt")
	h.ProviderError("get", "k", errors.New("eof"))
	h.PrefetchScheduled("k")
	h.PrefetchDone("k", nil)
	h.FetchShared("k")

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"fresh", h.lookups.WithLabelValues("fresh"), 2},
		{"stale", h.lookups.WithLabelValues("stale"), 1},
		{"miss", h.lookups.WithLabelValues("miss"), 1},
		{"revalidate error", h.revalidated.WithLabelValues("error"), 1},
		{"self heal", h.selfHeals.WithLabelValues("corrupt"), 1},
		{"provider get", h.provErrors.WithLabelValues("get"), 1},
		{"prefetch scheduled", h.prefetches.WithLabelValues("scheduled"), 1},
		{"prefetch ok", h.prefetches.WithLabelValues("ok"), 1},
		{"shared", h.shared, 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}

	n, err := testutil.GatherAndCount(reg, "test_swrcache_lookups_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("lookup series: got %d want 3", n)
	}
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "dup")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	New(reg, "dup")
}
