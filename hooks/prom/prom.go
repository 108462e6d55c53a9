// Package prom counts swrcache events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	hooks := prom.New(reg, "myapp")
//
// Keys are never used as label values; cardinality stays fixed.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/swrcache"
)

type Hooks struct {
	lookups     *prometheus.CounterVec // result = fresh|stale|miss
	revalidated *prometheus.CounterVec // result = ok|error
	shared      prometheus.Counter
	selfHeals   *prometheus.CounterVec // reason
	rejected    prometheus.Counter
	provErrors  *prometheus.CounterVec // op
	genErrors   *prometheus.CounterVec // op = snapshot|bump
	prefetches  *prometheus.CounterVec // event = scheduled|cancelled|ok|error
}

var _ swrcache.Hooks = (*Hooks)(nil)

// New registers the counters on reg under namespace (e.g. "myapp" gives
// myapp_swrcache_lookups_total). A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	const sub = "swrcache"
	return &Hooks{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "lookups_total",
			Help: "Cache lookups by result.",
		}, []string{"result"}),
		revalidated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "revalidations_total",
			Help: "Background refreshes of stale entries by result.",
		}, []string{"result"}),
		shared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "fetch_shared_total",
			Help: "Loads that received a remote fetch shared with other callers.",
		}),
		selfHeals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "self_heals_total",
			Help: "Entries deleted on read by reason.",
		}, []string{"reason"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "provider_set_rejected_total",
			Help: "Writes the provider dropped under pressure.",
		}),
		provErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "provider_errors_total",
			Help: "Provider IO errors by operation.",
		}, []string{"op"}),
		genErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "gen_errors_total",
			Help: "Generation store errors by operation.",
		}, []string{"op"}),
		prefetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub,
			Name: "prefetch_events_total",
			Help: "Next-page prefetch lifecycle events.",
		}, []string{"event"}),
	}
}

func (h *Hooks) CacheHit(_ string, stale bool) {
	if stale {
		h.lookups.WithLabelValues("stale").Inc()
		return
	}
	h.lookups.WithLabelValues("fresh").Inc()
}

func (h *Hooks) CacheMiss(string) { h.lookups.WithLabelValues("miss").Inc() }

func (h *Hooks) Revalidated(_ string, err error) { h.revalidated.WithLabelValues(result(err)).Inc() }

func (h *Hooks) FetchShared(string) { h.shared.Inc() }

func (h *Hooks) SelfHeal(_ string, reason string) { h.selfHeals.WithLabelValues(reason).Inc() }

func (h *Hooks) ProviderSetRejected(string) { h.rejected.Inc() }

func (h *Hooks) ProviderError(op, _ string, _ error) { h.provErrors.WithLabelValues(op).Inc() }

func (h *Hooks) GenSnapshotError(string, error) { h.genErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) GenBumpError(string, error)     { h.genErrors.WithLabelValues("bump").Inc() }

func (h *Hooks) PrefetchScheduled(string) { h.prefetches.WithLabelValues("scheduled").Inc() }
func (h *Hooks) PrefetchCancelled(string) { h.prefetches.WithLabelValues("cancelled").Inc() }
func (h *Hooks) PrefetchDone(_ string, err error) {
	h.prefetches.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
