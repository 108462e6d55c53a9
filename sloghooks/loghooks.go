// Package sloghooks logs the high-signal swrcache events through log/slog.
// Hits and misses are sampled; failures are always logged. Keys are redacted
// because they carry user search text.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/swrcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ swrcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(key string, stale bool) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("swrcache.hit", "key", h.redact(key), "stale", stale)
}

func (h *Hooks) CacheMiss(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.missCtr) {
		return
	}
	h.l.Debug("swrcache.miss", "key", h.redact(key))
}

func (h *Hooks) Revalidated(key string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("swrcache.revalidate_failed", "key", h.redact(key), "err", err)
		return
	}
	h.l.Debug("swrcache.revalidated", "key", h.redact(key))
}

func (h *Hooks) FetchShared(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.fetch_shared", "key", h.redact(key))
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("swrcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) ProviderError(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.provider_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) GenSnapshotError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.gen_snapshot_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) PrefetchScheduled(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.prefetch_scheduled", "key", h.redact(key))
}

func (h *Hooks) PrefetchCancelled(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.prefetch_cancelled", "key", h.redact(key))
}

func (h *Hooks) PrefetchDone(key string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		// speculative; never user-visible
		h.l.Info("swrcache.prefetch_failed", "key", h.redact(key), "err", err)
		return
	}
	h.l.Debug("swrcache.prefetch_done", "key", h.redact(key))
}
