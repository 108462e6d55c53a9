package genstore

import (
	"context"
	"sync"
	"time"
)

type localGen struct {
	gen    uint64
	bumped time.Time
}

// LocalGenStore keeps generations in-process. Only invalidated keys get a
// record, so the map stays as small as the set of keys ever invalidated;
// the optional janitor prunes records older than retention.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]localGen
	now  func() time.Time
	live func(storageKey string) bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

type LocalOption func(*LocalGenStore)

// WithLiveCheck makes Cleanup keep the record of any key for which live
// reports true, typically "the provider still holds an entry for it".
// Entries written after an invalidation carry the bumped generation, and
// pruning their record would turn every read into a gen_mismatch miss.
func WithLiveCheck(live func(storageKey string) bool) LocalOption {
	return func(s *LocalGenStore) { s.live = live }
}

// NewLocalGenStore starts a janitor when both cleanupInterval and retention
// are positive. Pruning a record resets its key to generation 0; without
// WithLiveCheck, keep retention above the provider's retention so no entry
// outlives its generation record.
func NewLocalGenStore(cleanupInterval, retention time.Duration, opts ...LocalOption) *LocalGenStore {
	s := &LocalGenStore{
		gens: make(map[string]localGen),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if cleanupInterval <= 0 || retention <= 0 {
		return s
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.janitor(cleanupInterval, retention)
	return s
}

func (s *LocalGenStore) janitor(every, retention time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-s.stop:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	g := s.gens[k].gen // zero value (0) if missing
	s.mu.RUnlock()
	return g, nil
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	now := s.now()
	s.mu.Lock()
	g := s.gens[k]
	g.gen++
	g.bumped = now
	s.gens[k] = g
	s.mu.Unlock()
	return g.gen, nil
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)

	s.mu.RLock()
	var old []string
	for k, g := range s.gens {
		if g.bumped.Before(cutoff) {
			old = append(old, k)
		}
	}
	s.mu.RUnlock()

	for _, k := range old {
		// the live check may hit a remote provider; run it unlocked
		if s.live != nil && s.live(k) {
			continue
		}
		s.mu.Lock()
		if g, ok := s.gens[k]; ok && g.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
		s.mu.Unlock()
	}
}

// Close stops the janitor. Safe to call more than once.
func (s *LocalGenStore) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
			<-s.done
		}
	})
	return nil
}
