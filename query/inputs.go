package query

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/swrcache/debounce"
)

// Inputs is the input state of a list screen. Page, page size and filter
// apply at once; search and location text are debounced. A committed change
// to filter, search or location sends the list back to page 1.
//
// OnChange receives the new Query after every committed change, so a burst of
// keystrokes produces one call. Calls never overlap and arrive in commit
// order; a change overtaken by a newer one before delivery is skipped, so the
// last call always carries Query(). OnChange must not call back into Inputs.
type Inputs struct {
	search   *debounce.Debouncer[string]
	location *debounce.Debouncer[string]

	mu       sync.Mutex
	q        Query
	seq      uint64
	onChange func(Query)

	deliver   sync.Mutex
	delivered uint64
}

// NewInputs starts from initial, which is committed immediately. delay <= 0
// uses debounce.DefaultDelay. onChange may be nil.
func NewInputs(initial Query, delay time.Duration, onChange func(Query)) *Inputs {
	if initial.Page < 1 {
		initial.Page = 1
	}
	in := &Inputs{q: initial, onChange: onChange}
	in.search = debounce.New(initial.Search, delay, debounce.WithOnCommit(func(v string) {
		in.apply(func(q *Query) bool {
			if q.Search == v {
				return false
			}
			q.Search, q.Page = v, 1
			return true
		})
	}))
	in.location = debounce.New(initial.Location, delay, debounce.WithOnCommit(func(v string) {
		in.apply(func(q *Query) bool {
			if q.Location == v {
				return false
			}
			q.Location, q.Page = v, 1
			return true
		})
	}))
	return in
}

// Query returns the committed query.
func (in *Inputs) Query() Query {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.q
}

func (in *Inputs) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	in.apply(func(q *Query) bool {
		if q.Page == p {
			return false
		}
		q.Page = p
		return true
	})
}

func (in *Inputs) SetPageSize(n int) {
	in.apply(func(q *Query) bool {
		if n <= 0 || q.PageSize == n {
			return false
		}
		q.PageSize = n
		return true
	})
}

func (in *Inputs) SetFilter(f string) {
	in.apply(func(q *Query) bool {
		if q.Filter == f {
			return false
		}
		q.Filter, q.Page = f, 1
		return true
	})
}

// SetSearch and SetLocation take raw keystrokes.
func (in *Inputs) SetSearch(s string)   { in.search.Set(s) }
func (in *Inputs) SetLocation(l string) { in.location.Set(l) }

// Flush commits pending search and location text now.
func (in *Inputs) Flush() {
	in.search.Flush()
	in.location.Flush()
}

// Close stops both debouncers; pending text is dropped.
func (in *Inputs) Close() {
	in.search.Close()
	in.location.Close()
}

func (in *Inputs) apply(mut func(*Query) bool) {
	in.mu.Lock()
	if !mut(&in.q) {
		in.mu.Unlock()
		return
	}
	in.seq++
	q, seq, cb := in.q, in.seq, in.onChange
	in.mu.Unlock()
	if cb == nil {
		return
	}

	in.deliver.Lock()
	defer in.deliver.Unlock()
	if seq <= in.delivered {
		return
	}
	in.delivered = seq
	cb(q)
}
