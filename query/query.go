// Package query loads pages of list results through a swrcache.Store.
//
// An Orchestrator turns a Query into a cache key, serves fresh entries without
// touching the network, serves stale entries while refreshing them in the
// background, and fetches synchronously on a miss. After each successful load
// it schedules a warm-up of the next page. Concurrent loads of one key share a
// single remote call, and every remote call runs under a timeout.
package query

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/swrcache"
)

// DefaultResource is the resource name used in cache keys when Options.Resource is empty.
const DefaultResource = "events"

var ErrNilFetcher = errors.New("query: nil fetcher")

// Query is the full intent of one list request. Search and Location are the
// debounced values, never raw keystrokes.
type Query struct {
	Page     int
	PageSize int
	Filter   string
	Search   string
	Location string
}

// Params are the key parameters of q. Every field takes part, including empty strings.
func (q Query) Params() swrcache.Params {
	return swrcache.Params{
		"page":     q.Page,
		"pageSize": q.PageSize,
		"filter":   q.Filter,
		"search":   q.Search,
		"location": q.Location,
	}
}

// WithPage returns q pointing at page p.
func (q Query) WithPage(p int) Query {
	q.Page = p
	return q
}

type Metadata struct {
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
}

// HasNext reports whether a page after CurrentPage exists.
func (m Metadata) HasNext() bool { return m.CurrentPage < m.TotalPages }

// Result is the cached unit: one complete page. It is always replaced whole.
type Result[R any] struct {
	Events   []R      `json:"events"`
	Metadata Metadata `json:"metadata"`
}

// Fetcher calls the remote data service for one page.
type Fetcher[R any] interface {
	FetchPage(ctx context.Context, q Query) (Result[R], error)
}

type FetcherFunc[R any] func(ctx context.Context, q Query) (Result[R], error)

func (f FetcherFunc[R]) FetchPage(ctx context.Context, q Query) (Result[R], error) { return f(ctx, q) }

// Outcome says where a Load result came from.
type Outcome int

const (
	// Fetched came from the remote service during this Load.
	Fetched Outcome = iota
	// Fresh came from the cache without a network call.
	Fresh
	// Stale came from the cache past its expiry; a background refresh was started.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Fetched:
		return "fetched"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

func normalize[R any](r Result[R], q Query) Result[R] {
	if r.Events == nil {
		r.Events = []R{}
	}
	if r.Metadata.CurrentPage == 0 {
		r.Metadata.CurrentPage = q.Page
	}
	if r.Metadata.TotalPages < 0 {
		r.Metadata.TotalPages = 0
	}
	return r
}
