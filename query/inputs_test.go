package query

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type changes struct {
	mu sync.Mutex
	qs []Query
	ch chan Query
}

func newChanges() *changes { return &changes{ch: make(chan Query, 16)} }

func (c *changes) record(q Query) {
	c.mu.Lock()
	c.qs = append(c.qs, q)
	c.mu.Unlock()
	c.ch <- q
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.qs)
}

func TestInputsInitialQueryIsImmediate(t *testing.T) {
	in := NewInputs(Query{PageSize: 6, Filter: "public", Search: "seed"}, time.Hour, nil)
	defer in.Close()

	q := in.Query()
	if q.Search != "seed" || q.Page != 1 {
		t.Fatalf("initial query: %+v", q)
	}
}

func TestInputsSearchBurstCommitsOnceAndResetsPage(t *testing.T) {
	const delay = 60 * time.Millisecond
	ch := newChanges()
	in := NewInputs(Query{Page: 1, PageSize: 6, Filter: "public"}, delay, ch.record)
	defer in.Close()

	in.SetPage(3)
	if got := <-ch.ch; got.Page != 3 {
		t.Fatalf("page change: %+v", got)
	}

	for _, s := range []string{"j", "ja", "jaz", "jazz"} {
		in.SetSearch(s)
		time.Sleep(delay / 6)
	}
	select {
	case got := <-ch.ch:
		if got.Search != "jazz" || got.Page != 1 {
			t.Fatalf("search commit: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no search commit")
	}
	time.Sleep(3 * delay)
	if n := ch.count(); n != 2 {
		t.Fatalf("expected 2 changes (page, search), got %d", n)
	}
}

func TestInputsFilterResetsPageImmediately(t *testing.T) {
	ch := newChanges()
	in := NewInputs(Query{Page: 4, PageSize: 6, Filter: "public"}, time.Hour, ch.record)
	defer in.Close()

	in.SetFilter("public") // unchanged
	in.SetFilter("mine")
	got := <-ch.ch
	if got.Filter != "mine" || got.Page != 1 {
		t.Fatalf("filter change: %+v", got)
	}
	if n := ch.count(); n != 1 {
		t.Fatalf("unchanged filter must not notify; changes=%d", n)
	}
}

func TestInputsLocationFlush(t *testing.T) {
	ch := newChanges()
	in := NewInputs(Query{Page: 2, PageSize: 6}, time.Hour, ch.record)
	defer in.Close()

	in.SetLocation("Oslo")
	if q := in.Query(); q.Location != "" {
		t.Fatalf("location committed before flush: %+v", q)
	}
	in.Flush()
	got := <-ch.ch
	if got.Location != "Oslo" || got.Page != 1 {
		t.Fatalf("flushed location: %+v", got)
	}
}

func TestInputsPageSizeAndClamp(t *testing.T) {
	in := NewInputs(Query{Page: 2, PageSize: 6}, time.Hour, nil)
	defer in.Close()

	in.SetPageSize(0)
	in.SetPageSize(12)
	in.SetPage(-1)
	if q := in.Query(); q.PageSize != 12 || q.Page != 1 {
		t.Fatalf("got %+v", q)
	}
}

func TestInputsCloseDropsPendingText(t *testing.T) {
	const delay = 20 * time.Millisecond
	ch := newChanges()
	in := NewInputs(Query{Page: 1, PageSize: 6}, delay, ch.record)

	in.SetSearch("late")
	in.Close()
	time.Sleep(5 * delay)
	if n := ch.count(); n != 0 {
		t.Fatalf("change delivered after Close")
	}
}

func TestInputsDeliversLatestQueryLast(t *testing.T) {
	var (
		mu       sync.Mutex
		got      []Query
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	in := NewInputs(Query{Page: 1, PageSize: 6}, time.Hour, func(q Query) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
		inFlight.Add(-1)
	})
	defer in.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in.SetFilter(fmt.Sprintf("f%d", i))
		}(i)
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatalf("onChange calls overlapped")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatalf("no change delivered")
	}
	if last := got[len(got)-1]; last != in.Query() {
		t.Fatalf("last delivered %+v, committed %+v", last, in.Query())
	}
}
