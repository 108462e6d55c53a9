package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/swrcache/query"
)

type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	Public   bool      `json:"public"`
	StartsAt time.Time `json:"startsAt"`
}

var (
	titles    = []string{"Board games", "Jazz night", "Pottery class", "Trail run", "Book club", "Salsa social", "Chess meetup", "Film screening"}
	locations = []string{"Oslo", "Berlin", "Lisbon", "Krakow", "Ghent"}
)

// fakeService is an in-process events service with a fixed catalog.
type fakeService struct {
	catalog []Event
	latency time.Duration
	calls   atomic.Int64
}

func newFakeService(size int, latency time.Duration) *fakeService {
	base := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	cat := make([]Event, 0, size)
	for i := 0; i < size; i++ {
		cat = append(cat, Event{
			ID:       fmt.Sprintf("ev-%03d", i+1),
			Title:    fmt.Sprintf("%s #%d", titles[i%len(titles)], i/len(titles)+1),
			Location: locations[i%len(locations)],
			Public:   i%3 != 0,
			StartsAt: base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	return &fakeService{catalog: cat, latency: latency}
}

func (s *fakeService) FetchPage(ctx context.Context, q query.Query) (query.Result[Event], error) {
	s.calls.Add(1)
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return query.Result[Event]{}, ctx.Err()
		}
	}
	if q.Page < 1 || q.PageSize <= 0 {
		return query.Result[Event]{}, fmt.Errorf("fake service: bad paging page=%d pageSize=%d", q.Page, q.PageSize)
	}

	matches := make([]Event, 0, len(s.catalog))
	for _, e := range s.catalog {
		if q.Filter == "public" && !e.Public {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(q.Search)) {
			continue
		}
		if q.Location != "" && !strings.EqualFold(e.Location, q.Location) {
			continue
		}
		matches = append(matches, e)
	}

	total := (len(matches) + q.PageSize - 1) / q.PageSize
	from := (q.Page - 1) * q.PageSize
	if from > len(matches) {
		from = len(matches)
	}
	to := min(from+q.PageSize, len(matches))
	return query.Result[Event]{
		Events:   matches[from:to],
		Metadata: query.Metadata{TotalPages: total, CurrentPage: q.Page},
	}, nil
}
