package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/swrcache/query"
)

type event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
}

func serve(t *testing.T, status int, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPageDecodesEnvelope(t *testing.T) {
	var gotQuery, gotPath, gotAuth string
	srv := serve(t, http.StatusOK, `{
		"data": [
			{"id": "1", "title": "Board games", "location": "Oslo"},
			{"id": "2", "title": "Jazz night", "extra": {"ignored": true}}
		],
		"metadata": {"totalPages": 3, "currentPage": 1},
		"error": null
	}`, func(r *http.Request) {
		gotPath, gotQuery, gotAuth = r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")
	})

	f, err := New[event](Options{
		BaseURL: srv.URL + "/v1/",
		Header:  http.Header{"Authorization": []string{"Bearer t"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.FetchPage(context.Background(), query.Query{Page: 1, PageSize: 6, Filter: "public", Search: "jazz band"})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	want := query.Result[event]{
		Events: []event{
			{ID: "1", Title: "Board games", Location: "Oslo"},
			{ID: "2", Title: "Jazz night"},
		},
		Metadata: query.Metadata{TotalPages: 3, CurrentPage: 1},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result (-want +got):\n%s", diff)
	}
	if gotPath != "/v1/events" {
		t.Fatalf("path: %q", gotPath)
	}
	if gotQuery != "filter=public&location=&page=1&pageSize=6&search=jazz+band" {
		t.Fatalf("query: %q", gotQuery)
	}
	if gotAuth != "Bearer t" {
		t.Fatalf("header not forwarded: %q", gotAuth)
	}
}

func TestEnvelopeErrorIsServiceError(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data": null, "metadata": null, "error": {"message": "filter not allowed", "code": "E_FILTER"}}`, nil)
	f, _ := New[event](Options{BaseURL: srv.URL})

	_, err := f.FetchPage(context.Background(), query.Query{Page: 1, PageSize: 6})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServiceError, got %v", err)
	}
	if se.Code != "E_FILTER" || se.Message != "filter not allowed" || se.Status != http.StatusOK {
		t.Fatalf("unexpected error: %+v", se)
	}
}

func TestNon2xxIsServiceError(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)
	f, _ := New[event](Options{BaseURL: srv.URL})

	_, err := f.FetchPage(context.Background(), query.Query{Page: 1, PageSize: 6})
	var se *ServiceError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 ServiceError, got %v", err)
	}
}

func TestEmptyDataDecodesToEmptySlice(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data": [], "metadata": {"totalPages": 0, "currentPage": 1}, "error": null}`, nil)
	f, _ := New[event](Options{BaseURL: srv.URL})

	res, err := f.FetchPage(context.Background(), query.Query{Page: 1, PageSize: 6})
	if err != nil {
		t.Fatal(err)
	}
	if res.Events == nil || len(res.Events) != 0 || res.Metadata.HasNext() {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"data": [`,
		"no data":       `{"metadata": {"totalPages": 1, "currentPage": 1}}`,
		"data not list": `{"data": {"id": "1"}, "error": null}`,
		"bad row":       `{"data": [{"id": 7}], "error": null}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body, nil)
			f, _ := New[event](Options{BaseURL: srv.URL})
			if _, err := f.FetchPage(context.Background(), query.Query{Page: 1, PageSize: 6}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New[event](Options{}); err == nil {
		t.Fatalf("expected error for empty BaseURL")
	}
}

func TestContextCancellation(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data": [], "error": null}`, nil)
	f, _ := New[event](Options{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FetchPage(ctx, query.Query{Page: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
