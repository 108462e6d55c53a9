// Package httpfetch is a query.Fetcher for a JSON list endpoint that answers
//
//	{"data": [...], "metadata": {"totalPages": 3, "currentPage": 1}, "error": null}
//
// or, on failure, {"data": null, "metadata": null, "error": {"message": "...", "code": "..."}}.
package httpfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/swrcache/query"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// ServiceError is an error reported by the service, either in the envelope or
// as a non-2xx status.
type ServiceError struct {
	Status  int    // HTTP status; 200 when the error came inside a 2xx envelope
	Code    string // envelope error.code, if any
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("httpfetch: service error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("httpfetch: service error %d: %s", e.Status, e.Message)
}

type Options struct {
	BaseURL  string       // e.g. https://api.example.com/v1
	Resource string       // path segment; "" => "events"
	Client   *http.Client // nil => client with a 30s timeout
	Header   http.Header  // extra request headers, e.g. Authorization
}

type Fetcher[R any] struct {
	endpoint *url.URL
	client   *http.Client
	header   http.Header
}

var _ query.Fetcher[struct{}] = (*Fetcher[struct{}])(nil)

func New[R any](opts Options) (*Fetcher[R], error) {
	if opts.BaseURL == "" {
		return nil, errors.New("httpfetch: empty BaseURL")
	}
	if opts.Resource == "" {
		opts.Resource = query.DefaultResource
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/" + url.PathEscape(opts.Resource))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: parse base url: %w", err)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher[R]{endpoint: base, client: opts.Client, header: opts.Header.Clone()}, nil
}

func (f *Fetcher[R]) FetchPage(ctx context.Context, q query.Query) (query.Result[R], error) {
	var zero query.Result[R]

	u := *f.endpoint
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	v.Set("filter", q.Filter)
	v.Set("search", q.Search)
	v.Set("location", q.Location)
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return zero, fmt.Errorf("httpfetch: build request: %w", err)
	}
	for k, vs := range f.header {
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("httpfetch: %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return zero, fmt.Errorf("httpfetch: read body: %w", err)
	}
	return decode[R](resp.StatusCode, body)
}

func decode[R any](status int, body []byte) (query.Result[R], error) {
	var zero query.Result[R]
	ok2xx := status >= 200 && status < 300

	if !gjson.ValidBytes(body) {
		if !ok2xx {
			return zero, &ServiceError{Status: status, Message: http.StatusText(status)}
		}
		return zero, errors.New("httpfetch: response is not valid JSON")
	}

	env := gjson.ParseBytes(body)
	if e := env.Get("error"); e.Exists() && e.Type != gjson.Null {
		se := &ServiceError{Status: status, Code: e.Get("code").String(), Message: e.Get("message").String()}
		if se.Message == "" {
			se.Message = e.String()
		}
		return zero, se
	}
	if !ok2xx {
		return zero, &ServiceError{Status: status, Message: http.StatusText(status)}
	}

	data := env.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return zero, errors.New("httpfetch: envelope has neither data nor error")
	}
	if !data.IsArray() {
		return zero, fmt.Errorf("httpfetch: data is %s, want array", data.Type)
	}

	var out query.Result[R]
	out.Events = make([]R, 0, len(data.Array()))
	for i, row := range data.Array() {
		var r R
		if err := json.Unmarshal([]byte(row.Raw), &r); err != nil {
			return zero, fmt.Errorf("httpfetch: decode row %d: %w", i, err)
		}
		out.Events = append(out.Events, r)
	}
	md := env.Get("metadata")
	out.Metadata = query.Metadata{
		TotalPages:  int(md.Get("totalPages").Int()),
		CurrentPage: int(md.Get("currentPage").Int()),
	}
	return out, nil
}
