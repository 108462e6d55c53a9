package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/config"
	"github.com/unkn0wn-root/swrcache/internal/wiring"
	"github.com/unkn0wn-root/swrcache/query"
	"github.com/unkn0wn-root/swrcache/query/httpfetch"
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "swrdemo",
		Usage:     "exercise the stale-while-revalidate list cache",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to swrcache.yaml"},
			&cli.StringFlag{Name: "base-url", Usage: "events service base URL; empty uses the fake service"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
			&cli.IntFlag{Name: "fake-events", Value: 40, Usage: "size of the fake catalog"},
			&cli.DurationFlag{Name: "fake-latency", Value: 150 * time.Millisecond, Usage: "fake service response time"},
		},
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "load one page, repeatedly, and report where each result came from",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.StringFlag{Name: "filter", Value: "public"},
					&cli.StringFlag{Name: "search"},
					&cli.StringFlag{Name: "location"},
					&cli.IntFlag{Name: "repeat", Value: 2, Usage: "number of loads"},
					&cli.DurationFlag{Name: "advance", Usage: "pause between loads"},
				},
				Action: getAction,
			},
			{
				Name:  "browse",
				Usage: "type a search term key by key, then page forward",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Value: "jazz", Usage: "search text to type"},
					&cli.DurationFlag{Name: "keystroke-gap", Value: 100 * time.Millisecond},
					&cli.IntFlag{Name: "pages", Value: 2, Usage: "pages to walk after the search settles"},
				},
				Action: browseAction,
			},
		},
	}
}

type session struct {
	cfg     *config.Config
	src     *config.Source
	log     swrcache.Logger
	store   swrcache.Store[query.Result[Event]]
	orch    *query.Orchestrator[Event]
	fake    *fakeService
	cleanup func()
}

func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	src, err := config.Load(cmd.String("config"), nil)
	if err != nil {
		return nil, err
	}
	cfg := *src.Get()
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if u := cmd.String("base-url"); u != "" {
		cfg.Service.BaseURL = u
	}

	log, flushLog, err := wiring.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	hooks, flushHooks := wiring.NewHooks(cfg.Metrics, prometheus.NewRegistry())
	stack, err := wiring.NewStack[query.Result[Event]](ctx, &cfg, log, hooks)
	if err != nil {
		flushHooks()
		flushLog()
		return nil, err
	}

	s := &session{cfg: &cfg, src: src, log: log, store: stack.Store}
	var f query.Fetcher[Event]
	if cfg.Service.BaseURL != "" {
		hf, err := httpfetch.New[Event](httpfetch.Options{
			BaseURL:  cfg.Service.BaseURL,
			Resource: cfg.Query.Resource,
			Client:   &http.Client{Timeout: cfg.Service.Timeout},
		})
		if err != nil {
			_ = stack.Close(ctx)
			return nil, err
		}
		f = hf
	} else {
		s.fake = newFakeService(int(cmd.Int("fake-events")), cmd.Duration("fake-latency"))
		f = s.fake
	}

	orch, err := query.New[Event](stack.Store, f, query.Options{
		Resource:                    cfg.Query.Resource,
		TTL:                         cfg.Cache.TTL,
		DisableStaleWhileRevalidate: !cfg.Cache.StaleWhileRevalidate,
		FetchTimeout:                cfg.Query.FetchTimeout,
		PrefetchDelay:               cfg.Query.PrefetchDelay,
		DisablePrefetch:             cfg.Query.DisablePrefetch,
		DisableDedup:                cfg.Query.DisableDedup,
		Logger:                      log,
		Hooks:                       hooks,
	})
	if err != nil {
		_ = stack.Close(ctx)
		return nil, err
	}
	s.orch = orch
	s.cleanup = func() {
		orch.Close()
		_ = stack.Close(context.Background())
		flushHooks()
		flushLog()
	}
	return s, nil
}

func getAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.cleanup()

	q := query.Query{
		Page:     int(cmd.Int("page")),
		PageSize: s.cfg.Query.PageSize,
		Filter:   cmd.String("filter"),
		Search:   cmd.String("search"),
		Location: cmd.String("location"),
	}
	out := cmd.Root().Writer
	fmt.Fprintf(out, "key %s\n", s.orch.Key(q))

	for i := 0; i < int(cmd.Int("repeat")); i++ {
		if i > 0 && cmd.Duration("advance") > 0 {
			time.Sleep(cmd.Duration("advance"))
		}
		if err := s.load(ctx, out, q); err != nil {
			return err
		}
	}
	s.summary(out)
	return nil
}

func browseAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.cleanup()
	out := cmd.Root().Writer

	s.src.Watch(func(*config.Config) {
		s.log.Info("config file changed; restart swrdemo to apply", nil)
	})

	changes := make(chan query.Query, 16)
	in := query.NewInputs(query.Query{Page: 1, PageSize: s.cfg.Query.PageSize, Filter: "public"},
		s.cfg.Query.DebounceDelay, func(q query.Query) { changes <- q })
	defer in.Close()

	if err := s.load(ctx, out, in.Query()); err != nil {
		return err
	}

	text := cmd.String("type")
	for i := 1; i <= len(text); i++ {
		fmt.Fprintf(out, "typed %q\n", text[:i])
		in.SetSearch(text[:i])
		time.Sleep(cmd.Duration("keystroke-gap"))
	}

	wait := s.cfg.Query.DebounceDelay + 2*time.Second
	for step := 0; step <= int(cmd.Int("pages")); step++ {
		select {
		case q := <-changes:
			if err := s.load(ctx, out, q); err != nil {
				return err
			}
			if step < int(cmd.Int("pages")) {
				// give the prefetcher time to warm the next page, then flip to it
				time.Sleep(s.cfg.Query.PrefetchDelay + 250*time.Millisecond)
				in.SetPage(q.Page + 1)
			}
		case <-time.After(wait):
			fmt.Fprintln(out, "no further input changes")
			s.summary(out)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.summary(out)
	return nil
}

func (s *session) load(ctx context.Context, out io.Writer, q query.Query) error {
	start := time.Now()
	res, outcome, err := s.orch.Load(ctx, q)
	if err != nil {
		return fmt.Errorf("load page %d: %w", q.Page, err)
	}
	age := ""
	if e, ok := s.store.Get(ctx, s.orch.Key(q).String()); ok {
		age = " stored " + humanize.RelTime(e.StoredAt, time.Now(), "ago", "from now")
	}
	fmt.Fprintf(out, "%-7s page %d/%d  %s events  search=%q  in %s%s\n",
		outcome, res.Metadata.CurrentPage, res.Metadata.TotalPages,
		humanize.Comma(int64(len(res.Events))), q.Search, time.Since(start).Round(time.Millisecond), age)
	for _, e := range res.Events {
		fmt.Fprintf(out, "    %s  %-22s %-8s %s\n", e.ID, e.Title, e.Location, humanize.Time(e.StartsAt))
	}
	if pk, ok := s.orch.PendingPrefetch(); ok {
		fmt.Fprintf(out, "    prefetch scheduled: %s\n", strings.TrimPrefix(pk, s.cfg.Query.Resource+":"))
	}
	return nil
}

func (s *session) summary(out io.Writer) {
	if s.fake == nil {
		return
	}
	fmt.Fprintf(out, "remote calls: %s\n", humanize.Comma(s.fake.calls.Load()))
}
