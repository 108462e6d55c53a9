package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestNewRejectsNegativeLimits(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := New(Config{Client: rdb, OpTimeout: -time.Second}); err == nil {
		t.Fatalf("expected error for negative OpTimeout")
	}
	if _, err := New(Config{Client: rdb, MaxCost: -1}); err == nil {
		t.Fatalf("expected error for negative MaxCost")
	}
}

func TestSetRejectsOversizedWithoutRoundTrip(t *testing.T) {
	// Unreachable address: any round-trip would fail with an error.
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	defer rdb.Close()
	p, err := New(Config{Client: rdb, MaxCost: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok, err := p.Set(context.Background(), "k", []byte("too large"), 9, 0)
	if ok || err != nil {
		t.Fatalf("oversized Set = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestCloseLeavesSharedClientOpen(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	p, _ := New(Config{Client: rdb})
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
