package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalSnapshotZeroForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	// bump b twice -> gen=2
	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	for k, want := range map[string]uint64{"a": 0, "b": 2} {
		got, err := s.Snapshot(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Snapshot(%q)=%d want %d", k, got, want)
		}
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewLocalGenStore(0, 0)
	s.now = func() time.Time { return now }
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Second)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(time.Second)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Snapshot(ctx, "fresh"); g != 1 {
		t.Fatalf("expected fresh kept at 1, got %d", g)
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(time.Millisecond, time.Hour)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLocalCleanupKeepsLiveKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	held := map[string]bool{"entry:swr:page1": true}
	s := NewLocalGenStore(0, 0, WithLiveCheck(func(k string) bool { return held[k] }))
	s.now = func() time.Time { return now }
	t.Cleanup(func() { _ = s.Close(ctx) })

	for _, k := range []string{"entry:swr:page1", "entry:swr:page2"} {
		if _, err := s.Bump(ctx, k); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(time.Hour)
	s.Cleanup(time.Minute)

	if g, _ := s.Snapshot(ctx, "entry:swr:page1"); g != 1 {
		t.Fatalf("record of a key the provider still holds was pruned: gen=%d", g)
	}
	if g, _ := s.Snapshot(ctx, "entry:swr:page2"); g != 0 {
		t.Fatalf("record of a gone key should be pruned, got gen=%d", g)
	}
}
