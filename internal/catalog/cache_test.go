package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/javanhut/castore/internal/xhash"
)

func TestInfoCacheMemoizesHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)
	ic := NewInfoCache(c, 8)

	p := mustPath(t, "cached", "cached")
	info := ValidPathInfo{
		StorePath:        p,
		NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar")),
		NarSize:          3,
		RegistrationTime: time.Unix(5000, 0),
	}

	// Miss before registration, cached as a miss.
	got, err := ic.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected a miss before insert, got %+v", got)
	}

	// Insert through the cache drops the negative entry.
	if err := ic.InsertValidPaths(ctx, []ValidPathInfo{info}); err != nil {
		t.Fatal(err)
	}
	got, err = ic.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.NarSize != 3 {
		t.Fatalf("expected a hit after insert, got %+v", got)
	}

	// A repeat lookup is served from the memo; it must agree with the first.
	again, err := ic.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if again != got {
		t.Error("expected the memoized *ValidPathInfo to be returned")
	}
}

func TestInfoCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)
	ic := NewInfoCache(c, 2)

	a := mustPath(t, "lru-a", "a")
	b := mustPath(t, "lru-b", "b")
	d := mustPath(t, "lru-d", "d")

	if _, err := ic.GetPathInfo(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := ic.GetPathInfo(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := ic.GetPathInfo(ctx, d); err != nil {
		t.Fatal(err)
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.order.Len() != 2 {
		t.Fatalf("cache length = %d, want 2 after eviction", ic.order.Len())
	}
	if _, ok := ic.entries[a.String()]; ok {
		t.Error("expected the oldest entry to be evicted")
	}
}
