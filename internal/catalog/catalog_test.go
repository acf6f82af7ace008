package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

const testStoreDir = "/local/nix"

func mustPath(t *testing.T, content, name string) storepath.StorePath {
	t.Helper()
	h := xhash.Bytes(xhash.SHA256, []byte(content))
	folded := h.Truncate(storepath.HashSize)
	var hb [storepath.HashSize]byte
	copy(hb[:], folded.Bytes())
	p, err := storepath.New(hb, name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	ctx := context.Background()
	c, err := Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", testStoreDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInsertAndGetPathInfo(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	p := mustPath(t, "a", "a")
	info := ValidPathInfo{
		StorePath:        p,
		NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar-a")),
		NarSize:          42,
		RegistrationTime: time.Unix(1000, 0),
	}
	if err := c.InsertValidPaths(ctx, []ValidPathInfo{info}); err != nil {
		t.Fatalf("InsertValidPaths: %v", err)
	}

	got, err := c.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatalf("GetPathInfo: %v", err)
	}
	if got == nil {
		t.Fatal("expected a registered path info")
	}
	if got.NarSize != 42 {
		t.Errorf("NarSize = %d, want 42", got.NarSize)
	}
	if !got.NarHash.Equal(info.NarHash) {
		t.Errorf("NarHash mismatch")
	}
	if len(got.References) != 0 {
		t.Errorf("expected no references, got %v", got.References)
	}
}

func TestGetPathInfoMissing(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)
	p := mustPath(t, "missing", "missing")
	got, err := c.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatalf("GetPathInfo: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unregistered path, got %+v", got)
	}
}

func TestInsertClosureWithReferencesAndSelfRef(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	dep := mustPath(t, "dep", "dep")
	root := mustPath(t, "root", "root")

	infos := []ValidPathInfo{
		{
			StorePath:        root,
			NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar-root")),
			NarSize:          10,
			References:       []storepath.StorePath{dep, root}, // self-reference included
			RegistrationTime: time.Unix(2000, 0),
		},
		{
			StorePath:        dep,
			NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar-dep")),
			NarSize:          5,
			RegistrationTime: time.Unix(2000, 0),
		},
	}
	if err := c.InsertValidPaths(ctx, infos); err != nil {
		t.Fatalf("InsertValidPaths: %v", err)
	}

	got, err := c.GetPathInfo(ctx, root)
	if err != nil {
		t.Fatalf("GetPathInfo: %v", err)
	}
	if len(got.References) != 2 {
		t.Fatalf("expected 2 references (dep + self), got %d: %v", len(got.References), got.References)
	}

	referrers, err := c.GetReferrers(ctx, dep)
	if err != nil {
		t.Fatalf("GetReferrers: %v", err)
	}
	if !referrers.Contains(root) {
		t.Errorf("expected root to be a referrer of dep")
	}
}

func TestInsertValidPathsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)
	p := mustPath(t, "idem", "idem")
	info := ValidPathInfo{
		StorePath:        p,
		NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar")),
		NarSize:          7,
		RegistrationTime: time.Unix(3000, 0),
	}
	if err := c.InsertValidPaths(ctx, []ValidPathInfo{info}); err != nil {
		t.Fatal(err)
	}
	if err := c.InsertValidPaths(ctx, []ValidPathInfo{info}); err != nil {
		t.Fatalf("second insert should be a no-op, got: %v", err)
	}
	got, err := c.GetPathInfo(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if got.NarSize != 7 {
		t.Errorf("NarSize = %d, want 7", got.NarSize)
	}
}
