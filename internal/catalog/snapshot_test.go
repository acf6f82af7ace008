package catalog

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

func openNamedCatalog(t *testing.T, suffix string) *Catalog {
	t.Helper()
	ctx := context.Background()
	c, err := Open(ctx, "file:"+t.Name()+suffix+"?mode=memory&cache=shared", testStoreDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDumpAndLoadCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openNamedCatalog(t, "-src")

	dep := mustPath(t, "snap-dep", "dep")
	root := mustPath(t, "snap-root", "root")
	infos := []ValidPathInfo{
		{
			StorePath:        dep,
			NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar-dep")),
			NarSize:          5,
			RegistrationTime: time.Unix(4000, 0),
		},
		{
			StorePath:        root,
			NarHash:          xhash.Bytes(xhash.SHA256, []byte("nar-root")),
			NarSize:          10,
			References:       []storepath.StorePath{dep},
			RegistrationTime: time.Unix(4000, 0),
			Ultimate:         true,
		},
	}
	if err := src.InsertValidPaths(ctx, infos); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := src.DumpCatalog(ctx, &buf); err != nil {
		t.Fatalf("DumpCatalog: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a non-empty snapshot")
	}

	dst := openNamedCatalog(t, "-dst")
	if err := dst.LoadCatalog(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	got, err := dst.GetPathInfo(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected root to be registered after LoadCatalog")
	}
	if got.NarSize != 10 || !got.Ultimate {
		t.Errorf("got %+v", got)
	}
	if len(got.References) != 1 || got.References[0] != dep {
		t.Errorf("references = %v, want [%v]", got.References, dep)
	}
}
