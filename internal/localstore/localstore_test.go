package localstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/javanhut/castore/internal/xhash"
)

func TestOpenAddPathDumpRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	s, err := Open(ctx, filepath.Join(base, "store"), filepath.Join(base, "state"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	src := filepath.Join(base, "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := s.AddPath(ctx, "src.txt", src, xhash.SHA256, nil, false)
	if err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	info, err := s.QueryPathInfo(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if info == nil {
		t.Fatal("expected a catalog entry")
	}

	var buf bytes.Buffer
	if err := s.DumpPath(&buf, p); err != nil {
		t.Fatalf("DumpPath: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a non-empty NAR dump")
	}
}

func TestAcquireAndReleaseGC(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	s, err := Open(ctx, filepath.Join(base, "store"), filepath.Join(base, "state"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.AcquireExclusiveGC(ctx); err != nil {
		t.Fatalf("AcquireExclusiveGC: %v", err)
	}
	if err := s.ReleaseGC(); err != nil {
		t.Fatalf("ReleaseGC: %v", err)
	}
}
