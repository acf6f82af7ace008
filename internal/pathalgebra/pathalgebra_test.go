package pathalgebra

import (
	"testing"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

func TestMakeStorePathKnownVector(t *testing.T) {
	h := xhash.Bytes(xhash.SHA256, []byte("Hello, world!"))
	p, err := MakeStorePath("/local/nix", "source", h, "foo.txt")
	if err != nil {
		t.Fatalf("MakeStorePath: %v", err)
	}
	want := "5c9a1g1jdqv2jk9k4nbxs9y2445l6jja-foo.txt"
	if p.String() != want {
		t.Errorf("got %q, want %q", p.String(), want)
	}
}

func TestMakeTextPathRejectsNonSHA256(t *testing.T) {
	h := xhash.Bytes(xhash.MD5, []byte("x"))
	if _, err := MakeTextPath("/local/nix", "foo", h, nil); err == nil {
		t.Error("expected error for non-SHA-256 text hash")
	}
}

func TestMakeFixedOutputPathRejectsReferences(t *testing.T) {
	h := xhash.Bytes(xhash.SHA256, []byte("x"))
	self, err := MakeStorePath("/local/nix", "source", h, "dep")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MakeFixedOutputPath("/local/nix", false, h, "foo", []storepath.StorePath{self}, false); err == nil {
		t.Error("expected error for flat fixed-output with references")
	}
}
