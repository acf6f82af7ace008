package storepath

import "testing"

func TestParseFull(t *testing.T) {
	const full = "/local/nix/5c9a1g1jdqv2jk9k4nbxs9y2445l6jja-foo.txt"
	p, err := ParseFull("/local/nix", full)
	if err != nil {
		t.Fatalf("ParseFull: %v", err)
	}
	want := [HashSize]byte{74, 74, 67, 11, 33, 194, 39, 221, 151, 37, 51, 77, 41, 54, 110, 50, 188, 160, 18, 43}
	if p.Hash() != want {
		t.Errorf("hash = %v, want %v", p.Hash(), want)
	}
	if p.Name() != "foo.txt" {
		t.Errorf("name = %q, want foo.txt", p.Name())
	}
	if p.Absolute("/local/nix") != full {
		t.Errorf("Absolute round trip = %q, want %q", p.Absolute("/local/nix"), full)
	}
}

func TestParseBaseNameRoundTrip(t *testing.T) {
	const base = "5c9a1g1jdqv2jk9k4nbxs9y2445l6jja-foo.txt"
	p, err := ParseBaseName(base)
	if err != nil {
		t.Fatalf("ParseBaseName: %v", err)
	}
	if p.String() != base {
		t.Errorf("String() = %q, want %q", p.String(), base)
	}
}

func TestValidateNameRejects(t *testing.T) {
	for _, name := range []string{"", ".hidden", "bad name", "has/slash"} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestParseFullRejectsOutsideStore(t *testing.T) {
	if _, err := ParseFull("/local/nix", "/elsewhere/foo"); err == nil {
		t.Error("expected NotInStore error")
	}
}

func TestParseFullResolvesNestedDescendant(t *testing.T) {
	const base = "5c9a1g1jdqv2jk9k4nbxs9y2445l6jja-foo.txt"
	_, err := ParseFull("/local/nix", "/local/nix/"+base+"/bin/tool")
	if err != nil {
		t.Fatalf("ParseFull of nested descendant should still resolve to the direct child: %v", err)
	}
}

func TestLessOrdersByReversedHash(t *testing.T) {
	a, err := New([HashSize]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9}, "a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New([HashSize]byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2}, "b")
	if err != nil {
		t.Fatal(err)
	}
	// Last byte differs (9 vs 2); byte-reversed comparison looks at it first,
	// so b (last byte 2) sorts before a (last byte 9) despite a's textual
	// base32 form differing only in a later-read byte.
	if !Less(b, a) {
		t.Error("expected b < a under reversed-byte ordering")
	}

	set := NewSet(a, b)
	items := set.Items()
	if items[0] != b || items[1] != a {
		t.Errorf("set order = %v, want [b, a]", items)
	}
}
