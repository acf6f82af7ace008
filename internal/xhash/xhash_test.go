package xhash

import "testing"

func TestSHA256KnownVector(t *testing.T) {
	h := Bytes(SHA256, []byte("foobar"))
	got := Encode(h, Base16)
	want := "c3ab8ff13720e8ad9047dd39466b3c8974e592c2fa383d4a3960714caef0c4f2"[:64]
	if got != want {
		t.Errorf("sha256(foobar) base16 = %s, want %s", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, algo := range []Type{MD5, SHA1, SHA256, SHA512} {
		h := Bytes(algo, []byte("round trip payload"))
		for _, enc := range []Encoding{Base16, Base32, Base64, SRI} {
			s := EncodeWithType(h, enc)
			got, err := Decode(s)
			if err != nil {
				t.Fatalf("Decode(%q): %v", s, err)
			}
			if !got.Equal(h) {
				t.Errorf("round trip mismatch for %v/%v: got %v, want %v", algo, enc, got, h)
			}
		}
	}
}

func TestDecodeUntyped(t *testing.T) {
	if _, err := Decode("deadbeef"); err == nil {
		t.Error("expected error decoding untyped hash")
	}
}

func TestTruncate(t *testing.T) {
	h := Bytes(SHA256, []byte("Hello, world!"))
	t20 := h.Truncate(20)
	if t20.Len() != 20 {
		t.Fatalf("truncated length = %d, want 20", t20.Len())
	}
	// Truncating to a size >= the original is a no-op.
	if same := h.Truncate(64); !same.Equal(h) {
		t.Error("Truncate(64) on a 32-byte hash should be a no-op")
	}

	var want [20]byte
	full := h.Bytes()
	for i, b := range full {
		want[i%20] ^= b
	}
	if string(t20.Bytes()) != string(want[:]) {
		t.Errorf("truncate XOR-fold mismatch: got %x, want %x", t20.Bytes(), want)
	}
}

func TestEncodedLengthFormulas(t *testing.T) {
	h := Bytes(SHA256, nil)
	if got := len(Encode(h, Base16)); got != 64 {
		t.Errorf("base16 length = %d, want 64", got)
	}
	if got := len(Encode(h, Base32)); got != 52 {
		t.Errorf("base32 length = %d, want 52", got)
	}
	if got := len(Encode(h, Base64)); got != 44 {
		t.Errorf("base64 length = %d, want 44", got)
	}
}
