package base32

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func TestEncodeKnownVectors(t *testing.T) {
	cases := []struct {
		hex  string
		want string
	}{
		{"", ""},
		{"0839703786356bca59b0f4a32987eb2e6de43ae8", "x0xf8v9fxf3jk8zln1cwlsrmhqvp0f88"},
		{
			"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			"1b8m03r63zqhnjf7l5wnldhh7c134ap5vpj0850ymkq1iyzicy5s",
		},
	}
	for _, c := range cases {
		got := string(Encode(mustHex(t, c.hex)))
		if got != c.want {
			t.Errorf("Encode(%s) = %q, want %q", c.hex, got, c.want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 5, 16, 20, 32, 63, 64} {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i*7 + 1)
		}
		enc := Encode(b)
		if got := EncodedLen(n); got != len(enc) {
			t.Errorf("EncodedLen(%d) = %d, want %d", n, got, len(enc))
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(dec, b) {
			t.Errorf("round trip mismatch for n=%d: got %x, want %x", n, dec, b)
		}
	}
}

func TestDecodeRejectsInvalidCharacter(t *testing.T) {
	if _, err := Decode([]byte("xoxf8v9fxf3jk8zln1cwlsrmhqvp0f88")); err == nil {
		t.Error("expected error for 'o' character, got nil")
	}
}

func TestDecodeRejectsNonzeroTrailingBits(t *testing.T) {
	if _, err := Decode([]byte("2b8m03r63zqhnjf7l5wnldhh7c134ap5vpj0850ymkq1iyzicy5s")); err == nil {
		t.Error("expected error for nonzero trailing bits, got nil")
	}
}
