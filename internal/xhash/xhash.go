// Package xhash implements the store's multi-algorithm streaming digests:
// MD5, SHA-1, SHA-256 and SHA-512, with base-16, base-32, base-64 and SRI
// textual encodings, and the XOR-fold truncation used to derive 20-byte
// store path hashes from wider digests.
//
// The algorithm set is fixed and every Context records its Type tag, but
// the running digest itself is held as a standard-library hash.Hash
// interface value; Context has no separate per-algorithm arm.
package xhash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/javanhut/castore/internal/base32"
	"github.com/javanhut/castore/internal/xerrors"
)

// Type identifies a supported digest algorithm.
type Type int

const (
	MD5 Type = iota
	SHA1
	SHA256
	SHA512
)

func (t Type) String() string {
	switch t {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// Size returns the native digest size in bytes for t.
func (t Type) Size() int {
	switch t {
	case MD5:
		return 16
	case SHA1:
		return 20
	case SHA256:
		return 32
	case SHA512:
		return 64
	default:
		return 0
	}
}

// ParseType parses the textual algorithm name used in hash strings.
func ParseType(s string) (Type, error) {
	switch s {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	default:
		return 0, &xerrors.UnknownHashTypeError{Type: s}
	}
}

// Encoding identifies a textual encoding for a Hash.
type Encoding int

const (
	Base16 Encoding = iota
	Base32
	Base64
	SRI
)

// Hash is a fixed-size digest tagged with the algorithm that produced it.
// len may be less than the algorithm's native size after Truncate.
type Hash struct {
	algo Type
	len  int
	data [64]byte
}

// Algorithm reports which algorithm produced h.
func (h Hash) Algorithm() Type { return h.algo }

// Len reports the number of significant bytes in h.
func (h Hash) Len() int { return h.len }

// Bytes returns the significant bytes of h. The returned slice aliases h's
// internal storage and must not be mutated.
func (h Hash) Bytes() []byte { return h.data[:h.len] }

// Equal compares algorithm and bytes only, per the data model's equality rule.
func (h Hash) Equal(o Hash) bool {
	return h.algo == o.algo && h.len == o.len && h.data == o.data
}

// Of constructs a Hash directly from raw bytes, for use by callers that
// already hold a full-width digest (e.g. from crypto/sha256.Sum256).
func Of(algo Type, data []byte) Hash {
	var h Hash
	h.algo = algo
	h.len = len(data)
	copy(h.data[:], data)
	return h
}

// Truncate XOR-folds h down to k bytes: output byte i is the XOR of every
// input byte j where j mod k == i. If k >= h.Len(), h is returned unchanged.
func (h Hash) Truncate(k int) Hash {
	if k >= h.len {
		return h
	}
	var out Hash
	out.algo = h.algo
	out.len = k
	for i := 0; i < h.len; i++ {
		out.data[i%k] ^= h.data[i]
	}
	return out
}

// Context is a streaming digest context for one of the four fixed algorithms.
type Context struct {
	algo Type
	h    hash.Hash
	n    uint64
}

// New starts a new streaming digest for algo.
func New(algo Type) *Context {
	var h hash.Hash
	switch algo {
	case MD5:
		h = md5.New()
	case SHA1:
		h = sha1.New()
	case SHA256:
		h = sha256.New()
	case SHA512:
		h = sha512.New()
	default:
		panic("xhash: unknown algorithm")
	}
	return &Context{algo: algo, h: h}
}

// Write absorbs p into the running digest and byte count. It never fails.
func (c *Context) Write(p []byte) (int, error) {
	n, err := c.h.Write(p)
	c.n += uint64(n)
	return n, err
}

// Finish produces the digest and total byte count absorbed so far.
func (c *Context) Finish() (Hash, uint64) {
	sum := c.h.Sum(nil)
	return Of(c.algo, sum), c.n
}

// Bytes hashes data in one call with a fresh context.
func Bytes(algo Type, data []byte) Hash {
	c := New(algo)
	_, _ = c.Write(data)
	h, _ := c.Finish()
	return h
}

func base16Len(n int) int { return n * 2 }
func base64Len(n int) int { return ((4*n/3) + 3) &^ 3 }

// Encode renders h without an algorithm prefix (except SRI, which always
// carries one).
func Encode(h Hash, enc Encoding) string {
	if enc == SRI {
		return EncodeWithType(h, enc)
	}
	return encodeBody(h, enc)
}

// EncodeWithType renders h as "<algo>:<payload>" (or "<algo>-<payload>" for SRI).
func EncodeWithType(h Hash, enc Encoding) string {
	var sep byte = ':'
	if enc == SRI {
		sep = '-'
	}
	return h.algo.String() + string(sep) + encodeBody(h, enc)
}

func encodeBody(h Hash, enc Encoding) string {
	switch enc {
	case Base16:
		return hex.EncodeToString(h.Bytes())
	case Base32:
		return string(base32.Encode(h.Bytes()))
	case Base64, SRI:
		return base64.StdEncoding.EncodeToString(h.Bytes())
	default:
		panic("xhash: unknown encoding")
	}
}

// Decode auto-detects the encoding of a textual hash. Strings containing
// ":" are split algorithm:payload; strings containing "-" are treated as
// SRI; anything else fails with UntypedHashError. The payload is matched
// against the three possible lengths for the algorithm's native digest size.
func Decode(s string) (Hash, error) {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return decodeWithType(s[idx+1:], s[:idx], false)
	}
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		return decodeWithType(s[idx+1:], s[:idx], true)
	}
	return Hash{}, &xerrors.UntypedHashError{Input: s}
}

func decodeWithType(payload, algoName string, sri bool) (Hash, error) {
	algo, err := ParseType(algoName)
	if err != nil {
		return Hash{}, err
	}
	size := algo.Size()

	if !sri && len(payload) == base16Len(size) {
		raw, err := hex.DecodeString(payload)
		if err != nil {
			return Hash{}, &xerrors.InvalidEncodingError{Encoding: "base16", Input: payload}
		}
		return Of(algo, raw), nil
	}
	if !sri && len(payload) == base32.EncodedLen(size) {
		raw, err := base32.Decode([]byte(payload))
		if err != nil {
			return Hash{}, &xerrors.InvalidEncodingError{Encoding: "base32", Input: payload}
		}
		return Of(algo, raw), nil
	}
	if len(payload) == base64Len(size) {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Hash{}, &xerrors.InvalidEncodingError{Encoding: "base64", Input: payload}
		}
		return Of(algo, raw), nil
	}
	return Hash{}, &xerrors.WrongHashLenError{Got: len(payload), Want: base16Len(size)}
}
