// Package storepath implements the StorePath identifier: a content hash
// paired with a name, textually rendered as "<base32-hash>-<name>".
package storepath

import (
	"path/filepath"
	"strings"

	"github.com/javanhut/castore/internal/base32"
	"github.com/javanhut/castore/internal/xerrors"
)

// HashSize is the fixed width, in bytes, of a store path's identifying hash.
const HashSize = 20

// hashChars is the textual length of a base32-encoded 20-byte hash.
const hashChars = 32 // base32.EncodedLen(HashSize)

// MaxNameLen is the longest permitted store path name.
const MaxNameLen = 211

// StorePath is an immutable (hash, name) pair identifying a store object.
type StorePath struct {
	hash [HashSize]byte
	name string
}

// New constructs a StorePath, validating the name.
func New(hash [HashSize]byte, name string) (StorePath, error) {
	if err := ValidateName(name); err != nil {
		return StorePath{}, err
	}
	return StorePath{hash: hash, name: name}, nil
}

// Hash returns a copy of the 20-byte identifying hash.
func (p StorePath) Hash() [HashSize]byte { return p.hash }

// Name returns the store path's name component.
func (p StorePath) Name() string { return p.name }

// IsZero reports whether p is the zero value (used as "no path").
func (p StorePath) IsZero() bool { return p.name == "" && p.hash == [HashSize]byte{} }

// String renders the leaf form "<base32-hash>-<name>".
func (p StorePath) String() string {
	return string(base32.Encode(p.hash[:])) + "-" + p.name
}

// Absolute renders the full path under storeDir.
func (p StorePath) Absolute(storeDir string) string {
	return filepath.Join(storeDir, p.String())
}

// ParseBaseName parses a leaf store path component "<base32-hash>-<name>".
func ParseBaseName(base string) (StorePath, error) {
	if len(base) < hashChars+1 || base[hashChars] != '-' {
		return StorePath{}, &xerrors.InvalidStorePathNameError{Name: base}
	}
	rawHash, err := base32.Decode([]byte(base[:hashChars]))
	if err != nil {
		return StorePath{}, &xerrors.InvalidStorePathNameError{Name: base}
	}
	var hash [HashSize]byte
	copy(hash[:], rawHash)
	return New(hash, base[hashChars+1:])
}

// ParseFull parses an absolute path anywhere under storeDir, returning the
// store path of the topmost store component (so a path inside a store
// object's tree resolves to that object, not an error).
func ParseFull(storeDir, full string) (StorePath, error) {
	storeDir = filepath.Clean(storeDir)
	full = filepath.Clean(full)
	rel, err := filepath.Rel(storeDir, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return StorePath{}, &xerrors.NotInStoreError{Path: full}
	}
	base := rel
	if idx := strings.IndexByte(rel, filepath.Separator); idx >= 0 {
		base = rel[:idx]
	}
	p, err := ParseBaseName(base)
	if err != nil {
		return StorePath{}, &xerrors.InvalidFilepathError{Path: full}
	}
	return p, nil
}

// ValidateName enforces the name-character and length constraints.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return &xerrors.InvalidStorePathNameError{Name: name}
	}
	if name[0] == '.' {
		return &xerrors.InvalidStorePathNameError{Name: name}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '-' || c == '.' || c == '_' || c == '?' || c == '=':
		default:
			return &xerrors.InvalidStorePathNameError{Name: name}
		}
	}
	return nil
}

// Less implements the store path ordering rule: hashes compare byte-reversed
// (the historical artifact of the reverse-order base32 encoding), and names
// only break ties between equal hashes.
func Less(a, b StorePath) bool {
	for i := HashSize - 1; i >= 0; i-- {
		if a.hash[i] != b.hash[i] {
			return a.hash[i] < b.hash[i]
		}
	}
	return a.name < b.name
}

// Set is an ordered set of store paths, kept sorted by Less.
type Set struct {
	items []StorePath
}

// NewSet builds a Set from paths, sorting and de-duplicating them.
func NewSet(paths ...StorePath) *Set {
	s := &Set{}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p into the set if not already present.
func (s *Set) Add(p StorePath) {
	i := s.search(p)
	if i < len(s.items) && s.items[i] == p {
		return
	}
	s.items = append(s.items, StorePath{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = p
}

func (s *Set) search(p StorePath) int {
	lo, hi := 0, len(s.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if Less(s.items[mid], p) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Items returns the set's members in sorted order. The returned slice must
// not be mutated.
func (s *Set) Items() []StorePath { return s.items }

// Contains reports whether p is a member of the set.
func (s *Set) Contains(p StorePath) bool {
	i := s.search(p)
	return i < len(s.items) && s.items[i] == p
}

// Len reports the number of members in the set.
func (s *Set) Len() int { return len(s.items) }
