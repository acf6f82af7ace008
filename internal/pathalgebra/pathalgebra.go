// Package pathalgebra derives store-path identifiers from content hashes,
// references, and names, per the four derivation schemes: text, fixed-flat,
// fixed-recursive, and derivation output.
package pathalgebra

import (
	"fmt"
	"sort"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

// MakeStorePath computes the final path identifier for a given purpose
// string, content hash, and name, under store directory storeDir.
//
//	ident  = purpose ":" base16(h) ":" storeDir ":" name
//	raw    = SHA-256(ident)
//	hash20 = truncate(raw, 20)
func MakeStorePath(storeDir, purpose string, h xhash.Hash, name string) (storepath.StorePath, error) {
	ident := purpose + ":" + xhash.Encode(h, xhash.Base16) + ":" + storeDir + ":" + name
	raw := xhash.Bytes(xhash.SHA256, []byte(ident))
	folded := raw.Truncate(storepath.HashSize)
	var hashBytes [storepath.HashSize]byte
	copy(hashBytes[:], folded.Bytes())
	return storepath.New(hashBytes, name)
}

// MakeType builds the `purpose` suffix shared by the text and fixed-recursive
// schemes: base, then ":"+print(ref) for each reference in iteration order,
// then ":self" if the object references itself.
func MakeType(storeDir, base string, refs []storepath.StorePath, hasSelf bool) string {
	s := base
	for _, r := range refs {
		s += ":" + r.Absolute(storeDir)
	}
	if hasSelf {
		s += ":self"
	}
	return s
}

// MakeTextPath derives the store path of a store-backed text blob. Self
// reference is never permitted, and the content hash must be SHA-256.
func MakeTextPath(storeDir, name string, h xhash.Hash, refs []storepath.StorePath) (storepath.StorePath, error) {
	if h.Algorithm() != xhash.SHA256 {
		return storepath.StorePath{}, fmt.Errorf("pathalgebra: text path content hash must be SHA-256, got %v", h.Algorithm())
	}
	sorted := append([]storepath.StorePath(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return storepath.Less(sorted[i], sorted[j]) })
	purpose := MakeType(storeDir, "text", sorted, false)
	return MakeStorePath(storeDir, purpose, h, name)
}

// MakeFixedOutputPath derives the store path of a fixed-output object.
//
// When the content is hashed recursively (as a NAR) with SHA-256, the
// "source" scheme is used and references are permitted. Otherwise the
// "fixed, flat" scheme is used, which asserts an empty reference set and
// hashes an inner identifier derived from the content hash.
func MakeFixedOutputPath(storeDir string, recursive bool, h xhash.Hash, name string, refs []storepath.StorePath, hasSelf bool) (storepath.StorePath, error) {
	if recursive && h.Algorithm() == xhash.SHA256 {
		purpose := MakeType(storeDir, "source", refs, hasSelf)
		return MakeStorePath(storeDir, purpose, h, name)
	}
	if len(refs) != 0 || hasSelf {
		return storepath.StorePath{}, fmt.Errorf("pathalgebra: fixed-flat output path may not have references")
	}
	prefix := ""
	if recursive {
		prefix = "r:"
	}
	inner := xhash.Bytes(xhash.SHA256, []byte("fixed:out:"+prefix+xhash.Encode(h, xhash.Base16)+":"))
	return MakeStorePath(storeDir, "output:out", inner, name)
}

// MakeOutputPath derives the store path of a named derivation output. Per
// convention, the "out" output keeps the derivation's base name; any other
// output id is appended as "-<id>".
func MakeOutputPath(storeDir, id string, h xhash.Hash, name string) (storepath.StorePath, error) {
	outName := name
	if id != "out" {
		outName = name + "-" + id
	}
	return MakeStorePath(storeDir, "output:"+id, h, outName)
}
