package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/javanhut/castore/internal/xerrors"
)

// Listing describes the shape of a dumped tree without its file contents:
// type, size, executable bit, symlink target, and the byte offset within
// the NAR stream where each regular file's contents begin. It lets a
// caller serve byte ranges out of a stored NAR without re-parsing it.
type Listing struct {
	Version int          `json:"version"`
	Root    ListingEntry `json:"root"`
}

// ListingEntry is one node of a Listing: a file, directory, or symlink.
type ListingEntry struct {
	Type       string                  `json:"type"`
	Size       *uint64                 `json:"size,omitempty"`
	Executable *bool                   `json:"executable,omitempty"`
	NarOffset  *uint64                 `json:"narOffset,omitempty"`
	Entries    map[string]ListingEntry `json:"entries,omitempty"`
	Target     *string                 `json:"target,omitempty"`
}

// countingWriter tracks bytes written so listing entries can record NAR
// offsets as the dump proceeds.
type countingWriter struct {
	w      io.Writer
	offset uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.offset += uint64(n)
	return n, err
}

// DumpWithListing writes the NAR for root to w, exactly as Dump would, and
// additionally returns a Listing describing its shape and content offsets.
// Unlike Dump, traversal here is recursive: it mirrors the structure being
// built (a tree of maps), and listings are only ever produced for paths an
// operator chooses to ingest, not parsed from untrusted input.
func DumpWithListing(w io.Writer, root string) (*Listing, error) {
	cw := &countingWriter{w: w}
	fw := &frameWriter{w: cw}
	if err := fw.writeString(magic); err != nil {
		return nil, err
	}
	entry, err := dumpListingNode(fw, cw, root)
	if err != nil {
		return nil, err
	}
	return &Listing{Version: 1, Root: entry}, nil
}

func dumpListingNode(fw *frameWriter, cw *countingWriter, absPath string) (ListingEntry, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return ListingEntry{}, err
	}
	if err := fw.writeString("("); err != nil {
		return ListingEntry{}, err
	}
	if err := fw.writeString("type"); err != nil {
		return ListingEntry{}, err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return dumpListingSymlink(fw, absPath)
	case info.IsDir():
		return dumpListingDirectory(fw, cw, absPath)
	case info.Mode().IsRegular():
		return dumpListingRegular(fw, cw, absPath, info)
	default:
		return ListingEntry{}, &xerrors.UnsupportedFileTypeError{Path: absPath}
	}
}

func dumpListingRegular(fw *frameWriter, cw *countingWriter, absPath string, info os.FileInfo) (ListingEntry, error) {
	if err := fw.writeString("regular"); err != nil {
		return ListingEntry{}, err
	}
	executable := info.Mode()&0111 != 0
	if executable {
		if err := fw.writeString("executable"); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString(""); err != nil {
			return ListingEntry{}, err
		}
	}
	if err := fw.writeString("contents"); err != nil {
		return ListingEntry{}, err
	}
	// writeFileContents emits the 8-byte size prefix itself; the contents
	// begin right after it.
	offset := cw.offset + 8

	f, err := os.Open(absPath)
	if err != nil {
		return ListingEntry{}, err
	}
	err = fw.writeFileContents(f, uint64(info.Size()))
	cerr := f.Close()
	if err != nil {
		return ListingEntry{}, err
	}
	if cerr != nil {
		return ListingEntry{}, cerr
	}
	if err := fw.writeString(")"); err != nil {
		return ListingEntry{}, err
	}

	size := uint64(info.Size())
	entry := ListingEntry{Type: "regular", Size: &size, NarOffset: &offset}
	if executable {
		entry.Executable = &executable
	}
	return entry, nil
}

func dumpListingSymlink(fw *frameWriter, absPath string) (ListingEntry, error) {
	if err := fw.writeString("symlink"); err != nil {
		return ListingEntry{}, err
	}
	target, err := os.Readlink(absPath)
	if err != nil {
		return ListingEntry{}, err
	}
	if err := fw.writeString("target"); err != nil {
		return ListingEntry{}, err
	}
	if err := fw.writeString(target); err != nil {
		return ListingEntry{}, err
	}
	if err := fw.writeString(")"); err != nil {
		return ListingEntry{}, err
	}
	return ListingEntry{Type: "symlink", Target: &target}, nil
}

func dumpListingDirectory(fw *frameWriter, cw *countingWriter, absPath string) (ListingEntry, error) {
	if err := fw.writeString("directory"); err != nil {
		return ListingEntry{}, err
	}
	f, err := os.Open(absPath)
	if err != nil {
		return ListingEntry{}, err
	}
	names, err := f.Readdirnames(-1)
	cerr := f.Close()
	if err != nil {
		return ListingEntry{}, err
	}
	if cerr != nil {
		return ListingEntry{}, cerr
	}
	sort.Strings(names)

	entries := make(map[string]ListingEntry, len(names))
	for _, name := range names {
		if err := validateEntryName(name); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString("entry"); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString("("); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString("name"); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString(name); err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString("node"); err != nil {
			return ListingEntry{}, err
		}
		childEntry, err := dumpListingNode(fw, cw, absPath+string(os.PathSeparator)+name)
		if err != nil {
			return ListingEntry{}, err
		}
		if err := fw.writeString(")"); err != nil {
			return ListingEntry{}, err
		}
		entries[name] = childEntry
	}
	if err := fw.writeString(")"); err != nil {
		return ListingEntry{}, err
	}
	return ListingEntry{Type: "directory", Entries: entries}, nil
}

// countingReader tracks bytes read, so List can record the NAR offset of
// each file's contents without a second pass over the stream.
type countingReader struct {
	r      io.Reader
	offset uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.offset += uint64(n)
	return n, err
}

// listingSink drives Restore to build a Listing without writing anything to
// disk: file contents are discarded, and only their shape and stream offset
// are kept.
type listingSink struct {
	cr     *countingReader
	byPath map[string]*ListingEntry
	order  []string
	cur    string
}

func (s *listingSink) CreateDirectory(relPath string) error {
	s.byPath[relPath] = &ListingEntry{Type: "directory", Entries: map[string]ListingEntry{}}
	s.order = append(s.order, relPath)
	return nil
}

func (s *listingSink) CreateFile(relPath string) error {
	s.byPath[relPath] = &ListingEntry{Type: "regular"}
	s.order = append(s.order, relPath)
	s.cur = relPath
	return nil
}

func (s *listingSink) SetExecutable() error {
	executable := true
	s.byPath[s.cur].Executable = &executable
	return nil
}

func (s *listingSink) AllocateContents(size int64) error {
	offset := s.cr.offset
	sz := uint64(size)
	e := s.byPath[s.cur]
	e.Size = &sz
	e.NarOffset = &offset
	return nil
}

func (s *listingSink) ReceiveContents(r io.Reader, size int64) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (s *listingSink) CreateSymlink(relPath, target string) error {
	s.byPath[relPath] = &ListingEntry{Type: "symlink", Target: &target}
	s.order = append(s.order, relPath)
	return nil
}

// List parses a NAR stream from r and returns its shape and per-file byte
// offsets without materializing anything to disk, the read-side companion
// to DumpWithListing.
func List(r io.Reader) (*Listing, error) {
	cr := &countingReader{r: r}
	sink := &listingSink{byPath: map[string]*ListingEntry{}, cr: cr}
	if err := Restore(cr, sink, 0); err != nil {
		return nil, err
	}
	root, ok := sink.byPath[""]
	if !ok {
		return nil, fmt.Errorf("list: empty archive")
	}
	for _, p := range sink.order {
		if p == "" {
			continue
		}
		dir, name := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")
		parent, ok := sink.byPath[dir]
		if !ok || parent.Entries == nil {
			continue
		}
		parent.Entries[name] = *sink.byPath[p]
	}
	return &Listing{Version: 1, Root: *root}, nil
}
