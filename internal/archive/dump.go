package archive

import (
	"io"
	"os"
	"path"
	"sort"

	"github.com/javanhut/castore/internal/xerrors"
)

// Filter decides whether a path, relative to the dump root using "/"
// separators, is included in the archive.
type Filter func(relPath string) bool

// dumpFrame tracks one directory's entries while its node is open on the
// explicit traversal stack; isEntry records whether popping it must also
// close an enclosing "entry" wrapper (false only for the root node).
type dumpFrame struct {
	absPath string
	relPath string
	entries []os.DirEntry
	idx     int
	isEntry bool
}

// Dump serializes the file tree rooted at root into the "nix-archive-1"
// wire format, writing frames to w. filter, if non-nil, is consulted with
// each entry's root-relative path ("/"-separated) and may exclude it along
// with its entire subtree.
//
// Traversal uses an explicit stack rather than recursion, so archive depth
// is bounded only by available heap, not goroutine stack.
func Dump(w io.Writer, root string, filter Filter) error {
	fw := &frameWriter{w: w}
	if err := fw.writeString(magic); err != nil {
		return err
	}

	var stack []*dumpFrame
	if err := openNode(fw, root, "", false, &stack); err != nil {
		return err
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.idx >= len(top.entries) {
			stack = stack[:len(stack)-1]
			if err := fw.writeString(")"); err != nil {
				return err
			}
			if top.isEntry {
				if err := fw.writeString(")"); err != nil {
					return err
				}
			}
			continue
		}
		entry := top.entries[top.idx]
		top.idx++

		name := entry.Name()
		if err := validateEntryName(name); err != nil {
			return err
		}
		childRel := name
		if top.relPath != "" {
			childRel = path.Join(top.relPath, name)
		}
		if filter != nil && !filter(childRel) {
			continue
		}

		if err := fw.writeString("entry"); err != nil {
			return err
		}
		if err := fw.writeString("("); err != nil {
			return err
		}
		if err := fw.writeString("name"); err != nil {
			return err
		}
		if err := fw.writeString(name); err != nil {
			return err
		}
		if err := fw.writeString("node"); err != nil {
			return err
		}
		childAbs := top.absPath + string(os.PathSeparator) + name
		if err := openNode(fw, childAbs, childRel, true, &stack); err != nil {
			return err
		}
	}
	return nil
}

// openNode writes the "(" "type" ... head of the node at absPath. Regular
// files and symlinks are written and closed entirely (including the
// enclosing entry's closing paren, when isEntry). Directories push a frame
// for the caller's traversal loop to drain.
func openNode(fw *frameWriter, absPath, relPath string, isEntry bool, stack *[]*dumpFrame) error {
	if err := fw.writeString("("); err != nil {
		return err
	}
	info, err := os.Lstat(absPath)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(absPath)
		if err != nil {
			return err
		}
		if err := fw.writeString("type"); err != nil {
			return err
		}
		if err := fw.writeString("symlink"); err != nil {
			return err
		}
		if err := fw.writeString("target"); err != nil {
			return err
		}
		if err := fw.writeString(target); err != nil {
			return err
		}
		return closeLeaf(fw, isEntry)

	case info.IsDir():
		if err := fw.writeString("type"); err != nil {
			return err
		}
		if err := fw.writeString("directory"); err != nil {
			return err
		}
		f, err := os.Open(absPath)
		if err != nil {
			return err
		}
		names, err := f.Readdirnames(-1)
		cerr := f.Close()
		if err != nil {
			return err
		}
		if cerr != nil {
			return cerr
		}
		sort.Strings(names)
		entries := make([]os.DirEntry, 0, len(names))
		for _, n := range names {
			fi, err := os.Lstat(absPath + string(os.PathSeparator) + n)
			if err != nil {
				return err
			}
			entries = append(entries, dirEntryOf(n, fi))
		}
		*stack = append(*stack, &dumpFrame{absPath: absPath, relPath: relPath, entries: entries, isEntry: isEntry})
		return nil

	case info.Mode().IsRegular():
		if err := fw.writeString("type"); err != nil {
			return err
		}
		if err := fw.writeString("regular"); err != nil {
			return err
		}
		if info.Mode()&0111 != 0 {
			if err := fw.writeString("executable"); err != nil {
				return err
			}
			if err := fw.writeString(""); err != nil {
				return err
			}
		}
		if err := fw.writeString("contents"); err != nil {
			return err
		}
		f, err := os.Open(absPath)
		if err != nil {
			return err
		}
		err = fw.writeFileContents(f, uint64(info.Size()))
		cerr := f.Close()
		if err != nil {
			return err
		}
		if cerr != nil {
			return cerr
		}
		return closeLeaf(fw, isEntry)

	default:
		return &xerrors.UnsupportedFileTypeError{Path: absPath}
	}
}

func closeLeaf(fw *frameWriter, isEntry bool) error {
	if err := fw.writeString(")"); err != nil {
		return err
	}
	if isEntry {
		if err := fw.writeString(")"); err != nil {
			return err
		}
	}
	return nil
}

func validateEntryName(name string) error {
	if name == "" || name == "." || name == ".." {
		return &xerrors.InvalidFilenameError{Name: name}
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return &xerrors.InvalidFilenameError{Name: name}
		}
	}
	return nil
}

// dirEntry is a minimal os.DirEntry backed by an already-retrieved FileInfo,
// used so the directory listing can be sorted and Lstat'd up front without
// re-statting during traversal.
type dirEntry struct {
	name string
	info os.FileInfo
}

func dirEntryOf(name string, info os.FileInfo) os.DirEntry { return dirEntry{name: name, info: info} }

func (d dirEntry) Name() string               { return d.name }
func (d dirEntry) IsDir() bool                { return d.info.IsDir() }
func (d dirEntry) Type() os.FileMode          { return d.info.Mode().Type() }
func (d dirEntry) Info() (os.FileInfo, error) { return d.info, nil }
