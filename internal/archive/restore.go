package archive

import (
	"io"
	"path"

	"github.com/javanhut/castore/internal/xerrors"
)

// RestoreSink receives the decoded tree as Restore walks the archive. Paths
// are "/"-joined relative to the restore root; CreateDirectory is called
// before any of its descendants, and AllocateContents always precedes
// ReceiveContents for the same file.
type RestoreSink interface {
	CreateDirectory(relPath string) error
	CreateFile(relPath string) error
	SetExecutable() error
	AllocateContents(size int64) error
	ReceiveContents(r io.Reader, size int64) error
	CreateSymlink(relPath, target string) error
}

// restoreFrame is the iterative counterpart of dumpFrame: one open directory
// node awaiting "entry" or ")" tokens.
type restoreFrame struct {
	relPath string
	isEntry bool
}

// Restore decodes a "nix-archive-1" stream from r, driving sink. maxStringLen
// bounds any single length-prefixed field (0 selects a generous default);
// a corrupt or hostile length prefix fails cleanly instead of allocating
// unbounded memory.
func Restore(r io.Reader, sink RestoreSink, maxStringLen uint64) error {
	fr := newFrameReader(r, maxStringLen)
	if err := fr.expect(magic); err != nil {
		return err
	}
	if err := fr.expect("("); err != nil {
		return err
	}

	var stack []*restoreFrame
	isDir, err := parseNodeHead(fr, sink, "", &stack, false)
	if err != nil {
		return err
	}
	if !isDir {
		return nil
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		tok, err := fr.readString()
		if err != nil {
			return err
		}
		switch tok {
		case ")":
			stack = stack[:len(stack)-1]
			if top.isEntry {
				if err := fr.expect(")"); err != nil {
					return err
				}
			}
		case "entry":
			if err := fr.expect("("); err != nil {
				return err
			}
			if err := fr.expect("name"); err != nil {
				return err
			}
			name, err := fr.readString()
			if err != nil {
				return err
			}
			if err := validateEntryName(name); err != nil {
				return err
			}
			if err := fr.expect("node"); err != nil {
				return err
			}
			if err := fr.expect("("); err != nil {
				return err
			}
			childRel := name
			if top.relPath != "" {
				childRel = path.Join(top.relPath, name)
			}
			if _, err := parseNodeHead(fr, sink, childRel, &stack, true); err != nil {
				return err
			}
		case "type":
			return &xerrors.MultipleTypeFieldsError{}
		default:
			return &xerrors.UnknownFieldError{Field: tok}
		}
	}
	return nil
}

// parseNodeHead reads the "type" field and variant-specific body of a node
// whose opening "(" has already been consumed by the caller. For regular
// files and symlinks it fully consumes the node (and, if isEntry, the
// enclosing entry's closing paren) before returning. For directories it
// calls sink.CreateDirectory and pushes a restoreFrame, returning isDir=true
// without consuming further: the caller's loop drains its "entry"/")" tokens.
func parseNodeHead(fr *frameReader, sink RestoreSink, relPath string, stack *[]*restoreFrame, isEntry bool) (isDir bool, err error) {
	if err := fr.expect("type"); err != nil {
		return false, err
	}
	variant, err := fr.readString()
	if err != nil {
		return false, err
	}

	switch variant {
	case "directory":
		if err := sink.CreateDirectory(relPath); err != nil {
			return false, err
		}
		*stack = append(*stack, &restoreFrame{relPath: relPath, isEntry: isEntry})
		return true, nil

	case "regular":
		if err := sink.CreateFile(relPath); err != nil {
			return false, err
		}
		executableSeen, contentsSeen := false, false
		for {
			field, err := fr.readString()
			if err != nil {
				return false, err
			}
			switch field {
			case "executable":
				if executableSeen || contentsSeen {
					return false, &xerrors.UnknownFieldError{Field: field}
				}
				executableSeen = true
				marker, err := fr.readString()
				if err != nil {
					return false, err
				}
				if marker != "" {
					return false, &xerrors.ExecutableMarkerError{}
				}
				if err := sink.SetExecutable(); err != nil {
					return false, err
				}
			case "contents":
				if contentsSeen {
					return false, &xerrors.UnknownFieldError{Field: field}
				}
				contentsSeen = true
				size, err := fr.readRawUint64()
				if err != nil {
					return false, err
				}
				if size > fr.maxStringLen {
					return false, &xerrors.StringTooLongError{Length: size, Limit: fr.maxStringLen}
				}
				if err := sink.AllocateContents(int64(size)); err != nil {
					return false, err
				}
				lr := io.LimitReader(fr.r, int64(size))
				if err := sink.ReceiveContents(lr, int64(size)); err != nil {
					return false, err
				}
				// Drain anything the sink left unread so the stream stays
				// aligned with the padding that follows.
				if _, err := io.Copy(io.Discard, lr); err != nil {
					return false, err
				}
				if err := fr.readAndCheckPadding(size); err != nil {
					return false, err
				}
			case "type":
				return false, &xerrors.MultipleTypeFieldsError{}
			case ")":
				if isEntry {
					if err := fr.expect(")"); err != nil {
						return false, err
					}
				}
				return false, nil
			default:
				return false, &xerrors.UnknownFieldError{Field: field}
			}
		}

	case "symlink":
		if err := fr.expect("target"); err != nil {
			return false, err
		}
		target, err := fr.readString()
		if err != nil {
			return false, err
		}
		if err := sink.CreateSymlink(relPath, target); err != nil {
			return false, err
		}
		if err := fr.expect(")"); err != nil {
			return false, err
		}
		if isEntry {
			if err := fr.expect(")"); err != nil {
				return false, err
			}
		}
		return false, nil

	default:
		return false, &xerrors.UnknownArchiveTypeError{Type: variant}
	}
}
