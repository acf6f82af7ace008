package archive

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/javanhut/castore/internal/xerrors"
)

const magic = "nix-archive-1"

// defaultMaxStringLen bounds any single length-prefixed field the parser
// will accept, absent a caller-supplied ceiling; it exists purely to turn a
// corrupt length prefix into a clean error instead of an enormous alloc.
const defaultMaxStringLen = 1 << 34

var zeroPad [8]byte

func padLen(n uint64) int {
	return int((8 - (n % 8)) % 8)
}

// frameWriter implements the wire-level framing: 8-byte little-endian
// length prefixes, payload, zero padding to an 8-byte boundary.
type frameWriter struct {
	w io.Writer
}

func (fw *frameWriter) writeRawUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := fw.w.Write(buf[:])
	return err
}

// writeString writes a length-prefixed, zero-padded tag or name field.
func (fw *frameWriter) writeString(s string) error {
	if err := fw.writeRawUint64(uint64(len(s))); err != nil {
		return err
	}
	if _, err := io.WriteString(fw.w, s); err != nil {
		return err
	}
	if n := padLen(uint64(len(s))); n > 0 {
		if _, err := fw.w.Write(zeroPad[:n]); err != nil {
			return err
		}
	}
	return nil
}

// writeFileContents writes the "<u64 size>" length prefix, then streams
// exactly size bytes from r, then pads.
func (fw *frameWriter) writeFileContents(r io.Reader, size uint64) error {
	if err := fw.writeRawUint64(size); err != nil {
		return err
	}
	n, err := io.Copy(fw.w, io.LimitReader(r, int64(size)))
	if err != nil {
		return err
	}
	if uint64(n) != size {
		return errors.New("archive: short read while writing file contents")
	}
	if pad := padLen(size); pad > 0 {
		if _, err := fw.w.Write(zeroPad[:pad]); err != nil {
			return err
		}
	}
	return nil
}

// frameReader implements the matching decode side, including the
// zero-padding and length-ceiling checks the parser contract requires.
type frameReader struct {
	r            io.Reader
	maxStringLen uint64
}

func newFrameReader(r io.Reader, maxStringLen uint64) *frameReader {
	if maxStringLen == 0 {
		maxStringLen = defaultMaxStringLen
	}
	return &frameReader{r: r, maxStringLen: maxStringLen}
}

func (fr *frameReader) readRawUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readString reads a length-prefixed, zero-padded field and returns it as a string.
func (fr *frameReader) readString() (string, error) {
	n, err := fr.readRawUint64()
	if err != nil {
		return "", err
	}
	if n > fr.maxStringLen {
		return "", &xerrors.StringTooLongError{Length: n, Limit: fr.maxStringLen}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return "", err
	}
	if err := fr.readAndCheckPadding(n); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (fr *frameReader) readAndCheckPadding(n uint64) error {
	pad := padLen(n)
	if pad == 0 {
		return nil
	}
	buf := make([]byte, pad)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return err
	}
	for _, b := range buf {
		if b != 0 {
			return &xerrors.NonzeroPaddingError{}
		}
	}
	return nil
}

// expect reads a field and requires it to equal want.
func (fr *frameReader) expect(want string) error {
	got, err := fr.readString()
	if err != nil {
		return err
	}
	if got != want {
		return &xerrors.InvalidArchiveError{Reason: "expected " + want + ", got " + got}
	}
	return nil
}
