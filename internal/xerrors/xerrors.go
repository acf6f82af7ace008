// Package xerrors defines the store's error taxonomy: small struct error
// types that callers can distinguish with errors.As rather than string
// matching.
package xerrors

import "fmt"

// Path errors.

type NotInStoreError struct {
	Path string
}

func (e *NotInStoreError) Error() string {
	return fmt.Sprintf("path %q is not in the store", e.Path)
}

type InvalidFilepathError struct {
	Path string
}

func (e *InvalidFilepathError) Error() string {
	return fmt.Sprintf("invalid store filepath %q", e.Path)
}

type InvalidStorePathNameError struct {
	Name string
}

func (e *InvalidStorePathNameError) Error() string {
	return fmt.Sprintf("invalid store path name %q", e.Name)
}

// Archive errors.

type InvalidArchiveError struct {
	Reason string
}

func (e *InvalidArchiveError) Error() string { return "invalid archive: " + e.Reason }

type MultipleTypeFieldsError struct{}

func (e *MultipleTypeFieldsError) Error() string { return "archive entry has multiple type fields" }

type UnknownArchiveTypeError struct {
	Type string
}

func (e *UnknownArchiveTypeError) Error() string {
	return fmt.Sprintf("unknown archive node type %q", e.Type)
}

type InvalidFilenameError struct {
	Name string
}

func (e *InvalidFilenameError) Error() string {
	return fmt.Sprintf("invalid filename in archive: %q", e.Name)
}

type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown or out-of-place archive field %q", e.Field)
}

type ExecutableMarkerError struct{}

func (e *ExecutableMarkerError) Error() string { return "executable marker has non-empty value" }

type StringTooLongError struct {
	Length, Limit uint64
}

func (e *StringTooLongError) Error() string {
	return fmt.Sprintf("archive string length %d exceeds limit %d", e.Length, e.Limit)
}

type NonzeroPaddingError struct{}

func (e *NonzeroPaddingError) Error() string { return "archive padding contains nonzero bytes" }

// Hash errors.

type UnknownHashTypeError struct {
	Type string
}

func (e *UnknownHashTypeError) Error() string { return fmt.Sprintf("unknown hash algorithm %q", e.Type) }

type WrongHashLenError struct {
	Got, Want int
}

func (e *WrongHashLenError) Error() string {
	return fmt.Sprintf("incorrect hash length %d, want %d", e.Got, e.Want)
}

type UntypedHashError struct {
	Input string
}

func (e *UntypedHashError) Error() string {
	return fmt.Sprintf("attempt to parse untyped hash %q", e.Input)
}

type InvalidEncodingError struct {
	Encoding string
	Input    string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid %s encoding in %q", e.Encoding, e.Input)
}

// Ingestion errors.

type NarHashMismatchError struct {
	Path             string
	Expected, Actual string
}

func (e *NarHashMismatchError) Error() string {
	return fmt.Sprintf("nar hash mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

type NarSizeMismatchError struct {
	Path             string
	Expected, Actual uint64
}

func (e *NarSizeMismatchError) Error() string {
	return fmt.Sprintf("nar size mismatch for %s: expected %d, got %d", e.Path, e.Expected, e.Actual)
}

type UnsupportedFileTypeError struct {
	Path string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type at %s", e.Path)
}

// Lock errors.

type DeadlockError struct {
	Detail string
}

func (e *DeadlockError) Error() string { return "lock state unrecoverable: " + e.Detail }

type LockIOError struct {
	Path string
	Err  error
}

func (e *LockIOError) Error() string { return fmt.Sprintf("lock %s: %v", e.Path, e.Err) }
func (e *LockIOError) Unwrap() error { return e.Err }
