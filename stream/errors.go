package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for stream failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrInvalidArgument indicates a bad option, whence or encoding scheme.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReadable indicates a read on a stream opened without read access.
	ErrNotReadable = errors.New("stream is not readable")

	// ErrNotWritable indicates a write on a stream without write access.
	ErrNotWritable = errors.New("stream is not writable")

	// ErrNotSeekable indicates a seek on a stream that cannot seek.
	ErrNotSeekable = errors.New("stream is not seekable")

	// ErrIndexNotFound indicates an out of range container index.
	ErrIndexNotFound = errors.New("stream index not found")

	// ErrEmptyContainer indicates an operation that needs at least one part.
	ErrEmptyContainer = errors.New("stream container is empty")

	// ErrNotSupported indicates an operation a composite refuses to perform.
	ErrNotSupported = errors.New("operation not supported")

	// ErrLineTooLong indicates a 7bit/8bit encoded line over 1000 characters.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotCloneable indicates a clone of a stream holding non-seekable data.
	ErrNotCloneable = errors.New("stream is not cloneable")

	// ErrClosed indicates an operation on a closed or detached resource.
	ErrClosed = errors.New("stream is closed")
)

// Error wraps a stream failure with its classification.
// It preserves the underlying error in the chain for inspection via errors.As.
type Error struct {
	// Kind is the sentinel error for classification (e.g., ErrNotSeekable).
	Kind error
	// Op is the operation that failed (e.g., "read", "seek", "add").
	Op string
	// Msg is a human readable detail.
	Msg string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewError creates a classified stream error.
func NewError(kind error, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WrapError classifies err under kind. Returns nil if err is nil.
func WrapError(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
