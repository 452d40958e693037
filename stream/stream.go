// Package stream provides a uniform abstraction over byte oriented resources
// (files, memory buffers, network handles).
//
// A Stream carries readable/writable/seekable capability flags, a cursor and
// a lazily computed length. Containers such as multistream.MultiStream consume
// the Stream interface and expose their composite behavior through it again,
// so a container can itself be added as a part of another container.
//
// Ownership is exclusive: a container owns every stream added to it and
// closing or detaching the container closes or detaches every owned stream.
// Streams are not safe for concurrent use.
package stream

import (
	"fmt"
	"io"
)

// DefaultBufferSize is the number of bytes read per chunk when draining a
// stream.
const DefaultBufferSize = 4096

// Stream is the byte stream contract shared by single resources and
// composites.
//
// Read follows io.Reader: it returns io.EOF with zero bytes once the logical
// end is reached. Seek offsets are absolute positions within the underlying
// resource.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	// Rewind moves the cursor back to the stream start.
	Rewind() error
	// End moves the cursor to the stream end.
	End() error
	// Tell returns the current cursor position.
	Tell() int64
	// EOF reports whether the end of the stream has been reached.
	EOF() bool

	Readable() bool
	Writable() bool
	Seekable() bool

	// Length returns the stream length. ok is false when the length cannot
	// be determined, typically because the stream is not seekable.
	Length() (n int64, ok bool)

	// Detach releases the underlying resource without closing it.
	Detach() error

	// Clone returns an independent deep copy. Fails with ErrNotCloneable
	// when the content cannot be replayed.
	Clone() (Stream, error)
}

type payloadKind int

const (
	payloadBytes payloadKind = iota
	payloadHandle
	payloadStream
)

// Payload is the set of values accepted by container Add methods.
// Build one with Bytes, Text, Value, Handle or Existing. The zero Payload is
// an empty byte payload.
type Payload struct {
	kind   payloadKind
	data   []byte
	handle any
	stream Stream
}

// Bytes returns a payload holding a copy of b.
func Bytes(b []byte) Payload {
	return Payload{kind: payloadBytes, data: append([]byte(nil), b...)}
}

// Text returns a payload holding s.
func Text(s string) Payload {
	return Payload{kind: payloadBytes, data: []byte(s)}
}

// Value returns a payload holding the string form of a scalar.
// nil and false render as an empty payload and true as "1"; []byte and
// string are taken verbatim; anything else is formatted with fmt.Sprint.
func Value(v any) Payload {
	switch x := v.(type) {
	case nil:
		return Payload{kind: payloadBytes}
	case bool:
		if x {
			return Text("1")
		}
		return Payload{kind: payloadBytes}
	case []byte:
		return Bytes(x)
	case string:
		return Text(x)
	case fmt.Stringer:
		return Text(x.String())
	default:
		return Text(fmt.Sprint(x))
	}
}

// Handle returns a payload wrapping a resource reference such as an
// *os.File, a net.Conn or any io.Reader. The handle is owned by whichever
// container opens the payload.
func Handle(h any) Payload {
	return Payload{kind: payloadHandle, handle: h}
}

// Existing returns a payload transferring ownership of s.
func Existing(s Stream) Payload {
	return Payload{kind: payloadStream, stream: s}
}

// Open normalizes the payload into an owned Stream.
func (p Payload) Open() (Stream, error) {
	switch p.kind {
	case payloadHandle:
		if p.handle == nil {
			return nil, NewError(ErrInvalidArgument, "open", "nil handle")
		}
		return New(p.handle, Config{})
	case payloadStream:
		if p.stream == nil {
			return nil, NewError(ErrInvalidArgument, "open", "nil stream")
		}
		return p.stream, nil
	default:
		return FromBytes(p.data), nil
	}
}
