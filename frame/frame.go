// Package frame implements length-prefixed msgpack field frames.
//
// A frame stream carries the fields of one multipart document, one field per
// frame, optionally closed by an end frame. Each frame is a 4-byte
// big-endian payload length followed by a msgpack map.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/mstream/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	FieldType = "field"
	EndType   = "end"
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorInvalid indicates a well-formed frame with invalid content.
	FrameErrorInvalid
	// FrameErrorSequence indicates a non-monotonic sequence number.
	FrameErrorSequence
	// FrameErrorVersion indicates a frame format version mismatch.
	FrameErrorVersion
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be resynchronized after this
// error. A frame that was read completely but could not be decoded or
// validated is not fatal: the next frame starts at a known offset.
func (e *FrameError) IsFatal() bool {
	switch e.Kind {
	case FrameErrorPartial, FrameErrorTooLarge, FrameErrorSequence, FrameErrorVersion:
		return true
	}
	return false
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// Frame is the decoded form of one frame.
type Frame struct {
	// Type is FieldType or EndType.
	Type string `msgpack:"type"`
	// Version is the frame format version (types.FrameVersion).
	Version string `msgpack:"version"`
	// Seq starts at 1 and increases by one per frame.
	Seq int64 `msgpack:"seq"`
	// Field is set on field frames.
	Field *types.FieldSpec `msgpack:"field,omitempty"`
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// DecodeFrame decodes and validates a payload. Sequence numbers are checked
// by Reader, not here.
func DecodeFrame(payload []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame",
			Err:  err,
		}
	}

	if f.Version != types.FrameVersion {
		return nil, &FrameError{
			Kind: FrameErrorVersion,
			Msg:  fmt.Sprintf("frame version mismatch: expected %s, got %s", types.FrameVersion, f.Version),
		}
	}

	switch f.Type {
	case EndType:
	case FieldType:
		if f.Field == nil {
			return nil, &FrameError{Kind: FrameErrorInvalid, Msg: "field frame without field"}
		}
		if err := f.Field.Validate(); err != nil {
			return nil, &FrameError{Kind: FrameErrorInvalid, Msg: "invalid field", Err: err}
		}
	default:
		return nil, &FrameError{
			Kind: FrameErrorInvalid,
			Msg:  fmt.Sprintf("unknown frame type %q", f.Type),
		}
	}
	return &f, nil
}

// FrameEncoder writes length-prefixed msgpack frames and numbers them.
type FrameEncoder struct {
	writer io.Writer
	seq    int64
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame writes one raw payload with its length prefix.
func (e *FrameEncoder) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	_, err := e.writer.Write(buf)
	return err
}

func (e *FrameEncoder) write(f *Frame) error {
	e.seq++
	f.Seq = e.seq
	f.Version = types.FrameVersion
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode frame", Err: err}
	}
	return e.WriteFrame(payload)
}

// WriteField writes a field frame.
func (e *FrameEncoder) WriteField(spec types.FieldSpec) error {
	if err := spec.Validate(); err != nil {
		return &FrameError{Kind: FrameErrorInvalid, Msg: "invalid field", Err: err}
	}
	return e.write(&Frame{Type: FieldType, Field: &spec})
}

// WriteEnd writes the end frame. Readers stop at it.
func (e *FrameEncoder) WriteEnd() error {
	return e.write(&Frame{Type: EndType})
}
