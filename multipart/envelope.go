package multipart

import (
	"bytes"
	"io"

	"github.com/pithecene-io/mstream/multistream"
	"github.com/pithecene-io/mstream/stream"
)

// EnvelopeMime is the default media type of an Envelope.
const EnvelopeMime = "multipart/mixed"

// Envelope is a self-describing multipart document: its serialization
// starts with its own Content-Type header block, as in a MIME message body.
type Envelope struct {
	*Stream
}

// NewEnvelope creates an empty envelope.
func NewEnvelope(cfg Config) (*Envelope, error) {
	s, err := newStream(cfg, EnvelopeMime)
	if err != nil {
		return nil, err
	}
	return &Envelope{Stream: s}, nil
}

// SetMime changes the envelope media type. Empty restores multipart/mixed.
func (e *Envelope) SetMime(mt string) {
	if mt == "" {
		mt = EnvelopeMime
	}
	e.mime = mt
}

// Header returns the top-level header block written before the first
// boundary.
func (e *Envelope) Header() string {
	return "Content-Type: " + e.mime + ";\r\n\tboundary=" + quote(e.boundary) + "\r\n\r\n"
}

// WriteTo writes the header block followed by the document.
func (e *Envelope) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, e.Header())
	if err != nil {
		return int64(n), err
	}
	m, err := e.Stream.WriteTo(w)
	return int64(n) + m, err
}

// Flush returns the serialized envelope.
func (e *Envelope) Flush() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Contents returns the serialized envelope. Same as Flush.
func (e *Envelope) Contents() ([]byte, error) {
	return e.Flush()
}

// Render returns the framed envelope, header block included.
func (e *Envelope) Render() (*multistream.MultiStream, error) {
	out, err := e.Stream.Render()
	if err != nil {
		return nil, err
	}
	if err := out.Insert(0, stream.Text(e.Header())); err != nil {
		_ = out.Close()
		return nil, err
	}
	return out, nil
}

// Clone deep-clones every field.
func (e *Envelope) Clone() (*Envelope, error) {
	s, err := e.Stream.Clone()
	if err != nil {
		return nil, err
	}
	return &Envelope{Stream: s}, nil
}
