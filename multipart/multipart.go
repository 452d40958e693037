// Package multipart serializes fields into MIME multipart documents.
//
// A document is an ordered list of fields followed by a terminal
// "--boundary--" part. Framing (boundary line, header block, trailing CRLF)
// and content-transfer encoding are applied when the document is
// serialized, so field attributes can still be changed after Add.
//
// Because encoded part lengths are only known once every part has been
// encoded, a document cannot be read byte per byte nor report a length.
// Serialize it with WriteTo, Flush or Render instead.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"

	"go.uber.org/multierr"

	"github.com/pithecene-io/mstream/iox"
	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/multistream"
	"github.com/pithecene-io/mstream/stream"
)

// DefaultMime is the media type of a document built with New.
const DefaultMime = "multipart/form-data"

// Config configures a document.
type Config struct {
	// Boundary overrides the random boundary. Must satisfy ValidateBoundary.
	Boundary string
	// Mime overrides the document media type.
	Mime string
	// Logger receives field lifecycle events at debug level. Nil discards.
	Logger *log.Logger
	// Metrics records fields, parts and encoded bytes. Nil disables.
	Metrics *metrics.Collector
}

// Stream is a multipart document.
type Stream struct {
	parts    *multistream.MultiStream
	boundary string
	mime     string

	logger  *log.Logger
	metrics *metrics.Collector
}

// New creates an empty document.
func New(cfg Config) (*Stream, error) {
	return newStream(cfg, DefaultMime)
}

func newStream(cfg Config, defaultMime string) (*Stream, error) {
	boundary := cfg.Boundary
	if boundary == "" {
		boundary = NewBoundary()
	} else if err := ValidateBoundary(boundary); err != nil {
		return nil, err
	}
	mt := cfg.Mime
	if mt == "" {
		mt = defaultMime
	}

	logger := cfg.Logger.Named("multipart").With(map[string]any{"boundary": boundary})
	s := &Stream{
		parts:    multistream.New(multistream.Config{Logger: logger, Metrics: cfg.Metrics}),
		boundary: boundary,
		mime:     mt,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
	if err := s.addTerminal(); err != nil {
		return nil, err
	}
	return s, nil
}

// addTerminal appends the closing boundary, which always stays last.
func (s *Stream) addTerminal() error {
	return s.parts.Add(stream.Text("--" + s.boundary + "--\r\n"))
}

// Boundary returns the boundary token.
func (s *Stream) Boundary() string { return s.boundary }

// Mime returns the document media type.
func (s *Stream) Mime() string { return s.mime }

// SetMime changes the document media type. Empty restores the default.
func (s *Stream) SetMime(mt string) {
	if mt == "" {
		mt = DefaultMime
	}
	s.mime = mt
}

// ContentType returns the transport Content-Type header value, including
// the boundary parameter.
func (s *Stream) ContentType() string {
	return mime.FormatMediaType(s.mime, map[string]string{"boundary": s.boundary})
}

// Add appends a field and returns it so its attributes can still be
// adjusted before serialization. Fails with stream.ErrInvalidArgument when
// the name is missing, an option holds a line break, the encoding is
// unknown or the payload is not readable.
func (s *Stream) Add(p stream.Payload, opts FieldOptions) (*Field, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	payload, err := p.Open()
	if err != nil {
		return nil, err
	}
	if !payload.Readable() {
		return nil, stream.NewError(stream.ErrInvalidArgument, "add", "cannot add a non-readable stream")
	}
	f, err := newField(payload, opts)
	if err != nil {
		return nil, err
	}
	if err := s.parts.Insert(s.parts.Len()-1, stream.Existing(f)); err != nil {
		return nil, err
	}

	s.metrics.IncFieldAdded()
	s.logger.Debug("field added", map[string]any{
		"name":     f.Name(),
		"mime":     f.Mime(),
		"encoding": f.Encoding(),
	})
	return f, nil
}

// Len returns the number of fields.
func (s *Stream) Len() int { return s.parts.Len() - 1 }

// Fields returns the fields in document order.
func (s *Stream) Fields() []*Field {
	fields := make([]*Field, 0, s.Len())
	for _, part := range s.parts.Parts() {
		if f, ok := part.(*Field); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// Field returns the field at index i.
func (s *Stream) Field(i int) (*Field, error) {
	if i < 0 || i >= s.Len() {
		return nil, stream.NewError(stream.ErrIndexNotFound, "field", fmt.Sprintf("unexisting field index %d", i))
	}
	part, err := s.parts.Get(i)
	if err != nil {
		return nil, err
	}
	return part.(*Field), nil
}

// Remove takes the field at index i out of the document. The caller owns
// the returned field.
func (s *Stream) Remove(i int) (*Field, error) {
	if i < 0 || i >= s.Len() {
		return nil, stream.NewError(stream.ErrIndexNotFound, "remove", fmt.Sprintf("unexisting field index %d", i))
	}
	part, err := s.parts.Remove(i)
	if err != nil {
		return nil, err
	}
	return part.(*Field), nil
}

func (s *Stream) Readable() bool { return true }
func (s *Stream) Writable() bool { return false }
func (s *Stream) Seekable() bool { return s.parts.Seekable() }

// Read always fails with stream.ErrNotSupported.
func (s *Stream) Read(p []byte) (int, error) {
	return 0, stream.NewError(stream.ErrNotSupported, "read", "multipart stream cannot be read byte per byte")
}

// Write always fails with stream.ErrNotWritable.
func (s *Stream) Write(p []byte) (int, error) {
	return 0, stream.NewError(stream.ErrNotWritable, "write", "multipart stream is not writable")
}

// Length always fails with stream.ErrNotSupported.
func (s *Stream) Length() (int64, error) {
	return 0, stream.NewError(stream.ErrNotSupported, "length", "cannot extract multipart stream length")
}

// WriteTo serializes the document into w. Seekable payloads are read from
// their start; non-seekable payloads are consumed.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	cw := &iox.CountingWriter{W: w}
	for _, part := range s.parts.Parts() {
		var err error
		if f, ok := part.(*Field); ok {
			err = s.writeField(cw, f)
		} else {
			err = copyPart(cw, part)
		}
		if err != nil {
			return cw.N, err
		}
	}
	return cw.N, nil
}

func (s *Stream) delimiter() string {
	return "--" + s.boundary + "\r\n"
}

func rewind(st stream.Stream) error {
	if !st.Seekable() {
		return nil
	}
	return st.Rewind()
}

func copyPart(w io.Writer, part stream.Stream) error {
	if err := rewind(part); err != nil {
		return err
	}
	_, err := io.Copy(w, part)
	return err
}

func transferScheme(f *Field) string {
	if f.encoding == "" {
		return Binary
	}
	return f.encoding
}

func (s *Stream) writeField(w io.Writer, f *Field) error {
	if f.opts.Length {
		encoded, err := s.encodeField(f)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, s.delimiter()+f.headerBlock(len(encoded))+string(encoded)+"\r\n")
		return err
	}

	if err := rewind(f.Stream); err != nil {
		return err
	}
	if _, err := io.WriteString(w, s.delimiter()+f.headerBlock(0)); err != nil {
		return err
	}
	scheme := transferScheme(f)
	counted := &iox.CountingWriter{W: w}
	enc, err := NewEncoder(counted, scheme)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, f.Stream); err != nil {
		s.recordEncodeError(err)
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	s.metrics.AddBytesEncoded(scheme, counted.N)
	_, err = io.WriteString(w, "\r\n")
	return err
}

// encodeField reads the whole payload and applies its transfer encoding.
func (s *Stream) encodeField(f *Field) ([]byte, error) {
	if err := rewind(f.Stream); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f.Stream)
	if err != nil {
		return nil, err
	}
	scheme := transferScheme(f)
	encoded, err := Encode(data, scheme)
	if err != nil {
		s.recordEncodeError(err)
		return nil, err
	}
	s.metrics.AddBytesEncoded(scheme, int64(len(encoded)))
	return encoded, nil
}

func (s *Stream) recordEncodeError(err error) {
	if errors.Is(err, stream.ErrLineTooLong) {
		s.metrics.IncEncodeErrors()
		s.logger.Warn("encode failed", map[string]any{"error": err.Error()})
	}
}

// Flush returns the serialized document.
func (s *Stream) Flush() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Contents returns the serialized document. Same as Flush.
func (s *Stream) Contents() ([]byte, error) {
	return s.Flush()
}

// Render encodes every field and returns the framed document as a seekable
// concatenation of boundary, header, payload and CRLF parts. The result
// has a known length and can be added as a part of another container.
// The rendered parts are not counted as added parts; the fields already
// were.
func (s *Stream) Render() (*multistream.MultiStream, error) {
	out := multistream.New(multistream.Config{Logger: s.logger})
	if err := s.render(out); err != nil {
		_ = out.Close()
		return nil, err
	}
	return out, nil
}

func (s *Stream) render(out *multistream.MultiStream) error {
	for _, part := range s.parts.Parts() {
		f, ok := part.(*Field)
		if !ok {
			var buf bytes.Buffer
			if err := copyPart(&buf, part); err != nil {
				return err
			}
			if err := out.Add(stream.Bytes(buf.Bytes())); err != nil {
				return err
			}
			continue
		}

		encoded, err := s.encodeField(f)
		if err != nil {
			return err
		}
		body := stream.FromBytes(encoded)
		body.SetMime(f.mime)
		for _, p := range []stream.Payload{
			stream.Text(s.delimiter()),
			stream.Text(f.headerBlock(len(encoded))),
			stream.Existing(body),
			stream.Text("\r\n"),
		} {
			if err := out.Add(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone deep-clones every field. Fails with stream.ErrNotCloneable when a
// payload is not seekable.
func (s *Stream) Clone() (*Stream, error) {
	parts, err := s.parts.Clone()
	if err != nil {
		return nil, err
	}
	c := *s
	c.parts = parts.(*multistream.MultiStream)
	return &c, nil
}

// Close closes every payload. The document is left empty and reusable.
// Safe to call twice.
func (s *Stream) Close() error {
	err := s.parts.Close()
	if addErr := s.addTerminal(); addErr != nil {
		return multierr.Append(err, addErr)
	}
	return err
}

// Detach detaches every payload without closing it. The document is left
// empty and reusable.
func (s *Stream) Detach() error {
	err := s.parts.Detach()
	if addErr := s.addTerminal(); addErr != nil {
		return multierr.Append(err, addErr)
	}
	return err
}
