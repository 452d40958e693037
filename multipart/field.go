package multipart

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/mstream/stream"
)

// FieldOptions describes one field of a multipart document.
type FieldOptions struct {
	// Name is the field name. Required.
	Name string
	// Filename is added to Content-Disposition when set.
	Filename string
	// Disposition (e.g., "form-data", "inline", "attachment"). The
	// Content-Disposition header is only emitted when set.
	Disposition string
	// Mime is the Content-Type of the payload. Empty sniffs it from the
	// payload, or uses the MIME type already attached to a stream.Resource.
	Mime string
	// OmitContentType suppresses Content-Type and the default charset and
	// transfer encoding that depend on it.
	OmitContentType bool
	// Charset defaults to utf-8 for text/* types.
	Charset string
	// Encoding defaults to quoted-printable for text/* types and base64 for
	// every other type. Without a Content-Type the payload is written as is.
	Encoding string
	// Length emits Content-Length with the encoded payload length.
	Length bool
	// Headers are raw "Name: value" lines written before every other header.
	Headers []string
	// ID, Description, Location and Language emit the matching Content-*
	// headers when set.
	ID          string
	Description string
	Location    string
	Language    string
}

func (o FieldOptions) validate() error {
	if o.Name == "" {
		return stream.NewError(stream.ErrInvalidArgument, "add", "name option required")
	}
	values := map[string]string{
		"name":        o.Name,
		"filename":    o.Filename,
		"disposition": o.Disposition,
		"mime":        o.Mime,
		"charset":     o.Charset,
		"id":          o.ID,
		"description": o.Description,
		"location":    o.Location,
		"language":    o.Language,
	}
	for key, v := range values {
		if strings.ContainsAny(v, "\r\n") {
			return stream.NewError(stream.ErrInvalidArgument, "add", fmt.Sprintf("%s option contains a line break", key))
		}
	}
	for _, h := range o.Headers {
		if strings.ContainsAny(h, "\r\n") {
			return stream.NewError(stream.ErrInvalidArgument, "add", fmt.Sprintf("header %q contains a line break", h))
		}
		if name, _, ok := strings.Cut(h, ":"); !ok || strings.TrimSpace(name) == "" {
			return stream.NewError(stream.ErrInvalidArgument, "add", fmt.Sprintf("malformed header %q", h))
		}
	}
	return nil
}

// Field is a payload stream carrying its own part attributes.
// The embedded stream is owned by the document the field was added to.
type Field struct {
	stream.Stream

	opts     FieldOptions
	mime     string
	charset  string
	encoding string
}

// Verify Field implements stream.Stream.
var _ stream.Stream = (*Field)(nil)

func newField(payload stream.Stream, opts FieldOptions) (*Field, error) {
	f := &Field{Stream: payload, opts: opts}

	switch {
	case opts.OmitContentType:
	case opts.Mime != "":
		f.mime = opts.Mime
	default:
		if r, ok := payload.(*stream.Resource); ok && r.Mime() != "" {
			f.mime = r.Mime()
			break
		}
		mt, err := stream.Sniff(payload)
		if err != nil {
			return nil, err
		}
		f.mime = mt
	}

	f.charset = opts.Charset
	if f.charset == "" && isText(f.mime) {
		f.charset = "utf-8"
	}

	if opts.Encoding != "" {
		enc, err := NormalizeEncoding(opts.Encoding)
		if err != nil {
			return nil, err
		}
		f.encoding = enc
	} else if f.mime != "" {
		f.encoding = Base64
		if isText(f.mime) {
			f.encoding = QuotedPrintable
		}
	}
	return f, nil
}

func isText(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "text/")
}

// Name returns the field name.
func (f *Field) Name() string { return f.opts.Name }

// Options returns the options the field was added with.
func (f *Field) Options() FieldOptions { return f.opts }

// Mime returns the resolved Content-Type, empty when omitted.
func (f *Field) Mime() string { return f.mime }

// SetMime replaces the Content-Type. Empty omits the header.
func (f *Field) SetMime(mime string) error {
	if strings.ContainsAny(mime, "\r\n") {
		return stream.NewError(stream.ErrInvalidArgument, "mime", "mime contains a line break")
	}
	f.mime = mime
	return nil
}

// Charset returns the charset parameter of the Content-Type.
func (f *Field) Charset() string { return f.charset }

// SetCharset replaces the charset parameter. Empty omits it.
func (f *Field) SetCharset(charset string) error {
	if strings.ContainsAny(charset, "\r\n") {
		return stream.NewError(stream.ErrInvalidArgument, "charset", "charset contains a line break")
	}
	f.charset = charset
	return nil
}

// Encoding returns the content-transfer encoding, empty for a raw payload.
func (f *Field) Encoding() string { return f.encoding }

// SetEncoding replaces the content-transfer encoding. Empty writes the
// payload as is without a Content-Transfer-Encoding header.
func (f *Field) SetEncoding(scheme string) error {
	if scheme == "" {
		f.encoding = ""
		return nil
	}
	enc, err := NormalizeEncoding(scheme)
	if err != nil {
		return err
	}
	f.encoding = enc
	return nil
}

// Payload returns the raw payload stream.
func (f *Field) Payload() stream.Stream { return f.Stream }

// Clone deep-clones the payload and copies the attributes.
func (f *Field) Clone() (stream.Stream, error) {
	payload, err := f.Stream.Clone()
	if err != nil {
		return nil, err
	}
	c := *f
	c.Stream = payload
	c.opts.Headers = append([]string(nil), f.opts.Headers...)
	return &c, nil
}
