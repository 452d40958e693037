package multipart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/pithecene-io/mstream/stream"
)

// Content-transfer encodings.
const (
	QuotedPrintable = "quoted-printable"
	Base64          = "base64"
	SevenBit        = "7bit"
	EightBit        = "8bit"
	Binary          = "binary"
)

const (
	// base64LineLen is the wrap width of base64 bodies.
	base64LineLen = 76
	// maxLineLen is the longest 7bit/8bit line, CRLF excluded. With the CRLF
	// a line is at most 1000 characters (RFC 5322 section 2.1.1).
	maxLineLen = 998
)

// NormalizeEncoding lowercases and validates a transfer encoding name.
// Fails with stream.ErrInvalidArgument for unknown schemes.
func NormalizeEncoding(scheme string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(scheme))
	switch s {
	case QuotedPrintable, Base64, SevenBit, EightBit, Binary:
		return s, nil
	}
	return "", stream.NewError(stream.ErrInvalidArgument, "encode", fmt.Sprintf("unsupported encoding %q", scheme))
}

// Encode applies a content-transfer encoding to data.
func Encode(data []byte, scheme string) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, scheme)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewEncoder returns a writer that encodes everything written to it into w.
// Close must be called to flush trailing output; it does not close w.
func NewEncoder(w io.Writer, scheme string) (io.WriteCloser, error) {
	s, err := NormalizeEncoding(scheme)
	if err != nil {
		return nil, err
	}
	switch s {
	case QuotedPrintable:
		return quotedprintable.NewWriter(w), nil
	case Base64:
		return base64.NewEncoder(base64.StdEncoding, &lineWrapper{w: w, width: base64LineLen}), nil
	case SevenBit:
		return &lineWriter{w: w, strip8bit: true}, nil
	case EightBit:
		return &lineWriter{w: w}, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// lineWrapper inserts CRLF every width bytes. No CRLF follows the last line.
type lineWrapper struct {
	w     io.Writer
	width int
	col   int
}

func (l *lineWrapper) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if l.col == l.width {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.col = 0
		}
		n := min(len(p), l.width-l.col)
		m, err := l.w.Write(p[:n])
		written += m
		l.col += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

// lineWriter implements the 7bit and 8bit rules: NUL bytes and bare CR are
// dropped, bare LF becomes CRLF, and lines longer than maxLineLen fail.
// With strip8bit, bytes with the high bit set are dropped first.
type lineWriter struct {
	w         io.Writer
	strip8bit bool
	lineLen   int
	out       []byte
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.out = l.out[:0]
	for _, b := range p {
		if b == 0 || (l.strip8bit && b >= 0x80) {
			continue
		}
		switch b {
		case '\r':
			// Kept only as part of CRLF, which the LF branch re-emits.
		case '\n':
			l.out = append(l.out, '\r', '\n')
			l.lineLen = 0
		default:
			l.lineLen++
			if l.lineLen > maxLineLen {
				return 0, stream.NewError(stream.ErrLineTooLong, "encode", fmt.Sprintf("line exceeds %d characters", maxLineLen+2))
			}
			l.out = append(l.out, b)
		}
	}
	if _, err := l.w.Write(l.out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (l *lineWriter) Close() error { return nil }

// NewDecoder returns a reader that undoes the transfer encoding of r.
// 7bit, 8bit and binary bodies are returned as is.
func NewDecoder(r io.Reader, scheme string) (io.Reader, error) {
	s, err := NormalizeEncoding(scheme)
	if err != nil {
		return nil, err
	}
	switch s {
	case QuotedPrintable:
		return quotedprintable.NewReader(r), nil
	case Base64:
		// The stdlib decoder skips the CRLF line breaks.
		return base64.NewDecoder(base64.StdEncoding, r), nil
	default:
		return r, nil
	}
}
