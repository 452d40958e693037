package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	mpart "github.com/pithecene-io/mstream/multipart"
)

// sniffLen is how much of a decoded body is kept for type detection.
const sniffLen = 3072

// ParseOptions configures Parse.
type ParseOptions struct {
	// Boundary overrides the boundary found in the document.
	Boundary string
}

// Parse reads a serialized document and describes its parts.
//
// A document that starts with a delimiter line takes its boundary from that
// line. Anything else must start with an envelope header block whose
// multipart Content-Type carries the boundary.
func Parse(r io.Reader, opts ParseOptions) (*DocumentView, error) {
	src := &countingReader{r: r}
	br := bufio.NewReader(src)

	peek, err := br.Peek(2)
	if len(peek) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}

	doc := &DocumentView{Parts: []PartView{}}
	var body io.Reader = br

	if string(peek) == "--" {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		b := strings.TrimRight(line[2:], "\r\n")
		// A document without fields is only its closing delimiter.
		doc.Boundary = strings.TrimSuffix(b, "--")
		body = io.MultiReader(strings.NewReader(line), br)
	} else {
		hdr, err := textproto.NewReader(br).ReadMIMEHeader()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("envelope header: %w", err)
		}
		mt, params, err := mime.ParseMediaType(hdr.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("envelope header: content type: %w", err)
		}
		if !strings.HasPrefix(mt, "multipart/") {
			return nil, fmt.Errorf("envelope header: %q is not a multipart type", mt)
		}
		doc.Envelope = true
		doc.ContentType = mt
		doc.Boundary = params["boundary"]
	}

	if opts.Boundary != "" {
		doc.Boundary = opts.Boundary
	}
	if doc.Boundary == "" {
		return nil, errors.New("no boundary found")
	}

	mr := multipart.NewReader(body, doc.Boundary)
	for i := 0; ; i++ {
		part, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		view, err := describePart(i, part)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		doc.Parts = append(doc.Parts, view)
	}

	// Count the epilogue too.
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, err
	}
	doc.Bytes = src.n
	return doc, nil
}

func describePart(index int, part *multipart.Part) (PartView, error) {
	view := PartView{
		Index:       index,
		ContentType: part.Header.Get("Content-Type"),
		Encoding:    strings.ToLower(part.Header.Get("Content-Transfer-Encoding")),
		ContentID:   part.Header.Get("Content-Id"),
		Headers:     headerLines(part.Header),
	}
	if cd := part.Header.Get("Content-Disposition"); cd != "" {
		disp, params, err := mime.ParseMediaType(cd)
		if err != nil {
			view.Disposition = cd
		} else {
			view.Disposition = disp
			view.Name = params["name"]
			view.Filename = params["filename"]
		}
	}

	raw := &countingReader{r: part}
	head := &headWriter{limit: sniffLen}

	var decoded io.Reader = raw
	if view.Encoding != "" {
		dec, err := mpart.NewDecoder(raw, view.Encoding)
		if err != nil {
			view.DecodeError = err.Error()
		} else {
			decoded = dec
		}
	}
	if _, err := io.Copy(head, decoded); err != nil {
		view.DecodeError = err.Error()
		// Keep counting the encoded size.
		if _, err := io.Copy(io.Discard, raw); err != nil {
			return view, err
		}
	}

	view.Size = raw.n
	view.DecodedSize = head.n
	if head.n > 0 {
		view.Detected = mimetype.Detect(head.buf).String()
	}
	return view, nil
}

// headerLines flattens a part header into sorted "Name: value" lines.
func headerLines(h textproto.MIMEHeader) []string {
	lines := make([]string, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			lines = append(lines, name+": "+v)
		}
	}
	sort.Strings(lines)
	return lines
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// headWriter counts everything written and keeps the first limit bytes.
type headWriter struct {
	buf   []byte
	limit int
	n     int64
}

func (h *headWriter) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		h.buf = append(h.buf, p[:min(room, len(p))]...)
	}
	h.n += int64(len(p))
	return len(p), nil
}
