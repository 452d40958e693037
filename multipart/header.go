package multipart

import (
	"strconv"
	"strings"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

// contentID wraps id in angle brackets unless already present.
func contentID(id string) string {
	if !strings.HasPrefix(id, "<") {
		id = "<" + id
	}
	if !strings.HasSuffix(id, ">") {
		id += ">"
	}
	return id
}

// headerLines returns the part header lines in emission order. encodedLen
// is only used when the field requests Content-Length.
func (f *Field) headerLines(encodedLen int) []string {
	o := f.opts
	lines := make([]string, 0, len(o.Headers)+8)
	lines = append(lines, o.Headers...)

	if o.Disposition != "" {
		d := o.Disposition + "; name=" + quote(o.Name)
		if o.Filename != "" {
			d += "; filename=" + quote(o.Filename)
		}
		lines = append(lines, "Content-Disposition: "+d)
	}
	if o.ID != "" {
		lines = append(lines, "Content-ID: "+contentID(o.ID))
	}
	if f.mime != "" {
		ct := f.mime
		if f.charset != "" {
			ct += "; charset=" + f.charset
		}
		lines = append(lines, "Content-Type: "+ct)
	}
	if f.encoding != "" {
		lines = append(lines, "Content-Transfer-Encoding: "+f.encoding)
	}
	if o.Length {
		lines = append(lines, "Content-Length: "+strconv.Itoa(encodedLen))
	}
	if o.Description != "" {
		lines = append(lines, "Content-Description: "+o.Description)
	}
	if o.Location != "" {
		lines = append(lines, "Content-Location: "+o.Location)
	}
	if o.Language != "" {
		lines = append(lines, "Content-Language: "+o.Language)
	}
	return lines
}

// headerBlock joins the header lines and terminates the block with an
// empty line.
func (f *Field) headerBlock(encodedLen int) string {
	lines := f.headerLines(encodedLen)
	if len(lines) == 0 {
		return "\r\n"
	}
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}
