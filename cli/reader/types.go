// Package reader is the read side of the mstream CLI: it parses serialized
// documents back into part views and lists the documents held by a store.
// Nothing in this package writes.
package reader

import (
	"strconv"
	"time"
)

// DocumentView describes a parsed multipart document.
type DocumentView struct {
	Boundary string `json:"boundary"`
	// Envelope is true when the document starts with its own Content-Type
	// header block.
	Envelope    bool       `json:"envelope"`
	ContentType string     `json:"content_type,omitempty"`
	Bytes       int64      `json:"bytes"`
	Parts       []PartView `json:"parts"`
}

// PartView describes one part of a parsed document.
type PartView struct {
	Index       int      `json:"index"`
	Name        string   `json:"name,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Disposition string   `json:"disposition,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Encoding    string   `json:"encoding,omitempty"`
	ContentID   string   `json:"content_id,omitempty"`
	Headers     []string `json:"headers"`
	// Size is the encoded body size; DecodedSize undoes the transfer
	// encoding.
	Size        int64  `json:"size"`
	DecodedSize int64  `json:"decoded_size"`
	Detected    string `json:"detected,omitempty"`
	// DecodeError is set when the body does not decode with its declared
	// transfer encoding.
	DecodeError string `json:"decode_error,omitempty"`
}

// Header implements render.Table.
func (d *DocumentView) Header() []string {
	return []string{"#", "NAME", "FILENAME", "CONTENT-TYPE", "ENCODING", "SIZE", "DECODED", "DETECTED"}
}

// Rows implements render.Table.
func (d *DocumentView) Rows() [][]string {
	rows := make([][]string, len(d.Parts))
	for i, p := range d.Parts {
		rows[i] = []string{
			strconv.Itoa(p.Index),
			p.Name,
			p.Filename,
			p.ContentType,
			p.Encoding,
			strconv.FormatInt(p.Size, 10),
			strconv.FormatInt(p.DecodedSize, 10),
			p.Detected,
		}
	}
	return rows
}

// ListItem is one stored document.
type ListItem struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type,omitempty"`
	Fields      int       `json:"fields"`
	Bytes       int64     `json:"bytes"`
	StoredBytes int64     `json:"stored_bytes"`
	Compression string    `json:"compression,omitempty"`
	WrittenAt   time.Time `json:"written_at"`
}
