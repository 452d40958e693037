// Package types defines the shared declarative types of mstream.
// A FieldSpec is the serializable description of one multipart field; it is
// read from config files (yaml, toml) and from field frames (msgpack).
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// SourceKind identifies where a field payload comes from.
type SourceKind string

const (
	// SourceValue is an inline text value.
	SourceValue SourceKind = "value"
	// SourceData is inline raw bytes (field frames only).
	SourceData SourceKind = "data"
	// SourceFile is a path on the local filesystem.
	SourceFile SourceKind = "file"
	// SourceStore is a key in the configured document store.
	SourceStore SourceKind = "store"
)

// FieldSpec describes one multipart field and its payload source.
// At most one of Data, File and Store may be set; without any of them the
// payload is Value (possibly empty).
type FieldSpec struct {
	Name  string `yaml:"name" toml:"name" msgpack:"name" json:"name"`
	Value string `yaml:"value,omitempty" toml:"value" msgpack:"value,omitempty" json:"value,omitempty"`
	// Data is only carried by field frames.
	Data  []byte `yaml:"-" toml:"-" msgpack:"data,omitempty" json:"-"`
	File  string `yaml:"file,omitempty" toml:"file" msgpack:"file,omitempty" json:"file,omitempty"`
	Store string `yaml:"store,omitempty" toml:"store" msgpack:"store,omitempty" json:"store,omitempty"`

	Filename        string   `yaml:"filename,omitempty" toml:"filename" msgpack:"filename,omitempty" json:"filename,omitempty"`
	Disposition     string   `yaml:"disposition,omitempty" toml:"disposition" msgpack:"disposition,omitempty" json:"disposition,omitempty"`
	Mime            string   `yaml:"mime,omitempty" toml:"mime" msgpack:"mime,omitempty" json:"mime,omitempty"`
	OmitContentType bool     `yaml:"omit_content_type,omitempty" toml:"omit_content_type" msgpack:"omit_content_type,omitempty" json:"omit_content_type,omitempty"`
	Charset         string   `yaml:"charset,omitempty" toml:"charset" msgpack:"charset,omitempty" json:"charset,omitempty"`
	Encoding        string   `yaml:"encoding,omitempty" toml:"encoding" msgpack:"encoding,omitempty" json:"encoding,omitempty"`
	Length          bool     `yaml:"length,omitempty" toml:"length" msgpack:"length,omitempty" json:"length,omitempty"`
	Headers         []string `yaml:"headers,omitempty" toml:"headers" msgpack:"headers,omitempty" json:"headers,omitempty"`
	ID              string   `yaml:"id,omitempty" toml:"id" msgpack:"id,omitempty" json:"id,omitempty"`
	Description     string   `yaml:"description,omitempty" toml:"description" msgpack:"description,omitempty" json:"description,omitempty"`
	Location        string   `yaml:"location,omitempty" toml:"location" msgpack:"location,omitempty" json:"location,omitempty"`
	Language        string   `yaml:"language,omitempty" toml:"language" msgpack:"language,omitempty" json:"language,omitempty"`
}

// Source returns the payload source of the field.
func (f *FieldSpec) Source() SourceKind {
	switch {
	case f.Data != nil:
		return SourceData
	case f.File != "":
		return SourceFile
	case f.Store != "":
		return SourceStore
	default:
		return SourceValue
	}
}

// Validate checks the field declaration:
//   - name must be non-empty
//   - at most one payload source
//   - a value cannot be combined with another source
//   - file and store references cannot contain line breaks
func (f *FieldSpec) Validate() error {
	if f.Name == "" {
		return errors.New("field name must be non-empty")
	}

	sources := 0
	for _, set := range []bool{f.Data != nil, f.File != "", f.Store != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("field %q: data, file and store are mutually exclusive", f.Name)
	}
	if sources == 1 && f.Value != "" {
		return fmt.Errorf("field %q: value cannot be combined with %s", f.Name, f.Source())
	}
	if strings.ContainsAny(f.File+f.Store, "\r\n") {
		return fmt.Errorf("field %q: source reference contains a line break", f.Name)
	}
	return nil
}
