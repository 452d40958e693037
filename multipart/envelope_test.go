package multipart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/mstream/stream"
)

const envelopeHeader = "Content-Type: multipart/mixed;\r\n\tboundary=\"boundary\"\r\n\r\n"

func newEnvelope(t *testing.T) *Envelope {
	t.Helper()
	e, err := NewEnvelope(Config{Boundary: "boundary"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewEnvelope(t *testing.T) {
	e, err := NewEnvelope(Config{})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	defer e.Close()

	if e.Mime() != EnvelopeMime {
		t.Errorf("Mime() = %q, want %q", e.Mime(), EnvelopeMime)
	}
	if e.Writable() || !e.Readable() || !e.Seekable() {
		t.Error("unexpected capabilities")
	}

	want := "Content-Type: multipart/mixed;\r\n\tboundary=\"" + e.Boundary() + "\"\r\n\r\n--" + e.Boundary() + "--\r\n"
	if diff := cmp.Diff(want, flush(t, e)); diff != "" {
		t.Errorf("empty envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvelope_SetMime(t *testing.T) {
	e := newEnvelope(t)
	e.SetMime("multipart/alternative")
	if got := e.Header(); got != "Content-Type: multipart/alternative;\r\n\tboundary=\"boundary\"\r\n\r\n" {
		t.Errorf("Header() = %q", got)
	}
	e.SetMime("")
	if e.Mime() != EnvelopeMime {
		t.Errorf("SetMime(\"\") must restore multipart/mixed, got %q", e.Mime())
	}
}

func TestEnvelope_Serialization(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldOptions
		data   []string
		want   string
	}{
		{
			name:   "overwrites mime",
			fields: []FieldOptions{{Name: "foo", Disposition: "inline", Mime: "image/png"}},
			data:   []string{"bar"},
			want: "--boundary\r\n" +
				"Content-Disposition: inline; name=\"foo\"\r\n" +
				"Content-Type: image/png\r\n" +
				"Content-Transfer-Encoding: base64\r\n" +
				"\r\n" +
				"YmFy\r\n" +
				"--boundary--\r\n",
		},
		{
			name:   "custom headers",
			fields: []FieldOptions{{Name: "foo", Disposition: "form-data", Headers: []string{`x-foo: "bar"`}}},
			data:   []string{"bar"},
			want: "--boundary\r\n" +
				"x-foo: \"bar\"\r\n" +
				"Content-Disposition: form-data; name=\"foo\"\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"bar\r\n" +
				"--boundary--\r\n",
		},
		{
			name:   "attachment disposition",
			fields: []FieldOptions{{Name: "foo", Disposition: "attachment"}},
			data:   []string{"bar"},
			want: "--boundary\r\n" +
				"Content-Disposition: attachment; name=\"foo\"\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"bar\r\n" +
				"--boundary--\r\n",
		},
		{
			name: "two fields",
			fields: []FieldOptions{
				{Name: "foo", Disposition: "form-data"},
				{Name: "baz", Disposition: "form-data"},
			},
			data: []string{"bar", "bam"},
			want: "--boundary\r\n" +
				"Content-Disposition: form-data; name=\"foo\"\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"bar\r\n" +
				"--boundary\r\n" +
				"Content-Disposition: form-data; name=\"baz\"\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"bam\r\n" +
				"--boundary--\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnvelope(t)
			for i, opts := range tt.fields {
				if _, err := e.Add(stream.Text(tt.data[i]), opts); err != nil {
					t.Fatalf("Add failed: %v", err)
				}
			}
			if diff := cmp.Diff(envelopeHeader+tt.want, flush(t, e)); diff != "" {
				t.Errorf("serialization mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvelope_RenderMatchesFlush(t *testing.T) {
	e := newEnvelope(t)
	if _, err := e.Add(stream.Text("bar"), FieldOptions{Name: "foo", Mime: "image/png"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	want := flush(t, e)

	r, err := e.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	defer r.Close()

	got, err := r.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Render mismatch (-flush +render):\n%s", diff)
	}

	contents, err := e.Contents()
	if err != nil || string(contents) != want {
		t.Errorf("Contents() = %q, %v", contents, err)
	}
}

func TestEnvelope_Clone(t *testing.T) {
	e := newEnvelope(t)
	e.SetMime("multipart/related")
	if _, err := e.Add(stream.Text("bar"), FieldOptions{Name: "foo", Mime: "image/png"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	c, err := e.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	defer c.Close()

	if diff := cmp.Diff(flush(t, e), flush(t, c)); diff != "" {
		t.Errorf("clone mismatch (-orig +clone):\n%s", diff)
	}
}

func TestEnvelope_ForbiddenOperations(t *testing.T) {
	e := newEnvelope(t)
	if _, err := e.Read(make([]byte, 5)); !errors.Is(err, stream.ErrNotSupported) {
		t.Errorf("Read: expected ErrNotSupported, got %v", err)
	}
	if _, err := e.Write([]byte("hello")); !errors.Is(err, stream.ErrNotWritable) {
		t.Errorf("Write: expected ErrNotWritable, got %v", err)
	}
	if _, err := e.Length(); !errors.Is(err, stream.ErrNotSupported) {
		t.Errorf("Length: expected ErrNotSupported, got %v", err)
	}
	if _, err := e.Add(stream.Text("x"), FieldOptions{}); !errors.Is(err, stream.ErrInvalidArgument) {
		t.Errorf("Add without name: expected ErrInvalidArgument, got %v", err)
	}
}
