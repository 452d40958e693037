package stream

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readerOnly hides every interface but io.Reader.
type readerOnly struct{ r io.Reader }

func (r readerOnly) Read(p []byte) (int, error) { return r.r.Read(p) }

// spyCloser tracks Close calls on an in-memory reader.
type spyCloser struct {
	*strings.Reader
	closed int
}

func (s *spyCloser) Close() error { s.closed++; return nil }

func mustRead(t *testing.T, s io.Reader, n int) string {
	t.Helper()
	buf := make([]byte, n)
	got, err := s.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Read failed: %v", err)
	}
	return string(buf[:got])
}

func TestFromString_ReadsContinuously(t *testing.T) {
	s := FromString("foobar")

	if got := mustRead(t, s, 3); got != "foo" {
		t.Errorf("first read = %q, want foo", got)
	}
	if got := mustRead(t, s, 10); got != "bar" {
		t.Errorf("second read = %q, want bar", got)
	}
	if !s.EOF() {
		t.Error("expected EOF after draining")
	}

	n, err := s.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Errorf("read at end = (%d, %v), want (0, io.EOF)", n, err)
	}
	if s.Tell() != 6 {
		t.Errorf("Tell() = %d, want 6", s.Tell())
	}
}

func TestFromBytes_Capabilities(t *testing.T) {
	s := FromBytes([]byte("abc"))
	if !s.Readable() || !s.Writable() || !s.Seekable() {
		t.Fatalf("in-memory stream must be readable, writable and seekable")
	}
	n, ok := s.Length()
	if !ok || n != 3 {
		t.Errorf("Length() = (%d, %v), want (3, true)", n, ok)
	}
}

func TestNew_UnsupportedHandle(t *testing.T) {
	_, err := New(42, Config{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNew_ReadOnlyHandle(t *testing.T) {
	s, err := New(strings.NewReader("hello"), Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Writable() {
		t.Error("strings.Reader must not be writable")
	}
	if _, err := s.Write([]byte("x")); !errors.Is(err, ErrNotWritable) {
		t.Errorf("expected ErrNotWritable, got %v", err)
	}
	if !s.Seekable() {
		t.Error("strings.Reader must be seekable")
	}
}

func TestNew_NonSeekableHandle(t *testing.T) {
	s, err := New(readerOnly{strings.NewReader("hello")}, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Seekable() {
		t.Fatal("reader without Seek must not be seekable")
	}
	if _, ok := s.Length(); ok {
		t.Error("Length must be unknown for a non-seekable stream")
	}
	if _, err := s.Seek(0, io.SeekStart); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable, got %v", err)
	}
	if _, err := s.Clone(); !errors.Is(err, ErrNotCloneable) {
		t.Errorf("expected ErrNotCloneable, got %v", err)
	}

	data, err := s.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Contents() = %q, want hello", data)
	}
	again, _ := s.Contents()
	if len(again) != 0 {
		t.Errorf("non-seekable Contents must be one-shot, got %q", again)
	}
}

func TestNew_StartRequiresSeekable(t *testing.T) {
	_, err := New(readerOnly{strings.NewReader("hello")}, Config{Start: 2})
	if !errors.Is(err, ErrNotSeekable) {
		t.Fatalf("expected ErrNotSeekable, got %v", err)
	}
}

func TestNew_StartRewinds(t *testing.T) {
	s, err := New(strings.NewReader("foobar"), Config{Start: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := mustRead(t, s, 10); got != "bar" {
		t.Errorf("read = %q, want bar", got)
	}
	n, _ := s.Length()
	if n != 3 {
		t.Errorf("Length() = %d, want 3", n)
	}
}

func TestResource_Range(t *testing.T) {
	s := FromString("abcdefgh")
	if got := s.Range(); got != "0-" {
		t.Errorf("Range() = %q, want 0-", got)
	}

	if err := s.SetRange("2-5"); err != nil {
		t.Fatalf("SetRange failed: %v", err)
	}
	if got := s.Range(); got != "2-5" {
		t.Errorf("Range() = %q, want 2-5", got)
	}
	if limit, ok := s.Limit(); !ok || limit != 3 {
		t.Errorf("Limit() = (%d, %v), want (3, true)", limit, ok)
	}
	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	data, err := s.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if string(data) != "cde" {
		t.Errorf("Flush() = %q, want cde", data)
	}
	if !s.EOF() {
		t.Error("expected EOF at range end")
	}

	if err := s.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if s.Tell() != 5 {
		t.Errorf("Tell() after End = %d, want 5", s.Tell())
	}

	for _, bad := range []string{"abc", "x-3", "5-2"} {
		if err := s.SetRange(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetRange(%q): expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}

func TestResource_ReadLine(t *testing.T) {
	s := FromString("foo\nbar\nbaz")
	for _, want := range []string{"foo", "bar", "baz"} {
		line, err := s.ReadLine(0, nil)
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if string(line) != want {
			t.Errorf("ReadLine() = %q, want %q", line, want)
		}
	}
	if _, err := s.ReadLine(0, nil); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}

	s = FromString("a|b|c")
	line, _ := s.ReadLine(0, []byte("|"))
	if string(line) != "a" {
		t.Errorf("custom ending: got %q, want a", line)
	}

	s = FromString("abcdef")
	line, _ = s.ReadLine(2, nil)
	if string(line) != "ab" {
		t.Errorf("max length: got %q, want ab", line)
	}
}

func TestResource_WriteOverwrites(t *testing.T) {
	s := FromString("foo")
	if _, err := s.Write([]byte("ba")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	data, _ := s.Flush()
	if string(data) != "bao" {
		t.Errorf("content = %q, want bao", data)
	}
}

func TestResource_PushKeepsCursor(t *testing.T) {
	s := FromString("")
	if _, err := s.Push([]byte("hello")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if s.Tell() != 0 {
		t.Errorf("Tell() after Push = %d, want 0", s.Tell())
	}
	if got := mustRead(t, s, 10); got != "hello" {
		t.Errorf("read = %q, want hello", got)
	}
}

func TestResource_Append(t *testing.T) {
	s := FromString("foo")
	if _, err := s.Append([]byte("bar")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	_ = s.Rewind()
	data, _ := s.Flush()
	if string(data) != "foobar" {
		t.Errorf("content = %q, want foobar", data)
	}
}

func TestResource_Pipe(t *testing.T) {
	src := FromString("payload")
	dst := FromString("")

	n, err := src.Pipe(dst)
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	if n != 7 {
		t.Errorf("piped %d bytes, want 7", n)
	}
	if dst.Tell() != 0 {
		t.Errorf("destination must be rewound, Tell() = %d", dst.Tell())
	}
	data, _ := dst.Flush()
	if string(data) != "payload" {
		t.Errorf("destination = %q, want payload", data)
	}
}

func TestResource_ContentsRestoresOffset(t *testing.T) {
	s := FromString("foobar")
	mustRead(t, s, 3)

	data, err := s.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if string(data) != "bar" {
		t.Errorf("Contents() = %q, want bar", data)
	}
	if s.Tell() != 3 {
		t.Errorf("Tell() = %d, want 3", s.Tell())
	}
	again, _ := s.Contents()
	if string(again) != "bar" {
		t.Errorf("second Contents() = %q, want bar", again)
	}
}

func TestResource_CloseIsIdempotent(t *testing.T) {
	h := &spyCloser{Reader: strings.NewReader("x")}
	s, err := New(h, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if h.closed != 1 {
		t.Errorf("handle closed %d times, want 1", h.closed)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if !s.EOF() {
		t.Error("closed stream must report EOF")
	}
}

func TestResource_DetachLeavesHandleOpen(t *testing.T) {
	h := &spyCloser{Reader: strings.NewReader("x")}
	s, _ := New(h, Config{})

	if err := s.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if h.closed != 0 {
		t.Error("Detach must not close the handle")
	}
	if s.Valid() {
		t.Error("detached stream must be invalid")
	}
	if _, err := s.Resource(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close after Detach failed: %v", err)
	}
	if h.closed != 0 {
		t.Error("Close after Detach must not reach the handle")
	}
}

func TestResource_CloneIsIndependent(t *testing.T) {
	s := FromString("foobar")
	s.SetMime("text/plain")
	mustRead(t, s, 2)

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if c.Tell() != 2 {
		t.Errorf("clone Tell() = %d, want 2", c.Tell())
	}
	if c.(*Resource).Mime() != "text/plain" {
		t.Errorf("clone lost its mime")
	}

	if _, err := c.Write([]byte("XX")); err != nil {
		t.Fatalf("clone Write failed: %v", err)
	}
	data, _ := s.Contents()
	if string(data) != "obar" {
		t.Errorf("original changed by clone write: %q", data)
	}

	cc, err := c.Clone()
	if err != nil {
		t.Fatalf("clone of clone failed: %v", err)
	}
	_ = c.Close()
	_ = cc.Rewind()
	all, _ := cc.(*Resource).Flush()
	if string(all) != "foXXar" {
		t.Errorf("clone of clone = %q, want foXXar", all)
	}
}

func TestOpen_ReadOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("file content"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, err := Open(path, os.O_RDONLY, 0, Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if s.Writable() {
		t.Error("O_RDONLY file must not be writable")
	}
	if _, err := s.Write([]byte("x")); !errors.Is(err, ErrNotWritable) {
		t.Errorf("expected ErrNotWritable, got %v", err)
	}
	n, ok := s.Length()
	if !ok || n != 12 {
		t.Errorf("Length() = (%d, %v), want (12, true)", n, ok)
	}
	data, err := s.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if string(data) != "file content" {
		t.Errorf("Contents() = %q", data)
	}
}

func TestOpen_WriteOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s, err := Open(path, os.O_WRONLY|os.O_CREATE, 0o600, Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if s.Readable() {
		t.Error("O_WRONLY file must not be readable")
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrNotReadable) {
		t.Errorf("expected ErrNotReadable, got %v", err)
	}
}

func TestResource_SetTimeout(t *testing.T) {
	if err := FromString("x").SetTimeout(1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("memory stream: expected ErrNotSupported, got %v", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	t.Cleanup(func() { _ = pw.Close() })

	s, err := New(pr, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.SetTimeout(50_000_000); err != nil {
		t.Fatalf("SetTimeout failed: %v", err)
	}
	if s.Timeout() == 0 {
		t.Error("timeout not recorded")
	}
}
