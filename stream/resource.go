package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config configures a Resource.
type Config struct {
	// Mime is the stream MIME type. Empty leaves it unset unless DetectMime
	// is true.
	Mime string
	// DetectMime sniffs the MIME type from the first bytes of the resource.
	DetectMime bool
	// Start is the offset the stream rewinds to (default 0).
	// A non-zero start requires a seekable resource.
	Start int64
	// Limit caps the readable range to Limit bytes past Start.
	// Nil means no limit.
	Limit *int64
	// BufferSize is the default chunk size for line reads (default 4096).
	BufferSize int
}

type sizer interface {
	Size() int64
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Resource is a Stream over a single underlying resource.
//
// Capabilities are derived from the handle: it is readable when it
// implements io.Reader, writable when it implements io.Writer and seekable
// when it implements io.Seeker and a probe seek succeeds.
type Resource struct {
	handle any
	r      io.Reader
	w      io.Writer
	s      io.Seeker
	c      io.Closer

	readable bool
	writable bool
	seekable bool

	start      int64
	limit      int64
	hasLimit   bool
	bufferSize int
	mime       string
	timeout    time.Duration

	pos   int64
	eof   bool
	valid bool
}

// Verify Resource implements Stream.
var _ Stream = (*Resource)(nil)

// New wraps handle into a Resource.
// Fails with ErrInvalidArgument when the handle is neither a reader nor a
// writer, and with ErrNotSeekable when cfg.Start is set on a non-seekable
// handle.
func New(handle any, cfg Config) (*Resource, error) {
	r := &Resource{handle: handle, valid: true}

	r.r, r.readable = handle.(io.Reader)
	r.w, r.writable = handle.(io.Writer)
	r.c, _ = handle.(io.Closer)
	if !r.readable && !r.writable {
		return nil, NewError(ErrInvalidArgument, "new", fmt.Sprintf("unsupported resource type %T", handle))
	}
	if s, ok := handle.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			r.s = s
			r.seekable = true
			r.pos = pos
		}
	}

	if err := r.configure(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// FromBytes returns a readable, writable and seekable in-memory stream
// holding a copy of b, positioned at its start.
func FromBytes(b []byte) *Resource {
	m := &memory{buf: append([]byte(nil), b...)}
	return &Resource{
		handle:     m,
		r:          m,
		w:          m,
		s:          m,
		readable:   true,
		writable:   true,
		seekable:   true,
		bufferSize: DefaultBufferSize,
		valid:      true,
	}
}

// FromString returns an in-memory stream holding s.
func FromString(s string) *Resource {
	return FromBytes([]byte(s))
}

// Open opens the named file and wraps it. Capabilities follow the open
// flag: O_RDONLY is read only, O_WRONLY write only, O_RDWR both.
func Open(path string, flag int, perm os.FileMode, cfg Config) (*Resource, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	r, err := New(f, Config{})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_WRONLY:
		r.readable = false
	case os.O_RDONLY:
		r.writable = false
	}
	if err := r.configure(cfg); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Resource) configure(cfg Config) error {
	r.bufferSize = cfg.BufferSize
	if r.bufferSize <= 0 {
		r.bufferSize = DefaultBufferSize
	}
	r.start = cfg.Start
	if cfg.Limit != nil {
		r.limit, r.hasLimit = *cfg.Limit, true
	}
	if r.start > 0 {
		if !r.seekable {
			return NewError(ErrNotSeekable, "new", "a start offset requires a seekable resource")
		}
		if err := r.Rewind(); err != nil {
			return err
		}
	}
	r.mime = cfg.Mime
	if r.mime == "" && cfg.DetectMime {
		mt, err := r.DetectMime()
		if err != nil {
			return err
		}
		r.mime = mt
	}
	return nil
}

// Resource returns the wrapped handle.
func (r *Resource) Resource() (any, error) {
	if !r.valid {
		return nil, NewError(ErrClosed, "resource", "invalid resource")
	}
	return r.handle, nil
}

// Valid reports whether the resource is still attached.
func (r *Resource) Valid() bool { return r.valid }

func (r *Resource) Readable() bool { return r.valid && r.readable }
func (r *Resource) Writable() bool { return r.valid && r.writable }
func (r *Resource) Seekable() bool { return r.valid && r.seekable }

// BufferSize returns the default chunk size.
func (r *Resource) BufferSize() int { return r.bufferSize }

// SetBufferSize changes the default chunk size. Non-positive values are
// ignored.
func (r *Resource) SetBufferSize(n int) {
	if n > 0 {
		r.bufferSize = n
	}
}

// Start returns the offset the stream rewinds to.
func (r *Resource) Start() int64 { return r.start }

// SetStart changes the start offset and rewinds to it.
func (r *Resource) SetStart(start int64) error {
	r.start = start
	return r.Rewind()
}

// Limit returns the range limit. ok is false when no limit is set.
func (r *Resource) Limit() (n int64, ok bool) { return r.limit, r.hasLimit }

// SetLimit sets the range limit. A negative value removes it.
func (r *Resource) SetLimit(n int64) {
	if n < 0 {
		r.limit, r.hasLimit = 0, false
		return
	}
	r.limit, r.hasLimit = n, true
}

// Range returns the range as "start-end", with an empty end when no limit
// is set.
func (r *Resource) Range() string {
	if !r.hasLimit {
		return fmt.Sprintf("%d-", r.start)
	}
	return fmt.Sprintf("%d-%d", r.start, r.start+r.limit)
}

// SetRange parses a "start-end" range. An empty end removes the limit.
// The cursor is not moved.
func (r *Resource) SetRange(rng string) error {
	from, to, ok := strings.Cut(rng, "-")
	if !ok {
		return NewError(ErrInvalidArgument, "range", fmt.Sprintf("malformed range %q", rng))
	}
	start, err := strconv.ParseInt(strings.TrimSpace(from), 10, 64)
	if err != nil || start < 0 {
		return NewError(ErrInvalidArgument, "range", fmt.Sprintf("malformed range start %q", from))
	}
	to = strings.TrimSpace(to)
	if to == "" {
		r.start, r.limit, r.hasLimit = start, 0, false
		return nil
	}
	end, err := strconv.ParseInt(to, 10, 64)
	if err != nil || end < start {
		return NewError(ErrInvalidArgument, "range", fmt.Sprintf("malformed range end %q", to))
	}
	r.start, r.limit, r.hasLimit = start, end-start, true
	return nil
}

// Mime returns the stream MIME type.
func (r *Resource) Mime() string { return r.mime }

// SetMime sets the stream MIME type.
func (r *Resource) SetMime(mime string) { r.mime = mime }

// Timeout returns the per operation timeout, zero when unset.
func (r *Resource) Timeout() time.Duration { return r.timeout }

// SetTimeout sets a deadline applied before every read and write.
// Fails with ErrNotSupported when the handle has no deadline support.
func (r *Resource) SetTimeout(d time.Duration) error {
	if !r.valid {
		return NewError(ErrClosed, "timeout", "unable to set a timeout on an invalid resource")
	}
	_, rd := r.handle.(readDeadliner)
	_, wd := r.handle.(writeDeadliner)
	if !rd && !wd {
		return NewError(ErrNotSupported, "timeout", fmt.Sprintf("%T has no deadline support", r.handle))
	}
	r.timeout = d
	return nil
}

func (r *Resource) checkReadable(op string) error {
	if !r.valid {
		return NewError(ErrClosed, op, "cannot read from a closed stream")
	}
	if !r.readable {
		return NewError(ErrNotReadable, op, "cannot read on a non-readable stream")
	}
	return nil
}

func (r *Resource) checkWritable(op string) error {
	if !r.valid {
		return NewError(ErrClosed, op, "cannot write on a closed stream")
	}
	if !r.writable {
		return NewError(ErrNotWritable, op, "cannot write on a non-writable stream")
	}
	return nil
}

func (r *Resource) checkSeekable(op string) error {
	if !r.valid {
		return NewError(ErrClosed, op, "cannot seek on a closed stream")
	}
	if !r.seekable {
		return NewError(ErrNotSeekable, op, "cannot seek on a non-seekable stream")
	}
	return nil
}

// Read reads up to len(p) bytes, honoring the range limit.
func (r *Resource) Read(p []byte) (int, error) {
	if err := r.checkReadable("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.hasLimit {
		remaining := r.start + r.limit - r.pos
		if remaining <= 0 {
			r.eof = true
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	if r.timeout > 0 {
		if d, ok := r.handle.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(r.timeout))
		}
	}

	n, err := r.r.Read(p)
	r.pos += int64(n)
	if err == io.EOF {
		r.eof = true
		if n > 0 {
			return n, nil
		}
	}
	return n, err
}

// ReadLine reads until ending, max bytes or the end of the stream.
// The ending is consumed but not returned. max <= 0 uses the buffer size.
// Returns io.EOF when nothing is left to read.
func (r *Resource) ReadLine(max int, ending []byte) ([]byte, error) {
	if err := r.checkReadable("readline"); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = r.bufferSize
	}
	if len(ending) == 0 {
		ending = []byte{'\n'}
	}
	var line []byte
	var b [1]byte
	for len(line) < max {
		n, err := r.Read(b[:])
		if n == 1 {
			line = append(line, b[0])
			if bytes.HasSuffix(line, ending) {
				return line[:len(line)-len(ending)], nil
			}
		}
		if err == io.EOF || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return line, err
		}
	}
	if len(line) == 0 && r.EOF() {
		return nil, io.EOF
	}
	return line, nil
}

// Write writes p at the cursor.
func (r *Resource) Write(p []byte) (int, error) {
	if err := r.checkWritable("write"); err != nil {
		return 0, err
	}
	if r.timeout > 0 {
		if d, ok := r.handle.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(r.timeout))
		}
	}
	n, err := r.w.Write(p)
	r.pos += int64(n)
	r.eof = false
	return n, err
}

// Push writes p and restores the cursor to where it was.
func (r *Resource) Push(p []byte) (int, error) {
	if err := r.checkWritable("push"); err != nil {
		return 0, err
	}
	if err := r.checkSeekable("push"); err != nil {
		return 0, err
	}
	old := r.pos
	n, err := r.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := r.Seek(old, io.SeekStart); err != nil {
		return n, err
	}
	return n, nil
}

// Append moves to the end of the stream and writes p.
func (r *Resource) Append(p []byte) (int, error) {
	if err := r.End(); err != nil {
		return 0, err
	}
	return r.Write(p)
}

// Pipe copies the remaining bytes into dst and rewinds dst.
func (r *Resource) Pipe(dst Stream) (int64, error) {
	if err := r.checkReadable("pipe"); err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return n, err
	}
	if dst.Seekable() {
		if err := dst.Rewind(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Flush returns the remaining bytes of the stream.
func (r *Resource) Flush() ([]byte, error) {
	if err := r.checkReadable("flush"); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Contents returns the remaining bytes. A seekable stream is restored to
// its current offset so it can be read again; a non-seekable one is
// consumed.
func (r *Resource) Contents() ([]byte, error) {
	if !r.Seekable() {
		return r.Flush()
	}
	old := r.pos
	data, err := r.Flush()
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(old, io.SeekStart); err != nil {
		return nil, err
	}
	return data, nil
}

// Seek moves the cursor. Offsets are absolute within the resource.
func (r *Resource) Seek(offset int64, whence int) (int64, error) {
	if err := r.checkSeekable("seek"); err != nil {
		return 0, err
	}
	pos, err := r.s.Seek(offset, whence)
	if err != nil {
		return r.pos, WrapError(ErrInvalidArgument, "seek", err)
	}
	r.pos = pos
	r.eof = false
	return pos, nil
}

// Rewind moves the cursor to the start offset.
func (r *Resource) Rewind() error {
	_, err := r.Seek(r.start, io.SeekStart)
	return err
}

// End moves the cursor to the end of the stream, or of the range when a
// limit is set.
func (r *Resource) End() error {
	if r.hasLimit {
		_, err := r.Seek(r.start+r.limit, io.SeekStart)
		return err
	}
	_, err := r.Seek(0, io.SeekEnd)
	return err
}

// Tell returns the cursor position.
func (r *Resource) Tell() int64 { return r.pos }

// EOF reports whether the end of the stream or range has been reached.
func (r *Resource) EOF() bool {
	if !r.valid {
		return true
	}
	if r.hasLimit && r.pos >= r.start+r.limit {
		return true
	}
	if r.eof {
		return true
	}
	if sz, ok := r.handle.(sizer); ok && r.seekable {
		return r.pos >= sz.Size()
	}
	return false
}

// Length returns the byte length of the stream, or of its range.
func (r *Resource) Length() (int64, bool) {
	if !r.Seekable() {
		return 0, false
	}
	if r.hasLimit {
		return r.limit, true
	}
	var size int64
	if sz, ok := r.handle.(sizer); ok {
		size = sz.Size()
	} else {
		end, err := r.s.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false
		}
		if _, err := r.s.Seek(r.pos, io.SeekStart); err != nil {
			return 0, false
		}
		size = end
	}
	if size < r.start {
		return 0, true
	}
	return size - r.start, true
}

// Detach releases the underlying handle without closing it.
func (r *Resource) Detach() error {
	r.invalidate()
	return nil
}

// Close closes the underlying handle. Closing twice is a no-op.
func (r *Resource) Close() error {
	if !r.valid {
		return nil
	}
	c := r.c
	r.invalidate()
	if c != nil {
		return c.Close()
	}
	return nil
}

func (r *Resource) invalidate() {
	r.valid = false
	r.handle, r.r, r.w, r.s, r.c = nil, nil, nil, nil, nil
}

// Clone replays the stream range into a fresh in-memory stream with the
// same cursor, MIME type and buffer size.
func (r *Resource) Clone() (Stream, error) {
	if !r.valid {
		return nil, NewError(ErrClosed, "clone", "cannot clone a closed stream")
	}
	if !r.seekable || !r.readable {
		return nil, NewError(ErrNotCloneable, "clone", "cannot replay a non-seekable stream")
	}
	old := r.pos
	if err := r.Rewind(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(old, io.SeekStart); err != nil {
		return nil, err
	}

	c := FromBytes(data)
	c.mime = r.mime
	c.bufferSize = r.bufferSize
	rel := old - r.start
	if rel < 0 {
		rel = 0
	}
	if _, err := c.Seek(rel, io.SeekStart); err != nil {
		return nil, err
	}
	return c, nil
}
