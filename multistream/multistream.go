// Package multistream concatenates an ordered list of streams into a single
// readable stream.
//
// Reads cross part boundaries transparently. Seeking is only supported to an
// absolute offset and is implemented by rewinding every part and replaying
// reads up to the target, which costs O(offset) but works over any seekable
// parts without index bookkeeping.
package multistream

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"go.uber.org/multierr"

	"github.com/pithecene-io/mstream/iox"
	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/stream"
)

// seekChunkSize caps each replayed read during Seek.
const seekChunkSize = 8096

// Config configures a MultiStream.
type Config struct {
	// BufferSize is the chunk size used by Flush (default 4096).
	BufferSize int
	// Writable enables Write and Append, which delegate to the current part.
	// A plain concatenation is read only.
	Writable bool
	// Logger receives part lifecycle events at debug level. Nil discards.
	Logger *log.Logger
	// Metrics records parts, reads and seeks. Nil disables.
	Metrics *metrics.Collector
}

// MultiStream reads from multiple streams, one after the other.
//
// It owns every part added to it: Close and Detach close or detach all
// parts. A MultiStream is itself a stream.Stream and can be added as a part
// of another container.
type MultiStream struct {
	parts    []stream.Stream
	current  int
	offset   int64
	seekable bool
	// started is set once the current part has been read from or written
	// to. Insert uses it to decide whether a part added at the current
	// index comes before or after the read position.
	started  bool

	bufferSize int
	writable   bool
	logger     *log.Logger
	metrics    *metrics.Collector
}

// Verify MultiStream implements stream.Stream.
var _ stream.Stream = (*MultiStream)(nil)

// New creates an empty MultiStream.
func New(cfg Config) *MultiStream {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = stream.DefaultBufferSize
	}
	return &MultiStream{
		seekable:   true,
		bufferSize: cfg.BufferSize,
		writable:   cfg.Writable,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Add appends a part.
// Fails with ErrInvalidArgument when the resulting stream is not readable.
func (m *MultiStream) Add(p stream.Payload) error {
	return m.Insert(len(m.parts), p)
}

// Insert adds a part at index i, shifting later parts back.
// i == Len() appends.
func (m *MultiStream) Insert(i int, p stream.Payload) error {
	if i < 0 || i > len(m.parts) {
		return indexError("insert", i)
	}
	s, err := p.Open()
	if err != nil {
		return err
	}
	if !s.Readable() {
		return stream.NewError(stream.ErrInvalidArgument, "add", "cannot append a non-readable stream")
	}
	// Seekability is never restored, even when the part is removed later.
	if !s.Seekable() {
		m.seekable = false
	}

	if i < m.current || (i == m.current && m.started) {
		m.current++
	}
	m.parts = slices.Insert(m.parts, i, s)

	m.metrics.IncPartAdded()
	m.logger.Debug("part added", map[string]any{
		"index":    i,
		"parts":    len(m.parts),
		"seekable": s.Seekable(),
	})
	return nil
}

// Has reports whether a part exists at index i.
func (m *MultiStream) Has(i int) bool {
	return i >= 0 && i < len(m.parts)
}

// Get returns the part at index i.
func (m *MultiStream) Get(i int) (stream.Stream, error) {
	if !m.Has(i) {
		return nil, indexError("get", i)
	}
	return m.parts[i], nil
}

// Remove takes the part at index i out of the container and hands its
// ownership back to the caller. Later parts keep their relative order.
func (m *MultiStream) Remove(i int) (stream.Stream, error) {
	if !m.Has(i) {
		return nil, indexError("remove", i)
	}
	s := m.parts[i]
	m.parts = slices.Delete(m.parts, i, i+1)

	switch {
	case i < m.current:
		m.current--
	case m.current >= len(m.parts) && m.current > 0:
		// The previous part was drained before the cursor moved past it.
		m.current = len(m.parts) - 1
		m.started = true
	case i == m.current:
		m.started = false
	}

	m.metrics.IncPartRemoved()
	m.logger.Debug("part removed", map[string]any{"index": i, "parts": len(m.parts)})
	return s, nil
}

// Len returns the number of parts.
func (m *MultiStream) Len() int { return len(m.parts) }

// Parts returns the parts in read order. The slice is a copy; the streams
// are still owned by the container.
func (m *MultiStream) Parts() []stream.Stream {
	return slices.Clone(m.parts)
}

func indexError(op string, i int) error {
	return stream.NewError(stream.ErrIndexNotFound, op, fmt.Sprintf("unexisting stream index %d", i))
}

func (m *MultiStream) Readable() bool { return true }
func (m *MultiStream) Writable() bool { return m.writable }
func (m *MultiStream) Seekable() bool { return m.seekable }

// Read reads up to len(p) bytes, moving to the next part whenever the
// current one is exhausted. Returns io.EOF with zero bytes at the end of
// the last part.
func (m *MultiStream) Read(p []byte) (int, error) {
	n, err := m.read(p)
	m.metrics.AddBytesRead(int64(n))
	return n, err
}

func (m *MultiStream) read(p []byte) (int, error) {
	if len(m.parts) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	last := len(m.parts) - 1
	total := 0
	advance := false
	for total < len(p) {
		if advance || m.parts[m.current].EOF() {
			advance = false
			if m.current == last {
				break
			}
			m.current++
			m.started = false
		}

		n, err := m.parts[m.current].Read(p[total:])
		total += n
		if n > 0 {
			m.started = true
		}
		if err != nil && err != io.EOF {
			m.offset += int64(total)
			return total, err
		}
		// A zero-byte read moves on so a stalled part cannot spin forever.
		if n == 0 {
			advance = true
		}
	}

	m.offset += int64(total)
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// EOF reports whether the last part has been drained. An empty container
// is always at EOF.
func (m *MultiStream) EOF() bool {
	if len(m.parts) == 0 {
		return true
	}
	return m.current >= len(m.parts)-1 && m.parts[m.current].EOF()
}

// Seek moves to an absolute offset by rewinding every part and replaying
// reads. Seek(0, io.SeekEnd) is equivalent to End; every other whence
// fails with ErrInvalidArgument. A target past the end stops at the end.
func (m *MultiStream) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekEnd && offset == 0 {
		if err := m.End(); err != nil {
			return m.offset, err
		}
		return m.offset, nil
	}
	if whence != io.SeekStart {
		return m.offset, stream.NewError(stream.ErrInvalidArgument, "seek", "this seek operation is not supported on a multi stream container")
	}
	if !m.seekable {
		return m.offset, stream.NewError(stream.ErrNotSeekable, "seek", "multi stream container is not seekable")
	}
	if offset < 0 {
		return m.offset, stream.NewError(stream.ErrInvalidArgument, "seek", fmt.Sprintf("negative offset %d", offset))
	}

	m.current, m.offset, m.started = 0, 0, false
	for i, part := range m.parts {
		if err := part.Rewind(); err != nil {
			return 0, stream.WrapError(stream.ErrNotSeekable, "seek", fmt.Errorf("rewind part %d: %w", i, err))
		}
	}

	if offset > 0 {
		buf := make([]byte, min(seekChunkSize, offset))
		for m.offset < offset && !m.EOF() {
			n, err := m.read(buf[:min(int64(len(buf)), offset-m.offset)])
			if err == io.EOF || n == 0 {
				break
			}
			if err != nil {
				return m.offset, err
			}
		}
	}

	m.metrics.RecordSeek(m.offset)
	return m.offset, nil
}

// Rewind moves back to offset 0.
func (m *MultiStream) Rewind() error {
	_, err := m.Seek(0, io.SeekStart)
	return err
}

// End moves to the end of the last part. Tell reports the total length
// afterwards when every part length is known.
func (m *MultiStream) End() error {
	if len(m.parts) == 0 {
		return stream.NewError(stream.ErrEmptyContainer, "end", "the stream container is empty")
	}
	if !m.seekable {
		return stream.NewError(stream.ErrNotSeekable, "end", "multi stream container is not seekable")
	}
	m.current = len(m.parts) - 1
	m.started = true
	if err := m.parts[m.current].End(); err != nil {
		return err
	}
	if n, ok := m.Length(); ok {
		m.offset = n
	}
	return nil
}

// Tell returns the number of bytes consumed since offset 0.
func (m *MultiStream) Tell() int64 { return m.offset }

// Write writes p into the current part.
// Fails with ErrNotWritable unless the container was configured writable,
// and with ErrEmptyContainer when there are no parts.
func (m *MultiStream) Write(p []byte) (int, error) {
	if !m.writable {
		return 0, stream.NewError(stream.ErrNotWritable, "write", "multi stream container is not writable")
	}
	if len(m.parts) == 0 {
		return 0, stream.NewError(stream.ErrEmptyContainer, "write", "the stream container is empty no write operation is possible")
	}
	n, err := m.parts[m.current].Write(p)
	m.offset += int64(n)
	if n > 0 {
		m.started = true
	}
	return n, err
}

// Append moves to the end and writes p into the last part.
func (m *MultiStream) Append(p []byte) (int, error) {
	if !m.writable {
		return 0, stream.NewError(stream.ErrNotWritable, "append", "multi stream container is not writable")
	}
	if err := m.End(); err != nil {
		return 0, err
	}
	return m.Write(p)
}

// Length sums the part lengths. ok is false as soon as one part length is
// unknown.
func (m *MultiStream) Length() (int64, bool) {
	var total int64
	for _, part := range m.parts {
		n, ok := part.Length()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// Flush returns the remaining bytes, reading until EOF.
func (m *MultiStream) Flush() ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, m.bufferSize)
	for !m.EOF() {
		n, err := m.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
	return buf.Bytes(), nil
}

// Contents returns the whole content when seekable. A non-seekable
// container is flushed from its current position, which consumes it.
func (m *MultiStream) Contents() ([]byte, error) {
	if m.seekable {
		if err := m.Rewind(); err != nil {
			return nil, err
		}
	}
	return m.Flush()
}

// Detach detaches every part and empties the container. Safe to call twice.
func (m *MultiStream) Detach() error {
	var err error
	for _, part := range m.parts {
		err = multierr.Append(err, part.Detach())
	}
	m.reset()
	return err
}

// Close closes every part and empties the container. Every part is closed
// even when some fail; the failures are combined. Safe to call twice.
func (m *MultiStream) Close() error {
	closers := make([]io.Closer, len(m.parts))
	for i, part := range m.parts {
		closers[i] = part
	}
	err := iox.CloseAll(closers...)
	if len(m.parts) > 0 {
		m.logger.Debug("container closed", map[string]any{"parts": len(m.parts)})
	}
	m.reset()
	return err
}

func (m *MultiStream) reset() {
	m.parts = nil
	m.current, m.offset = 0, 0
	m.started = false
	m.seekable = true
}

// Clone deep-clones every part into a new container positioned at the same
// offset. Fails with ErrNotCloneable when a part cannot be replayed.
func (m *MultiStream) Clone() (stream.Stream, error) {
	if !m.seekable {
		return nil, stream.NewError(stream.ErrNotCloneable, "clone", "multi stream container holds non-seekable parts")
	}
	c := &MultiStream{
		parts:      make([]stream.Stream, 0, len(m.parts)),
		current:    m.current,
		offset:     m.offset,
		started:    m.started,
		seekable:   true,
		bufferSize: m.bufferSize,
		writable:   m.writable,
		logger:     m.logger,
		metrics:    m.metrics,
	}
	for i, part := range m.parts {
		pc, err := part.Clone()
		if err != nil {
			_ = c.Close()
			return nil, stream.WrapError(stream.ErrNotCloneable, "clone", fmt.Errorf("part %d: %w", i, err))
		}
		c.parts = append(c.parts, pc)
	}
	return c, nil
}
