package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/types"
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// SkipInvalid skips frames that are complete but cannot be decoded or
	// validated instead of failing. Fatal errors always fail.
	SkipInvalid bool
	Logger      *log.Logger
	Metrics     *metrics.Collector
}

// Reader yields the fields of a frame stream in order.
//   - Frames are read in order
//   - Sequence numbers must be strictly monotonic (1, 2, 3...)
//   - Reading stops at the first end frame or at EOF
type Reader struct {
	decoder *FrameDecoder
	cfg     ReaderConfig
	logger  *log.Logger
	seq     int64
	done    bool
}

// NewReader creates a field reader over r.
func NewReader(r io.Reader, cfg ReaderConfig) *Reader {
	return &Reader{
		decoder: NewFrameDecoder(r),
		cfg:     cfg,
		logger:  cfg.Logger.Named("frame"),
	}
}

// Next returns the next field. Returns io.EOF after the end frame or when
// the stream ends cleanly.
func (r *Reader) Next() (*types.FieldSpec, error) {
	for {
		if r.done {
			return nil, io.EOF
		}

		payload, err := r.decoder.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				return nil, io.EOF
			}
			r.cfg.Metrics.IncFrameDecodeErrors()
			r.logger.Error("frame error", map[string]any{"error": err.Error()})
			return nil, err
		}

		f, err := DecodeFrame(payload)
		if err == nil {
			err = r.checkSeq(f.Seq)
		}
		if err != nil {
			r.cfg.Metrics.IncFrameDecodeErrors()
			if r.cfg.SkipInvalid && !IsFatalFrameError(err) {
				r.seq++
				r.logger.Warn("skipping invalid frame", map[string]any{
					"seq":   r.seq,
					"error": err.Error(),
				})
				continue
			}
			return nil, err
		}

		r.cfg.Metrics.IncFramesDecoded()
		if f.Type == EndType {
			r.done = true
			return nil, io.EOF
		}
		return f.Field, nil
	}
}

func (r *Reader) checkSeq(seq int64) error {
	if seq != r.seq+1 {
		return &FrameError{
			Kind: FrameErrorSequence,
			Msg:  fmt.Sprintf("sequence violation: expected %d, got %d", r.seq+1, seq),
		}
	}
	r.seq = seq
	return nil
}

// ReadAll reads every remaining field.
func (r *Reader) ReadAll() ([]types.FieldSpec, error) {
	var fields []types.FieldSpec
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		if err != nil {
			return fields, err
		}
		fields = append(fields, *f)
	}
}
