package sink

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// compress lz4-frames data.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type lz4ReadCloser struct {
	*lz4.Reader
	src io.Closer
}

func (r lz4ReadCloser) Close() error { return r.src.Close() }

// decompressReader decodes an lz4 frame from rc. Closing it closes rc.
func decompressReader(rc io.ReadCloser) io.ReadCloser {
	return lz4ReadCloser{Reader: lz4.NewReader(rc), src: rc}
}
