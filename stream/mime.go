package stream

import (
	"io"
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

// OctetStream is the MIME type used when no better type can be determined.
const OctetStream = "application/octet-stream"

// sniffLen is the number of leading bytes inspected by Sniff.
const sniffLen = 1024

// Sniff detects the MIME type of s from its leading bytes and restores the
// cursor afterwards. Empty, unreadable or non-seekable streams resolve to
// OctetStream without consuming anything. Parameters such as charset are
// dropped from the result.
func Sniff(s Stream) (string, error) {
	if !s.Readable() || !s.Seekable() {
		return OctetStream, nil
	}
	old := s.Tell()
	if err := s.Rewind(); err != nil {
		return "", err
	}
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(s, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	if _, err := s.Seek(old, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return OctetStream, nil
	}

	detected := mimetype.Detect(buf[:n]).String()
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected, nil
	}
	return mediaType, nil
}

// DetectMime sniffs the MIME type of the resource without storing it.
func (r *Resource) DetectMime() (string, error) {
	return Sniff(r)
}
