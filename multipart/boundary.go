package multipart

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pithecene-io/mstream/stream"
)

const maxBoundaryLen = 70

// NewBoundary returns a random 32 character boundary token.
func NewBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateBoundary checks b against the RFC 2046 boundary grammar:
// 1 to 70 characters from the bchars set, not ending with a space.
func ValidateBoundary(b string) error {
	if len(b) == 0 || len(b) > maxBoundaryLen {
		return stream.NewError(stream.ErrInvalidArgument, "boundary", fmt.Sprintf("boundary must be 1 to %d characters", maxBoundaryLen))
	}
	for _, r := range b {
		if !isBChar(r) {
			return stream.NewError(stream.ErrInvalidArgument, "boundary", fmt.Sprintf("invalid boundary character %q", r))
		}
	}
	if strings.HasSuffix(b, " ") {
		return stream.NewError(stream.ErrInvalidArgument, "boundary", "boundary must not end with a space")
	}
	return nil
}

func isBChar(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	}
	return strings.ContainsRune("'()+_,-./:=? ", r)
}
