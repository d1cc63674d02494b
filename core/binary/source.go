package binary

import (
	"bytes"
	"fmt"

	"github.com/FocuswithJustin/ceparser/core/token"
)

// Marker identifies a binary payload. It follows a short game tag, as in "EU4bin".
var Marker = []byte("bin")

// HeaderLength returns the number of leading bytes that form the file header:
// everything up to and including the marker when it appears at offset 3 or 4,
// otherwise zero.
func HeaderLength(data []byte) int {
	for _, off := range []int{3, 4} {
		if len(data) >= off+len(Marker) && bytes.Equal(data[off:off+len(Marker)], Marker) {
			return off + len(Marker)
		}
	}
	return 0
}

// ByteSource feeds a byte slice through a Decoder and implements token.Source.
type ByteSource struct {
	data []byte
	pos  int
	dec  *Decoder
}

// NewByteSource skips the header of data and decodes the rest with dec.
func NewByteSource(data []byte, dec *Decoder) *ByteSource {
	return &ByteSource{data: data, pos: HeaderLength(data), dec: dec}
}

// Next feeds bytes until the decoder completes a token. Input that ends in the
// middle of a token is reported as an error.
func (s *ByteSource) Next(path []string) (token.Step, error) {
	start := s.pos
	for s.pos < len(s.data) {
		step := s.dec.Decode(s.data[s.pos], path)
		s.pos++
		if step.Ready {
			return step, nil
		}
	}
	if s.pos > start && s.dec.pending() {
		return token.Step{}, fmt.Errorf("truncated token at offset %d", start)
	}
	return token.Step{}, nil
}

// Done reports whether every byte was consumed.
func (s *ByteSource) Done() bool { return s.pos >= len(s.data) }

// Offset is the number of bytes consumed, header included.
func (s *ByteSource) Offset() int { return s.pos }

// Size is the payload length in bytes.
func (s *ByteSource) Size() int { return len(s.data) }
