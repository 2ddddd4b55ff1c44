// Package bitcodec converts printable-text payloads to and from a
// length-prefixed bit sequence.
//
// Layout: 8 bits of payload length L (big-endian, 1..255) followed by L bytes,
// each written most-significant bit first.
package bitcodec

import (
	"fmt"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/yyyoichi/bitstream-go"
)

const (
	// MaxLength is the longest payload the 8-bit length prefix can describe.
	MaxLength = 255

	// LengthBits is the size of the length prefix.
	LengthBits = 8
)

// Sequence is an immutable ordered run of bits.
type Sequence struct {
	r *bitstream.BitReader[uint64]
	n int
}

func newSequence(w *bitstream.BitWriter[uint64]) *Sequence {
	n := w.Bits()
	r := bitstream.NewBitReader(w.Data(), 0, 0)
	r.SetBits(n)
	return &Sequence{r: r, n: n}
}

// FromBools builds a Sequence from raw bits, e.g. bits collected from a carrier.
func FromBools(bits []bool) *Sequence {
	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, b := range bits {
		w.WriteBool(b)
	}
	return newSequence(w)
}

// Len returns the number of bits in the sequence.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// Bit returns the bit at position i. Out of range positions read as false.
func (s *Sequence) Bit(i int) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	b, err := s.r.ReadBitAt(i)
	if err != nil {
		return false
	}
	return b
}

// Bools expands the sequence into a bool slice.
func (s *Sequence) Bools() []bool {
	out := make([]bool, s.Len())
	for i := range out {
		out[i] = s.Bit(i)
	}
	return out
}

// BitCount returns the total number of bits Encode produces for a payload of
// n bytes.
func BitCount(n int) int {
	return LengthBits + 8*n
}

// Encode validates text and converts it into a length-prefixed Sequence.
// Empty, oversized or non-printable payloads are rejected with
// common.ErrInvalidPayload; nothing is altered on this path.
func Encode(text string) (*Sequence, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrInvalidPayload)
	}
	if len(text) > MaxLength {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", common.ErrInvalidPayload, len(text), MaxLength)
	}
	for i := 0; i < len(text); i++ {
		if !common.IsPrintable(text[i]) {
			return nil, fmt.Errorf("%w: non-printable byte 0x%02x at offset %d", common.ErrInvalidPayload, text[i], i)
		}
	}

	w := bitstream.NewBitWriter[uint64](0, 0)
	writeByte(w, byte(len(text)))
	for i := 0; i < len(text); i++ {
		writeByte(w, text[i])
	}
	return newSequence(w), nil
}

func writeByte(w *bitstream.BitWriter[uint64], v byte) {
	for bit := 7; bit >= 0; bit-- {
		w.WriteBool(v>>uint(bit)&1 == 1)
	}
}

func readByte(s *Sequence, offset int) byte {
	var v byte
	for i := 0; i < 8; i++ {
		v <<= 1
		if s.Bit(offset + i) {
			v |= 1
		}
	}
	return v
}

// DeclaredLength returns the length prefix of s. ok is false when s is too
// short to hold a prefix.
func DeclaredLength(s *Sequence) (length int, ok bool) {
	if s.Len() < LengthBits {
		return 0, false
	}
	return int(readByte(s, 0)), true
}

// Decode reconstructs the payload carried by s.
//
// A zero length prefix, or a prefix promising more bits than s holds, is the
// "nothing present" outcome: empty text and confidence 0. Decode never fails;
// bytes outside printable ASCII are replaced with '?'.
func Decode(s *Sequence) (string, float64) {
	l, ok := DeclaredLength(s)
	if !ok || l == 0 || BitCount(l) > s.Len() {
		return "", 0.0
	}

	buf := make([]byte, l)
	for i := range buf {
		buf[i] = readByte(s, LengthBits+8*i)
	}
	return common.Sanitize(string(buf)), 1.0
}
