// Package shortvec implements the compact-u16 length prefix used throughout
// the Solana wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the number of bytes needed to encode math.MaxUint16.
const MaxEncodedLen = 3

var ErrLenTooLarge = errors.Errorf("len exceeds %d", math.MaxUint16)

// EncodeLen writes length as a shortvec and returns the number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLenTooLarge
	}

	var buf [MaxEncodedLen]byte
	n := 0
	for {
		buf[n] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			n++
			break
		}
		buf[n] |= 0x80
		n++
	}

	return w.Write(buf[:n])
}

// EncodedLen returns the size of the shortvec encoding of length.
func EncodedLen(length int) int {
	switch {
	case length < 1<<7:
		return 1
	case length < 1<<14:
		return 2
	default:
		return 3
	}
}

// DecodeLen reads a shortvec encoded length.
func DecodeLen(r io.Reader) (int, error) {
	var val int
	var b [1]byte

	for i := 0; ; i++ {
		if i == MaxEncodedLen {
			return 0, errors.Errorf("invalid size: more than %d bytes", MaxEncodedLen)
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}

		val |= int(b[0]&0x7f) << (i * 7)
		if b[0]&0x80 == 0 {
			break
		}
	}

	if val > math.MaxUint16 {
		return 0, ErrLenTooLarge
	}
	return val, nil
}
