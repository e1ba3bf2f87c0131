// Package shortvec implements the compact-u16 length prefix of the transaction
// wire format.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/short_vec.rs
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxEncodingLength is the widest encoding of a uint16
const maxEncodingLength = 3

var (
	ErrOverflow     = errors.New("shortvec value exceeds u16")
	ErrNonCanonical = errors.New("shortvec value is not minimally encoded")
)

// EncodeLen writes the encoding of length to w and returns the number of bytes
// written. length must fit in a uint16.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Errorf("len must be within [0, %d]: %d", math.MaxUint16, length)
	}

	var buf [maxEncodingLength]byte
	n := 0

	v := uint16(length)
	for {
		buf[n] = byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			n++
			break
		}
		buf[n] |= 0x80
		n++
	}

	return w.Write(buf[:n])
}

// DecodeLen reads an encoded length from r. Encodings that overflow a uint16
// or carry redundant trailing zero groups are rejected, so every length has
// exactly one valid encoding.
func DecodeLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < maxEncodingLength; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		// The last byte only carries the top two bits of the value
		if i == maxEncodingLength-1 && b > 0x03 {
			return 0, ErrOverflow
		}

		val |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if b == 0 && i > 0 {
				return 0, ErrNonCanonical
			}
			return val, nil
		}
	}

	return 0, ErrOverflow
}
