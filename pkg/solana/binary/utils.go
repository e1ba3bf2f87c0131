// Package binary reads and writes the fixed width, little endian account and
// instruction layouts used by on-chain programs. Every helper operates at
// *offset within the full buffer and advances it by the field width.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// OptionSize is the width of the tag preceding an optional field in SPL
// layouts (a little endian u32 of 0 or 1).
const OptionSize = 4

var ErrInvalidBool = errors.New("invalid bool encoding")

func PutKey(dst []byte, v ed25519.PublicKey, offset *int) {
	copy(dst[*offset:*offset+ed25519.PublicKeySize], v)
	*offset += ed25519.PublicKeySize
}

func GetKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src[*offset:])
	*offset += ed25519.PublicKeySize
}

// PutOptionalKey writes an SPL COption<Pubkey>. An empty key is None.
func PutOptionalKey(dst []byte, v ed25519.PublicKey, offset *int) {
	if len(v) > 0 {
		binary.LittleEndian.PutUint32(dst[*offset:], 1)
		copy(dst[*offset+OptionSize:], v)
	}
	*offset += OptionSize + ed25519.PublicKeySize
}

func GetOptionalKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	if binary.LittleEndian.Uint32(src[*offset:]) == 1 {
		*dst = make([]byte, ed25519.PublicKeySize)
		copy(*dst, src[*offset+OptionSize:])
	} else {
		*dst = nil
	}
	*offset += OptionSize + ed25519.PublicKeySize
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		dst[*offset] = 1
	} else {
		dst[*offset] = 0
	}
	*offset++
}

// GetBool fails with ErrInvalidBool for any byte other than 0 or 1.
func GetBool(src []byte, dst *bool, offset *int) error {
	switch src[*offset] {
	case 0:
		*dst = false
	case 1:
		*dst = true
	default:
		return ErrInvalidBool
	}
	*offset++
	return nil
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset++
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[*offset]
	*offset++
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += 8
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += 8
}

// PutOptionalUint64 writes an SPL COption<u64>. A nil value is None.
func PutOptionalUint64(dst []byte, v *uint64, offset *int) {
	if v != nil {
		binary.LittleEndian.PutUint32(dst[*offset:], 1)
		binary.LittleEndian.PutUint64(dst[*offset+OptionSize:], *v)
	}
	*offset += OptionSize + 8
}

func GetOptionalUint64(src []byte, dst **uint64, offset *int) {
	if binary.LittleEndian.Uint32(src[*offset:]) == 1 {
		val := binary.LittleEndian.Uint64(src[*offset+OptionSize:])
		*dst = &val
	} else {
		*dst = nil
	}
	*offset += OptionSize + 8
}
