// append.go holds the reflection-free append helpers used by hand-written
// encoders (transactions, requests) to build payloads incrementally.
package rlp

import (
	"encoding/binary"
	"math/big"
)

// AppendUint64 appends the RLP encoding of a uint64 to dst and returns
// the extended slice. Zero encodes as the empty string.
func AppendUint64(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, 0x80)
	}
	if v < 128 {
		return append(dst, byte(v))
	}
	b := putUintBE(v)
	dst = append(dst, 0x80+byte(len(b)))
	return append(dst, b...)
}

// AppendBigInt appends the minimal big-endian encoding of i. A nil value
// encodes as zero.
func AppendBigInt(dst []byte, i *big.Int) ([]byte, error) {
	if i == nil || i.Sign() == 0 {
		return append(dst, 0x80), nil
	}
	if i.Sign() < 0 {
		return nil, ErrNegativeBigInt
	}
	return AppendBytes(dst, i.Bytes()), nil
}

// AppendBytes appends the RLP encoding of a byte slice to dst.
func AppendBytes(dst, data []byte) []byte {
	n := len(data)
	if n == 1 && data[0] <= 0x7f {
		return append(dst, data[0])
	}
	if n <= 55 {
		dst = append(dst, 0x80+byte(n))
		return append(dst, data...)
	}
	lb := putUintBE(uint64(n))
	dst = append(dst, 0xb7+byte(len(lb)))
	dst = append(dst, lb...)
	return append(dst, data...)
}

// AppendListHeader appends an RLP list header for a payload of the given
// size to dst. The caller is responsible for appending exactly payloadSize
// bytes of encoded list items afterward.
func AppendListHeader(dst []byte, payloadSize int) []byte {
	if payloadSize <= 55 {
		return append(dst, 0xc0+byte(payloadSize))
	}
	lb := putUintBE(uint64(payloadSize))
	dst = append(dst, 0xf7+byte(len(lb)))
	return append(dst, lb...)
}

// AppendList appends a list header followed by the already-encoded payload.
func AppendList(dst, payload []byte) []byte {
	dst = AppendListHeader(dst, len(payload))
	return append(dst, payload...)
}

// ListSize returns the encoded size of a list with the given payload size.
func ListSize(payloadSize int) int {
	if payloadSize <= 55 {
		return 1 + payloadSize
	}
	return 1 + uintByteLen(uint64(payloadSize)) + payloadSize
}

// BytesSize returns the encoded size of data as an RLP string.
func BytesSize(data []byte) int {
	n := len(data)
	switch {
	case n == 1 && data[0] <= 0x7f:
		return 1
	case n <= 55:
		return 1 + n
	default:
		return 1 + uintByteLen(uint64(n)) + n
	}
}

// putUintBE encodes u as big-endian with no leading zeros.
func putUintBE(u uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	return buf[8-uintByteLen(u):]
}

// uintByteLen returns the number of bytes needed to encode u in big-endian.
func uintByteLen(u uint64) int {
	switch {
	case u < (1 << 8):
		return 1
	case u < (1 << 16):
		return 2
	case u < (1 << 24):
		return 3
	case u < (1 << 32):
		return 4
	case u < (1 << 40):
		return 5
	case u < (1 << 48):
		return 6
	case u < (1 << 56):
		return 7
	default:
		return 8
	}
}
