package rlp

import "errors"

var (
	// ErrExpectedString is returned when a list is encountered where a string was expected.
	ErrExpectedString = errors.New("rlp: expected string")

	// ErrExpectedList is returned when a string is encountered where a list was expected.
	ErrExpectedList = errors.New("rlp: expected list")

	// ErrCanonSize is returned when a single byte below 0x80 is wrapped in a string header.
	ErrCanonSize = errors.New("rlp: non-canonical size information")

	// ErrCanonInt is returned when an integer uses non-canonical encoding (leading zeros).
	ErrCanonInt = errors.New("rlp: non-canonical integer encoding")

	// ErrNonCanonicalSize is returned when a size prefix is not in canonical form.
	ErrNonCanonicalSize = errors.New("rlp: non-canonical size")

	// ErrUint64Range is returned when a decoded integer exceeds uint64 range.
	ErrUint64Range = errors.New("rlp: uint64 overflow")

	// ErrValueTooLarge is returned when a value is too large to encode.
	ErrValueTooLarge = errors.New("rlp: value too large")

	// ErrNegativeBigInt is returned when encoding a negative *big.Int.
	ErrNegativeBigInt = errors.New("rlp: cannot encode negative big.Int")

	// ErrWrongLength is returned when a fixed-size byte array receives a
	// string of a different length.
	ErrWrongLength = errors.New("rlp: fixed-size value has wrong length")

	// ErrTooFewElements is returned when a list ends before every struct
	// field has been decoded.
	ErrTooFewElements = errors.New("rlp: too few elements in list")

	// ErrTooManyElements is returned when a list holds more items than the
	// target type consumes.
	ErrTooManyElements = errors.New("rlp: too many elements in list")

	// ErrElemTooLarge is returned when an item inside a list extends past
	// the end of that list.
	ErrElemTooLarge = errors.New("rlp: element is larger than containing list")

	// ErrTrailingData is returned when input continues after the top-level value.
	ErrTrailingData = errors.New("rlp: input contains more than one value")

	// ErrUnsupportedType is returned for Go kinds with no RLP mapping.
	ErrUnsupportedType = errors.New("rlp: unsupported type")
)
