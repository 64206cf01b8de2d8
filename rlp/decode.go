package rlp

import (
	"bytes"
	"io"
	"math/big"
	"reflect"
)

// Kind represents the type of an RLP value.
type Kind int

const (
	Byte   Kind = iota // Single byte in [0x00, 0x7f].
	String             // RLP string (including empty string).
	List               // RLP list.
)

func (k Kind) String() string {
	switch k {
	case Byte:
		return "Byte"
	case String:
		return "String"
	case List:
		return "List"
	default:
		return "Unknown"
	}
}

// Decode reads an RLP-encoded value from r and stores it in the value pointed to by val.
func Decode(r io.Reader, val interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return DecodeBytes(data, val)
}

// DecodeBytes decodes an RLP-encoded byte slice into the value pointed to by
// val. The input must hold exactly one value.
func DecodeBytes(b []byte, val interface{}) error {
	s := NewByteStream(b)
	if err := s.decodeValue(reflect.ValueOf(val)); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return s.Finish()
}

// Stream provides streaming access to RLP-encoded data.
type Stream struct {
	data  []byte
	pos   int
	stack []listFrame // for List/ListEnd scoping
}

type listFrame struct {
	end int // exclusive end position of the current list
}

// NewStream creates a new RLP stream reading from r.
func NewStream(r io.Reader) *Stream {
	data, _ := io.ReadAll(r)
	return NewByteStream(data)
}

// NewByteStream creates a stream over b without copying it.
func NewByteStream(b []byte) *Stream {
	return &Stream{data: b}
}

// Finish reports ErrTrailingData if input remains after the last read
// top-level value.
func (s *Stream) Finish() error {
	if len(s.stack) != 0 {
		return ErrTooFewElements
	}
	if s.pos != len(s.data) {
		return ErrTrailingData
	}
	return nil
}

// MoreDataInList reports whether the current list has unread items.
func (s *Stream) MoreDataInList() bool {
	return len(s.stack) > 0 && s.pos < s.limit()
}

// header parses the prefix at s.pos and returns the kind, the payload
// offset and the payload size. It enforces canonical size encoding and
// that the payload fits within the current limit.
func (s *Stream) header() (kind Kind, offset, size int, err error) {
	lim := s.limit()
	if s.pos >= lim {
		if len(s.stack) > 0 {
			return 0, 0, 0, ErrTooFewElements
		}
		return 0, 0, 0, io.EOF
	}
	prefix := s.data[s.pos]
	avail := uint64(lim - s.pos - 1)

	switch {
	case prefix <= 0x7f:
		return Byte, s.pos, 1, nil

	case prefix <= 0xb7:
		n := uint64(prefix - 0x80)
		if n > avail {
			return 0, 0, 0, s.overflow()
		}
		if n == 1 && s.data[s.pos+1] <= 0x7f {
			return 0, 0, 0, ErrCanonSize
		}
		return String, s.pos + 1, int(n), nil

	case prefix <= 0xbf:
		n, hdr, err := s.longSize(int(prefix-0xb7), avail)
		if err != nil {
			return 0, 0, 0, err
		}
		return String, s.pos + 1 + hdr, int(n), nil

	case prefix <= 0xf7:
		n := uint64(prefix - 0xc0)
		if n > avail {
			return 0, 0, 0, s.overflow()
		}
		return List, s.pos + 1, int(n), nil

	default:
		n, hdr, err := s.longSize(int(prefix-0xf7), avail)
		if err != nil {
			return 0, 0, 0, err
		}
		return List, s.pos + 1 + hdr, int(n), nil
	}
}

// longSize reads a big-endian length of lenOfLen bytes following the prefix.
func (s *Stream) longSize(lenOfLen int, avail uint64) (uint64, int, error) {
	if uint64(lenOfLen) > avail {
		return 0, 0, s.overflow()
	}
	sizeBytes := s.data[s.pos+1 : s.pos+1+lenOfLen]
	if sizeBytes[0] == 0 {
		return 0, 0, ErrCanonSize
	}
	size := readBigEndian(sizeBytes)
	if size <= 55 {
		return 0, 0, ErrNonCanonicalSize
	}
	if size > avail-uint64(lenOfLen) {
		return 0, 0, s.overflow()
	}
	return size, lenOfLen, nil
}

// overflow reports a payload running past the current limit: inside a list
// the element is too large, at the top level the input is truncated.
func (s *Stream) overflow() error {
	if len(s.stack) > 0 {
		return ErrElemTooLarge
	}
	return io.ErrUnexpectedEOF
}

// Kind reads the RLP type tag and content size of the next value without consuming it.
func (s *Stream) Kind() (Kind, uint64, error) {
	kind, _, size, err := s.header()
	return kind, uint64(size), err
}

// readItem reads a complete RLP item and returns its kind and payload. For
// single bytes [0x00, 0x7f], the payload is the byte itself.
func (s *Stream) readItem() (Kind, []byte, error) {
	kind, offset, size, err := s.header()
	if err != nil {
		return 0, nil, err
	}
	payload := s.data[offset : offset+size]
	s.pos = offset + size
	return kind, payload, nil
}

// Raw reads the next complete item and returns it including its header.
func (s *Stream) Raw() ([]byte, error) {
	start := s.pos
	if _, _, err := s.readItem(); err != nil {
		return nil, err
	}
	return s.data[start:s.pos], nil
}

// Bytes reads an RLP string value and returns it as []byte.
func (s *Stream) Bytes() ([]byte, error) {
	kind, _, _, err := s.header()
	if err != nil {
		return nil, err
	}
	if kind == List {
		return nil, ErrExpectedString
	}
	_, payload, err := s.readItem()
	return payload, err
}

// ReadFixed reads a string of exactly len(dst) bytes into dst.
func (s *Stream) ReadFixed(dst []byte) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return ErrWrongLength
	}
	copy(dst, b)
	return nil
}

// List reads the start of an RLP list and enters a scope for reading list items.
// Subsequent Bytes/Uint64/etc. calls read from within the list. Call ListEnd
// when done reading.
func (s *Stream) List() (uint64, error) {
	kind, offset, size, err := s.header()
	if err != nil {
		return 0, err
	}
	if kind != List {
		return 0, ErrExpectedList
	}
	s.stack = append(s.stack, listFrame{end: offset + size})
	s.pos = offset
	return uint64(size), nil
}

// ListEnd verifies that all items in the current list have been read.
func (s *Stream) ListEnd() error {
	if len(s.stack) == 0 {
		return ErrExpectedList
	}
	top := s.stack[len(s.stack)-1]
	if s.pos != top.end {
		return ErrTooManyElements
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// limit returns the current read boundary.
func (s *Stream) limit() int {
	if len(s.stack) > 0 {
		return s.stack[len(s.stack)-1].end
	}
	return len(s.data)
}

// Uint64 reads an RLP-encoded unsigned integer. Leading zero bytes,
// including a lone 0x00, are rejected.
func (s *Stream) Uint64() (uint64, error) {
	b, err := s.Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, ErrUint64Range
	}
	if len(b) > 0 && b[0] == 0 {
		return 0, ErrCanonInt
	}
	return readBigEndian(b), nil
}

// BigInt reads an RLP-encoded big integer.
func (s *Stream) BigInt() (*big.Int, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, ErrCanonInt
	}
	return new(big.Int).SetBytes(b), nil
}

func readBigEndian(b []byte) uint64 {
	var val uint64
	for _, x := range b {
		val = (val << 8) | uint64(x)
	}
	return val
}

// SplitItem splits b into its first RLP item's kind and payload and the
// bytes that follow it.
func SplitItem(b []byte) (kind Kind, payload, rest []byte, err error) {
	s := NewByteStream(b)
	kind, payload, err = s.readItem()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, nil, err
	}
	return kind, payload, b[s.pos:], nil
}

// decodeValue decodes the next RLP value into v (must be a pointer).
func (s *Stream) decodeValue(v reflect.Value) error {
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrUnsupportedType
	}
	return s.decodeInto(v.Elem())
}

func (s *Stream) decodeInto(v reflect.Value) error {
	if v.Type() == bigIntType {
		bi, err := s.BigInt()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(*bi))
		return nil
	}
	if v.Kind() == reflect.Ptr {
		if v.Type() == reflect.TypeOf((*big.Int)(nil)) {
			bi, err := s.BigInt()
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(bi))
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return s.decodeInto(v.Elem())
	}

	switch v.Kind() {
	case reflect.Bool:
		b, err := s.Bytes()
		if err != nil {
			return err
		}
		switch {
		case len(b) == 0:
			v.SetBool(false)
		case len(b) == 1 && b[0] == 0x01:
			v.SetBool(true)
		default:
			return ErrCanonInt
		}
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		u, err := s.Uint64()
		if err != nil {
			return err
		}
		if v.OverflowUint(u) {
			return ErrUint64Range
		}
		v.SetUint(u)
		return nil

	case reflect.String:
		b, err := s.Bytes()
		if err != nil {
			return err
		}
		v.SetString(string(b))
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := s.Bytes()
			if err != nil {
				return err
			}
			v.SetBytes(bytes.Clone(b))
			return nil
		}
		return s.decodeList(v)

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := s.Bytes()
			if err != nil {
				return err
			}
			if len(b) != v.Len() {
				return ErrWrongLength
			}
			reflect.Copy(v, reflect.ValueOf(b))
			return nil
		}
		return s.decodeList(v)

	case reflect.Struct:
		return s.decodeStruct(v)

	default:
		return ErrUnsupportedType
	}
}

func (s *Stream) decodeList(v reflect.Value) error {
	if _, err := s.List(); err != nil {
		return err
	}

	isSlice := v.Kind() == reflect.Slice
	if isSlice {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	}
	i := 0
	for s.MoreDataInList() {
		if isSlice {
			v.Set(reflect.Append(v, reflect.New(v.Type().Elem()).Elem()))
		} else if i >= v.Len() {
			return ErrTooManyElements
		}
		if err := s.decodeInto(v.Index(i)); err != nil {
			return err
		}
		i++
	}
	if !isSlice && i != v.Len() {
		return ErrTooFewElements
	}
	return s.ListEnd()
}

func (s *Stream) decodeStruct(v reflect.Value) error {
	if _, err := s.List(); err != nil {
		return err
	}
	for _, i := range exportedFields(v.Type()) {
		if err := s.decodeInto(v.Field(i)); err != nil {
			return err
		}
	}
	return s.ListEnd()
}
