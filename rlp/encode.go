package rlp

import (
	"io"
	"math/big"
	"reflect"
)

var bigIntType = reflect.TypeOf(big.Int{})

// Encode writes the RLP encoding of val to w.
// val must be a supported type: bool, unsigned integers, *big.Int,
// []byte, string, slice/array, or struct (exported fields only).
func Encode(w io.Writer, val interface{}) error {
	b, err := EncodeToBytes(val)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeToBytes returns the RLP encoding of val.
func EncodeToBytes(val interface{}) ([]byte, error) {
	return appendValue(nil, reflect.ValueOf(val))
}

func appendValue(dst []byte, v reflect.Value) ([]byte, error) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			// nil pointer/interface encodes as empty string.
			return append(dst, 0x80), nil
		}
		v = v.Elem()
	}

	if v.Type() == bigIntType {
		bi := v.Interface().(big.Int)
		return AppendBigInt(dst, &bi)
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(dst, 0x01), nil
		}
		return append(dst, 0x80), nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return AppendUint64(dst, v.Uint()), nil

	case reflect.String:
		return AppendBytes(dst, []byte(v.String())), nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return AppendBytes(dst, v.Bytes()), nil
		}
		return appendList(dst, v.Len(), v.Index)

	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return AppendBytes(dst, b), nil
		}
		return appendList(dst, v.Len(), v.Index)

	case reflect.Struct:
		fields := exportedFields(v.Type())
		return appendList(dst, len(fields), func(i int) reflect.Value { return v.Field(fields[i]) })

	case reflect.Invalid:
		return append(dst, 0x80), nil

	default:
		return nil, ErrUnsupportedType
	}
}

func appendList(dst []byte, n int, elem func(int) reflect.Value) ([]byte, error) {
	var payload []byte
	for i := 0; i < n; i++ {
		var err error
		payload, err = appendValue(payload, elem(i))
		if err != nil {
			return nil, err
		}
	}
	return AppendList(dst, payload), nil
}

func exportedFields(t reflect.Type) []int {
	idx := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			idx = append(idx, i)
		}
	}
	return idx
}

// WrapList wraps an already-encoded RLP payload in a list header.
func WrapList(payload []byte) []byte {
	return AppendList(make([]byte, 0, ListSize(len(payload))), payload)
}
