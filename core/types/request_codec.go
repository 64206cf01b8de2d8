package types

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/eth2030/admission/rlp"
)

// RequestTypeInfo describes one registered request variant.
type RequestTypeInfo struct {
	Type   byte
	Name   string
	Fields int
	new    func() Request
}

// requestTypes is the static request registry. It is never mutated after
// package initialisation, so lookups need no locking.
var requestTypes = map[byte]RequestTypeInfo{
	DepositRequestType: {
		Type: DepositRequestType, Name: "deposit", Fields: 5,
		new: func() Request { return new(DepositRequest) },
	},
	WithdrawalRequestType: {
		Type: WithdrawalRequestType, Name: "withdrawal", Fields: 3,
		new: func() Request { return new(WithdrawalRequest) },
	},
	ConsolidationRequestType: {
		Type: ConsolidationRequestType, Name: "consolidation", Fields: 3,
		new: func() Request { return new(ConsolidationRequest) },
	},
}

// LookupRequestType returns the registry entry for t.
func LookupRequestType(t byte) (RequestTypeInfo, bool) {
	info, ok := requestTypes[t]
	return info, ok
}

// RequestTypes returns every registered request type in ascending order.
func RequestTypes() []RequestTypeInfo {
	out := make([]RequestTypeInfo, 0, len(requestTypes))
	for _, info := range requestTypes {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// DecodeErrorKind classifies request decoding failures. The set is closed.
type DecodeErrorKind uint8

const (
	DecodeTruncated      DecodeErrorKind = iota + 1 // input ends before the declared length
	DecodeTrailingData                              // bytes remain after the request
	DecodeNonCanonical                              // leading zeros or non-minimal sizes
	DecodeLengthMismatch                            // wrong field width, kind or item count
	DecodeUnknownType                               // type byte not registered or not expected
)

var decodeErrorKindNames = map[DecodeErrorKind]string{
	DecodeTruncated:      "truncated input",
	DecodeTrailingData:   "trailing data",
	DecodeNonCanonical:   "non-canonical encoding",
	DecodeLengthMismatch: "length mismatch",
	DecodeUnknownType:    "unknown request type",
}

func (k DecodeErrorKind) String() string {
	if name, ok := decodeErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DecodeErrorKind(%d)", uint8(k))
}

// Error makes a kind usable as an errors.Is target.
func (k DecodeErrorKind) Error() string { return "request: " + k.String() }

// DecodeError is returned by every request decoding function.
type DecodeError struct {
	Kind DecodeErrorKind
	Type byte  // request type byte being decoded, when known
	Err  error // underlying cause, may be nil
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request type %#02x: %s", e.Type, e.Kind)
	}
	return fmt.Sprintf("request type %#02x: %s: %v", e.Type, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *DecodeError) Is(target error) bool {
	k, ok := target.(DecodeErrorKind)
	return ok && k == e.Kind
}

// decodeErrorKind maps an RLP decoding error to its request error kind.
func decodeErrorKind(err error) DecodeErrorKind {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return DecodeTruncated
	case errors.Is(err, rlp.ErrTrailingData):
		return DecodeTrailingData
	case errors.Is(err, rlp.ErrCanonInt), errors.Is(err, rlp.ErrCanonSize),
		errors.Is(err, rlp.ErrNonCanonicalSize):
		return DecodeNonCanonical
	default:
		// ErrWrongLength, ErrExpectedList/String, ErrElemTooLarge,
		// ErrTooFew/ManyElements and ErrUint64Range.
		return DecodeLengthMismatch
	}
}

// EncodeRequest returns the EIP-7685 wire form of r: the type byte followed
// by the RLP list of its fields. It cannot fail for any Request value.
func EncodeRequest(r Request) []byte {
	fields := r.appendFields(nil)
	out := make([]byte, 0, 1+rlp.ListSize(len(fields)))
	out = append(out, r.Type())
	return rlp.AppendList(out, fields)
}

// EncodeRequestPayload returns the inner RLP list of r without the type byte.
func EncodeRequestPayload(r Request) []byte {
	return rlp.AppendList(nil, r.appendFields(nil))
}

// DecodeRequest decodes an EIP-7685 request from its wire form.
func DecodeRequest(b []byte) (Request, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Kind: DecodeTruncated, Err: errors.New("missing type byte")}
	}
	return DecodeRequestPayload(b[0], b[1:])
}

// DecodeRequestAs decodes b and requires its type byte to equal expected.
func DecodeRequestAs(b []byte, expected byte) (Request, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Kind: DecodeTruncated, Type: expected, Err: errors.New("missing type byte")}
	}
	if b[0] != expected {
		return nil, &DecodeError{
			Kind: DecodeUnknownType,
			Type: b[0],
			Err:  fmt.Errorf("expected type %#02x", expected),
		}
	}
	return DecodeRequestPayload(expected, b[1:])
}

// DecodeRequestPayload decodes the inner RLP list of a request of type t.
// The payload must hold exactly one list and nothing else.
func DecodeRequestPayload(t byte, payload []byte) (Request, error) {
	info, ok := requestTypes[t]
	if !ok {
		return nil, &DecodeError{Kind: DecodeUnknownType, Type: t}
	}
	r := info.new()
	s := rlp.NewByteStream(payload)
	if _, err := s.List(); err != nil {
		return nil, &DecodeError{Kind: decodeErrorKind(err), Type: t, Err: err}
	}
	if err := r.decodeFields(s); err != nil {
		return nil, &DecodeError{Kind: decodeErrorKind(err), Type: t, Err: err}
	}
	if err := s.ListEnd(); err != nil {
		return nil, &DecodeError{Kind: decodeErrorKind(err), Type: t, Err: err}
	}
	if err := s.Finish(); err != nil {
		return nil, &DecodeError{Kind: decodeErrorKind(err), Type: t, Err: err}
	}
	return r, nil
}
