package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errMissingRequestField = errors.New("missing required field")

// requestJSON is the hex-encoded presentation form of every request variant.
type requestJSON struct {
	Type                  hexutil.Uint64  `json:"type"`
	Pubkey                *hexutil.Bytes  `json:"pubkey,omitempty"`
	WithdrawalCredentials *Hash           `json:"withdrawalCredentials,omitempty"`
	Amount                *hexutil.Uint64 `json:"amount,omitempty"`
	Signature             *hexutil.Bytes  `json:"signature,omitempty"`
	Index                 *hexutil.Uint64 `json:"index,omitempty"`
	SourceAddress         *Address        `json:"sourceAddress,omitempty"`
	ValidatorPubkey       *hexutil.Bytes  `json:"validatorPubkey,omitempty"`
	SourcePubkey          *hexutil.Bytes  `json:"sourcePubkey,omitempty"`
	TargetPubkey          *hexutil.Bytes  `json:"targetPubkey,omitempty"`
}

// MarshalRequestJSON encodes r in its JSON presentation form.
func MarshalRequestJSON(r Request) ([]byte, error) {
	enc := requestJSON{Type: hexutil.Uint64(r.Type())}
	switch r := r.(type) {
	case *DepositRequest:
		amount, index := hexutil.Uint64(r.Amount), hexutil.Uint64(r.Index)
		enc.Pubkey = bytesPtr(r.Pubkey[:])
		enc.WithdrawalCredentials = &r.WithdrawalCredentials
		enc.Amount = &amount
		enc.Signature = bytesPtr(r.Signature[:])
		enc.Index = &index
	case *WithdrawalRequest:
		amount := hexutil.Uint64(r.Amount)
		enc.SourceAddress = &r.SourceAddress
		enc.ValidatorPubkey = bytesPtr(r.ValidatorPubkey[:])
		enc.Amount = &amount
	case *ConsolidationRequest:
		enc.SourceAddress = &r.SourceAddress
		enc.SourcePubkey = bytesPtr(r.SourcePubkey[:])
		enc.TargetPubkey = bytesPtr(r.TargetPubkey[:])
	default:
		return nil, fmt.Errorf("request: unsupported type %T", r)
	}
	return json.Marshal(&enc)
}

// UnmarshalRequestJSON decodes the JSON presentation form of a request.
// Every field of the variant named by "type" is required.
func UnmarshalRequestJSON(input []byte) (Request, error) {
	var dec requestJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return nil, err
	}
	if dec.Type > 0xff {
		return nil, &DecodeError{Kind: DecodeUnknownType, Err: fmt.Errorf("type %d", uint64(dec.Type))}
	}
	t := byte(dec.Type)
	switch t {
	case DepositRequestType:
		d := new(DepositRequest)
		if err := fixedField("pubkey", dec.Pubkey, d.Pubkey[:]); err != nil {
			return nil, err
		}
		if dec.WithdrawalCredentials == nil {
			return nil, fmt.Errorf("%w 'withdrawalCredentials'", errMissingRequestField)
		}
		d.WithdrawalCredentials = *dec.WithdrawalCredentials
		if dec.Amount == nil {
			return nil, fmt.Errorf("%w 'amount'", errMissingRequestField)
		}
		d.Amount = uint64(*dec.Amount)
		if err := fixedField("signature", dec.Signature, d.Signature[:]); err != nil {
			return nil, err
		}
		if dec.Index == nil {
			return nil, fmt.Errorf("%w 'index'", errMissingRequestField)
		}
		d.Index = uint64(*dec.Index)
		return d, nil

	case WithdrawalRequestType:
		w := new(WithdrawalRequest)
		if dec.SourceAddress == nil {
			return nil, fmt.Errorf("%w 'sourceAddress'", errMissingRequestField)
		}
		w.SourceAddress = *dec.SourceAddress
		if err := fixedField("validatorPubkey", dec.ValidatorPubkey, w.ValidatorPubkey[:]); err != nil {
			return nil, err
		}
		if dec.Amount == nil {
			return nil, fmt.Errorf("%w 'amount'", errMissingRequestField)
		}
		w.Amount = uint64(*dec.Amount)
		return w, nil

	case ConsolidationRequestType:
		c := new(ConsolidationRequest)
		if dec.SourceAddress == nil {
			return nil, fmt.Errorf("%w 'sourceAddress'", errMissingRequestField)
		}
		c.SourceAddress = *dec.SourceAddress
		if err := fixedField("sourcePubkey", dec.SourcePubkey, c.SourcePubkey[:]); err != nil {
			return nil, err
		}
		if err := fixedField("targetPubkey", dec.TargetPubkey, c.TargetPubkey[:]); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, &DecodeError{Kind: DecodeUnknownType, Type: t}
}

func bytesPtr(b []byte) *hexutil.Bytes {
	hb := hexutil.Bytes(b)
	return &hb
}

func fixedField(name string, src *hexutil.Bytes, dst []byte) error {
	if src == nil {
		return fmt.Errorf("%w '%s'", errMissingRequestField, name)
	}
	if len(*src) != len(dst) {
		return fmt.Errorf("request: field '%s' has %d bytes, want %d", name, len(*src), len(dst))
	}
	copy(dst, *src)
	return nil
}
