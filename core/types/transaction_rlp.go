package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/eth2030/admission/rlp"
)

var (
	// ErrTxTypeNotSupported is returned for envelope type bytes with no
	// known transaction variant.
	ErrTxTypeNotSupported = errors.New("transaction type not supported")

	// ErrInvalidTxEncoding is returned when the outer envelope is malformed.
	ErrInvalidTxEncoding = errors.New("invalid transaction encoding")

	errEmptyTx         = errors.New("empty transaction data")
	errInvalidToLength = errors.New("recipient must be empty or 20 bytes")
)

// ---- RLP helper structs (field order matches the consensus encoding) ----

// legacyTxRLP is the RLP encoding layout for LegacyTx.
// Fields: [nonce, gasPrice, gasLimit, to, value, data, v, r, s]
type legacyTxRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte // empty for contract creation, 20 bytes otherwise
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// accessListTxRLP is the RLP encoding layout for AccessListTx (EIP-2930).
type accessListTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         []byte
	Value      *big.Int
	Data       []byte
	AccessList []accessTupleRLP
	V          *big.Int
	R          *big.Int
	S          *big.Int
}

// dynamicFeeTxRLP is the RLP encoding layout for DynamicFeeTx (EIP-1559).
type dynamicFeeTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         []byte
	Value      *big.Int
	Data       []byte
	AccessList []accessTupleRLP
	V          *big.Int
	R          *big.Int
	S          *big.Int
}

// blobTxRLP is the RLP encoding layout for BlobTx (EIP-4844).
type blobTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         Address
	Value      *big.Int
	Data       []byte
	AccessList []accessTupleRLP
	BlobFeeCap *big.Int
	BlobHashes []Hash
	V          *big.Int
	R          *big.Int
	S          *big.Int
}

// setCodeTxRLP is the RLP encoding layout for SetCodeTx (EIP-7702).
type setCodeTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         Address
	Value      *big.Int
	Data       []byte
	AccessList []accessTupleRLP
	AuthList   []authorizationRLP
	V          *big.Int
	R          *big.Int
	S          *big.Int
}

type accessTupleRLP struct {
	Address     Address
	StorageKeys []Hash
}

type authorizationRLP struct {
	ChainID *big.Int
	Address Address
	Nonce   uint64
	V       *big.Int
	R       *big.Int
	S       *big.Int
}

// ---- Encoding ----

// EncodeRLP returns the EIP-2718 envelope encoding of the transaction.
// For legacy txs: RLP([nonce, gasPrice, ...])
// For typed txs: type_byte || RLP([chainID, nonce, ...])
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	var enc interface{}
	switch t := tx.inner.(type) {
	case *LegacyTx:
		return rlp.EncodeToBytes(legacyTxRLP{
			Nonce:    t.Nonce,
			GasPrice: t.GasPrice,
			Gas:      t.Gas,
			To:       addressPtrToBytes(t.To),
			Value:    t.Value,
			Data:     t.Data,
			V:        t.V,
			R:        t.R,
			S:        t.S,
		})
	case *AccessListTx:
		enc = accessListTxRLP{
			ChainID:    t.ChainID,
			Nonce:      t.Nonce,
			GasPrice:   t.GasPrice,
			Gas:        t.Gas,
			To:         addressPtrToBytes(t.To),
			Value:      t.Value,
			Data:       t.Data,
			AccessList: encodeAccessList(t.AccessList),
			V:          t.V,
			R:          t.R,
			S:          t.S,
		}
	case *DynamicFeeTx:
		enc = dynamicFeeTxRLP{
			ChainID:    t.ChainID,
			Nonce:      t.Nonce,
			GasTipCap:  t.GasTipCap,
			GasFeeCap:  t.GasFeeCap,
			Gas:        t.Gas,
			To:         addressPtrToBytes(t.To),
			Value:      t.Value,
			Data:       t.Data,
			AccessList: encodeAccessList(t.AccessList),
			V:          t.V,
			R:          t.R,
			S:          t.S,
		}
	case *BlobTx:
		enc = blobTxRLP{
			ChainID:    t.ChainID,
			Nonce:      t.Nonce,
			GasTipCap:  t.GasTipCap,
			GasFeeCap:  t.GasFeeCap,
			Gas:        t.Gas,
			To:         t.To,
			Value:      t.Value,
			Data:       t.Data,
			AccessList: encodeAccessList(t.AccessList),
			BlobFeeCap: t.BlobFeeCap,
			BlobHashes: t.BlobHashes,
			V:          t.V,
			R:          t.R,
			S:          t.S,
		}
	case *SetCodeTx:
		enc = setCodeTxRLP{
			ChainID:    t.ChainID,
			Nonce:      t.Nonce,
			GasTipCap:  t.GasTipCap,
			GasFeeCap:  t.GasFeeCap,
			Gas:        t.Gas,
			To:         t.To,
			Value:      t.Value,
			Data:       t.Data,
			AccessList: encodeAccessList(t.AccessList),
			AuthList:   encodeAuthList(t.AuthorizationList),
			V:          t.V,
			R:          t.R,
			S:          t.S,
		}
	default:
		return nil, ErrTxTypeNotSupported
	}
	payload, err := rlp.EncodeToBytes(enc)
	if err != nil {
		return nil, err
	}
	return append([]byte{tx.Type()}, payload...), nil
}

// MarshalBinary is an alias of EncodeRLP.
func (tx *Transaction) MarshalBinary() ([]byte, error) { return tx.EncodeRLP() }

func (tx *Transaction) encodeEnvelope() []byte {
	enc, err := tx.EncodeRLP()
	if err != nil {
		return nil
	}
	return enc
}

// ---- Decoding ----

// DecodeTxRLP decodes an EIP-2718 transaction envelope. A leading list
// prefix selects the legacy form; a leading byte in [0x01, 0x7f] selects a
// typed transaction. The input must hold exactly one transaction.
func DecodeTxRLP(data []byte) (*Transaction, error) {
	if len(data) == 0 {
		return nil, errEmptyTx
	}
	switch {
	case data[0] >= 0xc0:
		return decodeLegacyTx(data)
	case data[0] >= 0x01 && data[0] <= 0x7f:
		return decodeTypedTx(data[0], data[1:])
	default:
		return nil, fmt.Errorf("%w: first byte 0x%02x", ErrInvalidTxEncoding, data[0])
	}
}

func decodeLegacyTx(data []byte) (*Transaction, error) {
	var dec legacyTxRLP
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return nil, fmt.Errorf("decode legacy tx: %w", err)
	}
	to, err := bytesToAddressPtr(dec.To)
	if err != nil {
		return nil, fmt.Errorf("decode legacy tx: %w", err)
	}
	return &Transaction{inner: &LegacyTx{
		Nonce:    dec.Nonce,
		GasPrice: dec.GasPrice,
		Gas:      dec.Gas,
		To:       to,
		Value:    dec.Value,
		Data:     dec.Data,
		V:        dec.V,
		R:        dec.R,
		S:        dec.S,
	}}, nil
}

func decodeTypedTx(txType byte, payload []byte) (*Transaction, error) {
	var inner TxData
	switch txType {
	case AccessListTxType:
		var dec accessListTxRLP
		if err := rlp.DecodeBytes(payload, &dec); err != nil {
			return nil, fmt.Errorf("decode access list tx: %w", err)
		}
		to, err := bytesToAddressPtr(dec.To)
		if err != nil {
			return nil, fmt.Errorf("decode access list tx: %w", err)
		}
		inner = &AccessListTx{
			ChainID:    dec.ChainID,
			Nonce:      dec.Nonce,
			GasPrice:   dec.GasPrice,
			Gas:        dec.Gas,
			To:         to,
			Value:      dec.Value,
			Data:       dec.Data,
			AccessList: decodeAccessList(dec.AccessList),
			V:          dec.V,
			R:          dec.R,
			S:          dec.S,
		}
	case DynamicFeeTxType:
		var dec dynamicFeeTxRLP
		if err := rlp.DecodeBytes(payload, &dec); err != nil {
			return nil, fmt.Errorf("decode dynamic fee tx: %w", err)
		}
		to, err := bytesToAddressPtr(dec.To)
		if err != nil {
			return nil, fmt.Errorf("decode dynamic fee tx: %w", err)
		}
		inner = &DynamicFeeTx{
			ChainID:    dec.ChainID,
			Nonce:      dec.Nonce,
			GasTipCap:  dec.GasTipCap,
			GasFeeCap:  dec.GasFeeCap,
			Gas:        dec.Gas,
			To:         to,
			Value:      dec.Value,
			Data:       dec.Data,
			AccessList: decodeAccessList(dec.AccessList),
			V:          dec.V,
			R:          dec.R,
			S:          dec.S,
		}
	case BlobTxType:
		var dec blobTxRLP
		if err := rlp.DecodeBytes(payload, &dec); err != nil {
			return nil, fmt.Errorf("decode blob tx: %w", err)
		}
		inner = &BlobTx{
			ChainID:    dec.ChainID,
			Nonce:      dec.Nonce,
			GasTipCap:  dec.GasTipCap,
			GasFeeCap:  dec.GasFeeCap,
			Gas:        dec.Gas,
			To:         dec.To,
			Value:      dec.Value,
			Data:       dec.Data,
			AccessList: decodeAccessList(dec.AccessList),
			BlobFeeCap: dec.BlobFeeCap,
			BlobHashes: dec.BlobHashes,
			V:          dec.V,
			R:          dec.R,
			S:          dec.S,
		}
	case SetCodeTxType:
		var dec setCodeTxRLP
		if err := rlp.DecodeBytes(payload, &dec); err != nil {
			return nil, fmt.Errorf("decode set code tx: %w", err)
		}
		inner = &SetCodeTx{
			ChainID:           dec.ChainID,
			Nonce:             dec.Nonce,
			GasTipCap:         dec.GasTipCap,
			GasFeeCap:         dec.GasFeeCap,
			Gas:               dec.Gas,
			To:                dec.To,
			Value:             dec.Value,
			Data:              dec.Data,
			AccessList:        decodeAccessList(dec.AccessList),
			AuthorizationList: decodeAuthList(dec.AuthList),
			V:                 dec.V,
			R:                 dec.R,
			S:                 dec.S,
		}
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrTxTypeNotSupported, txType)
	}
	return &Transaction{inner: inner}, nil
}

// ---- Access list / authorization helpers ----

func encodeAccessList(al AccessList) []accessTupleRLP {
	out := make([]accessTupleRLP, len(al))
	for i, t := range al {
		out[i] = accessTupleRLP{Address: t.Address, StorageKeys: t.StorageKeys}
	}
	return out
}

func decodeAccessList(al []accessTupleRLP) AccessList {
	if len(al) == 0 {
		return nil
	}
	out := make(AccessList, len(al))
	for i, t := range al {
		out[i] = AccessTuple{Address: t.Address, StorageKeys: t.StorageKeys}
	}
	return out
}

func encodeAuthList(auths []Authorization) []authorizationRLP {
	out := make([]authorizationRLP, len(auths))
	for i, a := range auths {
		out[i] = authorizationRLP{
			ChainID: a.ChainID,
			Address: a.Address,
			Nonce:   a.Nonce,
			V:       a.V,
			R:       a.R,
			S:       a.S,
		}
	}
	return out
}

func decodeAuthList(auths []authorizationRLP) []Authorization {
	if len(auths) == 0 {
		return nil
	}
	out := make([]Authorization, len(auths))
	for i, a := range auths {
		out[i] = Authorization{
			ChainID: a.ChainID,
			Address: a.Address,
			Nonce:   a.Nonce,
			V:       a.V,
			R:       a.R,
			S:       a.S,
		}
	}
	return out
}

func addressPtrToBytes(a *Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

func bytesToAddressPtr(b []byte) (*Address, error) {
	switch len(b) {
	case 0:
		return nil, nil
	case AddressLength:
		a := BytesToAddress(b)
		return &a, nil
	default:
		return nil, errInvalidToLength
	}
}

// ---- Signing hashes ----

// signingHash returns the hash that was signed to produce the transaction's
// signature. chainID selects the EIP-155 form for legacy transactions and
// is ignored for typed ones, which commit to their own chain ID.
//
//	pre-EIP-155 legacy: keccak256(rlp([nonce, gasPrice, gas, to, value, data]))
//	EIP-155 legacy:     keccak256(rlp([nonce, gasPrice, gas, to, value, data, chainID, 0, 0]))
//	typed:              keccak256(type || rlp([fields without v, r, s]))
func (tx *Transaction) signingHash(chainID *big.Int) Hash {
	var payload []byte
	switch t := tx.inner.(type) {
	case *LegacyTx:
		payload = appendUnsignedFields(nil, t.Nonce, t.GasPrice, t.Gas, addressPtrToBytes(t.To), t.Value, t.Data)
		if chainID != nil && chainID.Sign() > 0 {
			payload = appendUnsignedFields(payload, chainID, uint64(0), uint64(0))
		}
		return keccak256Hash(rlp.WrapList(payload))
	case *AccessListTx:
		payload = appendUnsignedFields(nil, t.ChainID, t.Nonce, t.GasPrice, t.Gas, addressPtrToBytes(t.To), t.Value, t.Data,
			encodeAccessList(t.AccessList))
	case *DynamicFeeTx:
		payload = appendUnsignedFields(nil, t.ChainID, t.Nonce, t.GasTipCap, t.GasFeeCap, t.Gas, addressPtrToBytes(t.To), t.Value, t.Data,
			encodeAccessList(t.AccessList))
	case *BlobTx:
		payload = appendUnsignedFields(nil, t.ChainID, t.Nonce, t.GasTipCap, t.GasFeeCap, t.Gas, t.To, t.Value, t.Data,
			encodeAccessList(t.AccessList), t.BlobFeeCap, t.BlobHashes)
	case *SetCodeTx:
		payload = appendUnsignedFields(nil, t.ChainID, t.Nonce, t.GasTipCap, t.GasFeeCap, t.Gas, t.To, t.Value, t.Data,
			encodeAccessList(t.AccessList), encodeAuthList(t.AuthorizationList))
	default:
		return Hash{}
	}
	return keccak256Hash([]byte{tx.Type()}, rlp.WrapList(payload))
}

// appendUnsignedFields RLP-encodes a sequence of values onto dst. Encoding
// errors (negative integers) leave the field as the empty string so the
// resulting hash can never match a valid signature.
func appendUnsignedFields(dst []byte, vals ...interface{}) []byte {
	for _, v := range vals {
		b, err := rlp.EncodeToBytes(v)
		if err != nil {
			b = []byte{0x80}
		}
		dst = append(dst, b...)
	}
	return dst
}
