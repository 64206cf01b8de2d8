package types

import (
	"math/big"
	"sync/atomic"
)

// Transaction type constants.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
	SetCodeTxType    = 0x04
)

// Transaction represents an Ethereum transaction. It is immutable once
// constructed; the hash cache is the only mutable field.
type Transaction struct {
	inner TxData
	hash  atomic.Pointer[Hash]
}

// TxData is the underlying data of a transaction.
type TxData interface {
	txType() byte
	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *Address
	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(chainID, v, r, s *big.Int)

	copy() TxData
}

// AccessList is a list of address-slot pairs accessed by a transaction.
type AccessList []AccessTuple

// AccessTuple is a single address and its accessed storage slots.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// StorageKeys returns the total number of storage keys in the access list.
func (al AccessList) StorageKeys() int {
	n := 0
	for _, tuple := range al {
		n += len(tuple.StorageKeys)
	}
	return n
}

// Authorization is an EIP-7702 authorization entry for SetCodeTx.
type Authorization struct {
	ChainID *big.Int
	Address Address
	Nonce   uint64
	V       *big.Int
	R       *big.Int
	S       *big.Int
}

// LegacyTx represents a legacy (type 0x00) Ethereum transaction.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *Address
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() byte                           { return LegacyTxType }
func (tx *LegacyTx) chainID() *big.Int                      { return deriveChainID(tx.V) }
func (tx *LegacyTx) accessList() AccessList                 { return nil }
func (tx *LegacyTx) data() []byte                           { return tx.Data }
func (tx *LegacyTx) gas() uint64                            { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int                     { return tx.GasPrice }
func (tx *LegacyTx) gasTipCap() *big.Int                    { return tx.GasPrice }
func (tx *LegacyTx) gasFeeCap() *big.Int                    { return tx.GasPrice }
func (tx *LegacyTx) value() *big.Int                        { return tx.Value }
func (tx *LegacyTx) nonce() uint64                          { return tx.Nonce }
func (tx *LegacyTx) to() *Address                           { return tx.To }
func (tx *LegacyTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *LegacyTx) setSignatureValues(_, v, r, s *big.Int) { tx.V, tx.R, tx.S = v, r, s }
func (tx *LegacyTx) copy() TxData {
	return &LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: copyBig(tx.GasPrice),
		Gas:      tx.Gas,
		To:       copyAddressPtr(tx.To),
		Value:    copyBig(tx.Value),
		Data:     copyBytes(tx.Data),
		V:        copyBig(tx.V),
		R:        copyBig(tx.R),
		S:        copyBig(tx.S),
	}
}

// AccessListTx represents an EIP-2930 (type 0x01) transaction.
type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *AccessListTx) txType() byte                           { return AccessListTxType }
func (tx *AccessListTx) chainID() *big.Int                      { return tx.ChainID }
func (tx *AccessListTx) accessList() AccessList                 { return tx.AccessList }
func (tx *AccessListTx) data() []byte                           { return tx.Data }
func (tx *AccessListTx) gas() uint64                            { return tx.Gas }
func (tx *AccessListTx) gasPrice() *big.Int                     { return tx.GasPrice }
func (tx *AccessListTx) gasTipCap() *big.Int                    { return tx.GasPrice }
func (tx *AccessListTx) gasFeeCap() *big.Int                    { return tx.GasPrice }
func (tx *AccessListTx) value() *big.Int                        { return tx.Value }
func (tx *AccessListTx) nonce() uint64                          { return tx.Nonce }
func (tx *AccessListTx) to() *Address                           { return tx.To }
func (tx *AccessListTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *AccessListTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *AccessListTx) copy() TxData {
	return &AccessListTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   copyBig(tx.GasPrice),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// DynamicFeeTx represents an EIP-1559 (type 0x02) transaction.
type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int // maxPriorityFeePerGas
	GasFeeCap  *big.Int // maxFeePerGas
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *DynamicFeeTx) txType() byte                           { return DynamicFeeTxType }
func (tx *DynamicFeeTx) chainID() *big.Int                      { return tx.ChainID }
func (tx *DynamicFeeTx) accessList() AccessList                 { return tx.AccessList }
func (tx *DynamicFeeTx) data() []byte                           { return tx.Data }
func (tx *DynamicFeeTx) gas() uint64                            { return tx.Gas }
func (tx *DynamicFeeTx) gasPrice() *big.Int                     { return tx.GasFeeCap }
func (tx *DynamicFeeTx) gasTipCap() *big.Int                    { return tx.GasTipCap }
func (tx *DynamicFeeTx) gasFeeCap() *big.Int                    { return tx.GasFeeCap }
func (tx *DynamicFeeTx) value() *big.Int                        { return tx.Value }
func (tx *DynamicFeeTx) nonce() uint64                          { return tx.Nonce }
func (tx *DynamicFeeTx) to() *Address                           { return tx.To }
func (tx *DynamicFeeTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *DynamicFeeTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *DynamicFeeTx) copy() TxData {
	return &DynamicFeeTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// BlobTx represents an EIP-4844 (type 0x03) blob transaction. Sidecar is
// carried alongside the transaction in the mempool and is not part of the
// canonical encoding.
type BlobTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	BlobFeeCap *big.Int
	BlobHashes []Hash
	V, R, S    *big.Int

	Sidecar *BlobTxSidecar
}

func (tx *BlobTx) txType() byte                           { return BlobTxType }
func (tx *BlobTx) chainID() *big.Int                      { return tx.ChainID }
func (tx *BlobTx) accessList() AccessList                 { return tx.AccessList }
func (tx *BlobTx) data() []byte                           { return tx.Data }
func (tx *BlobTx) gas() uint64                            { return tx.Gas }
func (tx *BlobTx) gasPrice() *big.Int                     { return tx.GasFeeCap }
func (tx *BlobTx) gasTipCap() *big.Int                    { return tx.GasTipCap }
func (tx *BlobTx) gasFeeCap() *big.Int                    { return tx.GasFeeCap }
func (tx *BlobTx) value() *big.Int                        { return tx.Value }
func (tx *BlobTx) nonce() uint64                          { return tx.Nonce }
func (tx *BlobTx) to() *Address                           { addr := tx.To; return &addr }
func (tx *BlobTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *BlobTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *BlobTx) copy() TxData {
	cpy := &BlobTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		BlobFeeCap: copyBig(tx.BlobFeeCap),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
		Sidecar:    tx.Sidecar.Copy(),
	}
	if tx.BlobHashes != nil {
		cpy.BlobHashes = make([]Hash, len(tx.BlobHashes))
		copy(cpy.BlobHashes, tx.BlobHashes)
	}
	return cpy
}

// SetCodeTx represents an EIP-7702 (type 0x04) set-code transaction.
type SetCodeTx struct {
	ChainID           *big.Int
	Nonce             uint64
	GasTipCap         *big.Int
	GasFeeCap         *big.Int
	Gas               uint64
	To                Address
	Value             *big.Int
	Data              []byte
	AccessList        AccessList
	AuthorizationList []Authorization
	V, R, S           *big.Int
}

func (tx *SetCodeTx) txType() byte                           { return SetCodeTxType }
func (tx *SetCodeTx) chainID() *big.Int                      { return tx.ChainID }
func (tx *SetCodeTx) accessList() AccessList                 { return tx.AccessList }
func (tx *SetCodeTx) data() []byte                           { return tx.Data }
func (tx *SetCodeTx) gas() uint64                            { return tx.Gas }
func (tx *SetCodeTx) gasPrice() *big.Int                     { return tx.GasFeeCap }
func (tx *SetCodeTx) gasTipCap() *big.Int                    { return tx.GasTipCap }
func (tx *SetCodeTx) gasFeeCap() *big.Int                    { return tx.GasFeeCap }
func (tx *SetCodeTx) value() *big.Int                        { return tx.Value }
func (tx *SetCodeTx) nonce() uint64                          { return tx.Nonce }
func (tx *SetCodeTx) to() *Address                           { addr := tx.To; return &addr }
func (tx *SetCodeTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *SetCodeTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *SetCodeTx) copy() TxData {
	cpy := &SetCodeTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
	if tx.AuthorizationList != nil {
		cpy.AuthorizationList = make([]Authorization, len(tx.AuthorizationList))
		for i, auth := range tx.AuthorizationList {
			cpy.AuthorizationList[i] = Authorization{
				ChainID: copyBig(auth.ChainID),
				Address: auth.Address,
				Nonce:   auth.Nonce,
				V:       copyBig(auth.V),
				R:       copyBig(auth.R),
				S:       copyBig(auth.S),
			}
		}
	}
	return cpy
}

// NewTransaction creates a new transaction with a deep copy of the given
// inner data.
func NewTransaction(inner TxData) *Transaction {
	return &Transaction{inner: inner.copy()}
}

// Type returns the transaction type.
func (tx *Transaction) Type() uint8 { return tx.inner.txType() }

// ChainId returns the chain ID of the transaction. Unprotected legacy
// transactions report zero.
func (tx *Transaction) ChainId() *big.Int { return tx.inner.chainID() }

// Protected reports whether the transaction is replay-protected. Only
// legacy transactions signed with v in {27, 28} are unprotected.
func (tx *Transaction) Protected() bool {
	if tx.Type() != LegacyTxType {
		return true
	}
	v, _, _ := tx.RawSignatureValues()
	return v != nil && isProtectedV(v)
}

// AccessList returns the access list of the transaction.
func (tx *Transaction) AccessList() AccessList { return tx.inner.accessList() }

// Data returns the input data of the transaction.
func (tx *Transaction) Data() []byte { return tx.inner.data() }

// Gas returns the gas limit of the transaction.
func (tx *Transaction) Gas() uint64 { return tx.inner.gas() }

// GasPrice returns the gas price of the transaction.
func (tx *Transaction) GasPrice() *big.Int { return bigOrZero(tx.inner.gasPrice()) }

// GasTipCap returns the gas tip cap (maxPriorityFeePerGas) of the transaction.
func (tx *Transaction) GasTipCap() *big.Int { return bigOrZero(tx.inner.gasTipCap()) }

// GasFeeCap returns the gas fee cap (maxFeePerGas) of the transaction.
func (tx *Transaction) GasFeeCap() *big.Int { return bigOrZero(tx.inner.gasFeeCap()) }

// Value returns the value transfer amount of the transaction.
func (tx *Transaction) Value() *big.Int { return bigOrZero(tx.inner.value()) }

// Nonce returns the nonce of the transaction.
func (tx *Transaction) Nonce() uint64 { return tx.inner.nonce() }

// To returns the recipient address, or nil for contract creation.
func (tx *Transaction) To() *Address { return tx.inner.to() }

// IsContractCreation reports whether the transaction deploys a contract.
func (tx *Transaction) IsContractCreation() bool { return tx.inner.to() == nil }

// AuthorizationList returns the authorization list for EIP-7702 SetCode transactions.
// Returns nil for all other transaction types.
func (tx *Transaction) AuthorizationList() []Authorization {
	if setCode, ok := tx.inner.(*SetCodeTx); ok {
		return setCode.AuthorizationList
	}
	return nil
}

// BlobGasFeeCap returns the blob gas fee cap for EIP-4844 blob transactions.
func (tx *Transaction) BlobGasFeeCap() *big.Int {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return bigOrZero(blob.BlobFeeCap)
	}
	return nil
}

// BlobHashes returns the versioned hashes for EIP-4844 blob transactions.
func (tx *Transaction) BlobHashes() []Hash {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobHashes
	}
	return nil
}

// BlobGas returns the blob gas used by an EIP-4844 blob transaction.
func (tx *Transaction) BlobGas() uint64 {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return uint64(len(blob.BlobHashes)) * BlobGasPerBlob
	}
	return 0
}

// BlobTxSidecar returns the sidecar of a blob transaction, if attached.
func (tx *Transaction) BlobTxSidecar() *BlobTxSidecar {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.Sidecar
	}
	return nil
}

// WithBlobTxSidecar returns a copy of a blob transaction carrying sc.
// Other transaction types are returned unchanged.
func (tx *Transaction) WithBlobTxSidecar(sc *BlobTxSidecar) *Transaction {
	blob, ok := tx.inner.(*BlobTx)
	if !ok {
		return tx
	}
	cpy := blob.copy().(*BlobTx)
	cpy.Sidecar = sc.Copy()
	return &Transaction{inner: cpy}
}

// RawSignatureValues returns the V, R, S signature values of the transaction.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.rawSignatureValues()
}

// Hash returns the transaction hash (Keccak-256 of the envelope encoding),
// caching on first call.
func (tx *Transaction) Hash() Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	h := keccak256Hash(tx.encodeEnvelope())
	tx.hash.Store(&h)
	return h
}

// Helpers

func copyBig(b *big.Int) *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).Set(b)
}

func copyAddressPtr(a *Address) *Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}

func copyAccessList(al AccessList) AccessList {
	if al == nil {
		return nil
	}
	cpy := make(AccessList, len(al))
	for i, tuple := range al {
		cpy[i] = AccessTuple{
			Address:     tuple.Address,
			StorageKeys: make([]Hash, len(tuple.StorageKeys)),
		}
		copy(cpy[i].StorageKeys, tuple.StorageKeys)
	}
	return cpy
}

// bigOrZero returns i if non-nil, otherwise a zero big.Int.
func bigOrZero(i *big.Int) *big.Int {
	if i != nil {
		return i
	}
	return new(big.Int)
}

func isProtectedV(v *big.Int) bool {
	if v.BitLen() <= 8 {
		n := v.Uint64()
		return n != 27 && n != 28 && n != 0 && n != 1
	}
	return true
}

// deriveChainID derives the chain ID from a legacy V value.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil || !isProtectedV(v) {
		return new(big.Int)
	}
	// v = chainID * 2 + 35 => chainID = (v - 35) / 2
	chainID := new(big.Int).Sub(v, big.NewInt(35))
	return chainID.Rsh(chainID, 1)
}
