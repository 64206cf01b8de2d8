package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var (
	// ErrInvalidSig is returned when v, r or s are out of range.
	ErrInvalidSig = errors.New("invalid transaction v, r, s values")

	// ErrInvalidChainID is returned when a transaction's chain ID does not
	// match the signer.
	ErrInvalidChainID = errors.New("invalid chain id for signer")

	// ErrRecoveryFailed is returned when no public key can be recovered
	// from an otherwise well-formed signature.
	ErrRecoveryFailed = errors.New("public key recovery failed")
)

// secp256k1 curve order, used for signature validation.
var (
	secp256k1N, _  = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// Signer provides methods for hashing transactions and recovering the sender.
type Signer interface {
	// ChainID returns the chain ID this signer operates on; nil for
	// signers that predate replay protection.
	ChainID() *big.Int

	// Hash returns the signing hash for the given transaction.
	Hash(tx *Transaction) Hash

	// Sender recovers the sender address from the transaction's signature.
	Sender(tx *Transaction) (Address, error)

	// SignatureValues converts a 65-byte [R || S || V] signature with V in
	// {0, 1} into the transaction's raw r, s, v values.
	SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error)
}

// HomesteadSigner accepts only unprotected legacy transactions.
type HomesteadSigner struct{}

func (HomesteadSigner) ChainID() *big.Int { return nil }

func (HomesteadSigner) Hash(tx *Transaction) Hash { return tx.signingHash(nil) }

func (s HomesteadSigner) Sender(tx *Transaction) (Address, error) {
	if tx.Type() != LegacyTxType {
		return Address{}, ErrTxTypeNotSupported
	}
	v, r, rs := tx.RawSignatureValues()
	if v == nil || v.BitLen() > 8 || (v.Uint64() != 27 && v.Uint64() != 28) {
		return Address{}, ErrInvalidSig
	}
	return RecoverPlain(s.Hash(tx), r, rs, byte(v.Uint64()-27), true)
}

func (HomesteadSigner) SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrTxTypeNotSupported
	}
	r, s, v, err = decodeSignature(sig)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, s, v.Add(v, big.NewInt(27)), nil
}

// EIP155Signer implements Signer for legacy transactions, accepting both
// replay-protected and unprotected signatures.
type EIP155Signer struct {
	chainID, chainIDMul *big.Int
}

// NewEIP155Signer creates a signer for EIP-155 legacy transactions.
func NewEIP155Signer(chainID *big.Int) EIP155Signer {
	if chainID == nil {
		chainID = new(big.Int)
	}
	return EIP155Signer{
		chainID:    chainID,
		chainIDMul: new(big.Int).Lsh(chainID, 1),
	}
}

func (s EIP155Signer) ChainID() *big.Int { return s.chainID }

func (s EIP155Signer) Hash(tx *Transaction) Hash {
	return tx.signingHash(s.chainID)
}

func (s EIP155Signer) Sender(tx *Transaction) (Address, error) {
	if tx.Type() != LegacyTxType {
		return Address{}, ErrTxTypeNotSupported
	}
	if !tx.Protected() {
		return HomesteadSigner{}.Sender(tx)
	}
	if tx.ChainId().Cmp(s.chainID) != 0 {
		return Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainID, tx.ChainId(), s.chainID)
	}
	v, r, rs := tx.RawSignatureValues()
	// V = chainID*2 + 35 + recoveryID
	rec := new(big.Int).Sub(v, s.chainIDMul)
	rec.Sub(rec, big.NewInt(35))
	if rec.Sign() < 0 || rec.Cmp(big.NewInt(1)) > 0 {
		return Address{}, ErrInvalidSig
	}
	return RecoverPlain(s.Hash(tx), r, rs, byte(rec.Uint64()), true)
}

func (s EIP155Signer) SignatureValues(tx *Transaction, sig []byte) (r, rs, v *big.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrTxTypeNotSupported
	}
	r, rs, v, err = decodeSignature(sig)
	if err != nil {
		return nil, nil, nil, err
	}
	if s.chainID.Sign() != 0 {
		v.Add(v, big.NewInt(35))
		v.Add(v, s.chainIDMul)
	} else {
		v.Add(v, big.NewInt(27))
	}
	return r, rs, v, nil
}

// LondonSigner supports every transaction type: legacy transactions are
// handled as EIP-155, typed transactions carry v in {0, 1}.
type LondonSigner struct {
	EIP155Signer
}

// NewLondonSigner creates a signer that supports all tx types.
func NewLondonSigner(chainID *big.Int) LondonSigner {
	return LondonSigner{NewEIP155Signer(chainID)}
}

func (s LondonSigner) Hash(tx *Transaction) Hash {
	if tx.Type() == LegacyTxType {
		return s.EIP155Signer.Hash(tx)
	}
	return tx.signingHash(nil)
}

func (s LondonSigner) Sender(tx *Transaction) (Address, error) {
	switch tx.Type() {
	case LegacyTxType:
		return s.EIP155Signer.Sender(tx)
	case AccessListTxType, DynamicFeeTxType, BlobTxType, SetCodeTxType:
	default:
		return Address{}, ErrTxTypeNotSupported
	}
	if tx.ChainId() == nil || tx.ChainId().Cmp(s.chainID) != 0 {
		return Address{}, fmt.Errorf("%w: have %v want %d", ErrInvalidChainID, tx.ChainId(), s.chainID)
	}
	v, r, rs := tx.RawSignatureValues()
	if v == nil || v.BitLen() > 1 {
		return Address{}, ErrInvalidSig
	}
	return RecoverPlain(s.Hash(tx), r, rs, byte(v.Uint64()), true)
}

func (s LondonSigner) SignatureValues(tx *Transaction, sig []byte) (r, rs, v *big.Int, err error) {
	if tx.Type() == LegacyTxType {
		return s.EIP155Signer.SignatureValues(tx, sig)
	}
	return decodeSignature(sig)
}

// LatestSigner returns the most feature-complete signer for the given chain ID.
func LatestSigner(chainID *big.Int) Signer {
	return NewLondonSigner(chainID)
}

// Sender recovers the sender of tx using signer.
func Sender(signer Signer, tx *Transaction) (Address, error) {
	return signer.Sender(tx)
}

// SignTx signs tx with key and returns a signed copy.
func SignTx(tx *Transaction, signer Signer, key *secp256k1.PrivateKey) (*Transaction, error) {
	h := signer.Hash(tx)
	compact := ecdsa.SignCompact(key, h[:], false)
	// SignCompact yields [27+recID || R || S]; reorder to [R || S || recID].
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return tx.WithSignature(signer, sig)
}

// WithSignature returns a copy of tx carrying the given [R || S || V]
// signature.
func (tx *Transaction) WithSignature(signer Signer, sig []byte) (*Transaction, error) {
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy := tx.inner.copy()
	cpy.setSignatureValues(signer.ChainID(), v, r, s)
	return &Transaction{inner: cpy}, nil
}

// ValidateSignatureValues checks r and s are in [1, N) and, when homestead
// is set, that s is in the lower half of the curve order (EIP-2).
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil || r.Sign() < 1 || s.Sign() < 1 {
		return false
	}
	if homestead && s.Cmp(secp256k1HalfN) > 0 {
		return false
	}
	return r.Cmp(secp256k1N) < 0 && s.Cmp(secp256k1N) < 0 && (v == 0 || v == 1)
}

// RecoverPlain recovers the address that produced the signature (r, s, v)
// over sighash. v is the bare recovery id.
func RecoverPlain(sighash Hash, r, s *big.Int, v byte, homestead bool) (Address, error) {
	if !ValidateSignatureValues(v, r, s, homestead) {
		return Address{}, ErrInvalidSig
	}
	compact := make([]byte, 65)
	compact[0] = 27 + v
	r.FillBytes(compact[1:33])
	s.FillBytes(compact[33:65])
	pub, _, err := ecdsa.RecoverCompact(compact, sighash[:])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the account address of a secp256k1 public key.
func PubkeyToAddress(pub *secp256k1.PublicKey) Address {
	h := keccak256Hash(pub.SerializeUncompressed()[1:])
	return BytesToAddress(h[12:])
}

func decodeSignature(sig []byte) (r, s, v *big.Int, err error) {
	if len(sig) != 65 {
		return nil, nil, nil, fmt.Errorf("wrong size for signature: got %d, want 65", len(sig))
	}
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})
	return r, s, v, nil
}
