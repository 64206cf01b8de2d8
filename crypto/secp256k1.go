package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/eth2030/admission/core/types"
)

// SignatureLength is the size of a [R || S || V] signature.
const SignatureLength = 65

var (
	errInvalidPrivKey = errors.New("crypto: invalid private key")
	errInvalidHashLen = errors.New("crypto: hash must be 32 bytes")
	errInvalidSigLen  = errors.New("crypto: signature must be 65 bytes [R || S || V]")
	errInvalidPubkey  = errors.New("crypto: invalid public key")
)

var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// ToKey parses a 32-byte private key. Zero and values not below the curve
// order are rejected.
func ToKey(b []byte) (*secp256k1.PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: length %d", errInvalidPrivKey, len(b))
	}
	d := new(big.Int).SetBytes(b)
	if d.Sign() == 0 || d.Cmp(secp256k1N) >= 0 {
		return nil, errInvalidPrivKey
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}

// HexToKey parses a hex encoded private key with optional 0x prefix.
func HexToKey(s string) (*secp256k1.PrivateKey, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPrivKey, err)
	}
	return ToKey(b)
}

// Sign calculates a recoverable ECDSA signature in [R || S || V] form with V
// in {0, 1}. The produced S is always in the lower half of the curve order.
func Sign(hash []byte, prv *secp256k1.PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, errInvalidHashLen
	}
	compact := ecdsa.SignCompact(prv, hash, false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// SigToPub recovers the public key that produced sig over hash.
func SigToPub(hash, sig []byte) (*secp256k1.PublicKey, error) {
	if len(hash) != 32 {
		return nil, errInvalidHashLen
	}
	if len(sig) != SignatureLength {
		return nil, errInvalidSigLen
	}
	if sig[64] > 1 {
		return nil, fmt.Errorf("crypto: invalid recovery id %d", sig[64])
	}
	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("crypto: recovery failed: %w", err)
	}
	return pub, nil
}

// Ecrecover returns the 65-byte uncompressed public key that produced sig.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// RecoverAddress recovers the signing address of sig over hash.
func RecoverAddress(hash, sig []byte) (types.Address, error) {
	pub, err := SigToPub(hash, sig)
	if err != nil {
		return types.Address{}, err
	}
	return PubkeyToAddress(pub), nil
}

// PubkeyToAddress derives the Ethereum address from a public key.
// Address = Keccak256(pubkey[1:])[12:]
func PubkeyToAddress(p *secp256k1.PublicKey) types.Address {
	return types.PubkeyToAddress(p)
}

// CompressPubkey encodes a public key to the 33-byte compressed format.
func CompressPubkey(pub *secp256k1.PublicKey) []byte {
	return pub.SerializeCompressed()
}

// DecompressPubkey parses a 33-byte compressed public key.
func DecompressPubkey(b []byte) (*secp256k1.PublicKey, error) {
	if len(b) != 33 {
		return nil, errInvalidPubkey
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPubkey, err)
	}
	return pub, nil
}

// ValidateSignatureValues checks r, s, v for validity. If homestead is true,
// s must be in the lower half of the curve order.
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	return types.ValidateSignatureValues(v, r, s, homestead)
}
