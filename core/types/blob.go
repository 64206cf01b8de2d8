package types

import (
	"github.com/minio/sha256-simd"
)

// EIP-4844 sizes and constants.
const (
	// BlobSize is the byte length of a blob: 4096 field elements of 32 bytes.
	BlobSize = 4096 * 32

	// BlobGasPerBlob is the blob gas consumed by each blob (2^17).
	BlobGasPerBlob = 1 << 17

	// VersionedHashVersionKZG is the version byte of KZG versioned hashes.
	VersionedHashVersionKZG byte = 0x01
)

// Blob is the data payload carried by a blob transaction.
type Blob [BlobSize]byte

// KZGCommitment is a compressed BLS12-381 G1 point committing to a blob.
type KZGCommitment [48]byte

// KZGProof is a compressed BLS12-381 G1 point proving a blob commitment.
type KZGProof [48]byte

// BlobTxSidecar holds the blobs of a blob transaction together with their
// commitments and proofs, index-aligned with the versioned hashes.
type BlobTxSidecar struct {
	Blobs       []Blob
	Commitments []KZGCommitment
	Proofs      []KZGProof
}

// Copy returns a deep copy of the sidecar. A nil sidecar copies to nil.
func (sc *BlobTxSidecar) Copy() *BlobTxSidecar {
	if sc == nil {
		return nil
	}
	return &BlobTxSidecar{
		Blobs:       append([]Blob(nil), sc.Blobs...),
		Commitments: append([]KZGCommitment(nil), sc.Commitments...),
		Proofs:      append([]KZGProof(nil), sc.Proofs...),
	}
}

// BlobHashes computes the versioned hashes of the sidecar's commitments.
func (sc *BlobTxSidecar) BlobHashes() []Hash {
	hashes := make([]Hash, len(sc.Commitments))
	for i := range sc.Commitments {
		hashes[i] = KZGToVersionedHash(sc.Commitments[i])
	}
	return hashes
}

// KZGToVersionedHash returns 0x01 || sha256(commitment)[1:].
func KZGToVersionedHash(c KZGCommitment) Hash {
	h := Hash(sha256.Sum256(c[:]))
	h[0] = VersionedHashVersionKZG
	return h
}
