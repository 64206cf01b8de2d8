package crypto

import (
	"errors"
	"fmt"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/eth2030/admission/core/types"
)

// ErrKZGProofInvalid is returned when a blob proof does not verify against
// its commitment.
var ErrKZGProofInvalid = errors.New("kzg: blob proof verification failed")

var (
	kzgOnce sync.Once
	kzgCtx  *goethkzg.Context
	kzgErr  error
)

// kzgContext returns the process-wide KZG context, loading the ceremony
// trusted setup on first use. Loading takes a few seconds.
func kzgContext() (*goethkzg.Context, error) {
	kzgOnce.Do(func() {
		kzgCtx, kzgErr = goethkzg.NewContext4096Secure()
		if kzgErr != nil {
			kzgErr = fmt.Errorf("kzg: failed to initialize go-eth-kzg context: %w", kzgErr)
		}
	})
	return kzgCtx, kzgErr
}

// KZGVerifier verifies EIP-4844 blob proofs with the Ethereum ceremony
// trusted setup.
type KZGVerifier struct{}

// VerifyBlobProof implements the blob verifier used by transaction
// validation.
func (KZGVerifier) VerifyBlobProof(blob *types.Blob, commitment types.KZGCommitment, proof types.KZGProof) error {
	return VerifyBlobProof(blob, commitment, proof)
}

// VerifyBlobProof checks that proof opens commitment to blob.
func VerifyBlobProof(blob *types.Blob, commitment types.KZGCommitment, proof types.KZGProof) error {
	ctx, err := kzgContext()
	if err != nil {
		return err
	}
	if err := ctx.VerifyBlobKZGProof((*goethkzg.Blob)(blob), goethkzg.KZGCommitment(commitment), goethkzg.KZGProof(proof)); err != nil {
		return fmt.Errorf("%w: %v", ErrKZGProofInvalid, err)
	}
	return nil
}

// BlobToCommitment computes the KZG commitment of blob.
func BlobToCommitment(blob *types.Blob) (types.KZGCommitment, error) {
	ctx, err := kzgContext()
	if err != nil {
		return types.KZGCommitment{}, err
	}
	c, err := ctx.BlobToKZGCommitment((*goethkzg.Blob)(blob), 0)
	if err != nil {
		return types.KZGCommitment{}, fmt.Errorf("kzg: BlobToKZGCommitment failed: %w", err)
	}
	return types.KZGCommitment(c), nil
}

// ComputeBlobProof computes the KZG proof of blob for commitment.
func ComputeBlobProof(blob *types.Blob, commitment types.KZGCommitment) (types.KZGProof, error) {
	ctx, err := kzgContext()
	if err != nil {
		return types.KZGProof{}, err
	}
	p, err := ctx.ComputeBlobKZGProof((*goethkzg.Blob)(blob), goethkzg.KZGCommitment(commitment), 0)
	if err != nil {
		return types.KZGProof{}, fmt.Errorf("kzg: ComputeBlobKZGProof failed: %w", err)
	}
	return types.KZGProof(p), nil
}

// NewBlobSidecar commits to and proves each blob, returning a sidecar whose
// versioned hashes can be placed in a blob transaction.
func NewBlobSidecar(blobs []types.Blob) (*types.BlobTxSidecar, error) {
	sc := &types.BlobTxSidecar{
		Blobs:       make([]types.Blob, len(blobs)),
		Commitments: make([]types.KZGCommitment, len(blobs)),
		Proofs:      make([]types.KZGProof, len(blobs)),
	}
	copy(sc.Blobs, blobs)
	for i := range sc.Blobs {
		c, err := BlobToCommitment(&sc.Blobs[i])
		if err != nil {
			return nil, err
		}
		p, err := ComputeBlobProof(&sc.Blobs[i], c)
		if err != nil {
			return nil, err
		}
		sc.Commitments[i], sc.Proofs[i] = c, p
	}
	return sc, nil
}
