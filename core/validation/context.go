package validation

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
)

// Mode selects between block inclusion and mempool admission rules.
type Mode uint8

const (
	// ModeBlock classifies a transaction for inclusion in a block being
	// built or imported.
	ModeBlock Mode = iota
	// ModePool classifies a transaction submitted to the mempool.
	ModePool
)

func (m Mode) String() string {
	if m == ModePool {
		return "pool"
	}
	return "block"
}

// ChainStatus reports whether the chain data needed for classification is
// available.
type ChainStatus uint8

const (
	ChainReady ChainStatus = iota
	ChainHeadUnavailable
	ChainWorldStateUnavailable
	ChainBlockNotFound
)

// StateView is a read-only view of account state at the chain head.
type StateView interface {
	Nonce(addr types.Address) uint64
	Balance(addr types.Address) *uint256.Int
	Code(addr types.Address) []byte
}

// PoolView is a read-only view of the mempool.
type PoolView interface {
	// Disabled reports whether the pool accepts transactions at all.
	Disabled() bool
	// Has reports whether a transaction with the hash is already pooled.
	Has(hash types.Hash) bool
	// Pending returns the pooled transaction of sender at nonce, or nil.
	Pending(sender types.Address, nonce uint64) *types.Transaction
}

// Recoverer recovers the sender of a signed transaction. types.Signer
// implementations satisfy it.
type Recoverer interface {
	Sender(tx *types.Transaction) (types.Address, error)
}

// BlobVerifier checks a KZG blob proof.
type BlobVerifier interface {
	VerifyBlobProof(blob *types.Blob, commitment types.KZGCommitment, proof types.KZGProof) error
}

// TxValidator is a plugin hook run in every mode. A non-nil error rejects
// the transaction with PLUGIN_TX_VALIDATOR and the error text as cause.
type TxValidator interface {
	ValidateTx(tx *types.Transaction, sender types.Address) error
}

// PoolTxValidator is a plugin hook run in pool mode only. A non-nil error
// rejects the transaction with PLUGIN_TX_POOL_VALIDATOR.
type PoolTxValidator interface {
	ValidatePoolTx(tx *types.Transaction, sender types.Address) error
}

// TxValidatorFunc adapts a function to TxValidator.
type TxValidatorFunc func(tx *types.Transaction, sender types.Address) error

func (f TxValidatorFunc) ValidateTx(tx *types.Transaction, sender types.Address) error {
	return f(tx, sender)
}

// PoolTxValidatorFunc adapts a function to PoolTxValidator.
type PoolTxValidatorFunc func(tx *types.Transaction, sender types.Address) error

func (f PoolTxValidatorFunc) ValidatePoolTx(tx *types.Transaction, sender types.Address) error {
	return f(tx, sender)
}

// Policy holds node-operator settings. Zero or nil fields disable the
// corresponding check.
type Policy struct {
	// MinGasPrice is the lowest gas price, or max fee per gas, accepted
	// into the pool.
	MinGasPrice *big.Int
	// MinPriorityFee is the lowest tip accepted into the pool.
	MinPriorityFee *big.Int
	// TxFeeCap bounds gasFeeCap*gas of pooled transactions, in wei.
	TxFeeCap *big.Int
	// MaxTxGas is the configured per-transaction gas cap in every mode.
	MaxTxGas uint64
	// PoolMaxTxGas is the per-transaction gas cap of the pool.
	PoolMaxTxGas uint64
	// NonceLookahead is how far past the account nonce a pooled
	// transaction may be.
	NonceLookahead uint64
	// PriceBump is the percentage a replacement must raise both fee cap
	// and tip by.
	PriceBump uint64
	// BlobPriceBump is the percentage a blob replacement must raise the
	// blob fee cap by.
	BlobPriceBump uint64
	// RequireReplayProtection rejects unprotected legacy transactions.
	RequireReplayProtection bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinGasPrice:    big.NewInt(1_000_000_000),
		MinPriorityFee: new(big.Int),
		TxFeeCap:       big.NewInt(1e18),
		NonceLookahead: 64,
		PriceBump:      10,
		BlobPriceBump:  100,
	}
}

// Context holds everything a classification may consult. A Context is
// read-only during classification and may be shared between goroutines.
type Context struct {
	Mode  Mode
	Rules core.Rules
	// ChainID overrides Rules.ChainID when set.
	ChainID *big.Int

	BaseFee     *big.Int
	BlobBaseFee *big.Int

	// BlockGasLimit bounds pool admission; BlockGasRemaining and
	// BlobGasRemaining bound block inclusion. Zero disables the check.
	BlockGasLimit     uint64
	BlockGasRemaining uint64
	BlobGasRemaining  uint64

	Chain ChainStatus
	State StateView
	Pool  PoolView

	Policy Policy

	Validators     []TxValidator
	PoolValidators []PoolTxValidator

	// Recoverer defaults to the latest signer for the chain ID.
	Recoverer Recoverer
	// BlobVerifier defaults to KZG verification with the ceremony setup.
	BlobVerifier BlobVerifier
}

func (c *Context) chainID() *big.Int {
	if c.ChainID != nil {
		return c.ChainID
	}
	if c.Rules.ChainID != nil {
		return c.Rules.ChainID
	}
	return new(big.Int)
}

// stateAvailable reports whether account checks can run.
func (c *Context) stateAvailable() bool {
	return c.State != nil && c.Chain == ChainReady
}
