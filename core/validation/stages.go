package validation

import (
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/crypto"
)

// checker runs the stages against one transaction. The sender recovered by
// the signature stage is carried to the later stages.
type checker struct {
	tx     *types.Transaction
	ctx    *Context
	sender types.Address
}

// stageFunc returns Valid() when the transaction passes the stage.
type stageFunc func(c *checker) Outcome

// pipeline lists the stages in the order they run. Changing the order
// changes which reason a multiply-invalid transaction reports.
var pipeline = []struct {
	stage Stage
	run   stageFunc
}{
	{StageFormat, (*checker).format},
	{StageSignature, (*checker).signature},
	{StageSizing, (*checker).sizing},
	{StageEconomic, (*checker).economic},
	{StageAccount, (*checker).account},
	{StageChain, (*checker).chain},
	{StagePool, (*checker).pool},
	{StagePlugin, (*checker).plugin},
}

func fail(r InvalidReason) Outcome { return Invalid(r) }

// fitsUint256 reports whether a numeric field is non-negative and at most
// 256 bits wide. Absent fields pass.
func fitsUint256(v *big.Int) bool {
	return v == nil || (v.Sign() >= 0 && v.BitLen() <= 256)
}

func (c *checker) format() Outcome {
	tx := c.tx
	if !c.ctx.Rules.SupportsTxType(tx.Type()) {
		return fail(InvalidTransactionFormat)
	}
	if !fitsUint256(tx.ChainId()) || !fitsUint256(tx.GasPrice()) ||
		!fitsUint256(tx.GasTipCap()) || !fitsUint256(tx.GasFeeCap()) ||
		!fitsUint256(tx.Value()) {
		return fail(InvalidTransactionFormat)
	}
	if tx.Type() == types.BlobTxType && !fitsUint256(tx.BlobGasFeeCap()) {
		return fail(InvalidTransactionFormat)
	}
	v, r, s := tx.RawSignatureValues()
	if !fitsUint256(v) || !fitsUint256(r) || !fitsUint256(s) {
		return fail(InvalidTransactionFormat)
	}
	for _, auth := range tx.AuthorizationList() {
		if !fitsUint256(auth.ChainID) || !fitsUint256(auth.R) || !fitsUint256(auth.S) {
			return fail(InvalidTransactionFormat)
		}
		if auth.V != nil && (auth.V.Sign() < 0 || auth.V.BitLen() > 8) {
			return fail(InvalidTransactionFormat)
		}
	}
	if tx.Nonce() == math.MaxUint64 {
		return fail(NonceOverflow)
	}
	return Valid()
}

func (c *checker) signature() Outcome {
	tx := c.tx
	chainID := c.ctx.chainID()
	if tx.Type() == types.LegacyTxType {
		v, _, _ := tx.RawSignatureValues()
		switch {
		case tx.Protected() && !c.ctx.Rules.IsEIP155:
			return fail(ReplayProtectedSignaturesNotSupported)
		case !tx.Protected() && c.ctx.Policy.RequireReplayProtection:
			return fail(ReplayProtectedSignatureRequired)
		case tx.Protected() && v.Cmp(big.NewInt(35)) < 0:
			return fail(InvalidSignature)
		}
	}
	if tx.Protected() {
		if id := tx.ChainId(); id == nil || id.Cmp(chainID) != 0 {
			return fail(WrongChainID)
		}
	}
	rec := c.ctx.Recoverer
	if rec == nil {
		rec = types.LatestSigner(chainID)
	}
	sender, err := rec.Sender(tx)
	if err != nil {
		if errors.Is(err, types.ErrInvalidChainID) {
			return fail(WrongChainID)
		}
		return fail(InvalidSignature)
	}
	c.sender = sender
	return Valid()
}

func (c *checker) sizing() Outcome {
	tx, ctx := c.tx, c.ctx
	gas := tx.Gas()

	minGas, err := core.MinimumGas(tx, ctx.Rules)
	if err != nil || gas < minGas {
		return fail(IntrinsicGasExceedsGasLimit)
	}
	if limit := txGasCap(ctx.Policy.MaxTxGas, ctx.Rules.MaxTxGas()); limit > 0 && gas > limit {
		return fail(ExceedsTransactionGasLimit)
	}
	if ctx.Mode == ModePool && ctx.Policy.PoolMaxTxGas > 0 && gas > ctx.Policy.PoolMaxTxGas {
		return fail(ExceedsPerTransactionGasLimit)
	}
	blockLimit := ctx.BlockGasRemaining
	if ctx.Mode == ModePool {
		blockLimit = ctx.BlockGasLimit
	}
	if blockLimit > 0 && gas > blockLimit {
		return fail(ExceedsBlockGasLimit)
	}
	if tx.IsContractCreation() && ctx.Rules.IsShanghai && len(tx.Data()) > params.MaxInitCodeSize {
		return fail(InitcodeTooLarge)
	}
	if tx.Type() == types.BlobTxType {
		return c.blobs()
	}
	return Valid()
}

// txGasCap returns the smaller non-zero cap, zero when neither applies.
func txGasCap(configured, protocol uint64) uint64 {
	switch {
	case configured == 0:
		return protocol
	case protocol == 0:
		return configured
	}
	return min(configured, protocol)
}

func (c *checker) blobs() Outcome {
	tx, ctx := c.tx, c.ctx
	hashes := tx.BlobHashes()

	blobGasLimit := ctx.BlobGasRemaining
	if ctx.Mode == ModePool {
		blobGasLimit = uint64(ctx.Rules.MaxBlobsPerBlock()) * types.BlobGasPerBlob
	}
	if blobGasLimit > 0 && tx.BlobGas() > blobGasLimit {
		return fail(TotalBlobGasTooHigh)
	}
	if len(hashes) == 0 {
		return fail(InvalidBlobCount)
	}
	if limit := ctx.Rules.MaxBlobsPerTx(); limit > 0 && len(hashes) > limit {
		return fail(InvalidBlobCount)
	}
	sc := tx.BlobTxSidecar()
	if sc != nil && (len(sc.Blobs) != len(hashes) || len(sc.Commitments) != len(hashes) || len(sc.Proofs) != len(hashes)) {
		return fail(InvalidBlobCount)
	}
	for _, h := range hashes {
		if h[0] != types.VersionedHashVersionKZG {
			return fail(InvalidBlobs)
		}
	}
	if sc == nil {
		if ctx.Mode == ModePool {
			return fail(InvalidBlobs)
		}
		return Valid()
	}
	for i, commitment := range sc.Commitments {
		if types.KZGToVersionedHash(commitment) != hashes[i] {
			return fail(InvalidBlobs)
		}
	}
	verifier := ctx.BlobVerifier
	if verifier == nil {
		verifier = crypto.KZGVerifier{}
	}
	for i := range sc.Blobs {
		if err := verifier.VerifyBlobProof(&sc.Blobs[i], sc.Commitments[i], sc.Proofs[i]); err != nil {
			return fail(InvalidBlobs)
		}
	}
	return Valid()
}

func (c *checker) economic() Outcome {
	tx, ctx := c.tx, c.ctx
	feeCap, tip := tx.GasFeeCap(), tx.GasTipCap()
	legacyPricing := tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType

	if tip.Cmp(feeCap) > 0 {
		return fail(MaxPriorityFeePerGasExceedsMaxFeePerGas)
	}
	if ctx.Mode == ModePool {
		if floor := ctx.Policy.MinPriorityFee; floor != nil && tip.Cmp(floor) < 0 {
			return fail(TransactionPriceTooLow)
		}
		if floor := ctx.Policy.MinGasPrice; floor != nil && feeCap.Cmp(floor) < 0 {
			return fail(GasPriceTooLow)
		}
	}
	if ctx.BaseFee != nil && feeCap.Cmp(ctx.BaseFee) < 0 {
		if legacyPricing {
			return fail(GasPriceBelowCurrentBaseFee)
		}
		return fail(MaxFeePerGasBelowCurrentBaseFee)
	}
	if tx.Type() == types.BlobTxType && ctx.BlobBaseFee != nil && tx.BlobGasFeeCap().Cmp(ctx.BlobBaseFee) < 0 {
		return fail(BlobGasPriceBelowCurrentBlobBaseFee)
	}
	if ctx.Mode == ModePool && ctx.Policy.TxFeeCap != nil && ctx.Policy.TxFeeCap.Sign() > 0 {
		fee := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(tx.Gas()))
		if fee.Cmp(ctx.Policy.TxFeeCap) > 0 {
			return fail(TxFeecapExceeded)
		}
	}
	cost, ok := upfrontCost(tx)
	if !ok {
		return fail(UpfrontCostExceedsUint256)
	}
	if ctx.stateAvailable() {
		balance := ctx.State.Balance(c.sender)
		if balance == nil {
			balance = new(uint256.Int)
		}
		if balance.Lt(cost) {
			return fail(UpfrontCostExceedsBalance)
		}
	}
	return Valid()
}

// upfrontCost returns value + gasFeeCap*gas + blobFeeCap*blobGas, or false
// when the sum does not fit in 256 bits.
func upfrontCost(tx *types.Transaction) (*uint256.Int, bool) {
	feeCap, overflow := uint256.FromBig(tx.GasFeeCap())
	if overflow {
		return nil, false
	}
	cost, overflow := new(uint256.Int).MulOverflow(feeCap, uint256.NewInt(tx.Gas()))
	if overflow {
		return nil, false
	}
	if tx.Type() == types.BlobTxType {
		blobFeeCap, overflow := uint256.FromBig(tx.BlobGasFeeCap())
		if overflow {
			return nil, false
		}
		blobCost, overflow := new(uint256.Int).MulOverflow(blobFeeCap, uint256.NewInt(tx.BlobGas()))
		if overflow {
			return nil, false
		}
		if _, overflow = cost.AddOverflow(cost, blobCost); overflow {
			return nil, false
		}
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, false
	}
	if _, overflow = cost.AddOverflow(cost, value); overflow {
		return nil, false
	}
	return cost, true
}

func (c *checker) account() Outcome {
	tx, ctx := c.tx, c.ctx
	if ctx.stateAvailable() {
		expected := ctx.State.Nonce(c.sender)
		nonce := tx.Nonce()
		if nonce < expected {
			return fail(NonceTooLow)
		}
		switch ctx.Mode {
		case ModeBlock:
			if nonce > expected {
				return fail(NonceTooHigh)
			}
		case ModePool:
			if lookahead := ctx.Policy.NonceLookahead; lookahead > 0 && nonce-expected > lookahead {
				return fail(NonceTooFarInFutureForSender)
			}
		}
		if code := ctx.State.Code(c.sender); len(code) > 0 {
			if _, ok := types.ParseDelegation(code); !ok {
				return fail(TxSenderNotAuthorized)
			}
		}
	}
	if tx.Type() == types.SetCodeTxType && len(tx.AuthorizationList()) == 0 {
		return fail(EmptyCodeDelegation)
	}
	return Valid()
}

func (c *checker) chain() Outcome {
	switch c.ctx.Chain {
	case ChainHeadUnavailable:
		return fail(ChainHeadNotAvailable)
	case ChainWorldStateUnavailable:
		return fail(ChainHeadWorldStateNotAvailable)
	case ChainBlockNotFound:
		return fail(BlockNotFound)
	}
	if c.ctx.State == nil {
		return fail(ChainHeadWorldStateNotAvailable)
	}
	return Valid()
}

func (c *checker) pool() Outcome {
	ctx := c.ctx
	if ctx.Mode != ModePool {
		return Valid()
	}
	if ctx.Pool == nil || ctx.Pool.Disabled() {
		return fail(TxPoolDisabled)
	}
	if ctx.Pool.Has(c.tx.Hash()) {
		return fail(TransactionAlreadyKnown)
	}
	if old := ctx.Pool.Pending(c.sender, c.tx.Nonce()); old != nil {
		if ReplacementUnderpriced(old, c.tx, ctx.Policy.PriceBump, ctx.Policy.BlobPriceBump) {
			return fail(TransactionReplacementUnderpriced)
		}
	}
	return Valid()
}

func (c *checker) plugin() Outcome {
	for _, v := range c.ctx.Validators {
		if err := v.ValidateTx(c.tx, c.sender); err != nil {
			return InvalidWithCause(PluginTxValidator, err.Error())
		}
	}
	if c.ctx.Mode != ModePool {
		return Valid()
	}
	for _, v := range c.ctx.PoolValidators {
		if err := v.ValidatePoolTx(c.tx, c.sender); err != nil {
			return InvalidWithCause(PluginTxPoolValidator, err.Error())
		}
	}
	return Valid()
}
