package validation

import (
	"math/big"

	"github.com/eth2030/admission/core/types"
)

// ReplacementUnderpriced reports whether next may not replace old, a pooled
// transaction of the same sender and nonce. Both the fee cap and the tip must
// rise strictly and by at least priceBump percent. When both are blob
// transactions the blob fee cap must also rise by blobPriceBump percent.
func ReplacementUnderpriced(old, next *types.Transaction, priceBump, blobPriceBump uint64) bool {
	if old.GasFeeCap().Cmp(next.GasFeeCap()) >= 0 || old.GasTipCap().Cmp(next.GasTipCap()) >= 0 {
		return true
	}
	if next.GasFeeCap().Cmp(bumped(old.GasFeeCap(), priceBump)) < 0 {
		return true
	}
	if next.GasTipCap().Cmp(bumped(old.GasTipCap(), priceBump)) < 0 {
		return true
	}
	if old.Type() == types.BlobTxType && next.Type() == types.BlobTxType {
		if next.BlobGasFeeCap().Cmp(bumped(old.BlobGasFeeCap(), blobPriceBump)) < 0 {
			return true
		}
	}
	return false
}

// bumped returns v * (100 + pct) / 100.
func bumped(v *big.Int, pct uint64) *big.Int {
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(100+pct))
	return out.Div(out, big.NewInt(100))
}
