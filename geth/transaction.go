package geth

import (
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/eth2030/admission/core/types"
)

// ToGethTransaction builds the equivalent go-ethereum transaction field by
// field. Blob sidecars are not carried over; they do not affect the hash or
// the canonical encoding.
func ToGethTransaction(tx *types.Transaction) (*gethtypes.Transaction, error) {
	v, r, s := tx.RawSignatureValues()
	var to *gethcommon.Address
	if tx.To() != nil {
		addr := ToGethAddress(*tx.To())
		to = &addr
	}

	switch tx.Type() {
	case types.LegacyTxType:
		return gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    tx.Nonce(),
			GasPrice: tx.GasPrice(),
			Gas:      tx.Gas(),
			To:       to,
			Value:    tx.Value(),
			Data:     tx.Data(),
			V:        v,
			R:        r,
			S:        s,
		}), nil

	case types.AccessListTxType:
		return gethtypes.NewTx(&gethtypes.AccessListTx{
			ChainID:    tx.ChainId(),
			Nonce:      tx.Nonce(),
			GasPrice:   tx.GasPrice(),
			Gas:        tx.Gas(),
			To:         to,
			Value:      tx.Value(),
			Data:       tx.Data(),
			AccessList: ToGethAccessList(tx.AccessList()),
			V:          v,
			R:          r,
			S:          s,
		}), nil

	case types.DynamicFeeTxType:
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:    tx.ChainId(),
			Nonce:      tx.Nonce(),
			GasTipCap:  tx.GasTipCap(),
			GasFeeCap:  tx.GasFeeCap(),
			Gas:        tx.Gas(),
			To:         to,
			Value:      tx.Value(),
			Data:       tx.Data(),
			AccessList: ToGethAccessList(tx.AccessList()),
			V:          v,
			R:          r,
			S:          s,
		}), nil

	case types.BlobTxType, types.SetCodeTxType:
		if to == nil {
			return nil, fmt.Errorf("geth: type %d transaction without recipient", tx.Type())
		}
		f, err := newUint256Fields(tx)
		if err != nil {
			return nil, err
		}
		if tx.Type() == types.BlobTxType {
			blobFeeCap, err := ToUint256(tx.BlobGasFeeCap())
			if err != nil {
				return nil, err
			}
			return gethtypes.NewTx(&gethtypes.BlobTx{
				ChainID:    f.chainID,
				Nonce:      tx.Nonce(),
				GasTipCap:  f.tip,
				GasFeeCap:  f.feeCap,
				Gas:        tx.Gas(),
				To:         *to,
				Value:      f.value,
				Data:       tx.Data(),
				AccessList: ToGethAccessList(tx.AccessList()),
				BlobFeeCap: blobFeeCap,
				BlobHashes: toGethHashes(tx.BlobHashes()),
				V:          f.v,
				R:          f.r,
				S:          f.s,
			}), nil
		}
		auths, err := toGethAuthList(tx.AuthorizationList())
		if err != nil {
			return nil, err
		}
		return gethtypes.NewTx(&gethtypes.SetCodeTx{
			ChainID:    f.chainID,
			Nonce:      tx.Nonce(),
			GasTipCap:  f.tip,
			GasFeeCap:  f.feeCap,
			Gas:        tx.Gas(),
			To:         *to,
			Value:      f.value,
			Data:       tx.Data(),
			AccessList: ToGethAccessList(tx.AccessList()),
			AuthList:   auths,
			V:          f.v,
			R:          f.r,
			S:          f.s,
		}), nil
	}
	return nil, fmt.Errorf("geth: unsupported transaction type %d", tx.Type())
}

// uint256Fields holds the fields go-ethereum stores as uint256 for blob and
// set-code transactions.
type uint256Fields struct {
	chainID, tip, feeCap, value *uint256.Int
	v, r, s                     *uint256.Int
}

func newUint256Fields(tx *types.Transaction) (*uint256Fields, error) {
	v, r, s := tx.RawSignatureValues()
	var (
		f   uint256Fields
		err error
	)
	if f.chainID, err = ToUint256(tx.ChainId()); err != nil {
		return nil, err
	}
	if f.tip, err = ToUint256(tx.GasTipCap()); err != nil {
		return nil, err
	}
	if f.feeCap, err = ToUint256(tx.GasFeeCap()); err != nil {
		return nil, err
	}
	if f.value, err = ToUint256(tx.Value()); err != nil {
		return nil, err
	}
	if f.v, err = ToUint256(v); err != nil {
		return nil, err
	}
	if f.r, err = ToUint256(r); err != nil {
		return nil, err
	}
	if f.s, err = ToUint256(s); err != nil {
		return nil, err
	}
	return &f, nil
}

// FromGethTransaction converts a go-ethereum transaction through its
// canonical encoding.
func FromGethTransaction(gtx *gethtypes.Transaction) (*types.Transaction, error) {
	raw, err := gtx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("geth: %w", err)
	}
	return types.DecodeTxRLP(raw)
}
