// Package geth converts admission types to and from go-ethereum's, so
// transactions and requests can be cross-checked against another client.
// This is the only package that imports go-ethereum's core types.
package geth

import (
	"errors"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/eth2030/admission/core/types"
)

// ErrOverflow is returned when a value does not fit go-ethereum's 256-bit fields.
var ErrOverflow = errors.New("geth: value exceeds 256 bits")

// --- Address and Hash conversion (zero-copy, layout-compatible) ---

// ToGethAddress converts an Address to a go-ethereum Address.
func ToGethAddress(a types.Address) gethcommon.Address {
	return gethcommon.Address(a)
}

// FromGethAddress converts a go-ethereum Address to an Address.
func FromGethAddress(a gethcommon.Address) types.Address {
	return types.Address(a)
}

// ToGethHash converts a Hash to a go-ethereum Hash.
func ToGethHash(h types.Hash) gethcommon.Hash {
	return gethcommon.Hash(h)
}

// FromGethHash converts a go-ethereum Hash to a Hash.
func FromGethHash(h gethcommon.Hash) types.Hash {
	return types.Hash(h)
}

func toGethHashes(hashes []types.Hash) []gethcommon.Hash {
	if hashes == nil {
		return nil
	}
	result := make([]gethcommon.Hash, len(hashes))
	for i, h := range hashes {
		result[i] = ToGethHash(h)
	}
	return result
}

// --- Integer conversion ---

// ToUint256 converts b to a uint256, failing with ErrOverflow when it is
// negative or wider than 256 bits. A nil b converts to zero.
func ToUint256(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	if b.Sign() < 0 {
		return nil, ErrOverflow
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrOverflow
	}
	return u, nil
}

// --- AccessList conversion ---

// ToGethAccessList converts an AccessList to a go-ethereum AccessList.
func ToGethAccessList(al types.AccessList) gethtypes.AccessList {
	if al == nil {
		return nil
	}
	result := make(gethtypes.AccessList, len(al))
	for i, tuple := range al {
		result[i] = gethtypes.AccessTuple{
			Address:     ToGethAddress(tuple.Address),
			StorageKeys: toGethHashes(tuple.StorageKeys),
		}
	}
	return result
}

// --- Authorization conversion ---

// toGethAuthList converts an EIP-7702 authorization list.
func toGethAuthList(auths []types.Authorization) ([]gethtypes.SetCodeAuthorization, error) {
	if auths == nil {
		return nil, nil
	}
	result := make([]gethtypes.SetCodeAuthorization, len(auths))
	for i, auth := range auths {
		chainID, err := ToUint256(auth.ChainID)
		if err != nil {
			return nil, err
		}
		r, err := ToUint256(auth.R)
		if err != nil {
			return nil, err
		}
		s, err := ToUint256(auth.S)
		if err != nil {
			return nil, err
		}
		var v uint8
		if auth.V != nil {
			if !auth.V.IsUint64() || auth.V.Uint64() > 0xff {
				return nil, ErrOverflow
			}
			v = uint8(auth.V.Uint64())
		}
		result[i] = gethtypes.SetCodeAuthorization{
			ChainID: *chainID,
			Address: ToGethAddress(auth.Address),
			Nonce:   auth.Nonce,
			V:       v,
			R:       *r,
			S:       *s,
		}
	}
	return result, nil
}

// --- Log conversion ---

// FromGethLog converts a go-ethereum Log to a Log.
func FromGethLog(l *gethtypes.Log) *types.Log {
	if l == nil {
		return nil
	}
	topics := make([]types.Hash, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = FromGethHash(t)
	}
	return &types.Log{
		Address:     FromGethAddress(l.Address),
		Topics:      topics,
		Data:        l.Data,
		BlockNumber: l.BlockNumber,
		TxHash:      FromGethHash(l.TxHash),
		TxIndex:     l.TxIndex,
		Index:       l.Index,
	}
}

// FromGethLogs converts a slice of go-ethereum Logs.
func FromGethLogs(logs []*gethtypes.Log) []*types.Log {
	result := make([]*types.Log, len(logs))
	for i, l := range logs {
		result[i] = FromGethLog(l)
	}
	return result
}
