package core

import (
	"errors"
	"math"

	"github.com/ethereum/go-ethereum/params"

	"github.com/eth2030/admission/core/types"
)

// ErrGasUint64Overflow is returned when a gas computation exceeds uint64.
var ErrGasUint64Overflow = errors.New("gas uint64 overflow")

// IntrinsicGas calculates the gas a transaction is charged before any EVM
// execution occurs.
func IntrinsicGas(data []byte, accessList types.AccessList, authList []types.Authorization, isContractCreation bool, rules Rules) (uint64, error) {
	var gas uint64
	if isContractCreation && rules.IsHomestead {
		gas = params.TxGasContractCreation
	} else {
		gas = params.TxGas
	}
	dataLen := uint64(len(data))
	if dataLen > 0 {
		var nz uint64
		for _, b := range data {
			if b != 0 {
				nz++
			}
		}
		nonZeroGas := params.TxDataNonZeroGasFrontier
		if rules.IsIstanbul {
			nonZeroGas = params.TxDataNonZeroGasEIP2028
		}
		if (math.MaxUint64-gas)/nonZeroGas < nz {
			return 0, ErrGasUint64Overflow
		}
		gas += nz * nonZeroGas

		z := dataLen - nz
		if (math.MaxUint64-gas)/params.TxDataZeroGas < z {
			return 0, ErrGasUint64Overflow
		}
		gas += z * params.TxDataZeroGas

		if isContractCreation && rules.IsShanghai {
			words := toWordSize(dataLen)
			if (math.MaxUint64-gas)/params.InitCodeWordGas < words {
				return 0, ErrGasUint64Overflow
			}
			gas += words * params.InitCodeWordGas
		}
	}
	if accessList != nil {
		addrs := uint64(len(accessList))
		if (math.MaxUint64-gas)/params.TxAccessListAddressGas < addrs {
			return 0, ErrGasUint64Overflow
		}
		gas += addrs * params.TxAccessListAddressGas

		keys := uint64(accessList.StorageKeys())
		if (math.MaxUint64-gas)/params.TxAccessListStorageKeyGas < keys {
			return 0, ErrGasUint64Overflow
		}
		gas += keys * params.TxAccessListStorageKeyGas
	}
	if authList != nil {
		auths := uint64(len(authList))
		if (math.MaxUint64-gas)/params.CallNewAccountGas < auths {
			return 0, ErrGasUint64Overflow
		}
		gas += auths * params.CallNewAccountGas
	}
	return gas, nil
}

// TxIntrinsicGas returns the intrinsic gas of tx under rules.
func TxIntrinsicGas(tx *types.Transaction, rules Rules) (uint64, error) {
	return IntrinsicGas(tx.Data(), tx.AccessList(), tx.AuthorizationList(), tx.IsContractCreation(), rules)
}

// FloorDataGas computes the EIP-7623 calldata floor: every zero byte is one
// token, every non-zero byte four, and each token costs a fixed amount on top
// of the base transaction cost.
func FloorDataGas(data []byte) (uint64, error) {
	var nz uint64
	for _, b := range data {
		if b != 0 {
			nz++
		}
	}
	z := uint64(len(data)) - nz
	tokens := z + nz*params.TxTokenPerNonZeroByte
	if (math.MaxUint64-params.TxGas)/params.TxCostFloorPerToken < tokens {
		return 0, ErrGasUint64Overflow
	}
	return params.TxGas + tokens*params.TxCostFloorPerToken, nil
}

// MinimumGas returns the smallest gas limit tx may carry under rules: its
// intrinsic gas, raised to the calldata floor from Prague on.
func MinimumGas(tx *types.Transaction, rules Rules) (uint64, error) {
	gas, err := TxIntrinsicGas(tx, rules)
	if err != nil {
		return 0, err
	}
	if rules.IsPrague {
		floor, err := FloorDataGas(tx.Data())
		if err != nil {
			return 0, err
		}
		gas = max(gas, floor)
	}
	return gas, nil
}

func toWordSize(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}
