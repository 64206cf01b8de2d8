package geth

import (
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/eth2030/admission/core/types"
)

// RequestsHash computes the EIP-7685 requests commitment with go-ethereum.
func RequestsHash(rs types.Requests) types.Hash {
	return FromGethHash(gethtypes.CalcRequestsHash(types.FlattenRequests(rs)))
}

// DepositRequests extracts the EIP-6110 deposit requests emitted by contract
// from go-ethereum receipt logs, in log order.
func DepositRequests(logs []*gethtypes.Log, contract gethcommon.Address) (types.Requests, error) {
	return types.FilterDepositLogs(FromGethLogs(logs), FromGethAddress(contract))
}
