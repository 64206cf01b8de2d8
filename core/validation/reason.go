// Package validation classifies candidate transactions against a closed
// taxonomy of validity failures before they enter a block or the mempool.
//
// Checks run in a fixed order of stages (format, signature, sizing,
// economic, account, chain, pool, plugin) and stop at the first failure, so
// every invalid transaction maps to exactly one InvalidReason.
package validation

import "fmt"

// InvalidReason is a member of the closed set of transaction validity
// failures. The zero value is not a reason.
type InvalidReason uint8

// Reasons in their stable code order.
const (
	WrongChainID InvalidReason = iota + 1
	ReplayProtectedSignaturesNotSupported
	ReplayProtectedSignatureRequired
	InvalidSignature
	UpfrontCostExceedsBalance
	UpfrontCostExceedsUint256
	NonceTooLow
	NonceTooHigh
	NonceOverflow
	IntrinsicGasExceedsGasLimit
	ExceedsBlockGasLimit
	ExceedsTransactionGasLimit
	TxSenderNotAuthorized
	ChainHeadNotAvailable
	ChainHeadWorldStateNotAvailable
	BlockNotFound
	ExceedsPerTransactionGasLimit
	InvalidTransactionFormat
	TransactionPriceTooLow
	TransactionAlreadyKnown
	TransactionReplacementUnderpriced
	MaxPriorityFeePerGasExceedsMaxFeePerGas
	InitcodeTooLarge
	NonceTooFarInFutureForSender
	TotalBlobGasTooHigh
	GasPriceTooLow
	GasPriceBelowCurrentBaseFee
	BlobGasPriceBelowCurrentBlobBaseFee
	MaxFeePerGasBelowCurrentBaseFee
	TxFeecapExceeded
	InternalError
	ExecutionInterrupted
	TxPoolDisabled
	InvalidBlobs
	PluginTxValidator
	InvalidBlobCount
	PluginTxPoolValidator
	ExecutionHalted
	EOFCodeInvalid
	EmptyCodeDelegation

	numReasons = int(EmptyCodeDelegation)
)

// Category groups reasons by the aspect of the transaction they concern.
type Category uint8

const (
	CategoryFormat Category = iota
	CategorySignature
	CategoryEconomic
	CategorySizing
	CategoryAuthorization
	CategoryPool
	CategoryChain
	CategoryPlugin
	CategoryExecution
)

var categoryNames = [...]string{
	CategoryFormat:        "format",
	CategorySignature:     "signature",
	CategoryEconomic:      "economic",
	CategorySizing:        "sizing",
	CategoryAuthorization: "authorization",
	CategoryPool:          "pool",
	CategoryChain:         "chain",
	CategoryPlugin:        "plugin",
	CategoryExecution:     "execution",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Fault tells a caller who is responsible for a failure.
type Fault uint8

const (
	// TxFault means the transaction itself is unacceptable.
	TxFault Fault = iota
	// EnvironmentFault means the node could not judge the transaction;
	// the caller may retry once the chain catches up.
	EnvironmentFault
	// InternalFault means the node failed; the failure is surfaced and
	// not retried.
	InternalFault
)

func (f Fault) String() string {
	switch f {
	case TxFault:
		return "transaction"
	case EnvironmentFault:
		return "environment"
	case InternalFault:
		return "internal"
	}
	return fmt.Sprintf("fault(%d)", uint8(f))
}

type reasonInfo struct {
	name     string
	category Category
	fault    Fault
}

var reasons = [numReasons + 1]reasonInfo{
	WrongChainID:                            {"WRONG_CHAIN_ID", CategorySignature, TxFault},
	ReplayProtectedSignaturesNotSupported:   {"REPLAY_PROTECTED_SIGNATURES_NOT_SUPPORTED", CategorySignature, TxFault},
	ReplayProtectedSignatureRequired:        {"REPLAY_PROTECTED_SIGNATURE_REQUIRED", CategorySignature, TxFault},
	InvalidSignature:                        {"INVALID_SIGNATURE", CategorySignature, TxFault},
	UpfrontCostExceedsBalance:               {"UPFRONT_COST_EXCEEDS_BALANCE", CategoryEconomic, TxFault},
	UpfrontCostExceedsUint256:               {"UPFRONT_COST_EXCEEDS_UINT256", CategoryEconomic, TxFault},
	NonceTooLow:                             {"NONCE_TOO_LOW", CategoryAuthorization, TxFault},
	NonceTooHigh:                            {"NONCE_TOO_HIGH", CategoryAuthorization, TxFault},
	NonceOverflow:                           {"NONCE_OVERFLOW", CategoryFormat, TxFault},
	IntrinsicGasExceedsGasLimit:             {"INTRINSIC_GAS_EXCEEDS_GAS_LIMIT", CategorySizing, TxFault},
	ExceedsBlockGasLimit:                    {"EXCEEDS_BLOCK_GAS_LIMIT", CategorySizing, TxFault},
	ExceedsTransactionGasLimit:              {"EXCEEDS_TRANSACTION_GAS_LIMIT", CategorySizing, TxFault},
	TxSenderNotAuthorized:                   {"TX_SENDER_NOT_AUTHORIZED", CategoryAuthorization, TxFault},
	ChainHeadNotAvailable:                   {"CHAIN_HEAD_NOT_AVAILABLE", CategoryChain, EnvironmentFault},
	ChainHeadWorldStateNotAvailable:         {"CHAIN_HEAD_WORLD_STATE_NOT_AVAILABLE", CategoryChain, EnvironmentFault},
	BlockNotFound:                           {"BLOCK_NOT_FOUND", CategoryChain, EnvironmentFault},
	ExceedsPerTransactionGasLimit:           {"EXCEEDS_PER_TRANSACTION_GAS_LIMIT", CategorySizing, TxFault},
	InvalidTransactionFormat:                {"INVALID_TRANSACTION_FORMAT", CategoryFormat, TxFault},
	TransactionPriceTooLow:                  {"TRANSACTION_PRICE_TOO_LOW", CategoryEconomic, TxFault},
	TransactionAlreadyKnown:                 {"TRANSACTION_ALREADY_KNOWN", CategoryPool, TxFault},
	TransactionReplacementUnderpriced:       {"TRANSACTION_REPLACEMENT_UNDERPRICED", CategoryPool, TxFault},
	MaxPriorityFeePerGasExceedsMaxFeePerGas: {"MAX_PRIORITY_FEE_PER_GAS_EXCEEDS_MAX_FEE_PER_GAS", CategoryEconomic, TxFault},
	InitcodeTooLarge:                        {"INITCODE_TOO_LARGE", CategorySizing, TxFault},
	NonceTooFarInFutureForSender:            {"NONCE_TOO_FAR_IN_FUTURE_FOR_SENDER", CategoryAuthorization, TxFault},
	TotalBlobGasTooHigh:                     {"TOTAL_BLOB_GAS_TOO_HIGH", CategorySizing, TxFault},
	GasPriceTooLow:                          {"GAS_PRICE_TOO_LOW", CategoryEconomic, TxFault},
	GasPriceBelowCurrentBaseFee:             {"GAS_PRICE_BELOW_CURRENT_BASE_FEE", CategoryEconomic, TxFault},
	BlobGasPriceBelowCurrentBlobBaseFee:     {"BLOB_GAS_PRICE_BELOW_CURRENT_BLOB_BASE_FEE", CategoryEconomic, TxFault},
	MaxFeePerGasBelowCurrentBaseFee:         {"MAX_FEE_PER_GAS_BELOW_CURRENT_BASE_FEE", CategoryEconomic, TxFault},
	TxFeecapExceeded:                        {"TX_FEECAP_EXCEEDED", CategoryEconomic, TxFault},
	InternalError:                           {"INTERNAL_ERROR", CategoryExecution, InternalFault},
	ExecutionInterrupted:                    {"EXECUTION_INTERRUPTED", CategoryExecution, InternalFault},
	TxPoolDisabled:                          {"TX_POOL_DISABLED", CategoryPool, TxFault},
	InvalidBlobs:                            {"INVALID_BLOBS", CategoryFormat, TxFault},
	PluginTxValidator:                       {"PLUGIN_TX_VALIDATOR", CategoryPlugin, TxFault},
	InvalidBlobCount:                        {"INVALID_BLOB_COUNT", CategorySizing, TxFault},
	PluginTxPoolValidator:                   {"PLUGIN_TX_POOL_VALIDATOR", CategoryPlugin, TxFault},
	ExecutionHalted:                         {"EXECUTION_HALTED", CategoryExecution, TxFault},
	EOFCodeInvalid:                          {"EOF_CODE_INVALID", CategoryExecution, TxFault},
	EmptyCodeDelegation:                     {"EMPTY_CODE_DELEGATION", CategoryAuthorization, TxFault},
}

var reasonsByName = func() map[string]InvalidReason {
	m := make(map[string]InvalidReason, numReasons)
	for r := InvalidReason(1); int(r) <= numReasons; r++ {
		m[reasons[r].name] = r
	}
	return m
}()

// Reasons returns every reason in code order.
func Reasons() []InvalidReason {
	out := make([]InvalidReason, numReasons)
	for i := range out {
		out[i] = InvalidReason(i + 1)
	}
	return out
}

// ParseReason looks a reason up by its stable name.
func ParseReason(name string) (InvalidReason, bool) {
	r, ok := reasonsByName[name]
	return r, ok
}

// IsKnown reports whether r is a member of the taxonomy.
func (r InvalidReason) IsKnown() bool {
	return r >= 1 && int(r) <= numReasons
}

// Code returns the stable numeric code of r, starting at 0.
func (r InvalidReason) Code() int {
	return int(r) - 1
}

// String returns the stable name of r.
func (r InvalidReason) String() string {
	if !r.IsKnown() {
		return fmt.Sprintf("UNKNOWN_REASON(%d)", uint8(r))
	}
	return reasons[r].name
}

// Error makes a reason usable as an error sentinel.
func (r InvalidReason) Error() string { return r.String() }

// Category returns the category r belongs to.
func (r InvalidReason) Category() Category {
	if !r.IsKnown() {
		return CategoryFormat
	}
	return reasons[r].category
}

// Fault returns who is responsible for r. Unknown reasons are internal
// faults.
func (r InvalidReason) Fault() Fault {
	if !r.IsKnown() {
		return InternalFault
	}
	return reasons[r].fault
}

// Retryable reports whether the caller may retry after an environment fault.
func (r InvalidReason) Retryable() bool {
	return r.IsKnown() && reasons[r].fault == EnvironmentFault
}

// CarriesCause reports whether outcomes with r hold a plugin cause.
func (r InvalidReason) CarriesCause() bool {
	return r == PluginTxValidator || r == PluginTxPoolValidator
}

// MarshalText encodes r as its stable name.
func (r InvalidReason) MarshalText() ([]byte, error) {
	if !r.IsKnown() {
		return nil, fmt.Errorf("validation: cannot marshal unknown reason %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a stable reason name.
func (r *InvalidReason) UnmarshalText(b []byte) error {
	v, ok := ParseReason(string(b))
	if !ok {
		return fmt.Errorf("validation: unknown reason %q", b)
	}
	*r = v
	return nil
}
