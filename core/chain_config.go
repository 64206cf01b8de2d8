// Package core holds the fork schedule and the gas rules that admission
// checks depend on.
package core

import (
	"math/big"

	"github.com/eth2030/admission/core/types"
)

// ChainConfig holds chain-level configuration for fork scheduling.
// Pre-merge forks are activated by block number, post-merge by timestamp.
type ChainConfig struct {
	ChainID *big.Int

	// Block-number based forks (pre-merge)
	HomesteadBlock *big.Int
	EIP155Block    *big.Int
	IstanbulBlock  *big.Int
	BerlinBlock    *big.Int
	LondonBlock    *big.Int

	// Timestamp-based forks (post-merge)
	ShanghaiTime *uint64
	CancunTime   *uint64
	PragueTime   *uint64
	OsakaTime    *uint64
}

// Block-number fork checks

func isBlockForked(forkBlock, head *big.Int) bool {
	if forkBlock == nil || head == nil {
		return false
	}
	return forkBlock.Cmp(head) <= 0
}

// IsHomestead returns whether the given block number is at or past Homestead.
func (c *ChainConfig) IsHomestead(num *big.Int) bool {
	return isBlockForked(c.HomesteadBlock, num)
}

// IsEIP155 returns whether the given block number is at or past EIP-155.
func (c *ChainConfig) IsEIP155(num *big.Int) bool {
	return isBlockForked(c.EIP155Block, num)
}

// IsIstanbul returns whether the given block number is at or past Istanbul.
func (c *ChainConfig) IsIstanbul(num *big.Int) bool {
	return isBlockForked(c.IstanbulBlock, num)
}

// IsBerlin returns whether the given block number is at or past Berlin.
func (c *ChainConfig) IsBerlin(num *big.Int) bool {
	return isBlockForked(c.BerlinBlock, num)
}

// IsLondon returns whether the given block number is at or past London.
func (c *ChainConfig) IsLondon(num *big.Int) bool {
	return isBlockForked(c.LondonBlock, num)
}

// Timestamp-based fork checks

func isTimestampForked(forkTime *uint64, blockTime uint64) bool {
	if forkTime == nil {
		return false
	}
	return *forkTime <= blockTime
}

// IsShanghai returns whether the given block time is at or past Shanghai.
func (c *ChainConfig) IsShanghai(time uint64) bool {
	return isTimestampForked(c.ShanghaiTime, time)
}

// IsCancun returns whether the given block time is at or past Cancun.
func (c *ChainConfig) IsCancun(time uint64) bool {
	return isTimestampForked(c.CancunTime, time)
}

// IsPrague returns whether the given block time is at or past Prague.
func (c *ChainConfig) IsPrague(time uint64) bool {
	return isTimestampForked(c.PragueTime, time)
}

// IsOsaka returns whether the given block time is at or past Osaka.
func (c *ChainConfig) IsOsaka(time uint64) bool {
	return isTimestampForked(c.OsakaTime, time)
}

// Rules returns the fork flags in effect for a block with the given number
// and timestamp. Timestamp forks are only reported once London is active.
func (c *ChainConfig) Rules(num *big.Int, time uint64) Rules {
	chainID := new(big.Int)
	if c.ChainID != nil {
		chainID.Set(c.ChainID)
	}
	postLondon := c.IsLondon(num)
	return Rules{
		ChainID:     chainID,
		IsHomestead: c.IsHomestead(num),
		IsEIP155:    c.IsEIP155(num),
		IsIstanbul:  c.IsIstanbul(num),
		IsBerlin:    c.IsBerlin(num),
		IsLondon:    postLondon,
		IsShanghai:  postLondon && c.IsShanghai(time),
		IsCancun:    postLondon && c.IsCancun(time),
		IsPrague:    postLondon && c.IsPrague(time),
		IsOsaka:     postLondon && c.IsOsaka(time),
	}
}

// Rules contains boolean flags for quick fork activation checks.
type Rules struct {
	ChainID                           *big.Int
	IsHomestead, IsEIP155, IsIstanbul bool
	IsBerlin, IsLondon                bool
	IsShanghai, IsCancun              bool
	IsPrague, IsOsaka                 bool
}

// Blob and per-transaction limits by fork.
const (
	MaxBlobsPerBlockCancun = 6
	MaxBlobsPerBlockPrague = 9

	// MaxBlobsPerTxOsaka is the EIP-7594 per-transaction blob cap.
	MaxBlobsPerTxOsaka = 6

	// MaxTxGasOsaka is the EIP-7825 per-transaction gas cap.
	MaxTxGasOsaka uint64 = 1 << 24
)

// SupportsTxType reports whether the given envelope type is enabled.
func (r Rules) SupportsTxType(txType byte) bool {
	switch txType {
	case types.LegacyTxType:
		return true
	case types.AccessListTxType:
		return r.IsBerlin
	case types.DynamicFeeTxType:
		return r.IsLondon
	case types.BlobTxType:
		return r.IsCancun
	case types.SetCodeTxType:
		return r.IsPrague
	}
	return false
}

// MaxBlobsPerBlock returns the blob limit of a block, zero before Cancun.
func (r Rules) MaxBlobsPerBlock() int {
	switch {
	case r.IsPrague:
		return MaxBlobsPerBlockPrague
	case r.IsCancun:
		return MaxBlobsPerBlockCancun
	}
	return 0
}

// MaxBlobsPerTx returns the blob limit of a single transaction.
func (r Rules) MaxBlobsPerTx() int {
	if r.IsOsaka {
		return MaxBlobsPerTxOsaka
	}
	return r.MaxBlobsPerBlock()
}

// MaxTxGas returns the protocol per-transaction gas cap, zero when none applies.
func (r Rules) MaxTxGas() uint64 {
	if r.IsOsaka {
		return MaxTxGasOsaka
	}
	return 0
}

func newUint64(v uint64) *uint64 { return &v }

// MainnetConfig is the chain config for Ethereum mainnet.
var MainnetConfig = &ChainConfig{
	ChainID:        big.NewInt(1),
	HomesteadBlock: big.NewInt(1_150_000),
	EIP155Block:    big.NewInt(2_675_000),
	IstanbulBlock:  big.NewInt(9_069_000),
	BerlinBlock:    big.NewInt(12_244_000),
	LondonBlock:    big.NewInt(12_965_000),
	ShanghaiTime:   newUint64(1681338455),
	CancunTime:     newUint64(1710338135),
	PragueTime:     newUint64(1746612311),
	OsakaTime:      newUint64(1764798551),
}

// SepoliaConfig is the chain config for the Sepolia test network.
var SepoliaConfig = &ChainConfig{
	ChainID:        big.NewInt(11155111),
	HomesteadBlock: big.NewInt(0),
	EIP155Block:    big.NewInt(0),
	IstanbulBlock:  big.NewInt(0),
	BerlinBlock:    big.NewInt(0),
	LondonBlock:    big.NewInt(0),
	ShanghaiTime:   newUint64(1677557088),
	CancunTime:     newUint64(1706655072),
	PragueTime:     newUint64(1741159776),
	OsakaTime:      newUint64(1760427360),
}

// TestConfig is a chain config with forks up to Prague active at genesis.
var TestConfig = &ChainConfig{
	ChainID:        big.NewInt(1337),
	HomesteadBlock: big.NewInt(0),
	EIP155Block:    big.NewInt(0),
	IstanbulBlock:  big.NewInt(0),
	BerlinBlock:    big.NewInt(0),
	LondonBlock:    big.NewInt(0),
	ShanghaiTime:   newUint64(0),
	CancunTime:     newUint64(0),
	PragueTime:     newUint64(0),
}

// TestConfigOsaka is TestConfig with Osaka also active at genesis.
var TestConfigOsaka = &ChainConfig{
	ChainID:        big.NewInt(1337),
	HomesteadBlock: big.NewInt(0),
	EIP155Block:    big.NewInt(0),
	IstanbulBlock:  big.NewInt(0),
	BerlinBlock:    big.NewInt(0),
	LondonBlock:    big.NewInt(0),
	ShanghaiTime:   newUint64(0),
	CancunTime:     newUint64(0),
	PragueTime:     newUint64(0),
	OsakaTime:      newUint64(0),
}

// ConfigByName returns a preset by its network name.
func ConfigByName(name string) (*ChainConfig, bool) {
	switch name {
	case "mainnet":
		return MainnetConfig, true
	case "sepolia":
		return SepoliaConfig, true
	case "test", "dev":
		return TestConfig, true
	case "test-osaka":
		return TestConfigOsaka, true
	}
	return nil, false
}
