package geth

import (
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/eth2030/admission/core"
)

// ToGethChainConfig converts a ChainConfig to a go-ethereum ChainConfig.
// Forks core does not track are pinned to the nearest tracked fork below
// them, which is exact for the signing and transaction-type rules admission
// depends on.
func ToGethChainConfig(c *core.ChainConfig) *params.ChainConfig {
	if c == nil {
		return nil
	}
	gc := &params.ChainConfig{
		ChainID: c.ChainID,

		// Block-number forks (pre-merge).
		HomesteadBlock:      c.HomesteadBlock,
		EIP150Block:         c.HomesteadBlock,
		EIP155Block:         c.EIP155Block,
		EIP158Block:         c.EIP155Block,
		ByzantiumBlock:      c.EIP155Block,
		ConstantinopleBlock: c.EIP155Block,
		PetersburgBlock:     c.EIP155Block,
		IstanbulBlock:       c.IstanbulBlock,
		BerlinBlock:         c.BerlinBlock,
		LondonBlock:         c.LondonBlock,

		// Timestamp forks (post-merge).
		ShanghaiTime: c.ShanghaiTime,
		CancunTime:   c.CancunTime,
		PragueTime:   c.PragueTime,
		OsakaTime:    c.OsakaTime,
	}
	if c.ShanghaiTime != nil {
		gc.TerminalTotalDifficulty = new(big.Int)
	}
	return gc
}

// MakeSigner returns go-ethereum's signer for the given block.
func MakeSigner(c *core.ChainConfig, number *big.Int, time uint64) gethtypes.Signer {
	return gethtypes.MakeSigner(ToGethChainConfig(c), number, time)
}
