package txpool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
)

func TestSenderCache(t *testing.T) {
	cache, err := newSenderCache(core.TestConfig.ChainID, 2)
	require.NoError(t, err)

	txs := []*types.Transaction{transaction(t, 0), transaction(t, 1), transaction(t, 2)}
	for _, tx := range txs {
		from, err := cache.Sender(tx)
		require.NoError(t, err)
		require.Equal(t, testAddr, from)
	}
	require.Equal(t, 2, cache.Len())

	// Evicted entries are recovered again.
	from, err := cache.Sender(txs[0])
	require.NoError(t, err)
	require.Equal(t, testAddr, from)
}

func TestSenderCacheSkipsFailures(t *testing.T) {
	cache, err := newSenderCache(core.TestConfig.ChainID, 0)
	require.NoError(t, err)

	unsigned := types.NewTransaction(&types.DynamicFeeTx{
		ChainID:   core.TestConfig.ChainID,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       21000,
		To:        &testRecipient,
		Value:     new(big.Int),
	})
	_, err = cache.Sender(unsigned)
	require.Error(t, err)
	require.Equal(t, 0, cache.Len())
}
