package txpool

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/core/validation"
	"github.com/eth2030/admission/crypto"
	"github.com/eth2030/admission/log"
	"github.com/eth2030/admission/metrics"
)

const gwei = 1_000_000_000

var (
	testKey, _    = crypto.HexToKey("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	testAddr      = types.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	testRecipient = types.Address{0xaa}
	testSigner    = types.LatestSigner(core.TestConfig.ChainID)
)

func testHead() *Head {
	return &Head{
		Number:      big.NewInt(1),
		GasLimit:    30_000_000,
		BaseFee:     big.NewInt(gwei),
		BlobBaseFee: big.NewInt(1),
	}
}

func testState(nonce uint64) *validation.StateSnapshot {
	return validation.NewStateSnapshot(map[types.Address]validation.Account{
		testAddr: {Nonce: nonce, Balance: uint256.NewInt(1e18)},
	})
}

func newTestPool(t *testing.T, config Config) (*TxPool, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	pool, err := New(config, core.TestConfig, log.Discard(), reg)
	require.NoError(t, err)
	pool.Reset(testHead(), testState(0))
	return pool, reg
}

func pricedTx(t *testing.T, nonce uint64, feeCap, tip int64) *types.Transaction {
	t.Helper()
	tx, err := types.SignTx(types.NewTransaction(&types.DynamicFeeTx{
		ChainID:   core.TestConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       21000,
		To:        &testRecipient,
		Value:     big.NewInt(1),
	}), testSigner, testKey)
	require.NoError(t, err)
	return tx
}

func transaction(t *testing.T, nonce uint64) *types.Transaction {
	return pricedTx(t, nonce, 2*gwei, gwei)
}

func requireReason(t *testing.T, err error, want validation.InvalidReason) {
	t.Helper()
	require.Error(t, err)
	var txErr *validation.TxError
	require.True(t, errors.As(err, &txErr), "error %v is not a TxError", err)
	require.Equal(t, want, txErr.Reason)
}

func TestAddPending(t *testing.T) {
	pool, reg := newTestPool(t, DefaultConfig())

	tx := transaction(t, 0)
	require.NoError(t, pool.AddRemote(tx))
	require.Equal(t, 1, pool.PendingCount())
	require.Equal(t, 0, pool.QueuedCount())
	require.True(t, pool.Has(tx.Hash()))
	require.Equal(t, tx, pool.Get(tx.Hash()))
	require.Equal(t, []*types.Transaction{tx}, pool.Pending()[testAddr])

	snap := reg.Snapshot()
	require.Equal(t, int64(1), snap["txpool.added"])
	require.Equal(t, int64(1), snap["txpool.pending"])
	require.Equal(t, int64(1), snap["validation.valid"])
}

func TestQueueAndPromote(t *testing.T) {
	pool, _ := newTestPool(t, DefaultConfig())

	require.NoError(t, pool.AddRemote(transaction(t, 2)))
	require.NoError(t, pool.AddRemote(transaction(t, 1)))
	require.Equal(t, 0, pool.PendingCount())
	require.Equal(t, 2, pool.QueuedCount())

	require.NoError(t, pool.AddRemote(transaction(t, 0)))
	require.Equal(t, 3, pool.PendingCount())
	require.Equal(t, 0, pool.QueuedCount())

	var nonces []uint64
	for _, tx := range pool.Pending()[testAddr] {
		nonces = append(nonces, tx.Nonce())
	}
	require.Equal(t, []uint64{0, 1, 2}, nonces)
}

func TestAddRejections(t *testing.T) {
	pool, reg := newTestPool(t, DefaultConfig())
	known := transaction(t, 0)
	require.NoError(t, pool.AddRemote(known))

	requireReason(t, pool.AddRemote(known), validation.TransactionAlreadyKnown)
	requireReason(t, pool.AddRemote(pricedTx(t, 0, 2*gwei, gwei+1)), validation.TransactionReplacementUnderpriced)
	requireReason(t, pool.AddRemote(pricedTx(t, 1, gwei/2, 0)), validation.GasPriceTooLow)
	requireReason(t, pool.AddRemote(transaction(t, 100)), validation.NonceTooFarInFutureForSender)

	require.Equal(t, int64(4), reg.Snapshot()["txpool.rejected"])
	require.Equal(t, 1, pool.Count())
}

func TestReplacement(t *testing.T) {
	pool, reg := newTestPool(t, DefaultConfig())
	old := transaction(t, 0)
	require.NoError(t, pool.AddRemote(old))

	next := pricedTx(t, 0, 3*gwei, 2*gwei)
	require.NoError(t, pool.AddRemote(next))
	require.False(t, pool.Has(old.Hash()))
	require.True(t, pool.Has(next.Hash()))
	require.Equal(t, 1, pool.PendingCount())
	require.Equal(t, int64(1), reg.Snapshot()["txpool.replaced"])
}

func TestHeadNotAvailable(t *testing.T) {
	pool, err := New(DefaultConfig(), core.TestConfig, log.Discard(), metrics.NewRegistry())
	require.NoError(t, err)
	requireReason(t, pool.AddRemote(transaction(t, 0)), validation.ChainHeadNotAvailable)

	pool.Reset(testHead(), nil)
	err = pool.AddRemote(transaction(t, 0))
	requireReason(t, err, validation.ChainHeadWorldStateNotAvailable)
	require.True(t, validation.ChainHeadWorldStateNotAvailable.Retryable())
}

func TestDisabledPool(t *testing.T) {
	config := DefaultConfig()
	config.Disabled = true
	pool, _ := newTestPool(t, config)
	requireReason(t, pool.AddRemote(transaction(t, 0)), validation.TxPoolDisabled)
}

func TestSenderLimit(t *testing.T) {
	config := DefaultConfig()
	config.MaxPerSender = 2
	pool, _ := newTestPool(t, config)

	require.NoError(t, pool.AddRemote(transaction(t, 0)))
	require.NoError(t, pool.AddRemote(transaction(t, 1)))
	require.ErrorIs(t, pool.AddRemote(transaction(t, 2)), ErrSenderLimitExceeded)

	// Local senders are exempt.
	require.NoError(t, pool.AddLocal(transaction(t, 2)))
	require.Equal(t, []types.Address{testAddr}, pool.Locals())
	require.NoError(t, pool.AddRemote(transaction(t, 3)))
}

func TestPoolFull(t *testing.T) {
	config := DefaultConfig()
	config.MaxSize = 1
	pool, _ := newTestPool(t, config)

	require.NoError(t, pool.AddRemote(transaction(t, 0)))
	require.ErrorIs(t, pool.AddRemote(transaction(t, 1)), ErrTxPoolFull)
}

func TestPoolValidator(t *testing.T) {
	config := DefaultConfig()
	config.PoolValidators = []validation.PoolTxValidator{
		validation.PoolTxValidatorFunc(func(tx *types.Transaction, _ types.Address) error {
			if tx.Nonce() > 0 {
				return errors.New("only nonce zero")
			}
			return nil
		}),
	}
	pool, _ := newTestPool(t, config)
	require.NoError(t, pool.AddRemote(transaction(t, 0)))

	err := pool.AddRemote(transaction(t, 1))
	requireReason(t, err, validation.PluginTxPoolValidator)
	require.Contains(t, err.Error(), "only nonce zero")
}

func TestAddRaw(t *testing.T) {
	pool, _ := newTestPool(t, DefaultConfig())

	tx := transaction(t, 0)
	raw, err := tx.EncodeRLP()
	require.NoError(t, err)
	got, err := pool.AddRaw(raw)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), got.Hash())

	_, err = pool.AddRaw([]byte{0x02, 0xc0})
	requireReason(t, err, validation.InvalidTransactionFormat)
}

func TestValidateDoesNotAdd(t *testing.T) {
	pool, _ := newTestPool(t, DefaultConfig())
	out := pool.Validate(transaction(t, 0))
	require.True(t, out.IsValid(), out.String())
	require.Equal(t, 0, pool.Count())

	out = pool.Validate(transaction(t, 100))
	require.Equal(t, validation.NonceTooFarInFutureForSender, out.Reason())
}

func TestRemovePromotes(t *testing.T) {
	pool, _ := newTestPool(t, DefaultConfig())
	tx0, tx1 := transaction(t, 0), transaction(t, 1)
	require.NoError(t, pool.AddRemote(tx0))
	require.NoError(t, pool.AddRemote(tx1))

	pool.Remove(tx1.Hash())
	require.Equal(t, 1, pool.Count())
	pool.Remove(tx0.Hash())
	require.Equal(t, 0, pool.Count())
	pool.Remove(tx0.Hash())
}

func TestResetDropsStale(t *testing.T) {
	pool, reg := newTestPool(t, DefaultConfig())
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, pool.AddRemote(transaction(t, i)))
	}
	require.NoError(t, pool.AddRemote(transaction(t, 5)))
	require.Equal(t, 1, pool.QueuedCount())

	pool.Reset(testHead(), testState(2))
	require.Equal(t, 1, pool.PendingCount())
	require.Equal(t, 1, pool.QueuedCount())
	require.Equal(t, int64(1), reg.Snapshot()["txpool.pending"])

	requireReason(t, pool.AddRemote(transaction(t, 1)), validation.NonceTooLow)
}

func TestEffectiveGasPrice(t *testing.T) {
	baseFee := big.NewInt(gwei)
	tests := []struct {
		name string
		tx   *types.Transaction
		want int64
	}{
		{"tip bound", pricedTx(t, 0, 5*gwei, gwei), 2 * gwei},
		{"cap bound", pricedTx(t, 0, 3*gwei/2, gwei), 3 * gwei / 2},
	}
	for _, tt := range tests {
		if got := EffectiveGasPrice(tt.tx, baseFee); got.Int64() != tt.want {
			t.Errorf("%s: effective price = %v, want %d", tt.name, got, tt.want)
		}
	}
	if got := EffectiveGasPrice(pricedTx(t, 0, 5*gwei, gwei), nil); got.Int64() != 5*gwei {
		t.Errorf("nil base fee: effective price = %v", got)
	}
}

func TestPendingSortedKeepsNonceOrder(t *testing.T) {
	pool, _ := newTestPool(t, DefaultConfig())
	require.NoError(t, pool.AddRemote(pricedTx(t, 0, 2*gwei, gwei)))
	require.NoError(t, pool.AddRemote(pricedTx(t, 1, 9*gwei, 8*gwei)))

	sorted := pool.PendingSorted()
	require.Len(t, sorted, 2)
	require.Equal(t, uint64(0), sorted[0].Nonce())
	require.Equal(t, uint64(1), sorted[1].Nonce())
}

func TestPendingSortedManySenders(t *testing.T) {
	const perSender = 40
	keys := []string{
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291",
		"8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a",
	}
	config := DefaultConfig()
	config.MaxPerSender = perSender
	pool, _ := newTestPool(t, config)

	accounts := make(map[types.Address]validation.Account)
	rng := rand.New(rand.NewSource(1))
	var txs []*types.Transaction
	for _, hex := range keys {
		key, err := crypto.HexToKey(hex)
		require.NoError(t, err)
		accounts[crypto.PubkeyToAddress(key.PubKey())] = validation.Account{Balance: uint256.NewInt(1e18)}
		for nonce := uint64(0); nonce < perSender; nonce++ {
			feeCap := gwei + rng.Int63n(100)*gwei/10
			tx, err := types.SignTx(types.NewTransaction(&types.DynamicFeeTx{
				ChainID:   core.TestConfig.ChainID,
				Nonce:     nonce,
				GasTipCap: big.NewInt(feeCap - gwei),
				GasFeeCap: big.NewInt(feeCap),
				Gas:       21000,
				To:        &testRecipient,
				Value:     big.NewInt(1),
			}), testSigner, key)
			require.NoError(t, err)
			txs = append(txs, tx)
		}
	}
	pool.Reset(testHead(), validation.NewStateSnapshot(accounts))
	for _, tx := range txs {
		require.NoError(t, pool.AddRemote(tx))
	}
	require.Equal(t, len(txs), pool.PendingCount())

	sorted := pool.PendingSorted()
	require.Len(t, sorted, len(txs))

	// Replay the order: every pick is the sender's lowest remaining nonce and
	// is priced at least as high as every other sender's next transaction.
	next := make(map[types.Address]uint64)
	pending := pool.Pending()
	for i, tx := range sorted {
		from, err := testSigner.Sender(tx)
		require.NoError(t, err)
		require.Equal(t, next[from], tx.Nonce(), "position %d", i)
		price := EffectiveGasPrice(tx, testHead().BaseFee)
		for addr, list := range pending {
			if addr == from || next[addr] >= uint64(len(list)) {
				continue
			}
			other := EffectiveGasPrice(list[next[addr]], testHead().BaseFee)
			require.True(t, price.Cmp(other) >= 0, "position %d: price %s below %s", i, price, other)
		}
		next[from]++
	}
}
