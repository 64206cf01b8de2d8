// Package txpool is the mempool admission front-end. Every transaction is
// classified in pool mode before it is stored, so a rejection always carries
// exactly one validation.InvalidReason.
package txpool

import (
	"bytes"
	"container/heap"
	"errors"
	"math/big"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/core/validation"
	"github.com/eth2030/admission/log"
	"github.com/eth2030/admission/metrics"
)

// Pool constants.
const (
	// MaxPoolSize is the maximum number of transactions the pool holds.
	MaxPoolSize = 4096

	// MaxPerSender is the maximum number of transactions per sender.
	MaxPerSender = 16
)

// Pool capacity errors. Validity failures are reported as
// *validation.TxError instead.
var (
	ErrTxPoolFull          = errors.New("txpool: transaction pool is full")
	ErrSenderLimitExceeded = errors.New("txpool: per-sender transaction limit exceeded")
)

// Config holds TxPool configuration.
type Config struct {
	Disabled        bool // reject every transaction with TX_POOL_DISABLED
	MaxSize         int  // maximum number of transactions in the pool
	MaxPerSender    int  // maximum pending and queued per remote sender
	SenderCacheSize int  // recovered senders kept in memory

	Policy validation.Policy

	Validators     []validation.TxValidator
	PoolValidators []validation.PoolTxValidator
	BlobVerifier   validation.BlobVerifier // nil selects KZG
}

// DefaultConfig returns sensible defaults for the pool.
func DefaultConfig() Config {
	return Config{
		MaxSize:         MaxPoolSize,
		MaxPerSender:    MaxPerSender,
		SenderCacheSize: DefaultSenderCacheSize,
		Policy:          validation.DefaultPolicy(),
	}
}

// Head describes the chain head transactions are validated against.
type Head struct {
	Number      *big.Int
	Time        uint64
	GasLimit    uint64
	BaseFee     *big.Int
	BlobBaseFee *big.Int
}

// txLookup tracks transactions by hash for fast duplicate detection.
type txLookup struct {
	all map[types.Hash]*types.Transaction
}

func newTxLookup() *txLookup {
	return &txLookup{all: make(map[types.Hash]*types.Transaction)}
}

func (l *txLookup) Get(hash types.Hash) *types.Transaction {
	return l.all[hash]
}

func (l *txLookup) Add(tx *types.Transaction) {
	l.all[tx.Hash()] = tx
}

func (l *txLookup) Remove(hash types.Hash) {
	delete(l.all, hash)
}

func (l *txLookup) Count() int {
	return len(l.all)
}

// txSortedList maintains a sorted list of transactions by nonce for a single sender.
type txSortedList struct {
	items []*types.Transaction
}

// Add inserts tx in nonce order, replacing a transaction with the same nonce.
func (l *txSortedList) Add(tx *types.Transaction) {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Nonce() >= tx.Nonce()
	})
	if idx < len(l.items) && l.items[idx].Nonce() == tx.Nonce() {
		l.items[idx] = tx
		return
	}
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = tx
}

func (l *txSortedList) Remove(nonce uint64) bool {
	for i, tx := range l.items {
		if tx.Nonce() == nonce {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *txSortedList) Get(nonce uint64) *types.Transaction {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Nonce() >= nonce
	})
	if idx < len(l.items) && l.items[idx].Nonce() == nonce {
		return l.items[idx]
	}
	return nil
}

func (l *txSortedList) Len() int {
	return len(l.items)
}

// Ready returns transactions that are ready to execute (sequential from baseNonce).
func (l *txSortedList) Ready(baseNonce uint64) []*types.Transaction {
	var ready []*types.Transaction
	expectedNonce := baseNonce
	for _, tx := range l.items {
		if tx.Nonce() != expectedNonce {
			break
		}
		ready = append(ready, tx)
		expectedNonce++
	}
	return ready
}

// TxPool holds pending (executable) and queued (future nonce) transactions.
type TxPool struct {
	config     Config
	chain      *core.ChainConfig
	classifier *validation.Classifier
	senders    *senderCache
	log        *log.Logger
	metrics    *metrics.Registry

	mu      sync.RWMutex
	head    *Head
	state   validation.StateView
	locals  mapset.Set[types.Address]       // senders exempt from MaxPerSender
	pending map[types.Address]*txSortedList // processable transactions
	queue   map[types.Address]*txSortedList // future transactions
	lookup  *txLookup                       // hash -> tx
}

// New creates a transaction pool for chain. The pool rejects everything with
// CHAIN_HEAD_NOT_AVAILABLE until Reset supplies a head.
func New(config Config, chain *core.ChainConfig, logger *log.Logger, reg *metrics.Registry) (*TxPool, error) {
	if logger == nil {
		logger = log.Default()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	senders, err := newSenderCache(chain.ChainID, config.SenderCacheSize)
	if err != nil {
		return nil, err
	}
	if config.MaxSize <= 0 {
		config.MaxSize = MaxPoolSize
	}
	if config.MaxPerSender <= 0 {
		config.MaxPerSender = MaxPerSender
	}
	return &TxPool{
		config:     config,
		chain:      chain,
		classifier: validation.NewClassifier(logger, reg),
		senders:    senders,
		log:        logger.Module("txpool"),
		metrics:    reg,
		locals:     mapset.NewThreadUnsafeSet[types.Address](),
		pending:    make(map[types.Address]*txSortedList),
		queue:      make(map[types.Address]*txSortedList),
		lookup:     newTxLookup(),
	}, nil
}

// AddLocal adds a locally-submitted transaction to the pool. Its sender is
// exempt from the per-sender limit from then on.
func (pool *TxPool) AddLocal(tx *types.Transaction) error {
	return pool.add(tx, true)
}

// AddRemote adds a remotely-received transaction to the pool.
func (pool *TxPool) AddRemote(tx *types.Transaction) error {
	return pool.add(tx, false)
}

// AddRaw decodes an EIP-2718 envelope and adds it as a remote transaction.
func (pool *TxPool) AddRaw(raw []byte) (*types.Transaction, error) {
	tx, err := types.DecodeTxRLP(raw)
	if err != nil {
		pool.metrics.Counter("txpool.rejected").Inc()
		return nil, validation.Invalid(validation.InvalidTransactionFormat).Err()
	}
	return tx, pool.add(tx, false)
}

// Validate classifies tx against the pool without adding it.
func (pool *TxPool) Validate(tx *types.Transaction) validation.Outcome {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.classifier.Classify(tx, pool.contextLocked())
}

func (pool *TxPool) add(tx *types.Transaction, local bool) error {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if out := pool.classifier.Classify(tx, pool.contextLocked()); !out.IsValid() {
		pool.metrics.Counter("txpool.rejected").Inc()
		return out.Err()
	}
	// The classifier already recovered the sender, so this is a cache hit.
	from, err := pool.senders.Sender(tx)
	if err != nil {
		return err
	}
	if local {
		pool.locals.Add(from)
	}

	nonce := tx.Nonce()
	for _, lists := range []map[types.Address]*txSortedList{pool.pending, pool.queue} {
		if list, ok := lists[from]; ok {
			if old := list.Get(nonce); old != nil {
				pool.lookup.Remove(old.Hash())
				pool.lookup.Add(tx)
				list.Add(tx)
				pool.metrics.Counter("txpool.replaced").Inc()
				pool.log.Debug("Replaced pooled transaction", "old", old.Hash().Hex(), "new", tx.Hash().Hex(), "from", from.Hex(), "nonce", nonce)
				pool.updateGauges()
				return nil
			}
		}
	}

	if !pool.locals.Contains(from) && pool.senderTxCount(from) >= pool.config.MaxPerSender {
		return ErrSenderLimitExceeded
	}
	if pool.lookup.Count() >= pool.config.MaxSize {
		return ErrTxPoolFull
	}

	pool.lookup.Add(tx)
	if nonce == pool.nextNonce(from) {
		pool.addPending(from, tx)
	} else {
		pool.addQueue(from, tx)
	}
	pool.promoteQueue(from)

	pool.metrics.Counter("txpool.added").Inc()
	pool.log.Debug("Added transaction", "hash", tx.Hash().Hex(), "from", from.Hex(), "nonce", nonce, "local", local)
	pool.updateGauges()
	return nil
}

// contextLocked builds the pool-mode classification context for the current
// head. The caller holds pool.mu.
func (pool *TxPool) contextLocked() *validation.Context {
	ctx := &validation.Context{
		Mode:           validation.ModePool,
		Rules:          pool.chain.Rules(new(big.Int), 0),
		ChainID:        pool.chain.ChainID,
		State:          pool.state,
		Pool:           poolView{pool},
		Policy:         pool.config.Policy,
		Validators:     pool.config.Validators,
		PoolValidators: pool.config.PoolValidators,
		Recoverer:      pool.senders,
		BlobVerifier:   pool.config.BlobVerifier,
	}
	switch {
	case pool.head == nil:
		ctx.Chain = validation.ChainHeadUnavailable
		return ctx
	case pool.state == nil:
		ctx.Chain = validation.ChainWorldStateUnavailable
	}
	head := pool.head
	ctx.Rules = pool.chain.Rules(head.Number, head.Time)
	ctx.BaseFee = head.BaseFee
	ctx.BlobBaseFee = head.BlobBaseFee
	ctx.BlockGasLimit = head.GasLimit
	return ctx
}

// poolView exposes the pool to the classifier. Its methods do not lock; it
// is only used while pool.mu is held.
type poolView struct{ pool *TxPool }

func (v poolView) Disabled() bool { return v.pool.config.Disabled }

func (v poolView) Has(hash types.Hash) bool { return v.pool.lookup.Get(hash) != nil }

func (v poolView) Pending(sender types.Address, nonce uint64) *types.Transaction {
	if list, ok := v.pool.pending[sender]; ok {
		if tx := list.Get(nonce); tx != nil {
			return tx
		}
	}
	if list, ok := v.pool.queue[sender]; ok {
		return list.Get(nonce)
	}
	return nil
}

// nextNonce returns the nonce that would extend the sender's pending run.
func (pool *TxPool) nextNonce(from types.Address) uint64 {
	if list := pool.pending[from]; list != nil && list.Len() > 0 {
		return list.items[list.Len()-1].Nonce() + 1
	}
	if pool.state == nil {
		return 0
	}
	return pool.state.Nonce(from)
}

// senderTxCount returns the total number of transactions from a sender
// across both pending and queued lists.
func (pool *TxPool) senderTxCount(from types.Address) int {
	count := 0
	if list, ok := pool.pending[from]; ok {
		count += list.Len()
	}
	if list, ok := pool.queue[from]; ok {
		count += list.Len()
	}
	return count
}

func (pool *TxPool) addPending(from types.Address, tx *types.Transaction) {
	list, ok := pool.pending[from]
	if !ok {
		list = &txSortedList{}
		pool.pending[from] = list
	}
	list.Add(tx)
}

func (pool *TxPool) addQueue(from types.Address, tx *types.Transaction) {
	list, ok := pool.queue[from]
	if !ok {
		list = &txSortedList{}
		pool.queue[from] = list
	}
	list.Add(tx)
}

// promoteQueue moves transactions from queue to pending when their nonce becomes
// sequential with the current pending nonce.
func (pool *TxPool) promoteQueue(from types.Address) {
	queueList, ok := pool.queue[from]
	if !ok || queueList.Len() == 0 {
		return
	}
	for _, tx := range queueList.Ready(pool.nextNonce(from)) {
		pool.addPending(from, tx)
		queueList.Remove(tx.Nonce())
	}
	if queueList.Len() == 0 {
		delete(pool.queue, from)
	}
}

func (pool *TxPool) updateGauges() {
	pool.metrics.Gauge("txpool.pending").Set(int64(pool.countLocked(pool.pending)))
	pool.metrics.Gauge("txpool.queued").Set(int64(pool.countLocked(pool.queue)))
}

func (pool *TxPool) countLocked(lists map[types.Address]*txSortedList) int {
	count := 0
	for _, list := range lists {
		count += list.Len()
	}
	return count
}

// Pending returns all processable transactions, grouped by sender and sorted by nonce.
func (pool *TxPool) Pending() map[types.Address][]*types.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	result := make(map[types.Address][]*types.Transaction)
	for addr, list := range pool.pending {
		txs := make([]*types.Transaction, len(list.items))
		copy(txs, list.items)
		result[addr] = txs
	}
	return result
}

// Get retrieves a transaction by hash.
func (pool *TxPool) Get(hash types.Hash) *types.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.lookup.Get(hash)
}

// Has reports whether a transaction with the hash is pooled.
func (pool *TxPool) Has(hash types.Hash) bool {
	return pool.Get(hash) != nil
}

// Locals returns the senders that submitted local transactions.
func (pool *TxPool) Locals() []types.Address {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.locals.ToSlice()
}

// Remove removes a transaction from the pool (e.g., after inclusion in a block).
// After removal, queued transactions are promoted if their nonces become sequential.
func (pool *TxPool) Remove(hash types.Hash) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	tx := pool.lookup.Get(hash)
	if tx == nil {
		return
	}
	pool.lookup.Remove(hash)

	from, err := pool.senders.Sender(tx)
	if err != nil {
		pool.log.Error("Pooled transaction lost its sender", "hash", hash.Hex(), "err", err)
		return
	}
	wasPending := false
	if list, ok := pool.pending[from]; ok {
		if list.Remove(tx.Nonce()) {
			wasPending = true
		}
		if list.Len() == 0 {
			delete(pool.pending, from)
		}
	}
	if list, ok := pool.queue[from]; ok {
		list.Remove(tx.Nonce())
		if list.Len() == 0 {
			delete(pool.queue, from)
		}
	}
	if wasPending {
		pool.promoteQueue(from)
	}
	pool.updateGauges()
}

// Count returns the total number of transactions in the pool.
func (pool *TxPool) Count() int {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.lookup.Count()
}

// PendingCount returns the number of pending (processable) transactions.
func (pool *TxPool) PendingCount() int {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.countLocked(pool.pending)
}

// QueuedCount returns the number of queued (future) transactions.
func (pool *TxPool) QueuedCount() int {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.countLocked(pool.queue)
}

// Reset moves the pool to a new head. Transactions with nonces below the
// new state nonces are dropped and queued transactions are re-promoted. A
// nil state makes the pool reject with CHAIN_HEAD_WORLD_STATE_NOT_AVAILABLE.
func (pool *TxPool) Reset(head *Head, state validation.StateView) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.head = head
	pool.state = state
	if state == nil {
		pool.log.Warn("Pool reset without world state")
		return
	}

	dropped := 0
	for _, lists := range []map[types.Address]*txSortedList{pool.pending, pool.queue} {
		for addr, list := range lists {
			stateNonce := state.Nonce(addr)
			var stale []*types.Transaction
			for _, tx := range list.items {
				if tx.Nonce() < stateNonce {
					stale = append(stale, tx)
				}
			}
			for _, tx := range stale {
				list.Remove(tx.Nonce())
				pool.lookup.Remove(tx.Hash())
			}
			dropped += len(stale)
			if list.Len() == 0 {
				delete(lists, addr)
			}
		}
	}
	for addr := range pool.queue {
		pool.promoteQueue(addr)
	}
	if dropped > 0 {
		pool.log.Debug("Dropped stale transactions", "count", dropped)
	}
	pool.updateGauges()
}

// EffectiveGasPrice calculates the effective gas price for a transaction
// given a base fee. For legacy transactions, this is simply GasPrice.
// For EIP-1559 transactions: min(MaxFeePerGas, BaseFee + MaxPriorityFeePerGas).
// If baseFee is nil, returns GasFeeCap (MaxFeePerGas) as the effective price.
func EffectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil || tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType {
		return new(big.Int).Set(tx.GasPrice())
	}
	effectiveTip := new(big.Int).Add(baseFee, tx.GasTipCap())
	if feeCap := tx.GasFeeCap(); effectiveTip.Cmp(feeCap) > 0 {
		return new(big.Int).Set(feeCap)
	}
	return effectiveTip
}

// PendingSorted returns all pending transactions ordered by effective gas
// price (descending). Each sender's transactions keep nonce order: only the
// lowest remaining nonce of a sender competes on price at any point.
func (pool *TxPool) PendingSorted() []*types.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	var baseFee *big.Int
	if pool.head != nil {
		baseFee = pool.head.BaseFee
	}
	heads := make(priceHeap, 0, len(pool.pending))
	total := 0
	for _, list := range pool.pending {
		if list.Len() == 0 {
			continue
		}
		total += list.Len()
		heads = append(heads, &senderHead{
			txs:   list.items,
			price: EffectiveGasPrice(list.items[0], baseFee),
		})
	}
	heap.Init(&heads)

	sorted := make([]*types.Transaction, 0, total)
	for heads.Len() > 0 {
		best := heads[0]
		sorted = append(sorted, best.txs[0])
		if best.txs = best.txs[1:]; len(best.txs) > 0 {
			best.price = EffectiveGasPrice(best.txs[0], baseFee)
			heap.Fix(&heads, 0)
		} else {
			heap.Pop(&heads)
		}
	}
	return sorted
}

// senderHead is a sender's remaining nonce-ordered pending transactions.
type senderHead struct {
	txs   []*types.Transaction
	price *big.Int
}

// priceHeap is a max-heap of senders by the price of their next transaction.
// Ties are broken by hash so the order is deterministic.
type priceHeap []*senderHead

func (h priceHeap) Len() int { return len(h) }

func (h priceHeap) Less(i, j int) bool {
	if c := h[i].price.Cmp(h[j].price); c != 0 {
		return c > 0
	}
	hi, hj := h[i].txs[0].Hash(), h[j].txs[0].Hash()
	return bytes.Compare(hi[:], hj[:]) < 0
}

func (h priceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priceHeap) Push(x any) { *h = append(*h, x.(*senderHead)) }

func (h *priceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
