package txpool

import (
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eth2030/admission/core/types"
)

// DefaultSenderCacheSize is the number of recovered senders kept in memory.
const DefaultSenderCacheSize = 16384

// senderCache recovers transaction senders and remembers them by hash, so a
// transaction seen again (a resubmission, a removal, a reset) does not pay
// for public-key recovery twice.
type senderCache struct {
	signer types.Signer
	cache  *lru.Cache[types.Hash, types.Address]
}

func newSenderCache(chainID *big.Int, size int) (*senderCache, error) {
	if size <= 0 {
		size = DefaultSenderCacheSize
	}
	c, err := lru.New[types.Hash, types.Address](size)
	if err != nil {
		return nil, err
	}
	return &senderCache{signer: types.LatestSigner(chainID), cache: c}, nil
}

// Sender implements validation.Recoverer. Failed recoveries are not cached.
func (s *senderCache) Sender(tx *types.Transaction) (types.Address, error) {
	hash := tx.Hash()
	if from, ok := s.cache.Get(hash); ok {
		return from, nil
	}
	from, err := s.signer.Sender(tx)
	if err != nil {
		return types.Address{}, err
	}
	s.cache.Add(hash, from)
	return from, nil
}

func (s *senderCache) Len() int { return s.cache.Len() }
