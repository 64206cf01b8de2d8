package validation

import (
	"bytes"

	"github.com/holiman/uint256"

	"github.com/eth2030/admission/core/types"
)

// Account is the state of one account as seen by the classifier.
type Account struct {
	Nonce   uint64
	Balance *uint256.Int
	Code    []byte
}

// StateSnapshot is an immutable StateView over a fixed set of accounts.
// Unknown accounts have zero nonce, zero balance and no code.
type StateSnapshot struct {
	accounts map[types.Address]Account
}

// NewStateSnapshot copies accounts into a snapshot. Later changes to the
// input are not visible through the snapshot.
func NewStateSnapshot(accounts map[types.Address]Account) *StateSnapshot {
	s := &StateSnapshot{accounts: make(map[types.Address]Account, len(accounts))}
	for addr, acct := range accounts {
		cpy := Account{Nonce: acct.Nonce, Code: bytes.Clone(acct.Code)}
		if acct.Balance != nil {
			cpy.Balance = acct.Balance.Clone()
		}
		s.accounts[addr] = cpy
	}
	return s
}

func (s *StateSnapshot) Nonce(addr types.Address) uint64 {
	return s.accounts[addr].Nonce
}

// Balance returns a copy of the balance of addr.
func (s *StateSnapshot) Balance(addr types.Address) *uint256.Int {
	if b := s.accounts[addr].Balance; b != nil {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Code returns a copy of the code of addr.
func (s *StateSnapshot) Code(addr types.Address) []byte {
	return bytes.Clone(s.accounts[addr].Code)
}
