package types

import (
	"bytes"
)

// DelegationPrefix is the EIP-7702 delegation designator prefix.
// Code starting with this prefix indicates account code delegation.
var DelegationPrefix = []byte{0xef, 0x01, 0x00}

// ParseDelegation extracts the target address from delegation code.
// Returns the delegated address and true if b is exactly 23 bytes
// with the 0xef0100 prefix.
func ParseDelegation(b []byte) (Address, bool) {
	if len(b) != len(DelegationPrefix)+AddressLength || !bytes.HasPrefix(b, DelegationPrefix) {
		return Address{}, false
	}
	return BytesToAddress(b[len(DelegationPrefix):]), true
}

// AddressToDelegation creates delegation designator code: 0xef0100 || address.
func AddressToDelegation(addr Address) []byte {
	return append(bytes.Clone(DelegationPrefix), addr[:]...)
}
