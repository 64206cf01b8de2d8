package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// EIP-7002 and EIP-7251 system contracts.
var (
	WithdrawalQueueAddress    = HexToAddress("0x00000961Ef480Eb55e80D19ad83579A64c007002")
	ConsolidationQueueAddress = HexToAddress("0x0000BBdDc7CE488642fb579F8B00f3a590007251")
)

// Record sizes of the system contract dequeue output.
const (
	WithdrawalRequestRecordSize    = AddressLength + BLSPubkeyLength + 8      // 76
	ConsolidationRequestRecordSize = AddressLength + 2*BLSPubkeyLength        // 116
)

var ErrSystemRequestOutput = errors.New("system contract output is not a whole number of records")

// ParseWithdrawalRequests splits the EIP-7002 system contract output into
// requests. Each record is source_address(20) || validator_pubkey(48) ||
// amount(8, big-endian).
func ParseWithdrawalRequests(output []byte) (Requests, error) {
	if len(output)%WithdrawalRequestRecordSize != 0 {
		return nil, fmt.Errorf("%w: withdrawal output has %d bytes", ErrSystemRequestOutput, len(output))
	}
	reqs := make(Requests, 0, len(output)/WithdrawalRequestRecordSize)
	for rec := output; len(rec) > 0; rec = rec[WithdrawalRequestRecordSize:] {
		w := new(WithdrawalRequest)
		copy(w.SourceAddress[:], rec[:AddressLength])
		copy(w.ValidatorPubkey[:], rec[AddressLength:AddressLength+BLSPubkeyLength])
		w.Amount = binary.BigEndian.Uint64(rec[AddressLength+BLSPubkeyLength : WithdrawalRequestRecordSize])
		reqs = append(reqs, w)
	}
	return reqs, nil
}

// ParseConsolidationRequests splits the EIP-7251 system contract output
// into requests. Each record is source_address(20) || source_pubkey(48) ||
// target_pubkey(48).
func ParseConsolidationRequests(output []byte) (Requests, error) {
	if len(output)%ConsolidationRequestRecordSize != 0 {
		return nil, fmt.Errorf("%w: consolidation output has %d bytes", ErrSystemRequestOutput, len(output))
	}
	reqs := make(Requests, 0, len(output)/ConsolidationRequestRecordSize)
	for rec := output; len(rec) > 0; rec = rec[ConsolidationRequestRecordSize:] {
		c := new(ConsolidationRequest)
		copy(c.SourceAddress[:], rec[:AddressLength])
		copy(c.SourcePubkey[:], rec[AddressLength:AddressLength+BLSPubkeyLength])
		copy(c.TargetPubkey[:], rec[AddressLength+BLSPubkeyLength:ConsolidationRequestRecordSize])
		reqs = append(reqs, c)
	}
	return reqs, nil
}
