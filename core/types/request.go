package types

import (
	"fmt"

	"github.com/eth2030/admission/rlp"
)

// Request types defined by EIP-7685.
// Each request type is identified by a single byte prefix.
const (
	DepositRequestType       byte = 0x00 // EIP-6110: supply validator deposits
	WithdrawalRequestType    byte = 0x01 // EIP-7002: trigger validator withdrawals
	ConsolidationRequestType byte = 0x02 // EIP-7251: validator consolidations
)

// Field widths shared by the request variants.
const (
	BLSPubkeyLength    = 48
	BLSSignatureLength = 96
)

// Request is an execution layer request per EIP-7685. The set of
// implementations is closed: every variant is registered in the request
// codec table and encodes as type_byte || rlp([fields...]).
type Request interface {
	// Type returns the EIP-7685 request type byte.
	Type() byte

	appendFields(dst []byte) []byte
	decodeFields(s *rlp.Stream) error
}

// DepositRequest is an EIP-6110 validator deposit.
type DepositRequest struct {
	Pubkey                [BLSPubkeyLength]byte
	WithdrawalCredentials Hash
	Amount                uint64 // Gwei
	Signature             [BLSSignatureLength]byte
	Index                 uint64
}

// Type implements Request.
func (*DepositRequest) Type() byte { return DepositRequestType }

func (d *DepositRequest) appendFields(b []byte) []byte {
	b = rlp.AppendBytes(b, d.Pubkey[:])
	b = rlp.AppendBytes(b, d.WithdrawalCredentials[:])
	b = rlp.AppendUint64(b, d.Amount)
	b = rlp.AppendBytes(b, d.Signature[:])
	return rlp.AppendUint64(b, d.Index)
}

func (d *DepositRequest) decodeFields(s *rlp.Stream) (err error) {
	if err = s.ReadFixed(d.Pubkey[:]); err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	if err = s.ReadFixed(d.WithdrawalCredentials[:]); err != nil {
		return fmt.Errorf("withdrawal_credentials: %w", err)
	}
	if d.Amount, err = s.Uint64(); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if err = s.ReadFixed(d.Signature[:]); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if d.Index, err = s.Uint64(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

// WithdrawalRequest is an EIP-7002 execution layer triggered withdrawal.
type WithdrawalRequest struct {
	SourceAddress   Address
	ValidatorPubkey [BLSPubkeyLength]byte
	Amount          uint64 // Gwei
}

// Type implements Request.
func (*WithdrawalRequest) Type() byte { return WithdrawalRequestType }

func (w *WithdrawalRequest) appendFields(b []byte) []byte {
	b = rlp.AppendBytes(b, w.SourceAddress[:])
	b = rlp.AppendBytes(b, w.ValidatorPubkey[:])
	return rlp.AppendUint64(b, w.Amount)
}

func (w *WithdrawalRequest) decodeFields(s *rlp.Stream) (err error) {
	if err = s.ReadFixed(w.SourceAddress[:]); err != nil {
		return fmt.Errorf("source_address: %w", err)
	}
	if err = s.ReadFixed(w.ValidatorPubkey[:]); err != nil {
		return fmt.Errorf("validator_pubkey: %w", err)
	}
	if w.Amount, err = s.Uint64(); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return nil
}

// ConsolidationRequest is an EIP-7251 validator consolidation.
type ConsolidationRequest struct {
	SourceAddress Address
	SourcePubkey  [BLSPubkeyLength]byte
	TargetPubkey  [BLSPubkeyLength]byte
}

// Type implements Request.
func (*ConsolidationRequest) Type() byte { return ConsolidationRequestType }

func (c *ConsolidationRequest) appendFields(b []byte) []byte {
	b = rlp.AppendBytes(b, c.SourceAddress[:])
	b = rlp.AppendBytes(b, c.SourcePubkey[:])
	return rlp.AppendBytes(b, c.TargetPubkey[:])
}

func (c *ConsolidationRequest) decodeFields(s *rlp.Stream) error {
	if err := s.ReadFixed(c.SourceAddress[:]); err != nil {
		return fmt.Errorf("source_address: %w", err)
	}
	if err := s.ReadFixed(c.SourcePubkey[:]); err != nil {
		return fmt.Errorf("source_pubkey: %w", err)
	}
	if err := s.ReadFixed(c.TargetPubkey[:]); err != nil {
		return fmt.Errorf("target_pubkey: %w", err)
	}
	return nil
}
