package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DepositContractAddress is the mainnet beacon chain deposit contract.
var DepositContractAddress = HexToAddress("0x00000000219ab540356cBB839Cbe05303d7705Fa")

// DepositEventTopic is the topic0 of the DepositEvent log emitted by the
// beacon chain deposit contract:
//
//	event DepositEvent(bytes pubkey, bytes withdrawal_credentials, bytes amount,
//	                   bytes signature, bytes index)
var DepositEventTopic = keccak256Hash([]byte("DepositEvent(bytes,bytes,bytes,bytes,bytes)"))

// depositLogDataLen is the exact ABI length of DepositEvent data:
// 5 offsets, then 5 length-prefixed fields padded to 32-byte words.
const depositLogDataLen = 576

var (
	ErrDepositLogInvalid   = errors.New("deposit: invalid log format")
	ErrDepositLogTopic     = errors.New("deposit: wrong event topic")
	ErrDepositDataTooShort = errors.New("deposit: log data too short")
	ErrDepositFieldLength  = errors.New("deposit: unexpected field length")
)

// ParseDepositLog extracts a DepositRequest from a deposit contract log
// emitted by contract. The log data is ABI-encoded dynamic bytes:
//
//	offset_pubkey(32) | offset_credentials(32) | offset_amount(32) |
//	offset_signature(32) | offset_index(32) |
//	len_pubkey(32) | pubkey(48) | padding(16) |
//	len_credentials(32) | credentials(32) |
//	len_amount(32) | amount(8) | padding(24) |
//	len_signature(32) | signature(96) |
//	len_index(32) | index(8) | padding(24)
//
// Amount and index are little-endian as emitted by the contract.
func ParseDepositLog(log *Log, contract Address) (*DepositRequest, error) {
	if log == nil {
		return nil, ErrDepositLogInvalid
	}
	if log.Address != contract {
		return nil, fmt.Errorf("%w: wrong address %s", ErrDepositLogInvalid, log.Address.Hex())
	}
	if len(log.Topics) < 1 || log.Topics[0] != DepositEventTopic {
		return nil, ErrDepositLogTopic
	}
	data := log.Data
	if len(data) < depositLogDataLen {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrDepositDataTooShort, len(data), depositLogDataLen)
	}

	d := new(DepositRequest)
	fields := []struct {
		name string
		dst  []byte
	}{
		{"pubkey", d.Pubkey[:]},
		{"withdrawal_credentials", d.WithdrawalCredentials[:]},
		{"amount", make([]byte, 8)},
		{"signature", d.Signature[:]},
		{"index", make([]byte, 8)},
	}
	for i, f := range fields {
		b, err := readABIBytes(data, i*32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		if len(b) != len(f.dst) {
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrDepositFieldLength, f.name, len(b), len(f.dst))
		}
		copy(f.dst, b)
	}
	d.Amount = binary.LittleEndian.Uint64(fields[2].dst)
	d.Index = binary.LittleEndian.Uint64(fields[4].dst)
	return d, nil
}

// readABIBytes reads the dynamic bytes value whose offset word is at pos.
func readABIBytes(data []byte, pos int) ([]byte, error) {
	offset, ok := readABIWord(data, pos)
	if !ok || offset > uint64(len(data))-32 {
		return nil, ErrDepositDataTooShort
	}
	size, ok := readABIWord(data, int(offset))
	if !ok || size > uint64(len(data))-offset-32 {
		return nil, ErrDepositDataTooShort
	}
	start := int(offset) + 32
	return data[start : start+int(size)], nil
}

// readABIWord reads a 32-byte big-endian word that must fit a uint32, as
// every ABI offset and length here does.
func readABIWord(data []byte, pos int) (uint64, bool) {
	if pos < 0 || pos+32 > len(data) {
		return 0, false
	}
	for _, b := range data[pos : pos+28] {
		if b != 0 {
			return 0, false
		}
	}
	return uint64(binary.BigEndian.Uint32(data[pos+28 : pos+32])), true
}

// FilterDepositLogs scans logs and extracts all deposit events emitted by
// contract, in log order. Nil logs, logs from other contracts and logs with
// other topics are skipped; a matching log that fails to parse is an error, since the
// contract only ever emits well-formed events.
func FilterDepositLogs(logs []*Log, contract Address) (Requests, error) {
	var deposits Requests
	for _, log := range logs {
		if log == nil || log.Address != contract {
			continue
		}
		if len(log.Topics) < 1 || log.Topics[0] != DepositEventTopic {
			continue
		}
		d, err := ParseDepositLog(log, contract)
		if err != nil {
			return nil, fmt.Errorf("log %d of tx %s: %w", log.Index, log.TxHash.Hex(), err)
		}
		deposits = append(deposits, d)
	}
	return deposits, nil
}
