package types

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/eth2030/admission/rlp"
)

func sampleTxs() map[string]TxData {
	to := HexToAddress("0xdead")
	al := AccessList{{Address: HexToAddress("0xaaaa"), StorageKeys: []Hash{HexToHash("0x01"), HexToHash("0x02")}}}
	v, r, s := big.NewInt(1), big.NewInt(123456789), big.NewInt(987654321)
	return map[string]TxData{
		"legacy": &LegacyTx{
			Nonce: 1, GasPrice: big.NewInt(20_000_000_000), Gas: 21000, To: &to,
			Value: big.NewInt(1_000_000_000_000_000_000), Data: []byte{0xca, 0xfe},
			V: big.NewInt(37), R: r, S: s,
		},
		"legacy create": &LegacyTx{GasPrice: big.NewInt(1), Gas: 100000, Data: []byte{0x60, 0x80}, V: big.NewInt(27), R: r, S: s},
		"access list": &AccessListTx{
			ChainID: big.NewInt(1), Nonce: 5, GasPrice: big.NewInt(10_000_000_000), Gas: 50000,
			To: &to, Value: big.NewInt(1000), Data: []byte{1, 2, 3}, AccessList: al, V: v, R: r, S: s,
		},
		"dynamic fee": &DynamicFeeTx{
			ChainID: big.NewInt(1), Nonce: 10, GasTipCap: big.NewInt(2_000_000_000),
			GasFeeCap: big.NewInt(100_000_000_000), Gas: 21000, To: &to, Value: big.NewInt(0),
			AccessList: al, V: v, R: r, S: s,
		},
		"blob": &BlobTx{
			ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(50), Gas: 21000,
			To: to, Value: big.NewInt(0), BlobFeeCap: big.NewInt(1_000_000),
			BlobHashes: []Hash{HexToHash("0x0101"), HexToHash("0x0102")}, V: v, R: r, S: s,
		},
		"set code": &SetCodeTx{
			ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(50), Gas: 100000,
			To: HexToAddress("0x7702"), Value: big.NewInt(0),
			AuthorizationList: []Authorization{{ChainID: big.NewInt(1), Address: to, Nonce: 3, V: big.NewInt(0), R: big.NewInt(5), S: big.NewInt(6)}},
			V: v, R: r, S: s,
		},
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	for name, inner := range sampleTxs() {
		t.Run(name, func(t *testing.T) {
			tx := NewTransaction(inner)
			enc, err := tx.EncodeRLP()
			if err != nil {
				t.Fatalf("EncodeRLP: %v", err)
			}
			if tx.Type() == LegacyTxType && enc[0] < 0xc0 {
				t.Fatalf("legacy encoding should start with a list prefix, got %#02x", enc[0])
			}
			if tx.Type() != LegacyTxType && enc[0] != tx.Type() {
				t.Fatalf("typed encoding should start with its type, got %#02x", enc[0])
			}
			decoded, err := DecodeTxRLP(enc)
			if err != nil {
				t.Fatalf("DecodeTxRLP: %v", err)
			}
			assertTxEqual(t, tx, decoded)
			reenc, _ := decoded.EncodeRLP()
			if !bytes.Equal(enc, reenc) {
				t.Fatalf("re-encoding differs\nfirst  %x\nsecond %x", enc, reenc)
			}
			if decoded.Hash() != tx.Hash() {
				t.Fatal("decoded transaction should produce the same hash")
			}
		})
	}
}

func TestDecodeTxStrictness(t *testing.T) {
	tx := NewTransaction(sampleTxs()["dynamic fee"])
	enc, _ := tx.EncodeRLP()

	legacy := NewTransaction(sampleTxs()["legacy"])
	legacyEnc, _ := legacy.EncodeRLP()

	badTo := &legacyTxRLP{To: []byte{0x01, 0x02}, V: big.NewInt(27)}
	badToEnc, err := rlp.EncodeToBytes(badTo)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"empty", nil, errEmptyTx},
		{"zero type", []byte{0x00, 0xc0}, ErrInvalidTxEncoding},
		{"string prefix", []byte{0x80}, ErrInvalidTxEncoding},
		{"unknown type", []byte{0x05, 0xc0}, ErrTxTypeNotSupported},
		{"type only", []byte{0x02}, nil},
		{"trailing typed", append(append([]byte{}, enc...), 0x01), rlp.ErrTrailingData},
		{"trailing legacy", append(append([]byte{}, legacyEnc...), 0x80), rlp.ErrTrailingData},
		{"truncated", enc[:len(enc)-2], nil},
		{"bad recipient", badToEnc, errInvalidToLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTxRLP(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSigningHashCommitsToChainID(t *testing.T) {
	tx := NewTransaction(&LegacyTx{GasPrice: big.NewInt(1), Gas: 21000})
	if tx.signingHash(nil) == tx.signingHash(big.NewInt(1)) {
		t.Fatal("EIP-155 hash must differ from the pre-EIP-155 hash")
	}
	if tx.signingHash(big.NewInt(1)) == tx.signingHash(big.NewInt(2)) {
		t.Fatal("EIP-155 hash must commit to the chain id")
	}
	typed := NewTransaction(&DynamicFeeTx{ChainID: big.NewInt(1)})
	if typed.signingHash(nil) != typed.signingHash(big.NewInt(9)) {
		t.Fatal("typed signing hash must use the transaction's own chain id")
	}
}

// assertTxEqual compares two transactions' core fields.
func assertTxEqual(t *testing.T, expected, actual *Transaction) {
	t.Helper()
	if expected.Type() != actual.Type() {
		t.Fatalf("Type: expected %d, got %d", expected.Type(), actual.Type())
	}
	if expected.Nonce() != actual.Nonce() || expected.Gas() != actual.Gas() {
		t.Fatalf("Nonce/Gas: expected %d/%d, got %d/%d", expected.Nonce(), expected.Gas(), actual.Nonce(), actual.Gas())
	}
	for _, pair := range [][2]*big.Int{
		{expected.GasPrice(), actual.GasPrice()},
		{expected.GasTipCap(), actual.GasTipCap()},
		{expected.GasFeeCap(), actual.GasFeeCap()},
		{expected.Value(), actual.Value()},
	} {
		if pair[0].Cmp(pair[1]) != 0 {
			t.Fatalf("fee/value field: expected %s, got %s", pair[0], pair[1])
		}
	}
	if !bytes.Equal(expected.Data(), actual.Data()) {
		t.Fatalf("Data: expected %x, got %x", expected.Data(), actual.Data())
	}
	if (expected.To() == nil) != (actual.To() == nil) {
		t.Fatalf("To: expected %v, got %v", expected.To(), actual.To())
	}
	if expected.To() != nil && *expected.To() != *actual.To() {
		t.Fatalf("To: expected %s, got %s", expected.To(), actual.To())
	}
	if len(expected.BlobHashes()) != len(actual.BlobHashes()) || len(expected.AuthorizationList()) != len(actual.AuthorizationList()) {
		t.Fatal("blob hashes or authorizations lost")
	}
}
