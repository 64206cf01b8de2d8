package core

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/eth2030/admission/core/types"
)

var (
	frontierRules = Rules{}
	istanbulRules = Rules{IsHomestead: true, IsEIP155: true, IsIstanbul: true}
	shanghaiRules = Rules{IsHomestead: true, IsEIP155: true, IsIstanbul: true, IsBerlin: true, IsLondon: true, IsShanghai: true}
	pragueRules   = TestConfig.Rules(big.NewInt(0), 0)
)

func TestIntrinsicGas(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		al     types.AccessList
		auths  []types.Authorization
		create bool
		rules  Rules
		want   uint64
	}{
		{"plain call", nil, nil, nil, false, istanbulRules, 21000},
		{"create", nil, nil, nil, true, istanbulRules, 53000},
		{"create before homestead", nil, nil, nil, true, frontierRules, 21000},
		{"data istanbul", []byte{0x00, 0x01}, nil, nil, false, istanbulRules, 21020},
		{"data frontier", []byte{0x00, 0x01}, nil, nil, false, frontierRules, 21072},
		{
			"access list", nil,
			types.AccessList{{Address: types.Address{1}, StorageKeys: []types.Hash{{1}, {2}}}},
			nil, false, istanbulRules, 27200,
		},
		{"authorizations", nil, nil, make([]types.Authorization, 2), false, pragueRules, 71000},
		{"initcode words", bytes.Repeat([]byte{0xff}, 33), nil, nil, true, shanghaiRules, 53532},
		{"initcode words before shanghai", bytes.Repeat([]byte{0xff}, 33), nil, nil, true, istanbulRules, 53528},
	}
	for _, tt := range tests {
		got, err := IntrinsicGas(tt.data, tt.al, tt.auths, tt.create, tt.rules)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: gas = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFloorDataGas(t *testing.T) {
	tests := []struct {
		data []byte
		want uint64
	}{
		{nil, 21000},
		{bytes.Repeat([]byte{0x01}, 10), 21400},
		{make([]byte, 100), 22000},
		{[]byte{0x00, 0x01}, 21050},
	}
	for _, tt := range tests {
		got, err := FloorDataGas(tt.data)
		if err != nil {
			t.Fatalf("FloorDataGas(%x): %v", tt.data, err)
		}
		if got != tt.want {
			t.Errorf("FloorDataGas(%x) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestMinimumGas(t *testing.T) {
	to := types.Address{0xaa}
	tx := types.NewTransaction(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1337),
		Gas:       30000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		To:        &to,
		Value:     new(big.Int),
		Data:      make([]byte, 100),
	})
	// Intrinsic: 21000 + 100*4 = 21400; floor: 21000 + 100*10 = 22000.
	pre := Rules{IsHomestead: true, IsIstanbul: true, IsBerlin: true, IsLondon: true}
	if got, _ := MinimumGas(tx, pre); got != 21400 {
		t.Errorf("pre-prague minimum = %d, want 21400", got)
	}
	if got, _ := MinimumGas(tx, pragueRules); got != 22000 {
		t.Errorf("prague minimum = %d, want 22000", got)
	}
}

func TestToWordSize(t *testing.T) {
	tests := []struct{ in, want uint64 }{
		{0, 0}, {1, 1}, {32, 1}, {33, 2}, {^uint64(0), ^uint64(0)/32 + 1},
	}
	for _, tt := range tests {
		if got := toWordSize(tt.in); got != tt.want {
			t.Errorf("toWordSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
