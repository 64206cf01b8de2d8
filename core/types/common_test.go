package types

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestHashConversions(t *testing.T) {
	h := HexToHash("0x0102")
	if h[30] != 0x01 || h[31] != 0x02 {
		t.Fatalf("HexToHash left-padding broken: %x", h)
	}
	if h.Hex() != "0x0000000000000000000000000000000000000000000000000000000000000102" {
		t.Fatalf("Hex() = %s", h.Hex())
	}
	if (Hash{}).IsZero() != true || h.IsZero() {
		t.Fatal("IsZero mismatch")
	}
	long := make([]byte, 40)
	long[39] = 0xaa
	if got := BytesToHash(long); got[31] != 0xaa {
		t.Fatalf("BytesToHash should keep the low 32 bytes: %x", got)
	}
}

func TestAddressFormat(t *testing.T) {
	a := HexToAddress("0xdead")
	if got := fmt.Sprintf("%x", a); got != "000000000000000000000000000000000000dead" {
		t.Fatalf("%%x = %s", got)
	}
	if got := fmt.Sprintf("%v", a); got != "0x000000000000000000000000000000000000dead" {
		t.Fatalf("%%v = %s", got)
	}
}

func TestHashAddressJSON(t *testing.T) {
	type pair struct {
		H Hash
		A Address
	}
	in := pair{H: HexToHash("0xff"), A: HexToAddress("0xee")}
	enc, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out pair
	if err := json.Unmarshal(enc, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip: got %+v, want %+v", out, in)
	}

	var a Address
	if err := json.Unmarshal([]byte(`"0x01"`), &a); err == nil {
		t.Fatal("short address must not unmarshal")
	}
	var h Hash
	if err := json.Unmarshal([]byte(`"0xzz"`), &h); err == nil {
		t.Fatal("invalid hex must not unmarshal")
	}
}

func TestEmptyCodeHash(t *testing.T) {
	if got := keccak256Hash(nil); got != EmptyCodeHash {
		t.Fatalf("keccak256(nil) = %s, want %s", got, EmptyCodeHash)
	}
}
