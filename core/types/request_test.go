package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const depositVectorInner = "f8bbb0b10a4a15bf67b328c9b101d09e5c6ee6672978fdad9ef0d9e2ceffaee99223555d8601f0cb3bcc4ce1af9864779a416ea00017a7fcf06faf493d30bbe2632ea7c2383cd86825e12797165de7aa35589483850773594000b860a889db8300194050a2636c92a95bc7160515867614b7971a9500cdb62f9c0890217d2901c3241f86fac029428fc106930606154bd9e406d7588934a5f15b837180b17194d6e44bd6de23e43b163dfe12e369dcc75a3852cd997963f158217eb501"

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func depositVector(t testing.TB) *DepositRequest {
	d := &DepositRequest{
		WithdrawalCredentials: HexToHash("0x0017a7fcf06faf493d30bbe2632ea7c2383cd86825e12797165de7aa35589483"),
		Amount:                32000000000,
		Index:                 1,
	}
	copy(d.Pubkey[:], mustHex(t, "b10a4a15bf67b328c9b101d09e5c6ee6672978fdad9ef0d9e2ceffaee99223555d8601f0cb3bcc4ce1af9864779a416e"))
	copy(d.Signature[:], mustHex(t, "a889db8300194050a2636c92a95bc7160515867614b7971a9500cdb62f9c0890217d2901c3241f86fac029428fc106930606154bd9e406d7588934a5f15b837180b17194d6e44bd6de23e43b163dfe12e369dcc75a3852cd997963f158217eb5"))
	return d
}

func testWithdrawal(seed byte, amount uint64) *WithdrawalRequest {
	w := &WithdrawalRequest{Amount: amount}
	w.SourceAddress[19] = seed
	for i := range w.ValidatorPubkey {
		w.ValidatorPubkey[i] = seed + byte(i)
	}
	return w
}

func testConsolidation(seed byte) *ConsolidationRequest {
	c := &ConsolidationRequest{}
	c.SourceAddress[0] = seed
	for i := range c.SourcePubkey {
		c.SourcePubkey[i] = seed
		c.TargetPubkey[i] = ^seed
	}
	return c
}

func TestDepositRequestVector(t *testing.T) {
	d := depositVector(t)
	inner := mustHex(t, depositVectorInner)

	if got := EncodeRequestPayload(d); !bytes.Equal(got, inner) {
		t.Fatalf("payload mismatch\ngot  %x\nwant %x", got, inner)
	}
	want := append([]byte{DepositRequestType}, inner...)
	if got := EncodeRequest(d); !bytes.Equal(got, want) {
		t.Fatalf("encoding mismatch\ngot  %x\nwant %x", got, want)
	}

	dec, err := DecodeRequestAs(want, DepositRequestType)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(Request(d), dec); diff != "" {
		t.Fatalf("decoded request mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	reqs := []Request{
		depositVector(t),
		&DepositRequest{},
		&DepositRequest{Amount: 1, Index: 127},
		&DepositRequest{Amount: ^uint64(0), Index: 128},
		testWithdrawal(1, 0),
		testWithdrawal(2, 1<<40),
		&WithdrawalRequest{},
		testConsolidation(3),
		&ConsolidationRequest{},
	}
	for _, r := range reqs {
		enc := EncodeRequest(r)
		dec, err := DecodeRequest(enc)
		if err != nil {
			t.Fatalf("%T: decode: %v", r, err)
		}
		if diff := cmp.Diff(r, dec); diff != "" {
			t.Fatalf("%T: round trip mismatch (-want +got):\n%s", r, diff)
		}
		if !bytes.Equal(EncodeRequest(dec), enc) {
			t.Fatalf("%T: re-encoding differs", r)
		}
	}
}

func TestRequestEncodingInjective(t *testing.T) {
	reqs := []Request{
		&DepositRequest{},
		&DepositRequest{Amount: 1},
		&DepositRequest{Index: 1},
		&WithdrawalRequest{},
		&WithdrawalRequest{Amount: 1},
		testWithdrawal(1, 0),
		&ConsolidationRequest{},
		testConsolidation(1),
		testConsolidation(2),
	}
	seen := make(map[string]int)
	for i, r := range reqs {
		enc := string(EncodeRequest(r))
		if j, ok := seen[enc]; ok {
			t.Fatalf("requests %d and %d share encoding %x", j, i, enc)
		}
		seen[enc] = i
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	valid := EncodeRequest(testWithdrawal(9, 5))

	// amount re-encoded with a leading zero: 0x82 0x00 0x05
	nonCanonical := append([]byte{}, valid[:len(valid)-1]...)
	nonCanonical = append(nonCanonical, 0x82, 0x00, 0x05)
	nonCanonical[2] += 2 // list length byte (0xf8 <len>)

	shortAddr := append([]byte{WithdrawalRequestType}, EncodeRequestPayload(testConsolidation(1))...)

	tests := []struct {
		name  string
		input []byte
		want  DecodeErrorKind
	}{
		{"empty", nil, DecodeTruncated},
		{"type only", []byte{WithdrawalRequestType}, DecodeTruncated},
		{"truncated", valid[:len(valid)-3], DecodeTruncated},
		{"trailing", append(append([]byte{}, valid...), 0x00), DecodeTrailingData},
		{"non-canonical int", nonCanonical, DecodeNonCanonical},
		{"zero byte int", append(append([]byte{}, valid[:len(valid)-1]...), 0x00), DecodeNonCanonical},
		{"wrong variant payload", shortAddr, DecodeLengthMismatch},
		{"string instead of list", []byte{DepositRequestType, 0x80}, DecodeLengthMismatch},
		{"too few fields", []byte{ConsolidationRequestType, 0xc0}, DecodeLengthMismatch},
		{"unknown type", append([]byte{0x7f}, valid[1:]...), DecodeUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.input)
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
			if derr.Kind != tt.want {
				t.Fatalf("kind = %v, want %v (err: %v)", derr.Kind, tt.want, err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("errors.Is(err, %v) = false", tt.want)
			}
		})
	}
}

func TestDecodeRequestTooManyFields(t *testing.T) {
	c := testConsolidation(4)
	fields := c.appendFields(nil)
	fields = append(fields, 0x01)
	enc := append([]byte{ConsolidationRequestType}, wrapList(fields)...)
	if _, err := DecodeRequest(enc); !errors.Is(err, DecodeLengthMismatch) {
		t.Fatalf("err = %v, want %v", err, DecodeLengthMismatch)
	}
}

func TestDecodeRequestAsMismatch(t *testing.T) {
	enc := EncodeRequest(testConsolidation(1))
	_, err := DecodeRequestAs(enc, WithdrawalRequestType)
	if !errors.Is(err, DecodeUnknownType) {
		t.Fatalf("err = %v, want %v", err, DecodeUnknownType)
	}
}

func TestRequestRegistry(t *testing.T) {
	infos := RequestTypes()
	if len(infos) != 3 {
		t.Fatalf("registered %d types, want 3", len(infos))
	}
	for i, info := range infos {
		if info.Type != byte(i) {
			t.Errorf("types[%d].Type = %d", i, info.Type)
		}
		r := info.new()
		if r.Type() != info.Type {
			t.Errorf("%s constructor yields type %d", info.Name, r.Type())
		}
	}
	if _, ok := LookupRequestType(0x03); ok {
		t.Fatal("type 0x03 must not be registered")
	}
}

func TestGroupRequests(t *testing.T) {
	w1, w2 := testWithdrawal(1, 1), testWithdrawal(2, 2)
	c1 := testConsolidation(1)
	d1, d2 := depositVector(t), &DepositRequest{Index: 2}
	reqs := Requests{c1, w1, d1, w2, d2}

	groups := GroupRequests(reqs)
	want := []RequestGroup{
		{Type: DepositRequestType, Requests: Requests{d1, d2}},
		{Type: WithdrawalRequestType, Requests: Requests{w1, w2}},
		{Type: ConsolidationRequestType, Requests: Requests{c1}},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	flat := FlattenRequests(reqs)
	if len(flat) != 3 {
		t.Fatalf("flattened %d groups, want 3", len(flat))
	}
	wantDeposits := append([]byte{DepositRequestType}, EncodeRequestPayload(d1)...)
	wantDeposits = append(wantDeposits, EncodeRequestPayload(d2)...)
	if !bytes.Equal(flat[0], wantDeposits) {
		t.Fatalf("deposit group mismatch\ngot  %x\nwant %x", flat[0], wantDeposits)
	}
	if err := ValidateRequestsOrder(flat); err != nil {
		t.Fatal(err)
	}

	split, err := SplitRequests(flat)
	if err != nil {
		t.Fatal(err)
	}
	wantSplit := Requests{d1, d2, w1, w2, c1}
	if diff := cmp.Diff(wantSplit, split); diff != "" {
		t.Fatalf("split mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupRequestsSkipsEmpty(t *testing.T) {
	flat := FlattenRequests(Requests{testConsolidation(1)})
	if len(flat) != 1 || flat[0][0] != ConsolidationRequestType {
		t.Fatalf("flat = %x", flat)
	}
	if got := FlattenRequests(nil); len(got) != 0 {
		t.Fatalf("empty requests flattened to %x", got)
	}
}

func TestValidateRequestsOrder(t *testing.T) {
	d := EncodeRequest(&DepositRequest{})
	w := EncodeRequest(&WithdrawalRequest{})
	tests := []struct {
		name   string
		groups [][]byte
		want   error
	}{
		{"ascending", [][]byte{d, w}, nil},
		{"descending", [][]byte{w, d}, ErrRequestsOrder},
		{"duplicate", [][]byte{d, d}, ErrRequestsOrder},
		{"empty group", [][]byte{{DepositRequestType}}, ErrEmptyRequestGroup},
		{"none", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRequestsOrder(tt.groups); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSplitRequestsErrors(t *testing.T) {
	if _, err := SplitRequests([][]byte{{0x05, 0xc0}}); !errors.Is(err, DecodeUnknownType) {
		t.Fatalf("unknown type: err = %v", err)
	}
	bad := append([]byte{WithdrawalRequestType}, 0xf8, 0x40)
	if _, err := SplitRequests([][]byte{bad}); !errors.Is(err, DecodeTruncated) {
		t.Fatalf("truncated group: err = %v", err)
	}
}

func TestComputeRequestsHash(t *testing.T) {
	if got := ComputeRequestsHash(nil); got != EmptyRequestsHash {
		t.Fatalf("empty hash = %s, want %s", got, EmptyRequestsHash)
	}
	if EmptyRequestsHash != HexToHash("0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855") {
		t.Fatalf("EmptyRequestsHash = %s", EmptyRequestsHash)
	}
	reqs := Requests{depositVector(t)}
	want := HexToHash("0x32c8685e7d68e48aa6750bb7727809cbc31320c49786c991b4f4ace7459e1379")
	if got := reqs.Hash(); got != want {
		t.Fatalf("requests hash = %s, want %s", got, want)
	}
	// Groups holding only a type byte do not contribute.
	withEmpty := append([][]byte{{WithdrawalRequestType}}, FlattenRequests(reqs)...)
	if got := ComputeRequestsHash(withEmpty); got != want {
		t.Fatalf("hash with empty group = %s, want %s", got, want)
	}
	if err := VerifyRequestsHash(want, FlattenRequests(reqs)); err != nil {
		t.Fatal(err)
	}
	if err := VerifyRequestsHash(EmptyRequestsHash, FlattenRequests(reqs)); !errors.Is(err, ErrRequestsHash) {
		t.Fatalf("err = %v, want %v", err, ErrRequestsHash)
	}
}

func TestRequestsFilterByType(t *testing.T) {
	requests := Requests{
		&DepositRequest{Index: 1},
		testWithdrawal(1, 1),
		&DepositRequest{Index: 2},
		testConsolidation(1),
	}
	if n := len(requests.FilterByType(DepositRequestType)); n != 2 {
		t.Errorf("expected 2 deposit requests, got %d", n)
	}
	if n := len(requests.FilterByType(WithdrawalRequestType)); n != 1 {
		t.Errorf("expected 1 withdrawal request, got %d", n)
	}
	if n := len(requests.FilterByType(ConsolidationRequestType)); n != 1 {
		t.Errorf("expected 1 consolidation request, got %d", n)
	}
	enc := requests.Encode()
	if len(enc) != 4 || enc[1][0] != WithdrawalRequestType {
		t.Fatalf("Encode() = %x", enc)
	}
}

func TestRequestJSON(t *testing.T) {
	for _, r := range []Request{depositVector(t), testWithdrawal(7, 99), testConsolidation(8)} {
		enc, err := MarshalRequestJSON(r)
		if err != nil {
			t.Fatalf("%T: marshal: %v", r, err)
		}
		dec, err := UnmarshalRequestJSON(enc)
		if err != nil {
			t.Fatalf("%T: unmarshal %s: %v", r, enc, err)
		}
		if diff := cmp.Diff(r, dec); diff != "" {
			t.Fatalf("%T: JSON round trip mismatch (-want +got):\n%s", r, diff)
		}
	}
}

func TestRequestJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing amount", `{"type":"0x1","sourceAddress":"0x0000000000000000000000000000000000000001","validatorPubkey":"0x` + hex.EncodeToString(make([]byte, 48)) + `"}`},
		{"short pubkey", `{"type":"0x2","sourceAddress":"0x0000000000000000000000000000000000000001","sourcePubkey":"0x01","targetPubkey":"0x01"}`},
		{"unknown type", `{"type":"0x9"}`},
		{"bad address", `{"type":"0x1","sourceAddress":"0x01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalRequestJSON([]byte(tt.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func wrapList(payload []byte) []byte {
	if len(payload) <= 55 {
		return append([]byte{0xc0 + byte(len(payload))}, payload...)
	}
	if len(payload) < 256 {
		return append([]byte{0xf8, byte(len(payload))}, payload...)
	}
	return append([]byte{0xf9, byte(len(payload) >> 8), byte(len(payload))}, payload...)
}
