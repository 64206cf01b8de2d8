package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/crypto"
)

const depositVector = "00f8bbb0b10a4a15bf67b328c9b101d09e5c6ee6672978fdad9ef0d9e2ceffaee99223555d8601f0cb3bcc4ce1af9864779a416ea00017a7fcf06faf493d30bbe2632ea7c2383cd86825e12797165de7aa35589483850773594000b860a889db8300194050a2636c92a95bc7160515867614b7971a9500cdb62f9c0890217d2901c3241f86fac029428fc106930606154bd9e406d7588934a5f15b837180b17194d6e44bd6de23e43b163dfe12e369dcc75a3852cd997963f158217eb501"

var (
	testKey, _ = crypto.HexToKey("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	testAddr   = types.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
)

func runCmd(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func rawTx(t *testing.T, nonce uint64) string {
	t.Helper()
	to := types.Address{0xaa}
	tx, err := types.SignTx(types.NewTransaction(&types.DynamicFeeTx{
		ChainID:   core.TestConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(2_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	}), types.LatestSigner(core.TestConfig.ChainID), testKey)
	require.NoError(t, err)
	raw, err := tx.EncodeRLP()
	require.NoError(t, err)
	return hexutil.Encode(raw)
}

func writeState(t *testing.T, nonce uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	data := fmt.Sprintf(`{%q: {"nonce": "0x%x", "balance": "0xde0b6b3a7640000"}}`, testAddr.Hex(), nonce)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func decodeResults(t *testing.T, out string) []result {
	t.Helper()
	var results []result
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var r result
		require.NoError(t, dec.Decode(&r))
		results = append(results, r)
	}
	return results
}

func TestClassifyValid(t *testing.T) {
	code, out, stderr := runCmd(t, "", "--network", "test", "classify",
		"--state", writeState(t, 0), "--basefee", "1000000000", "--geth", rawTx(t, 0))
	require.Equal(t, 0, code, stderr)

	results := decodeResults(t, out)
	require.Len(t, results, 1)
	require.True(t, results[0].Valid)
	require.NotEmpty(t, results[0].Hash)
	require.Equal(t, results[0].Hash, results[0].GethHash)
}

func TestClassifyPoolSequence(t *testing.T) {
	stdin := strings.Join([]string{rawTx(t, 0), rawTx(t, 0), "0xzz", rawTx(t, 1)}, "\n")
	code, out, _ := runCmd(t, stdin, "--network", "test", "classify", "--state", writeState(t, 0))
	require.Equal(t, exitInvalid, code)

	results := decodeResults(t, out)
	require.Len(t, results, 4)
	require.True(t, results[0].Valid)
	require.Equal(t, "TRANSACTION_ALREADY_KNOWN", results[1].Reason)
	require.Equal(t, "INVALID_TRANSACTION_FORMAT", results[2].Reason)
	require.True(t, results[3].Valid)
}

func TestClassifyInvalid(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		reason    string
		retryable bool
	}{
		{"nonce too low", []string{"classify", "--state", "", rawTx(t, 0)}, "NONCE_TOO_LOW", false},
		{"block mode without state", []string{"classify", "--mode", "block", rawTx(t, 0)}, "CHAIN_HEAD_WORLD_STATE_NOT_AVAILABLE", true},
		{"wrong chain", []string{"--network", "mainnet", "classify", "--mode", "block", rawTx(t, 0)}, "WRONG_CHAIN_ID", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string(nil), tt.args...)
			if args[0] == "classify" {
				args = append([]string{"--network", "test"}, args...)
			}
			for i, a := range args {
				if a == "--state" {
					args[i+1] = writeState(t, 5)
				}
			}
			code, out, _ := runCmd(t, "", args...)
			require.Equal(t, exitInvalid, code)
			results := decodeResults(t, out)
			require.Len(t, results, 1)
			require.False(t, results[0].Valid)
			require.Equal(t, tt.reason, results[0].Reason)
			require.Equal(t, tt.retryable, results[0].Retryable)
		})
	}
}

func TestClassifyUnknownMode(t *testing.T) {
	code, _, stderr := runCmd(t, "", "classify", "--mode", "mempool", rawTx(t, 0))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unknown mode")
}

func TestRequestsRoundTrip(t *testing.T) {
	code, decoded, stderr := runCmd(t, "", "requests", "decode", depositVector)
	require.Equal(t, 0, code, stderr)

	code, encoded, stderr := runCmd(t, decoded, "requests", "encode")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "0x"+depositVector, strings.TrimSpace(encoded))
}

// depositLogJSON renders d as the JSON of a deposit contract receipt log.
func depositLogJSON(t *testing.T, d *types.DepositRequest, contract types.Address) string {
	t.Helper()
	bytesType, err := abi.NewType("bytes", "", nil)
	require.NoError(t, err)
	args := make(abi.Arguments, 5)
	for i := range args {
		args[i].Type = bytesType
	}
	var amount, index [8]byte
	binary.LittleEndian.PutUint64(amount[:], d.Amount)
	binary.LittleEndian.PutUint64(index[:], d.Index)
	data, err := args.Pack(d.Pubkey[:], d.WithdrawalCredentials[:], amount[:], d.Signature[:], index[:])
	require.NoError(t, err)

	out, err := json.Marshal(&gethtypes.Log{
		Address: gethcommon.Address(contract),
		Topics:  []gethcommon.Hash{gethcommon.Hash(types.DepositEventTopic)},
		Data:    data,
		TxHash:  gethcommon.Hash{0x01},
	})
	require.NoError(t, err)
	return string(out)
}

func TestRequestsDeposits(t *testing.T) {
	raw, err := hexutil.Decode("0x" + depositVector)
	require.NoError(t, err)
	r, err := types.DecodeRequest(raw)
	require.NoError(t, err)
	deposit := r.(*types.DepositRequest)

	stdin := strings.Join([]string{
		depositLogJSON(t, deposit, types.HexToAddress("0xdead")),
		depositLogJSON(t, deposit, types.DepositContractAddress),
	}, "\n")
	code, out, stderr := runCmd(t, stdin, "requests", "deposits")
	require.Equal(t, 0, code, stderr)

	code, decoded, _ := runCmd(t, "", "requests", "decode", depositVector)
	require.Equal(t, 0, code)
	require.Equal(t, decoded, out)

	code, _, stderr = runCmd(t, "{", "requests", "deposits")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "log 0")
}

func TestRequestsHash(t *testing.T) {
	code, out, stderr := runCmd(t, "", "requests", "hash", "--geth", depositVector)
	require.Equal(t, 0, code, stderr)
	require.Len(t, strings.TrimSpace(out), 66)

	code, out, _ = runCmd(t, "", "requests", "hash")
	require.Equal(t, 0, code)
	require.Equal(t, "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", strings.TrimSpace(out))

	code, _, stderr = runCmd(t, "", "requests", "hash", "0x07c0")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "request 0")
}

func TestReasons(t *testing.T) {
	code, out, _ := runCmd(t, "", "reasons")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 41)
	require.Contains(t, lines[1], "WRONG_CHAIN_ID")
	require.Contains(t, lines[40], "EMPTY_CODE_DELEGATION")
}

func TestBadConfig(t *testing.T) {
	code, _, stderr := runCmd(t, "", "--config", filepath.Join(t.TempDir(), "missing.toml"), "reasons")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "config")

	code, _, _ = runCmd(t, "", "--network", "ropsten", "reasons")
	require.Equal(t, 1, code)
}
