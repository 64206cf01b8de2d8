package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/core/validation"
	"github.com/eth2030/admission/geth"
	"github.com/eth2030/admission/txpool"
)

// exitInvalid is the exit code when at least one transaction is invalid.
const exitInvalid = 2

func classifyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify raw EIP-2718 transactions",
		ArgsUsage: "[RAW_TX...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "pool", Usage: "validation mode: pool or block"},
			&cli.StringFlag{Name: "state", Usage: "JSON file mapping addresses to {nonce, balance, code}"},
			&cli.Uint64Flag{Name: "number", Value: 30_000_000, Usage: "head block number"},
			&cli.Uint64Flag{Name: "time", Usage: "head timestamp (default: now)"},
			&cli.Uint64Flag{Name: "gaslimit", Value: 30_000_000, Usage: "block gas limit"},
			&cli.StringFlag{Name: "basefee", Usage: "base fee in wei (default: unknown)"},
			&cli.StringFlag{Name: "blobbasefee", Usage: "blob base fee in wei (default: unknown)"},
			&cli.BoolFlag{Name: "geth", Usage: "cross-check transaction hashes with go-ethereum"},
		},
		Action: a.classify,
	}
}

// result is one line of classify output.
type result struct {
	Hash      string `json:"hash,omitempty"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Cause     string `json:"cause,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Error     string `json:"error,omitempty"`
	GethHash  string `json:"gethHash,omitempty"`
}

func outcomeResult(tx *types.Transaction, out validation.Outcome) result {
	r := result{Valid: out.IsValid()}
	if tx != nil {
		r.Hash = tx.Hash().Hex()
	}
	if !r.Valid {
		r.Reason = out.Reason().String()
		r.Stage = out.Stage().String()
		r.Cause = out.Cause()
		r.Retryable = out.Reason().Retryable()
	}
	return r
}

func errorResult(tx *types.Transaction, err error) result {
	var txErr *validation.TxError
	if errors.As(err, &txErr) {
		r := result{
			Reason:    txErr.Reason.String(),
			Stage:     txErr.Stage.String(),
			Cause:     txErr.Cause,
			Retryable: txErr.Reason.Retryable(),
		}
		if tx != nil {
			r.Hash = tx.Hash().Hex()
		}
		return r
	}
	r := result{Error: err.Error()}
	if tx != nil {
		r.Hash = tx.Hash().Hex()
	}
	return r
}

func (a *app) classify(c *cli.Context) error {
	head, err := headFromFlags(c)
	if err != nil {
		return err
	}
	state, err := loadState(c.String("state"))
	if err != nil {
		return err
	}
	inputs, err := a.inputs(c)
	if err != nil {
		return err
	}

	var results []result
	switch mode := c.String("mode"); mode {
	case "pool":
		results, err = a.classifyPool(head, state, inputs)
	case "block":
		results, err = a.classifyBlock(c, head, state, inputs)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	invalid := 0
	for i, r := range results {
		if c.Bool("geth") && r.Hash != "" {
			if r.GethHash, err = gethHash(inputs[i]); err != nil {
				return err
			}
			if r.GethHash != r.Hash {
				a.log.Error("Transaction hash differs from go-ethereum", "hash", r.Hash, "geth", r.GethHash)
			}
		}
		if !r.Valid {
			invalid++
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	a.log.Debug("Classified transactions", "total", len(results), "invalid", invalid)
	if invalid > 0 {
		return cli.Exit("", exitInvalid)
	}
	return nil
}

// classifyPool adds the transactions in order to a fresh pool, so later
// inputs see earlier ones as pooled.
func (a *app) classifyPool(head *txpool.Head, state validation.StateView, inputs []string) ([]result, error) {
	cfg, err := a.cfg.TxPoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := txpool.New(cfg, a.chain, a.log, a.metrics)
	if err != nil {
		return nil, err
	}
	pool.Reset(head, state)

	results := make([]result, len(inputs))
	for i, in := range inputs {
		raw, err := decodeHex(in)
		if err != nil {
			results[i] = outcomeResult(nil, validation.Invalid(validation.InvalidTransactionFormat))
			continue
		}
		tx, err := pool.AddRaw(raw)
		if err != nil {
			results[i] = errorResult(tx, err)
			continue
		}
		results[i] = outcomeResult(tx, validation.Valid())
	}
	return results, nil
}

// classifyBlock classifies every transaction independently against the
// same head.
func (a *app) classifyBlock(c *cli.Context, head *txpool.Head, state validation.StateView, inputs []string) ([]result, error) {
	policy, err := a.cfg.ValidationPolicy()
	if err != nil {
		return nil, err
	}
	rules := a.chain.Rules(head.Number, head.Time)
	vctx := &validation.Context{
		Mode:              validation.ModeBlock,
		Rules:             rules,
		ChainID:           a.chain.ChainID,
		BaseFee:           head.BaseFee,
		BlobBaseFee:       head.BlobBaseFee,
		BlockGasLimit:     head.GasLimit,
		BlockGasRemaining: head.GasLimit,
		BlobGasRemaining:  uint64(rules.MaxBlobsPerBlock()) * types.BlobGasPerBlob,
		State:             state,
		Policy:            policy,
	}
	if state == nil {
		vctx.Chain = validation.ChainWorldStateUnavailable
	}

	results := make([]result, len(inputs))
	var (
		txs   []*types.Transaction
		index []int
	)
	for i, in := range inputs {
		raw, err := decodeHex(in)
		if err != nil {
			results[i] = outcomeResult(nil, validation.Invalid(validation.InvalidTransactionFormat))
			continue
		}
		tx, err := types.DecodeTxRLP(raw)
		if err != nil {
			results[i] = outcomeResult(nil, validation.Invalid(validation.InvalidTransactionFormat))
			continue
		}
		txs = append(txs, tx)
		index = append(index, i)
	}

	classifier := validation.NewClassifier(a.log, a.metrics)
	outcomes, err := classifier.ClassifyBatch(c.Context, txs, vctx)
	if err != nil {
		return nil, err
	}
	for j, out := range outcomes {
		results[index[j]] = outcomeResult(txs[j], out)
	}
	return results, nil
}

func headFromFlags(c *cli.Context) (*txpool.Head, error) {
	head := &txpool.Head{
		Number:   new(big.Int).SetUint64(c.Uint64("number")),
		Time:     c.Uint64("time"),
		GasLimit: c.Uint64("gaslimit"),
	}
	if head.Time == 0 {
		head.Time = uint64(time.Now().Unix())
	}
	var err error
	if head.BaseFee, err = parseWei("basefee", c.String("basefee")); err != nil {
		return nil, err
	}
	if head.BlobBaseFee, err = parseWei("blobbasefee", c.String("blobbasefee")); err != nil {
		return nil, err
	}
	return head, nil
}

func parseWei(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid --%s %q", name, s)
	}
	return v, nil
}

// accountJSON is the state file representation of an account.
type accountJSON struct {
	Nonce   hexutil.Uint64 `json:"nonce"`
	Balance *hexutil.Big   `json:"balance"`
	Code    hexutil.Bytes  `json:"code"`
}

// loadState reads a state file. An empty path means no state is available.
func loadState(path string) (validation.StateView, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var accounts map[types.Address]accountJSON
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("state %s: %w", path, err)
	}
	snapshot := make(map[types.Address]validation.Account, len(accounts))
	for addr, acct := range accounts {
		balance := new(uint256.Int)
		if acct.Balance != nil {
			var overflow bool
			if balance, overflow = uint256.FromBig(acct.Balance.ToInt()); overflow {
				return nil, fmt.Errorf("state %s: balance of %s exceeds 256 bits", path, addr.Hex())
			}
		}
		snapshot[addr] = validation.Account{
			Nonce:   uint64(acct.Nonce),
			Balance: balance,
			Code:    acct.Code,
		}
	}
	return validation.NewStateSnapshot(snapshot), nil
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

func gethHash(input string) (string, error) {
	raw, err := decodeHex(input)
	if err != nil {
		return "", err
	}
	tx, err := types.DecodeTxRLP(raw)
	if err != nil {
		return "", err
	}
	gtx, err := geth.ToGethTransaction(tx)
	if err != nil {
		return "", err
	}
	return gtx.Hash().Hex(), nil
}
