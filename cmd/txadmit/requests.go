package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/urfave/cli/v2"

	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/core/validation"
	"github.com/eth2030/admission/geth"
)

func requestsCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "requests",
		Usage: "Encode, decode and commit to EIP-7685 requests",
		Subcommands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Decode type-prefixed requests to JSON",
				ArgsUsage: "[HEX...]",
				Action:    a.decodeRequests,
			},
			{
				Name:      "encode",
				Usage:     "Encode JSON requests to type-prefixed hex",
				ArgsUsage: "[JSON...]",
				Action:    a.encodeRequests,
			},
			{
				Name:      "deposits",
				Usage:     "Extract deposit requests from JSON receipt logs",
				ArgsUsage: "[LOG_JSON...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "contract",
						Value: types.DepositContractAddress.Hex(),
						Usage: "deposit contract address",
					},
				},
				Action: a.depositRequests,
			},
			{
				Name:      "hash",
				Usage:     "Compute the requests commitment of type-prefixed requests in execution order",
				ArgsUsage: "[HEX...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "geth", Usage: "cross-check the commitment with go-ethereum"},
				},
				Action: a.hashRequests,
			},
		},
	}
}

func (a *app) readRequests(c *cli.Context) (types.Requests, error) {
	inputs, err := a.inputs(c)
	if err != nil {
		return nil, err
	}
	rs := make(types.Requests, 0, len(inputs))
	for i, in := range inputs {
		b, err := decodeHex(in)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		r, err := types.DecodeRequest(b)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		rs = append(rs, r)
	}
	return rs, nil
}

func (a *app) decodeRequests(c *cli.Context) error {
	rs, err := a.readRequests(c)
	if err != nil {
		return err
	}
	for _, r := range rs {
		out, err := types.MarshalRequestJSON(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
	}
	return nil
}

func (a *app) encodeRequests(c *cli.Context) error {
	inputs, err := a.inputs(c)
	if err != nil {
		return err
	}
	for i, in := range inputs {
		r, err := types.UnmarshalRequestJSON([]byte(in))
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		fmt.Fprintln(c.App.Writer, hexutil.Encode(types.EncodeRequest(r)))
	}
	return nil
}

func (a *app) depositRequests(c *cli.Context) error {
	var contract gethcommon.Address
	if err := contract.UnmarshalText([]byte(c.String("contract"))); err != nil {
		return fmt.Errorf("invalid --contract: %w", err)
	}
	inputs, err := a.inputs(c)
	if err != nil {
		return err
	}
	logs := make([]*gethtypes.Log, len(inputs))
	for i, in := range inputs {
		logs[i] = new(gethtypes.Log)
		if err := json.Unmarshal([]byte(in), logs[i]); err != nil {
			return fmt.Errorf("log %d: %w", i, err)
		}
	}
	deposits, err := geth.DepositRequests(logs, contract)
	if err != nil {
		return err
	}
	for _, d := range deposits {
		out, err := types.MarshalRequestJSON(d)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
	}
	a.log.Debug("Extracted deposit requests", "logs", len(logs), "deposits", len(deposits))
	return nil
}

func (a *app) hashRequests(c *cli.Context) error {
	rs, err := a.readRequests(c)
	if err != nil {
		return err
	}
	hash := types.ComputeRequestsHash(types.FlattenRequests(rs))
	if c.Bool("geth") {
		if theirs := geth.RequestsHash(rs); theirs != hash {
			return fmt.Errorf("requests hash %s differs from go-ethereum %s", hash.Hex(), theirs.Hex())
		}
	}
	a.log.Debug("Computed requests hash", "requests", len(rs), "hash", hash.Hex())
	fmt.Fprintln(c.App.Writer, hash.Hex())
	return nil
}

func reasonsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reasons",
		Usage: "List the transaction invalidity reasons",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tCATEGORY\tFAULT")
			for _, r := range validation.Reasons() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Code(), r, r.Category(), r.Fault())
			}
			return w.Flush()
		},
	}
}
