// Command txadmit classifies raw Ethereum transactions and converts
// EIP-7685 execution layer requests between their wire and JSON forms.
//
// Usage:
//
//	txadmit [global flags] classify [flags] [RAW_TX...]
//	txadmit [global flags] requests decode|encode|deposits|hash [ARGS...]
//	txadmit reasons
//
// Transactions and requests are read from the arguments or, when there are
// none, one per line from stdin.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/eth2030/admission/config"
	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/log"
	"github.com/eth2030/admission/metrics"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stderr: stderr}
	err := a.cliApp(stdout, stderr).Run(append([]string{"txadmit"}, args...))
	if err == nil {
		return 0
	}
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exit.ExitCode()
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

// app carries the state resolved by the global flags.
type app struct {
	stdin  io.Reader
	stderr io.Writer

	cfg     *config.Config
	chain   *core.ChainConfig
	log     *log.Logger
	metrics *metrics.Registry
	server  *metrics.Server
}

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "TOML configuration file",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "chain preset: mainnet, sepolia, test, test-osaka (overrides config)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "log level: debug, info, warn, error (overrides config)",
	}
)

func (a *app) cliApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "txadmit",
		Usage:     "Ethereum transaction admission and request codec tool",
		Version:   version + "-" + commit,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     []cli.Flag{configFlag, networkFlag, logLevelFlag},
		Before:    a.setup,
		After:     a.teardown,
		Commands: []*cli.Command{
			classifyCommand(a),
			requestsCommand(a),
			reasonsCommand(),
		},
		// Exit codes are returned from run, never through os.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// setup loads the configuration and builds the logger and metrics registry.
func (a *app) setup(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if network := c.String(networkFlag.Name); network != "" {
		cfg.Chain.Network = network
	}
	if level := c.String(logLevelFlag.Name); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	chain, err := cfg.ChainConfig()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger(a.stderr)
	if err != nil {
		return err
	}
	a.cfg, a.chain, a.log = cfg, chain, logger
	a.metrics = metrics.NewRegistry()

	if cfg.Metrics.Enabled {
		srv, err := metrics.StartServer(cfg.Metrics.Addr, a.metrics, cfg.Metrics.Namespace)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.server = srv
		a.log.Info("Metrics server started", "addr", srv.Addr())
	}
	return nil
}

func (a *app) teardown(*cli.Context) error {
	if a.server != nil {
		return a.server.Close()
	}
	return nil
}

// inputs returns the command arguments, or the non-empty stdin lines when
// there are none.
func (a *app) inputs(c *cli.Context) ([]string, error) {
	if c.Args().Present() {
		return c.Args().Slice(), nil
	}
	var lines []string
	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
