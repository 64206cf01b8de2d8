// Package config loads the admission configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/eth2030/admission/core"
	"github.com/eth2030/admission/core/validation"
	"github.com/eth2030/admission/log"
	"github.com/eth2030/admission/txpool"
)

// Config is the full admission configuration.
type Config struct {
	Chain   ChainConfig   `toml:"chain"`
	Policy  PolicyConfig  `toml:"policy"`
	Pool    PoolConfig    `toml:"pool"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ChainConfig selects the fork schedule. Network names a preset; the
// remaining fields override it when set.
type ChainConfig struct {
	Network      string  `toml:"network"`
	ChainID      uint64  `toml:"chain_id"`
	ShanghaiTime *uint64 `toml:"shanghai_time"`
	CancunTime   *uint64 `toml:"cancun_time"`
	PragueTime   *uint64 `toml:"prague_time"`
	OsakaTime    *uint64 `toml:"osaka_time"`
}

// PolicyConfig holds the node's admission policy. Wei amounts are decimal
// or 0x-prefixed hex strings since they may exceed 64 bits.
type PolicyConfig struct {
	MinGasPrice             string `toml:"min_gas_price"`
	MinPriorityFee          string `toml:"min_priority_fee"`
	TxFeeCap                string `toml:"tx_fee_cap"`
	MaxTxGas                uint64 `toml:"max_tx_gas"`
	PoolMaxTxGas            uint64 `toml:"pool_max_tx_gas"`
	NonceLookahead          uint64 `toml:"nonce_lookahead"`
	PriceBump               uint64 `toml:"price_bump"`
	BlobPriceBump           uint64 `toml:"blob_price_bump"`
	RequireReplayProtection bool   `toml:"require_replay_protection"`
}

// PoolConfig holds transaction pool limits.
type PoolConfig struct {
	Disabled        bool `toml:"disabled"`
	MaxSize         int  `toml:"max_size"`
	MaxPerSender    int  `toml:"max_per_sender"`
	SenderCacheSize int  `toml:"sender_cache_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Namespace string `toml:"namespace"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	policy := validation.DefaultPolicy()
	pool := txpool.DefaultConfig()
	return &Config{
		Chain: ChainConfig{Network: "mainnet"},
		Policy: PolicyConfig{
			MinGasPrice:    policy.MinGasPrice.String(),
			MinPriorityFee: policy.MinPriorityFee.String(),
			TxFeeCap:       policy.TxFeeCap.String(),
			MaxTxGas:       policy.MaxTxGas,
			PoolMaxTxGas:   policy.PoolMaxTxGas,
			NonceLookahead: policy.NonceLookahead,
			PriceBump:      policy.PriceBump,
			BlobPriceBump:  policy.BlobPriceBump,
		},
		Pool: PoolConfig{
			MaxSize:         pool.MaxSize,
			MaxPerSender:    pool.MaxPerSender,
			SenderCacheSize: pool.SenderCacheSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr:      "127.0.0.1:6060",
			Namespace: "admission",
		},
	}
}

// Load reads and validates a TOML file. Missing keys keep their defaults;
// unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML data on top of Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if _, err := c.ChainConfig(); err != nil {
		return err
	}
	if _, err := c.ValidationPolicy(); err != nil {
		return err
	}
	if c.Pool.MaxSize < 0 || c.Pool.MaxPerSender < 0 || c.Pool.SenderCacheSize < 0 {
		return errors.New("config: pool limits must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("config: metrics addr must be set when metrics are enabled")
	}
	return nil
}

// ChainConfig resolves the fork schedule. The returned config is a copy and
// may be modified.
func (c *Config) ChainConfig() (*core.ChainConfig, error) {
	preset, ok := core.ConfigByName(c.Chain.Network)
	if !ok {
		return nil, fmt.Errorf("config: unknown network %q", c.Chain.Network)
	}
	chain := *preset
	chain.ChainID = new(big.Int).Set(preset.ChainID)
	if c.Chain.ChainID != 0 {
		chain.ChainID.SetUint64(c.Chain.ChainID)
	}
	for _, o := range []struct {
		src *uint64
		dst **uint64
	}{
		{c.Chain.ShanghaiTime, &chain.ShanghaiTime},
		{c.Chain.CancunTime, &chain.CancunTime},
		{c.Chain.PragueTime, &chain.PragueTime},
		{c.Chain.OsakaTime, &chain.OsakaTime},
	} {
		if o.src != nil {
			v := *o.src
			*o.dst = &v
		}
	}
	return &chain, nil
}

// ValidationPolicy converts the [policy] section.
func (c *Config) ValidationPolicy() (validation.Policy, error) {
	p := c.Policy
	minGasPrice, err := parseWei("min_gas_price", p.MinGasPrice)
	if err != nil {
		return validation.Policy{}, err
	}
	minPriorityFee, err := parseWei("min_priority_fee", p.MinPriorityFee)
	if err != nil {
		return validation.Policy{}, err
	}
	txFeeCap, err := parseWei("tx_fee_cap", p.TxFeeCap)
	if err != nil {
		return validation.Policy{}, err
	}
	return validation.Policy{
		MinGasPrice:             minGasPrice,
		MinPriorityFee:          minPriorityFee,
		TxFeeCap:                txFeeCap,
		MaxTxGas:                p.MaxTxGas,
		PoolMaxTxGas:            p.PoolMaxTxGas,
		NonceLookahead:          p.NonceLookahead,
		PriceBump:               p.PriceBump,
		BlobPriceBump:           p.BlobPriceBump,
		RequireReplayProtection: p.RequireReplayProtection,
	}, nil
}

// TxPoolConfig converts the [pool] and [policy] sections.
func (c *Config) TxPoolConfig() (txpool.Config, error) {
	policy, err := c.ValidationPolicy()
	if err != nil {
		return txpool.Config{}, err
	}
	return txpool.Config{
		Disabled:        c.Pool.Disabled,
		MaxSize:         c.Pool.MaxSize,
		MaxPerSender:    c.Pool.MaxPerSender,
		SenderCacheSize: c.Pool.SenderCacheSize,
		Policy:          policy,
	}, nil
}

// Logger builds the logger described by the [log] section, writing to w.
func (c *Config) Logger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return log.NewWriter(w, level, c.Log.Format)
}

// parseWei parses an optional wei amount. Empty means unset.
func parseWei(key, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid %s %q", key, s)
	}
	return v, nil
}
