package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/stateprove/stateprove/witness"
)

// Config holds the resolved CLI configuration.
type Config struct {
	RPCURL      string
	Block       uint64
	Address     string
	Slot        string
	Value       string
	Absent      bool
	ExecuteOnly bool
	Attempts    int
	SkipVerify  bool
	Verbosity   int
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		Verbosity: 3,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("--rpc-url is required")
	}
	if c.Address == "" {
		return errors.New("--address is required")
	}
	if c.Value == "" && !c.Absent {
		return errors.New("--value is required unless --absent is set")
	}
	if c.Value != "" && c.Absent {
		return errors.New("--value and --absent are mutually exclusive")
	}
	if c.Attempts < 1 {
		return fmt.Errorf("--attempts must be at least 1, got %d", c.Attempts)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("--verbosity must be 0-5, got %d", c.Verbosity)
	}
	return nil
}

// mode names the pipeline mode for logging.
func (c *Config) mode() string {
	if c.ExecuteOnly {
		return "execute"
	}
	return "prove"
}

// Claim converts the configuration into a witness claim.
func (c *Config) Claim() (*witness.Claim, error) {
	addr, err := addressFromHex(c.Address)
	if err != nil {
		return nil, fmt.Errorf("--address: %w", err)
	}
	claim := &witness.Claim{
		BlockNumber:   c.Block,
		Address:       addr,
		ExpectPresent: !c.Absent,
	}
	if c.Slot != "" {
		slot, err := hashFromHex(c.Slot)
		if err != nil {
			return nil, fmt.Errorf("--slot: %w", err)
		}
		claim.StorageKey = &slot
	}
	if c.Value != "" {
		value, err := strictHex(c.Value, 1024)
		if err != nil {
			return nil, fmt.Errorf("--value: %w", err)
		}
		claim.Value = value
	}
	return claim, nil
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to the given
// Config. The FlagSet uses ContinueOnError so callers control the error
// handling behavior.
func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("stateprove", flag.ContinueOnError)
	fs.StringVar(&cfg.RPCURL, "rpc-url", cfg.RPCURL, "Ethereum JSON-RPC endpoint")
	fs.Uint64Var(&cfg.Block, "block", cfg.Block, "block number to prove against")
	fs.StringVar(&cfg.Address, "address", cfg.Address, "account address (0x-prefixed hex)")
	fs.StringVar(&cfg.Slot, "slot", cfg.Slot, "storage slot key (0x-prefixed hex)")
	fs.StringVar(&cfg.Value, "value", cfg.Value, "expected value (0x-prefixed hex)")
	fs.BoolVar(&cfg.Absent, "absent", cfg.Absent, "claim the account or slot is absent")
	fs.BoolVar(&cfg.ExecuteOnly, "execute", cfg.ExecuteOnly, "execute the guest without proving")
	fs.IntVar(&cfg.Attempts, "attempts", cfg.Attempts, "retry budget for chain data fetches")
	fs.BoolVar(&cfg.SkipVerify, "skip-verify", cfg.SkipVerify, "skip the local verification pass")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	return fs
}
