// Command stateprove proves Ethereum state claims inside a zkVM guest.
//
// Usage:
//
//	stateprove [flags]
//
// Flags:
//
//	--rpc-url    Ethereum JSON-RPC endpoint (required)
//	--block      Block number to prove against (required)
//	--address    Account address, 0x-prefixed hex (required)
//	--slot       Storage slot key, 0x-prefixed hex (optional)
//	--value      Expected value, 0x-prefixed hex (required unless --absent)
//	--absent     Claim the account or slot is absent (default: false)
//	--execute    Execute the guest without proving (default: false)
//	--attempts   Retry budget for chain data fetches (default: 3)
//	--skip-verify Skip the local verification pass (default: false)
//	--verbosity  Log level 0-5 (default: 3)
//	--version    Print version and exit
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/log"
	"github.com/stateprove/stateprove/witness"
	"github.com/stateprove/stateprove/zkvm"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	log.SetDefault(log.New(verbosityToLevel(cfg.Verbosity)))
	logger := log.Default().Module("cli")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	claim, err := cfg.Claim()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid claim: %v\n", err)
		return 1
	}

	logger.Info("stateprove starting",
		"version", version,
		"rpc", cfg.RPCURL,
		"block", cfg.Block,
		"address", claim.Address.Hex(),
		"storage", claim.IsStorage(),
		"mode", cfg.mode())

	// Interrupt cancels the in-flight claim.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := witness.DialRPC(ctx, cfg.RPCURL)
	if err != nil {
		logger.Error("rpc connection failed", "url", cfg.RPCURL, "err", err)
		return 1
	}
	defer client.Close()

	backend := zkvm.NewLocalBackend()
	program := guestProgram()
	vk, err := backend.VerifyingKey(program)
	if err != nil {
		logger.Error("verifying key derivation failed", "err", err)
		return 1
	}

	orch := zkvm.NewOrchestrator(witness.NewBuilder(client), backend, program, vk, zkvm.OrchestratorConfig{
		Attempts:        cfg.Attempts,
		Backoff:         500 * time.Millisecond,
		SkipLocalVerify: cfg.SkipVerify,
	})

	var result *zkvm.Result
	if cfg.ExecuteOnly {
		result, err = orch.Execute(ctx, claim)
	} else {
		result, err = orch.Prove(ctx, claim)
	}
	if err != nil {
		logger.Error("claim failed", "err", err, "mode", cfg.mode())
		return 1
	}

	printResult(result, cfg.ExecuteOnly)
	return 0
}

// guestProgram returns the compiled witness-verification guest. The local
// backend executes it natively, so the code body is an identifier rather
// than real bytecode.
func guestProgram() *zkvm.GuestProgram {
	return &zkvm.GuestProgram{
		Code:       []byte("stateprove-guest/" + version),
		EntryPoint: "run",
		Version:    1,
	}
}

// printResult writes the proven public values (and proof, when present) to
// stdout.
func printResult(res *zkvm.Result, executeOnly bool) {
	pv := res.Public
	fmt.Printf("block:      %d\n", pv.BlockNumber)
	fmt.Printf("state root: %s\n", pv.StateRoot.Hex())
	fmt.Printf("address:    %s\n", pv.Address.Hex())
	if pv.HasStorageKey {
		fmt.Printf("slot:       %s\n", pv.StorageKey.Hex())
	}
	fmt.Printf("present:    %v\n", pv.Present)
	if len(pv.Value) > 0 {
		fmt.Printf("value:      0x%s\n", hex.EncodeToString(pv.Value))
	}
	fmt.Printf("attempts:   %d\n", res.Attempts)
	if executeOnly {
		if res.Report != nil {
			fmt.Printf("input:      %d bytes, %d witness nodes\n",
				res.Report.InputBytes, res.Report.WitnessNodes)
		}
		return
	}
	fmt.Printf("proof:      0x%s\n", hex.EncodeToString(res.Proof.Data))
}

// verbosityToLevel maps the 0-5 verbosity scale onto slog levels.
func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError + 4 // above Error: effectively silent
	case v == 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (Config, bool, int) {
	cfg := DefaultConfig()
	fs := newFlagSet(&cfg)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}

	if *showVersion {
		fmt.Printf("stateprove %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}

	return cfg, false, 0
}

// addressFromHex parses a 0x-prefixed 20-byte hex address.
func addressFromHex(s string) (types.Address, error) {
	b, err := strictHex(s, 20)
	if err != nil {
		return types.Address{}, err
	}
	return types.BytesToAddress(b), nil
}

// hashFromHex parses a 0x-prefixed hex word of up to 32 bytes, left-padded.
func hashFromHex(s string) (types.Hash, error) {
	b, err := strictHex(s, 32)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(b), nil
}

func strictHex(s string, maxLen int) ([]byte, error) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return nil, fmt.Errorf("missing 0x prefix in %q", s)
	}
	body := s[2:]
	if len(body)%2 != 0 {
		body = "0" + body
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid hex in %q", s)
	}
	if len(b) > maxLen {
		return nil, fmt.Errorf("%q exceeds %d bytes", s, maxLen)
	}
	return b, nil
}
