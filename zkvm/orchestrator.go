package zkvm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stateprove/stateprove/log"
	"github.com/stateprove/stateprove/witness"
)

// Orchestrator errors. Prover failures and verification failures are
// distinct outcomes: the first means no usable artifact was produced, the
// second means an artifact was produced but does not check out.
var (
	// ErrProverExecution is returned when the prover fails to execute the
	// guest or produce an artifact.
	ErrProverExecution = errors.New("zkvm: prover execution failed")
	// ErrProofVerification is returned when a produced proof does not
	// verify against the verifying key.
	ErrProofVerification = errors.New("zkvm: proof verification failed")
)

// OrchestratorConfig tunes retry behavior and local verification.
type OrchestratorConfig struct {
	// Attempts is the budget for retryable (chain data) failures per
	// claim. Guest aborts and verification failures never retry.
	Attempts int

	// Backoff is the delay between retryable attempts, doubled each try.
	Backoff time.Duration

	// SkipLocalVerify disables the local verification pass after proving.
	SkipLocalVerify bool
}

// DefaultOrchestratorConfig returns the config used when none is given.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Attempts: 3,
		Backoff:  500 * time.Millisecond,
	}
}

// Result is the outcome of a proven (or executed) claim.
type Result struct {
	// Public is the public-values record committed by the guest.
	Public *PublicValues

	// Proof is the proof artifact, nil in execute-only mode.
	Proof *Proof

	// Report carries execution statistics when available.
	Report *ExecutionReport

	// Attempts is the number of attempts spent, including the successful
	// one.
	Attempts int
}

// Orchestrator sequences build witness -> prove (or execute) -> verify for
// claims. Independent claims may be orchestrated concurrently by separate
// callers, but submissions to the backend are serialized: a local prover is
// a single-job resource.
type Orchestrator struct {
	builder *witness.Builder
	backend ProverBackend
	program *GuestProgram
	vk      *VerificationKey
	cfg     OrchestratorConfig
	logger  *log.Logger

	// mu serializes in-flight proving jobs.
	mu sync.Mutex
}

// NewOrchestrator wires a builder, a backend and a compiled guest program.
// vk may be nil when local verification is disabled.
func NewOrchestrator(builder *witness.Builder, backend ProverBackend, program *GuestProgram, vk *VerificationKey, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Orchestrator{
		builder: builder,
		backend: backend,
		program: program,
		vk:      vk,
		cfg:     cfg,
		logger:  log.Default().Module("orchestrator"),
	}
}

// Execute builds the witness for a claim and runs the guest without
// producing a proof. Useful for cost estimation and debugging.
func (o *Orchestrator) Execute(ctx context.Context, claim *witness.Claim) (*Result, error) {
	return o.run(ctx, claim, false)
}

// Prove builds the witness for a claim, drives the backend to produce a
// proof, and verifies it locally unless disabled.
func (o *Orchestrator) Prove(ctx context.Context, claim *witness.Claim) (*Result, error) {
	return o.run(ctx, claim, true)
}

func (o *Orchestrator) run(ctx context.Context, claim *witness.Claim, prove bool) (*Result, error) {
	backoff := o.cfg.Backoff
	var lastErr error

	for attempt := 1; attempt <= o.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := o.attempt(ctx, claim, prove)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, witness.ErrChainData) {
			// Deterministic failures cannot be fixed by retrying.
			return nil, err
		}
		if attempt == o.cfg.Attempts {
			break
		}
		o.logger.Warn("chain data fetch failed, retrying",
			"attempt", attempt, "backoff", backoff.String(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (o *Orchestrator) attempt(ctx context.Context, claim *witness.Claim, prove bool) (*Result, error) {
	in, err := o.builder.Build(ctx, claim)
	if err != nil {
		return nil, err
	}
	input, err := witness.EncodeInput(in)
	if err != nil {
		return nil, err
	}

	// An already-dispatched job cannot be cancelled; serialization happens
	// before submission.
	o.mu.Lock()
	defer o.mu.Unlock()

	if !prove {
		pv, report, err := o.backend.Execute(o.program, input)
		if err != nil {
			return nil, wrapProverError(err)
		}
		o.logger.Info("guest executed",
			"backend", o.backend.Name(),
			"inputBytes", report.InputBytes,
			"witnessNodes", report.WitnessNodes,
			"present", pv.Present)
		return &Result{Public: pv, Report: report}, nil
	}

	proof, err := o.backend.Prove(o.program, input)
	if err != nil {
		return nil, wrapProverError(err)
	}
	pv, err := DecodePublicValues(proof.PublicValues)
	if err != nil {
		return nil, wrapProverError(err)
	}

	if !o.cfg.SkipLocalVerify {
		ok, err := o.backend.Verify(o.vk, proof)
		if err != nil {
			return nil, errors.Join(ErrProofVerification, err)
		}
		if !ok {
			return nil, ErrProofVerification
		}
	}

	o.logger.Info("proof produced",
		"backend", o.backend.Name(),
		"block", pv.BlockNumber,
		"present", pv.Present,
		"verified", !o.cfg.SkipLocalVerify)
	return &Result{Public: pv, Proof: proof}, nil
}

// wrapProverError tags backend failures while keeping guest aborts visible
// to errors.Is/As.
func wrapProverError(err error) error {
	var abort *AbortError
	if errors.As(err, &abort) {
		// The guest aborted: the witness or claim is at fault, not the
		// prover.
		return err
	}
	return errors.Join(ErrProverExecution, err)
}
