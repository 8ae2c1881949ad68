// Package zkvm hosts the guest entry point of the state-proof pipeline and
// the host-side machinery that drives an external prover over it.
package zkvm

import (
	"crypto/sha256"

	"github.com/stateprove/stateprove/core/types"
)

// GuestProgram represents a compiled zkVM guest program implementing the
// witness verification routine.
type GuestProgram struct {
	// Code is the compiled guest program bytecode.
	Code []byte

	// EntryPoint is the function to call within the guest program.
	EntryPoint string

	// Version identifies the verifier version this program implements.
	Version uint32
}

// VerificationKey is the public verification key for a zkVM proof system.
// It is derived from the guest program and can verify proofs produced by it.
type VerificationKey struct {
	// Data is the serialized verification key.
	Data []byte

	// ProgramHash is the hash of the guest program this key verifies.
	ProgramHash types.Hash
}

// Proof represents a zero-knowledge proof of correct execution.
type Proof struct {
	// Data is the serialized proof.
	Data []byte

	// PublicValues is the encoded public-values record committed by the
	// proven execution.
	PublicValues []byte
}

// PublicValues is the record the guest commits: the claim parameters plus
// the resolved value and presence flag. It is the disclosed output checked
// alongside the proof.
type PublicValues struct {
	BlockNumber   uint64
	StateRoot     types.Hash
	Address       types.Address
	HasStorageKey bool
	StorageKey    types.Hash
	Value         []byte
	Present       bool
}

// ExecutionReport summarizes a guest execution for cost accounting.
type ExecutionReport struct {
	// InputBytes is the size of the input buffer.
	InputBytes uint64

	// WitnessNodes is the number of trie nodes consumed across both paths.
	WitnessNodes uint64
}

// ProverBackend defines the interface to a zkVM proving system.
// Implementations drive proof generation and verification for specific
// backends (e.g. a local native executor, or a remote proving service).
type ProverBackend interface {
	// Name returns the name of the prover backend.
	Name() string

	// Execute runs the guest without producing a proof artifact, returning
	// the public values it would commit.
	Execute(program *GuestProgram, input []byte) (*PublicValues, *ExecutionReport, error)

	// Prove generates a proof of correct execution.
	Prove(program *GuestProgram, input []byte) (*Proof, error)

	// Verify checks a proof against a verification key.
	Verify(vk *VerificationKey, proof *Proof) (bool, error)
}

// HashProgram computes the identifying hash of a guest program.
func HashProgram(program *GuestProgram) types.Hash {
	h := sha256.New()
	h.Write(program.Code)
	h.Write([]byte(program.EntryPoint))
	var version [4]byte
	version[0] = byte(program.Version >> 24)
	version[1] = byte(program.Version >> 16)
	version[2] = byte(program.Version >> 8)
	version[3] = byte(program.Version)
	h.Write(version[:])
	return types.BytesToHash(h.Sum(nil))
}
