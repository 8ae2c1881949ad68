// backend.go implements the local prover backend: it executes the guest
// natively and produces a deterministic hash-bound proof artifact in a
// Groth16-style layout (proof = [A, B, C] points, here SHA-256 commitments
// binding the program hash and the committed public values).
package zkvm

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/stateprove/stateprove/witness"
)

// Backend errors.
var (
	ErrNilProgram   = errors.New("zkvm: nil guest program")
	ErrNilProof     = errors.New("zkvm: nil proof")
	ErrNilKey       = errors.New("zkvm: nil verification key")
	ErrBadProofSize = errors.New("zkvm: invalid proof length")
	ErrRejected     = errors.New("zkvm: backend rejects all requests")
)

// Proof layout: A(64) + B(128) + C(64) = 256 bytes. In a production system
// these are elliptic curve points; here they are hash commitments with the
// same shape.
const (
	pointASize = 64
	pointBSize = 128
	pointCSize = 64
	proofSize  = pointASize + pointBSize + pointCSize
)

// LocalBackend executes the guest natively and binds its committed public
// values into a deterministic proof artifact. It stands in for an external
// proving service during development and testing.
type LocalBackend struct{}

// NewLocalBackend creates a local backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) Name() string { return "local" }

// Execute runs the guest and returns its public values and an execution
// report, without producing a proof artifact.
func (b *LocalBackend) Execute(program *GuestProgram, input []byte) (*PublicValues, *ExecutionReport, error) {
	if program == nil {
		return nil, nil, ErrNilProgram
	}
	pv, err := RunGuest(input)
	if err != nil {
		return nil, nil, err
	}
	report := &ExecutionReport{
		InputBytes:   uint64(len(input)),
		WitnessNodes: countWitnessNodes(input),
	}
	return pv, report, nil
}

// Prove runs the guest and produces the proof artifact over its committed
// public values.
func (b *LocalBackend) Prove(program *GuestProgram, input []byte) (*Proof, error) {
	if program == nil {
		return nil, ErrNilProgram
	}
	pv, err := RunGuest(input)
	if err != nil {
		return nil, err
	}
	pvBytes := EncodePublicValues(pv)
	programHash := HashProgram(program)

	pvHash := sha256.Sum256(pvBytes)
	pointA := computePointA(programHash.Bytes(), pvHash)
	pointB := computePointB(pointA, programHash.Bytes())
	pointC := computePointC(pointA, pointB)

	data := make([]byte, proofSize)
	copy(data, pointA[:])
	copy(data[pointASize:], pointB[:])
	copy(data[pointASize+pointBSize:], pointC[:])

	return &Proof{Data: data, PublicValues: pvBytes}, nil
}

// Verify recomputes the proof artifact from the verifying key's program
// hash and the proof's public values and compares.
func (b *LocalBackend) Verify(vk *VerificationKey, proof *Proof) (bool, error) {
	if vk == nil {
		return false, ErrNilKey
	}
	if proof == nil {
		return false, ErrNilProof
	}
	if len(proof.Data) != proofSize {
		return false, ErrBadProofSize
	}
	if _, err := DecodePublicValues(proof.PublicValues); err != nil {
		return false, err
	}

	pvHash := sha256.Sum256(proof.PublicValues)
	pointA := computePointA(vk.ProgramHash.Bytes(), pvHash)
	pointB := computePointB(pointA, vk.ProgramHash.Bytes())
	pointC := computePointC(pointA, pointB)

	if !bytes.Equal(proof.Data[:pointASize], pointA[:]) {
		return false, nil
	}
	if !bytes.Equal(proof.Data[pointASize:pointASize+pointBSize], pointB[:]) {
		return false, nil
	}
	if !bytes.Equal(proof.Data[pointASize+pointBSize:], pointC[:]) {
		return false, nil
	}
	return true, nil
}

// VerifyingKey derives the verification key for a guest program.
func (b *LocalBackend) VerifyingKey(program *GuestProgram) (*VerificationKey, error) {
	if program == nil {
		return nil, ErrNilProgram
	}
	programHash := HashProgram(program)
	keyData := sha256.Sum256(append(programHash.Bytes(), []byte("vk")...))
	return &VerificationKey{
		Data:        keyData[:],
		ProgramHash: programHash,
	}, nil
}

func computePointA(programHash []byte, pvHash [32]byte) [pointASize]byte {
	var a [pointASize]byte
	h1 := sha256.Sum256(append(append([]byte{}, programHash...), append(pvHash[:], 'A')...))
	h2 := sha256.Sum256(append(h1[:], 'a'))
	copy(a[:32], h1[:])
	copy(a[32:], h2[:])
	return a
}

func computePointB(pointA [pointASize]byte, programHash []byte) [pointBSize]byte {
	var out [pointBSize]byte
	prev := sha256.Sum256(append(append([]byte{}, pointA[:]...), append(programHash, 'B')...))
	copy(out[:32], prev[:])
	for i := 1; i < 4; i++ {
		prev = sha256.Sum256(prev[:])
		copy(out[i*32:], prev[:])
	}
	return out
}

func computePointC(pointA [pointASize]byte, pointB [pointBSize]byte) [pointCSize]byte {
	var c [pointCSize]byte
	h1 := sha256.Sum256(append(append([]byte{}, pointA[:]...), append(pointB[:], 'C')...))
	h2 := sha256.Sum256(append(h1[:], 'c'))
	copy(c[:32], h1[:])
	copy(c[32:], h2[:])
	return c
}

// countWitnessNodes counts the trie nodes in an input buffer, for the
// execution report. Malformed buffers count zero; Execute will have
// rejected them anyway.
func countWitnessNodes(input []byte) uint64 {
	in, err := witness.DecodeInput(input)
	if err != nil {
		return 0
	}
	return uint64(len(in.AccountProof) + len(in.StorageProof))
}

// RejectingBackend fails every request. It exists so orchestrator error
// paths can be tested without a real prover.
type RejectingBackend struct{}

func (RejectingBackend) Name() string { return "rejecting" }

func (RejectingBackend) Execute(*GuestProgram, []byte) (*PublicValues, *ExecutionReport, error) {
	return nil, nil, ErrRejected
}

func (RejectingBackend) Prove(*GuestProgram, []byte) (*Proof, error) {
	return nil, ErrRejected
}

func (RejectingBackend) Verify(*VerificationKey, *Proof) (bool, error) {
	return false, ErrRejected
}
