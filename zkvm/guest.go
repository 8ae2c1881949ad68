package zkvm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/crypto"
	"github.com/stateprove/stateprove/trie"
	"github.com/stateprove/stateprove/witness"
)

// ErrClaimMismatch is returned when the witness verifies but the proven
// value disagrees with the claimed one.
var ErrClaimMismatch = errors.New("zkvm: proven value does not match claim")

// AbortError is the terminal failure of a guest execution. Inside a real
// zkVM there is no caller to report to, so any inconsistency aborts the
// whole execution; host-side, the abort surfaces as this error with the
// verifier's taxonomy entry preserved for errors.Is.
type AbortError struct {
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zkvm: guest aborted: %s: %v", e.Reason, e.Err)
	}
	return "zkvm: guest aborted: " + e.Reason
}

func (e *AbortError) Unwrap() error { return e.Err }

func abort(reason string, err error) (*PublicValues, error) {
	return nil, &AbortError{Reason: reason, Err: err}
}

// RunGuest is the guest entry point: it deserializes the canonical input
// buffer, verifies the account witness against the claimed state root,
// verifies the storage witness against the proven storage root when the
// claim targets a slot, checks the resolved value against the claim, and
// returns the public values to commit.
//
// The routine is pure and deterministic: no I/O, no clock, no concurrency,
// and iteration bounded by the key's nibble count. Every failure is an
// AbortError; there are no recoverable errors inside the guest.
func RunGuest(input []byte) (*PublicValues, error) {
	in, err := witness.DecodeInput(input)
	if err != nil {
		return abort("input buffer", err)
	}
	claim := in.ToClaim()
	if err := claim.Validate(); err != nil {
		return abort("claim", err)
	}

	addrHash := crypto.Keccak256(claim.Address[:])
	accountVal, err := trie.VerifyProof(claim.StateRoot, addrHash, in.AccountProof)
	if err != nil {
		return abort("account witness", err)
	}

	pv := &PublicValues{
		BlockNumber: claim.BlockNumber,
		StateRoot:   claim.StateRoot,
		Address:     claim.Address,
	}
	if claim.StorageKey != nil {
		pv.HasStorageKey = true
		pv.StorageKey = *claim.StorageKey
		return runStorageClaim(claim, in, accountVal, pv)
	}
	return runAccountClaim(claim, in, accountVal, pv)
}

func runAccountClaim(claim *witness.Claim, in *witness.ProofInput, accountVal []byte, pv *PublicValues) (*PublicValues, error) {
	if len(in.StorageProof) != 0 {
		return abort("account claim", trie.ErrTrailingNodes)
	}
	if accountVal == nil {
		if claim.ExpectPresent {
			return abort("account claim", trie.ErrKeyNotFound)
		}
		return pv, nil
	}
	if !claim.ExpectPresent {
		return abort("account claim", ErrClaimMismatch)
	}
	if !bytes.Equal(accountVal, claim.Value) {
		return abort("account claim", ErrClaimMismatch)
	}
	pv.Present = true
	pv.Value = accountVal
	return pv, nil
}

func runStorageClaim(claim *witness.Claim, in *witness.ProofInput, accountVal []byte, pv *PublicValues) (*PublicValues, error) {
	storageRoot := types.EmptyRootHash
	if accountVal != nil {
		acct, err := trie.DecodeAccount(accountVal)
		if err != nil {
			return abort("account record", err)
		}
		storageRoot = acct.Root
	}

	slotHash := crypto.Keccak256(claim.StorageKey[:])
	slotVal, err := trie.VerifyProof(storageRoot, slotHash, in.StorageProof)
	if err != nil {
		return abort("storage witness", err)
	}
	if slotVal == nil {
		if claim.ExpectPresent {
			return abort("storage claim", trie.ErrKeyNotFound)
		}
		return pv, nil
	}
	if !claim.ExpectPresent {
		return abort("storage claim", ErrClaimMismatch)
	}

	value, err := trie.DecodeStorageValue(slotVal)
	if err != nil {
		return abort("storage value", err)
	}
	var claimed types.Hash
	copy(claimed[32-len(claim.Value):], claim.Value)
	if value != claimed {
		return abort("storage claim", ErrClaimMismatch)
	}
	pv.Present = true
	pv.Value = value.Bytes()
	return pv, nil
}
