package witness

import (
	"errors"

	"github.com/stateprove/stateprove/core/types"
)

var (
	// ErrInvalidClaim is returned when a claim's fields are structurally
	// unusable before any chain data is fetched.
	ErrInvalidClaim = errors.New("witness: invalid claim")
)

// Claim is the statement to be proven: that at the given block, the account
// at Address (or, when StorageKey is set, that account's storage slot) holds
// Value. ExpectPresent distinguishes a presence claim from an absence claim;
// for absence claims Value must be empty.
//
// StateRoot may be left zero, in which case the builder resolves it from the
// block header.
type Claim struct {
	BlockNumber   uint64
	StateRoot     types.Hash
	Address       types.Address
	StorageKey    *types.Hash
	Value         []byte
	ExpectPresent bool
}

// IsStorage reports whether the claim targets a storage slot rather than the
// account record itself.
func (c *Claim) IsStorage() bool { return c.StorageKey != nil }

// Validate checks the claim's structural invariants.
func (c *Claim) Validate() error {
	if c.Address.IsZero() {
		return ErrInvalidClaim
	}
	if !c.ExpectPresent && len(c.Value) != 0 {
		return ErrInvalidClaim
	}
	if c.ExpectPresent && len(c.Value) == 0 {
		return ErrInvalidClaim
	}
	if c.IsStorage() && len(c.Value) > 32 {
		return ErrInvalidClaim
	}
	return nil
}
