package witness

import (
	"errors"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/rlp"
)

// ErrMalformedInput is returned when an input buffer does not decode as the
// canonical layout.
var ErrMalformedInput = errors.New("witness: malformed input buffer")

// ProofInput is the canonical input buffer handed to the guest: the claim
// parameters, the account witness and the storage witness (empty when the
// claim has no storage key). Its RLP layout is the one binary contract
// between builder and guest, so the field order is fixed.
type ProofInput struct {
	Claim        inputClaim
	AccountProof [][]byte
	StorageProof [][]byte
}

// inputClaim is the wire form of a Claim. The optional storage key travels
// as a presence flag plus a fixed-width value so that encoding stays
// positional and deterministic.
type inputClaim struct {
	BlockNumber   uint64
	StateRoot     types.Hash
	Address       types.Address
	HasStorageKey bool
	StorageKey    types.Hash
	Value         []byte
	ExpectPresent bool
}

// NewProofInput packs a claim and its witnesses into a ProofInput.
func NewProofInput(claim *Claim, accountProof, storageProof [][]byte) *ProofInput {
	in := &ProofInput{
		Claim: inputClaim{
			BlockNumber:   claim.BlockNumber,
			StateRoot:     claim.StateRoot,
			Address:       claim.Address,
			Value:         claim.Value,
			ExpectPresent: claim.ExpectPresent,
		},
		AccountProof: accountProof,
		StorageProof: storageProof,
	}
	if claim.StorageKey != nil {
		in.Claim.HasStorageKey = true
		in.Claim.StorageKey = *claim.StorageKey
	}
	return in
}

// ToClaim unpacks the wire claim back into a Claim.
func (in *ProofInput) ToClaim() *Claim {
	c := &Claim{
		BlockNumber:   in.Claim.BlockNumber,
		StateRoot:     in.Claim.StateRoot,
		Address:       in.Claim.Address,
		Value:         in.Claim.Value,
		ExpectPresent: in.Claim.ExpectPresent,
	}
	if in.Claim.HasStorageKey {
		key := in.Claim.StorageKey
		c.StorageKey = &key
	}
	return c
}

// EncodeInput serializes a ProofInput into the canonical RLP buffer.
func EncodeInput(in *ProofInput) ([]byte, error) {
	return rlp.EncodeToBytes(in)
}

// DecodeInput parses a canonical input buffer. It is the exact inverse of
// EncodeInput; any deviation from the layout, including trailing bytes,
// yields ErrMalformedInput.
func DecodeInput(data []byte) (*ProofInput, error) {
	var in ProofInput
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return nil, ErrMalformedInput
	}
	return &in, nil
}
