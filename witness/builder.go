package witness

import (
	"context"
	"fmt"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/log"
)

// Builder assembles canonical input buffers for claims. It fetches the block
// header and proof material from a chain data source and performs structural
// sanity checks only; all trust-bearing verification happens in the guest.
type Builder struct {
	client ChainClient
	logger *log.Logger
}

// NewBuilder creates a Builder on top of a chain client.
func NewBuilder(client ChainClient) *Builder {
	return &Builder{
		client: client,
		logger: log.Default().Module("witness"),
	}
}

// Build resolves the claim's state root (when unset), fetches the account
// and storage witnesses, and packs them into a ProofInput.
func (b *Builder) Build(ctx context.Context, claim *Claim) (*ProofInput, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	if claim.StateRoot.IsZero() {
		root, err := b.client.StateRootAt(ctx, claim.BlockNumber)
		if err != nil {
			return nil, err
		}
		claim.StateRoot = root
		b.logger.Debug("resolved state root",
			"block", claim.BlockNumber, "root", root.Hex())
	}

	var storageKeys []types.Hash
	if claim.IsStorage() {
		storageKeys = []types.Hash{*claim.StorageKey}
	}
	result, err := b.client.ProofAt(ctx, claim.BlockNumber, claim.Address, storageKeys)
	if err != nil {
		return nil, err
	}

	if len(result.AccountProof) == 0 {
		return nil, fmt.Errorf("%w: empty account proof for %s", ErrChainData, claim.Address.Hex())
	}
	var storageProof [][]byte
	if claim.IsStorage() {
		if len(result.StorageProof) == 0 {
			return nil, fmt.Errorf("%w: missing storage proof for slot %s", ErrChainData, claim.StorageKey.Hex())
		}
		storageProof = result.StorageProof[0].Proof
	}

	b.logger.Info("witness assembled",
		"block", claim.BlockNumber,
		"address", claim.Address.Hex(),
		"accountNodes", len(result.AccountProof),
		"storageNodes", len(storageProof))

	return NewProofInput(claim, result.AccountProof, storageProof), nil
}
