package witness

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/stateprove/stateprove/core/types"
)

// ErrChainData is returned when the chain data source cannot supply the
// header or proof material for a claim. It wraps the transport error and is
// the retryable class of builder failures.
var ErrChainData = errors.New("witness: chain data unavailable")

// AccountResult mirrors the eth_getProof response, already converted to
// local types.
type AccountResult struct {
	Address      types.Address
	AccountProof [][]byte
	Balance      string
	Nonce        uint64
	StorageHash  types.Hash
	CodeHash     types.Hash
	StorageProof []StorageResult
}

// StorageResult is a single storage slot entry of an eth_getProof response.
type StorageResult struct {
	Key   types.Hash
	Value types.Hash
	Proof [][]byte
}

// ChainClient supplies the chain data a witness builder needs: the state
// root of a block and the Merkle proof material for an account and its
// storage slots at that block.
type ChainClient interface {
	// StateRootAt returns the state root committed to by the header of the
	// given block.
	StateRootAt(ctx context.Context, blockNumber uint64) (types.Hash, error)
	// ProofAt returns the eth_getProof result for the account and slots at
	// the given block.
	ProofAt(ctx context.Context, blockNumber uint64, address types.Address, storageKeys []types.Hash) (*AccountResult, error)
}

// RPCClient is a ChainClient backed by a go-ethereum RPC connection.
type RPCClient struct {
	eth *ethclient.Client
}

// DialRPC connects to an Ethereum JSON-RPC endpoint.
func DialRPC(ctx context.Context, url string) (*RPCClient, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainData, err)
	}
	return &RPCClient{eth: eth}, nil
}

// NewRPCClient wraps an existing ethclient connection.
func NewRPCClient(eth *ethclient.Client) *RPCClient {
	return &RPCClient{eth: eth}
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.eth.Close()
}

func (c *RPCClient) StateRootAt(ctx context.Context, blockNumber uint64) (types.Hash, error) {
	var header struct {
		StateRoot common.Hash `json:"stateRoot"`
	}
	err := c.eth.Client().CallContext(ctx, &header, "eth_getBlockByNumber", hexutil.Uint64(blockNumber), false)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: eth_getBlockByNumber(%d): %v", ErrChainData, blockNumber, err)
	}
	if header.StateRoot == (common.Hash{}) {
		return types.Hash{}, fmt.Errorf("%w: block %d has no state root", ErrChainData, blockNumber)
	}
	return types.BytesToHash(header.StateRoot.Bytes()), nil
}

func (c *RPCClient) ProofAt(ctx context.Context, blockNumber uint64, address types.Address, storageKeys []types.Hash) (*AccountResult, error) {
	keys := make([]string, len(storageKeys))
	for i, k := range storageKeys {
		keys[i] = common.Hash(k).Hex()
	}
	var raw struct {
		Address      common.Address  `json:"address"`
		AccountProof []hexutil.Bytes `json:"accountProof"`
		Balance      *hexutil.Big    `json:"balance"`
		Nonce        hexutil.Uint64  `json:"nonce"`
		StorageHash  common.Hash     `json:"storageHash"`
		CodeHash     common.Hash     `json:"codeHash"`
		StorageProof []struct {
			Key   common.Hash     `json:"key"`
			Value *hexutil.Big    `json:"value"`
			Proof []hexutil.Bytes `json:"proof"`
		} `json:"storageProof"`
	}
	err := c.eth.Client().CallContext(ctx, &raw, "eth_getProof",
		common.Address(address), keys, hexutil.Uint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getProof(%s, %d): %v", ErrChainData, address.Hex(), blockNumber, err)
	}

	result := &AccountResult{
		Address:      address,
		AccountProof: proofBytes(raw.AccountProof),
		Nonce:        uint64(raw.Nonce),
		StorageHash:  types.BytesToHash(raw.StorageHash.Bytes()),
		CodeHash:     types.BytesToHash(raw.CodeHash.Bytes()),
	}
	if raw.Balance != nil {
		result.Balance = raw.Balance.String()
	}
	for _, sp := range raw.StorageProof {
		entry := StorageResult{
			Key:   types.BytesToHash(sp.Key.Bytes()),
			Proof: proofBytes(sp.Proof),
		}
		if sp.Value != nil {
			entry.Value = types.BytesToHash(common.BigToHash(sp.Value.ToInt()).Bytes())
		}
		result.StorageProof = append(result.StorageProof, entry)
	}
	return result, nil
}

func proofBytes(proof []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(proof))
	for i, p := range proof {
		out[i] = []byte(p)
	}
	return out
}
