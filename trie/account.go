package trie

import (
	"bytes"
	"errors"

	"github.com/holiman/uint256"

	"github.com/stateprove/stateprove/core/types"
	"github.com/stateprove/stateprove/crypto"
	"github.com/stateprove/stateprove/rlp"
)

var (
	// ErrProofVerifyFailed is returned when an account or storage proof does
	// not match its declared fields.
	ErrProofVerifyFailed = errors.New("trie: account proof verification failed")
	// ErrInvalidAccountRLP is returned when a proven account value does not
	// decode as a 4-field account record.
	ErrInvalidAccountRLP = errors.New("trie: invalid account encoding")
)

// ProofResult combines an account proof with zero or more storage proofs,
// matching the response shape of eth_getProof (EIP-1186).
type ProofResult struct {
	Account       *AccountProofData
	StorageProofs []StorageProofData
}

// AccountProofData contains Merkle proof data for a single Ethereum account.
type AccountProofData struct {
	Address     types.Address
	AccountRLP  []byte   // RLP-encoded account: [nonce, balance, storageRoot, codeHash]
	Proof       [][]byte // RLP-encoded trie nodes on the path
	Balance     *uint256.Int
	Nonce       uint64
	StorageHash types.Hash
	CodeHash    types.Hash
}

// StorageProofData contains the Merkle proof for a single storage slot.
type StorageProofData struct {
	Key   types.Hash
	Value types.Hash
	Proof [][]byte
}

// GenerateAccountProof builds an eth_getProof-style account proof for
// address against the given state trie. The trie keys accounts by the
// Keccak-256 hash of the address. If the account is absent, the returned
// proof is an absence witness with empty-account fields.
func GenerateAccountProof(root types.Hash, address types.Address, stateTrie *Trie) (*AccountProofData, error) {
	result := &AccountProofData{
		Address: address,
		Balance: new(uint256.Int),
	}

	if trieRoot := stateTrie.Hash(); trieRoot != root {
		return nil, ErrRootMismatch
	}
	addrHash := crypto.Keccak256(address[:])

	proof, err := stateTrie.Prove(addrHash)
	if err == ErrNotFound {
		proof, err = stateTrie.ProveAbsence(addrHash)
		if err != nil {
			return nil, err
		}
		result.Proof = proof
		result.StorageHash = types.EmptyRootHash
		result.CodeHash = types.EmptyCodeHash
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Proof = proof

	accountRLP, err := stateTrie.Get(addrHash)
	if err != nil {
		return nil, err
	}
	result.AccountRLP = accountRLP

	acct, err := DecodeAccount(accountRLP)
	if err != nil {
		return nil, err
	}
	result.Nonce = acct.Nonce
	result.Balance = acct.Balance
	result.StorageHash = acct.Root
	result.CodeHash = types.BytesToHash(acct.CodeHash)
	return result, nil
}

// VerifyAccountProof checks an account proof against a state root and
// returns the proven account. A provably absent account yields (nil, nil).
// The proof's declared fields must match the proven record exactly.
func VerifyAccountProof(root types.Hash, proof *AccountProofData) (*types.StateAccount, error) {
	addrHash := crypto.Keccak256(proof.Address[:])

	val, err := VerifyProof(root, addrHash, proof.Proof)
	if err != nil {
		return nil, err
	}
	if val == nil {
		// Absence is only consistent with empty-account fields.
		if proof.Nonce != 0 || (proof.Balance != nil && !proof.Balance.IsZero()) {
			return nil, ErrProofVerifyFailed
		}
		return nil, nil
	}

	if proof.AccountRLP != nil && !bytes.Equal(val, proof.AccountRLP) {
		return nil, ErrProofVerifyFailed
	}
	acct, err := DecodeAccount(val)
	if err != nil {
		return nil, err
	}
	if acct.Nonce != proof.Nonce {
		return nil, ErrProofVerifyFailed
	}
	if proof.Balance != nil && acct.Balance.Cmp(proof.Balance) != 0 {
		return nil, ErrProofVerifyFailed
	}
	if acct.Root != proof.StorageHash {
		return nil, ErrProofVerifyFailed
	}
	if types.BytesToHash(acct.CodeHash) != proof.CodeHash {
		return nil, ErrProofVerifyFailed
	}
	return acct, nil
}

// VerifyStorageProof checks a single storage slot proof against the storage
// root committed to by a verified account. The storage trie keys slots by
// the Keccak-256 hash of the slot key and stores values RLP-encoded with
// leading zeros stripped. A provably absent slot yields the zero hash.
func VerifyStorageProof(storageRoot types.Hash, proof *StorageProofData) (types.Hash, error) {
	slotHash := crypto.Keccak256(proof.Key[:])

	val, err := VerifyProof(storageRoot, slotHash, proof.Proof)
	if err != nil {
		return types.Hash{}, err
	}
	if val == nil {
		if !proof.Value.IsZero() {
			return types.Hash{}, ErrProofVerifyFailed
		}
		return types.Hash{}, nil
	}

	decoded, err := DecodeStorageValue(val)
	if err != nil {
		return types.Hash{}, err
	}
	if decoded != proof.Value {
		return types.Hash{}, ErrProofVerifyFailed
	}
	return decoded, nil
}

// VerifyProofResult verifies an account proof and all of its storage proofs,
// chaining each storage proof to the storage root proven by the account. The
// two tries compose: tampering with the account record invalidates the
// account proof, and tampering with a slot invalidates its proof against the
// genuine storage root.
func VerifyProofResult(root types.Hash, result *ProofResult) (*types.StateAccount, error) {
	acct, err := VerifyAccountProof(root, result.Account)
	if err != nil {
		return nil, err
	}
	storageRoot := types.EmptyRootHash
	if acct != nil {
		storageRoot = acct.Root
	}
	for i := range result.StorageProofs {
		sp := &result.StorageProofs[i]
		if storageRoot == types.EmptyRootHash {
			// No storage trie: every slot must be a zero-value claim.
			if !sp.Value.IsZero() || len(sp.Proof) != 0 {
				return nil, ErrProofVerifyFailed
			}
			continue
		}
		if _, err := VerifyStorageProof(storageRoot, sp); err != nil {
			return nil, err
		}
	}
	return acct, nil
}

// EncodeAccount RLP-encodes an account record as the standard 4-element
// list [nonce, balance, storageRoot, codeHash].
func EncodeAccount(acct *types.StateAccount) []byte {
	balance := acct.Balance
	if balance == nil {
		balance = new(uint256.Int)
	}
	data, _ := rlp.EncodeToBytes(struct {
		Nonce    uint64
		Balance  *uint256.Int
		Root     types.Hash
		CodeHash []byte
	}{
		Nonce:    acct.Nonce,
		Balance:  balance,
		Root:     acct.Root,
		CodeHash: acct.CodeHash,
	})
	return data
}

// DecodeAccount decodes an RLP-encoded 4-field account record.
func DecodeAccount(data []byte) (*types.StateAccount, error) {
	items, err := decodeRLPList(data)
	if err != nil {
		return nil, ErrInvalidAccountRLP
	}
	if len(items) != 4 {
		return nil, ErrInvalidAccountRLP
	}
	nonce, ok := decodeBytesAsUint64(items[0])
	if !ok {
		return nil, ErrInvalidAccountRLP
	}
	if len(items[1]) > 32 || (len(items[1]) > 0 && items[1][0] == 0) {
		return nil, ErrInvalidAccountRLP
	}
	if len(items[2]) != 32 || len(items[3]) != 32 {
		return nil, ErrInvalidAccountRLP
	}
	acct := &types.StateAccount{
		Nonce:    nonce,
		Balance:  new(uint256.Int).SetBytes(items[1]),
		Root:     types.BytesToHash(items[2]),
		CodeHash: append([]byte{}, items[3]...),
	}
	return acct, nil
}

// GenerateStorageProof builds a Merkle proof for a single storage slot in
// the given storage trie.
func GenerateStorageProof(storageRoot types.Hash, key types.Hash, storageTrie *Trie) (*StorageProofData, error) {
	result := &StorageProofData{Key: key}

	if trieRoot := storageTrie.Hash(); trieRoot != storageRoot {
		return nil, ErrRootMismatch
	}
	slotHash := crypto.Keccak256(key[:])

	proof, err := storageTrie.Prove(slotHash)
	if err == ErrNotFound {
		proof, err = storageTrie.ProveAbsence(slotHash)
		if err != nil {
			return nil, err
		}
		result.Proof = proof
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Proof = proof

	val, err := storageTrie.Get(slotHash)
	if err != nil {
		return nil, err
	}
	result.Value, err = DecodeStorageValue(val)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateProofResult builds a complete eth_getProof-style result for an
// account and a set of storage keys.
func GenerateProofResult(root types.Hash, address types.Address, stateTrie, storageTrie *Trie, storageKeys []types.Hash) (*ProofResult, error) {
	accountProof, err := GenerateAccountProof(root, address, stateTrie)
	if err != nil {
		return nil, err
	}
	result := &ProofResult{Account: accountProof}

	for _, key := range storageKeys {
		if storageTrie == nil {
			result.StorageProofs = append(result.StorageProofs, StorageProofData{Key: key})
			continue
		}
		sp, err := GenerateStorageProof(accountProof.StorageHash, key, storageTrie)
		if err != nil {
			return nil, err
		}
		result.StorageProofs = append(result.StorageProofs, *sp)
	}
	return result, nil
}

// EncodeStorageValue RLP-encodes a storage slot value for insertion in a
// storage trie: big-endian with leading zeros stripped.
func EncodeStorageValue(value types.Hash) []byte {
	trimmed := value[:]
	for len(trimmed) > 0 && trimmed[0] == 0 {
		trimmed = trimmed[1:]
	}
	enc, _ := rlp.EncodeToBytes(trimmed)
	return enc
}

// DecodeStorageValue decodes an RLP-encoded storage value into a 32-byte
// hash, rejecting overlong or zero-padded payloads.
func DecodeStorageValue(data []byte) (types.Hash, error) {
	content, rest, err := decodeOneElement(data)
	if err != nil || len(rest) != 0 {
		return types.Hash{}, ErrMalformedNode
	}
	if len(content) > 32 || (len(content) > 0 && content[0] == 0) {
		return types.Hash{}, ErrMalformedNode
	}
	var h types.Hash
	copy(h[32-len(content):], content)
	return h, nil
}

// decodeBytesAsUint64 interprets a big-endian RLP integer payload, rejecting
// leading zeros and overlong values.
func decodeBytesAsUint64(b []byte) (uint64, bool) {
	if len(b) > 8 || (len(b) > 0 && b[0] == 0) {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, true
}
