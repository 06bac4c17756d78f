package yap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// leafDomain separates YAP claim leaves from other keccak preimages.
const leafDomain = "YAP_CLAIM_V1"

var (
	// ErrEmptyTree is returned when building a tree with no leaves.
	ErrEmptyTree = errors.New("merkle tree has no leaves")

	// ErrNotInTree is returned by ProofFor for an unknown wallet.
	ErrNotInTree = errors.New("wallet not in merkle tree")

	// ErrDuplicateLeaf is returned when a wallet appears twice.
	ErrDuplicateLeaf = errors.New("duplicate wallet in merkle leaves")

	// ErrMalformedProof is returned when verifying a proof whose
	// elements are not exactly 32 bytes.
	ErrMalformedProof = errors.New("malformed merkle proof")
)

// Leaf is one (wallet, cumulative amount) claim entitlement.
type Leaf struct {
	Wallet solana.PublicKey
	Amount uint64
}

// Tree is an immutable merkle tree over claim entitlements, built once
// per distribution. Hashing matches the on-chain program: leaves are
// keccak256(domain || wallet || amount_le), internal nodes are
// keccak256 of the lexicographically sorted pair, and an odd node at
// any level is paired with itself.
type Tree struct {
	levels  [][][32]byte // levels[0] = leaf hashes, last = [root]
	index   map[solana.PublicKey]int
	amounts map[solana.PublicKey]uint64
}

// LeafHash computes the on-chain leaf encoding for one entitlement.
func LeafHash(wallet solana.PublicKey, amount uint64) [32]byte {
	data := make([]byte, 0, len(leafDomain)+32+8)
	data = append(data, leafDomain...)
	data = append(data, wallet.Bytes()...)
	data = binary.LittleEndian.AppendUint64(data, amount)
	return keccak(data)
}

// NewTree builds the tree. Leaves are sorted by wallet so the same set
// always yields the same root regardless of input order.
func NewTree(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Wallet.Bytes(), sorted[j].Wallet.Bytes()) < 0
	})

	t := &Tree{
		index:   make(map[solana.PublicKey]int, len(sorted)),
		amounts: make(map[solana.PublicKey]uint64, len(sorted)),
	}
	level := make([][32]byte, len(sorted))
	for i, leaf := range sorted {
		if _, ok := t.index[leaf.Wallet]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLeaf, leaf.Wallet)
		}
		t.index[leaf.Wallet] = i
		t.amounts[leaf.Wallet] = leaf.Amount
		level[i] = LeafHash(leaf.Wallet, leaf.Amount)
	}

	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

// Root returns the 32-byte root hash.
func (t *Tree) Root() [32]byte {
	return t.levels[len(t.levels)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.levels[0])
}

// ProofFor returns the amount and sibling hashes for a wallet, or
// ErrNotInTree.
func (t *Tree) ProofFor(wallet solana.PublicKey) (uint64, [][32]byte, error) {
	idx, ok := t.index[wallet]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrNotInTree, wallet)
	}

	proof := make([][32]byte, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			// Odd node at the end of a level pairs with itself.
			sibling = idx
		}
		proof = append(proof, level[sibling])
		idx /= 2
	}
	return t.amounts[wallet], proof, nil
}

// VerifyProof folds a leaf up through its siblings and compares against
// root, using the exact sorted-pair rule the on-chain program applies.
func VerifyProof(root, leaf [32]byte, proof [][32]byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// VerifyProofBytes is VerifyProof over raw slices, validating sizes.
func VerifyProofBytes(root []byte, leaf [32]byte, proof [][]byte) (bool, error) {
	if len(root) != 32 {
		return false, fmt.Errorf("%w: root is %d bytes", ErrMalformedProof, len(root))
	}
	var r [32]byte
	copy(r[:], root)
	elems := make([][32]byte, len(proof))
	for i, p := range proof {
		if len(p) != 32 {
			return false, fmt.Errorf("%w: element %d is %d bytes", ErrMalformedProof, i, len(p))
		}
		copy(elems[i][:], p)
	}
	return VerifyProof(r, leaf, elems), nil
}

func hashPair(a, b [32]byte) [32]byte {
	combined := make([]byte, 0, 64)
	if bytes.Compare(a[:], b[:]) <= 0 {
		combined = append(combined, a[:]...)
		combined = append(combined, b[:]...)
	} else {
		combined = append(combined, b[:]...)
		combined = append(combined, a[:]...)
	}
	return keccak(combined)
}

func keccak(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EncodeProof flattens a proof into the 32n-byte form persisted with
// each user reward row.
func EncodeProof(proof [][32]byte) []byte {
	out := make([]byte, 0, 32*len(proof))
	for i := range proof {
		out = append(out, proof[i][:]...)
	}
	return out
}

// DecodeProof splits a persisted proof back into 32-byte elements.
func DecodeProof(data []byte) ([][32]byte, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 32", ErrMalformedProof, len(data))
	}
	proof := make([][32]byte, len(data)/32)
	for i := range proof {
		copy(proof[i][:], data[i*32:(i+1)*32])
	}
	return proof, nil
}
