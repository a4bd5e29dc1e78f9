// Package merkle implements the chunk-hash commitment: a pairwise Keccak-256
// binary tree over N chunk hashes, with ordered sibling-path proofs that
// match the on-ledger verifier byte-for-byte.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyTree = errors.New("merkle: cannot build tree from zero leaves")

// Position marks which side a sibling hash sits on in a proof step.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// Tree is a read-only pairwise Keccak-256 Merkle tree built once from an
// ordered list of leaves (the N chunk hashes, in index order).
type Tree struct {
	leaves [][]byte
	levels [][][]byte // levels[0] == leaves, levels[last] == {root}
	root   []byte
}

// BuildTree builds the tree over leaves in the given order. Odd layers
// duplicate their last node before pairing, matching the on-chain verifier.
func BuildTree(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	for i, l := range leaves {
		if len(l) != 32 {
			return nil, fmt.Errorf("merkle: leaf %d is not 32 bytes", i)
		}
	}
	t := &Tree{leaves: leaves}
	t.build()
	return t, nil
}

func (t *Tree) build() {
	level := make([][]byte, len(t.leaves))
	copy(level, t.leaves)
	t.levels = [][][]byte{level}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
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
	t.root = level[0]
}

func hashPair(left, right []byte) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left...)
	buf = append(buf, right...)
	return crypto.Keccak256(buf)
}

// Root returns the 32-byte tree root — the blob's commitment id.
func (t *Tree) Root() []byte { return t.root }

// LeafCount returns the number of leaves the tree was built from.
func (t *Tree) LeafCount() int { return len(t.leaves) }

// GetLeaf returns the leaf hash at index i.
func (t *Tree) GetLeaf(i int) ([]byte, error) {
	if i < 0 || i >= len(t.leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", i)
	}
	return t.leaves[i], nil
}

// ProofStep is one sibling hash and its position relative to the running node.
type ProofStep struct {
	Hash     [32]byte
	Position Position
}

// Proof is the ordered sibling path from a leaf to the tree root, excluding
// the root itself. Its length equals ceil(log2(N)).
type Proof struct {
	LeafIndex int
	Path      []ProofStep
}

// GenerateProof builds the sibling path for the leaf at the given index.
func (t *Tree) GenerateProof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= len(t.leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", leafIndex)
	}
	proof := &Proof{LeafIndex: leafIndex}
	idx := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		var pos Position
		if idx%2 == 0 {
			pos = Right
			siblingIdx = idx + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = idx // duplicate-last
			}
		} else {
			pos = Left
			siblingIdx = idx - 1
		}
		var step ProofStep
		copy(step.Hash[:], nodes[siblingIdx])
		step.Position = pos
		proof.Path = append(proof.Path, step)
		idx /= 2
	}
	return proof, nil
}

// VerifyProof walks leafHash through proof and compares against expectedRoot.
func VerifyProof(leafHash []byte, proof *Proof, expectedRoot []byte) bool {
	current := leafHash
	for _, step := range proof.Path {
		if step.Position == Right {
			current = hashPair(current, step.Hash[:])
		} else {
			current = hashPair(step.Hash[:], current)
		}
	}
	return bytes.Equal(current, expectedRoot)
}

// HashLeaves builds the ordered leaf list from N chunk hashes already in
// index order — a thin convenience wrapper so callers never forget the
// ordering requirement.
func HashLeaves(chunkHashes [][32]byte) [][]byte {
	out := make([][]byte, len(chunkHashes))
	for i, h := range chunkHashes {
		leaf := make([]byte, 32)
		copy(leaf, h[:])
		out[i] = leaf
	}
	return out
}
