package merkle

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaf := crypto.Keccak256([]byte("test data"))
	tree, err := BuildTree([][]byte{leaf})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if !bytes.Equal(tree.Root(), leaf) {
		t.Errorf("single leaf root mismatch: got %x, want %x", tree.Root(), leaf)
	}
	if tree.LeafCount() != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", tree.LeafCount())
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))

	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	expectedRoot := crypto.Keccak256(append(append([]byte{}, leaf1...), leaf2...))
	if !bytes.Equal(tree.Root(), expectedRoot) {
		t.Errorf("two leaf root mismatch: got %x, want %x", tree.Root(), expectedRoot)
	}
}

func TestGenerateProof_OddLeaves(t *testing.T) {
	leaves := make([][]byte, 3)
	for i := 0; i < 3; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i)})
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	for i := range leaves {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("leaf %d: %v", i, err)
		}
		if !VerifyProof(leaves[i], proof, tree.Root()) {
			t.Errorf("leaf %d: proof failed to verify", i)
		}
	}
}

func TestGenerateProof_FourLeaves(t *testing.T) {
	leaves := make([][]byte, 4)
	for i := 0; i < 4; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i)})
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	for i := range leaves {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("leaf %d: %v", i, err)
		}
		if len(proof.Path) != 2 {
			t.Errorf("leaf %d: proof path length mismatch: got %d, want 2", i, len(proof.Path))
		}
		if !VerifyProof(leaves[i], proof, tree.Root()) {
			t.Errorf("leaf %d: proof verification failed", i)
		}
	}
}

func TestVerifyProof_WrongLeafOrRoot(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))
	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wrongLeaf := crypto.Keccak256([]byte("wrong leaf"))
	if VerifyProof(wrongLeaf, proof, tree.Root()) {
		t.Error("proof should not verify for wrong leaf")
	}

	wrongRoot := crypto.Keccak256([]byte("wrong root"))
	if VerifyProof(leaf1, proof, wrongRoot) {
		t.Error("proof should not verify for wrong root")
	}
}

func TestWireProofRoundTrip(t *testing.T) {
	leaves := make([][]byte, 5)
	for i := 0; i < 5; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i)})
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	proof, err := tree.GenerateProof(3)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wire := proof.ToWire()
	restored, err := FromWire(wire)
	if err != nil {
		t.Fatalf("failed to parse wire proof: %v", err)
	}
	if !VerifyProof(leaves[3], restored, tree.Root()) {
		t.Error("restored proof failed to verify")
	}
}

func TestBuildTree_EmptyFails(t *testing.T) {
	_, err := BuildTree([][]byte{})
	if err != ErrEmptyTree {
		t.Errorf("expected ErrEmptyTree, got %v", err)
	}
}
