package provider

import (
	"context"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

func makeChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = types.Chunk{Index: uint16(i), Data: []byte{byte(i), byte(i * 7), byte(i + 3)}}
	}
	return chunks
}

// setupGate builds a gate over a fresh MemoryLedger/MemStore with a
// commitment already submitted, plus the Merkle tree and KZG instance
// needed to build valid requests against it.
func setupGate(t *testing.T, n int) (*Gate, *ledger.MemoryLedger, common.Hash, []types.Chunk, *merkle.Tree, []fr.Element, *kzg.KZG) {
	t.Helper()
	chunks := makeChunks(n)

	leaves := make([][]byte, n)
	for i, c := range chunks {
		h := c.Hash()
		leaves[i] = h[:]
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	root := common.BytesToHash(tree.Root())

	k := kzg.New(kzg.NewInsecureTestCRS(n - 1))
	poly := kzg.BuildPolynomial(chunks)
	commitment, err := k.Commit(poly)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	l := ledger.NewMemoryLedger()
	if err := l.SubmitCommitment(context.Background(), root, 48, uint16(n), uint16(n/2), commitment.Bytes()); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}

	self := common.HexToAddress("0x1111111111111111111111111111111111111111")
	store := NewMemStore()
	gate := NewGateWithKZG(l, store, self, k)
	return gate, l, root, chunks, tree, poly, k
}

func buildRequest(t *testing.T, root common.Hash, chunks []types.Chunk, tree *merkle.Tree, poly []fr.Element, k *kzg.KZG) BatchStoreRequest {
	t.Helper()
	proofs := make([]*merkle.Proof, len(chunks))
	zs := make([]fr.Element, len(chunks))
	for i, c := range chunks {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("generate proof %d: %v", i, err)
		}
		proofs[i] = proof
		zs[i].SetUint64(uint64(c.Index))
	}
	batchProof, err := k.OpenMulti(poly, zs)
	if err != nil {
		t.Fatalf("open multi: %v", err)
	}
	return BatchStoreRequest{Root: root, Chunks: chunks, KzgBatchProof: batchProof, MerkleProofs: proofs}
}

func TestGate_BatchStoreAndRetrieve(t *testing.T) {
	gate, l, root, chunks, tree, poly, k := setupGate(t, 8)
	req := buildRequest(t, root, chunks[:4], tree, poly, k)

	accepted, err := gate.BatchStore(context.Background(), req)
	if err != nil {
		t.Fatalf("batch store: %v", err)
	}
	if accepted != 4 {
		t.Errorf("accepted = %d, want 4", accepted)
	}

	rec, found, err := l.GetCommitmentInfo(context.Background(), root)
	if err != nil || !found {
		t.Fatalf("get commitment info: found=%v err=%v", found, err)
	}
	if rec.AvailableChunks != 4 {
		t.Errorf("available chunks = %d, want 4", rec.AvailableChunks)
	}

	got, err := gate.BatchRetrieve(context.Background(), root, []uint16{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("batch retrieve: %v", err)
	}
	for i, sc := range got {
		if sc == nil {
			t.Fatalf("chunk %d missing from retrieve", i)
		}
		if string(sc.Chunk.Data) != string(chunks[i].Data) {
			t.Errorf("chunk %d data mismatch", i)
		}
	}

	indices, err := gate.List(context.Background(), root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(indices) != 4 {
		t.Errorf("list returned %d indices, want 4", len(indices))
	}

	if err := gate.Delete(context.Background(), root, []uint16{0}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	remaining, err := gate.List(context.Background(), root)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(remaining) != 3 {
		t.Errorf("list after delete returned %d, want 3", len(remaining))
	}
}

// TestGate_InvalidKZGRejected covers the "invalid KZG proof" scenario: a
// batch proof that does not correspond to the ledger's recorded commitment
// must be rejected, and no chunk may be persisted as a side effect.
func TestGate_InvalidKZGRejected(t *testing.T) {
	gate, l, root, chunks, tree, poly, k := setupGate(t, 8)
	req := buildRequest(t, root, chunks[:4], tree, poly, k)

	// Corrupt the batch proof with an unrelated random-looking point.
	_, _, g1Gen, _ := bls12381.Generators()
	bogusBytes := g1Gen.Bytes()
	forgedProof, err := kzg.ProofFromBytes(bogusBytes[:])
	if err != nil {
		t.Fatalf("build forged proof: %v", err)
	}
	req.KzgBatchProof = forgedProof

	accepted, err := gate.BatchStore(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for forged kzg proof, got nil")
	}
	if accepted != 0 {
		t.Errorf("accepted = %d, want 0 on a rejected batch", accepted)
	}

	rec, found, err := l.GetCommitmentInfo(context.Background(), root)
	if err != nil || !found {
		t.Fatalf("get commitment info: found=%v err=%v", found, err)
	}
	if rec.AvailableChunks != 0 {
		t.Errorf("available chunks = %d, want 0 — no chunk should persist on a failed verification", rec.AvailableChunks)
	}

	got, err := gate.List(context.Background(), root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("store holds %d chunks, want 0 after rejected batch", len(got))
	}
}

func TestGate_InvalidMerkleProofRejected(t *testing.T) {
	gate, l, root, chunks, tree, poly, k := setupGate(t, 8)
	req := buildRequest(t, root, chunks[:4], tree, poly, k)

	// Swap two proofs so chunk 0 carries chunk 1's sibling path.
	req.MerkleProofs[0], req.MerkleProofs[1] = req.MerkleProofs[1], req.MerkleProofs[0]

	accepted, err := gate.BatchStore(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for mismatched merkle proof, got nil")
	}
	if accepted != 0 {
		t.Errorf("accepted = %d, want 0", accepted)
	}
	rec, found, err := l.GetCommitmentInfo(context.Background(), root)
	if err != nil || !found {
		t.Fatalf("get commitment info: found=%v err=%v", found, err)
	}
	if rec.AvailableChunks != 0 {
		t.Errorf("available chunks = %d, want 0", rec.AvailableChunks)
	}
}

func TestGate_UnknownCommitmentRejected(t *testing.T) {
	gate, _, _, chunks, tree, poly, k := setupGate(t, 8)
	unknownRoot := common.HexToHash("0xdeadbeef")
	req := buildRequest(t, unknownRoot, chunks[:4], tree, poly, k)

	if _, err := gate.BatchStore(context.Background(), req); err == nil {
		t.Fatal("expected error for unknown commitment root")
	}
}
