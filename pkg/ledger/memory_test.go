package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

func TestMemoryLedger_CommitmentAndAttestationLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	root := common.HexToHash("0x01")
	providerA := common.HexToAddress("0xaa")
	providerB := common.HexToAddress("0xbb")

	if err := l.SubmitCommitment(ctx, root, 120, 4, 2, [48]byte{}); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}
	if err := l.SubmitCommitment(ctx, root, 120, 4, 2, [48]byte{}); err != types.ErrDuplicateCommitment {
		t.Fatalf("expected duplicate commitment error, got %v", err)
	}

	if err := l.SubmitChunkAttestations(ctx, root, providerA, []uint16{0, 1}); err != nil {
		t.Fatalf("attest: %v", err)
	}
	// first-attester-wins: providerB cannot take index 0 from providerA.
	if err := l.SubmitChunkAttestations(ctx, root, providerB, []uint16{0, 2}); err != nil {
		t.Fatalf("attest: %v", err)
	}

	owner, ok, err := l.GetChunkOwner(ctx, root, 0)
	if err != nil || !ok || owner != providerA {
		t.Fatalf("chunk 0 owner = %v, %v, %v; want providerA", owner, ok, err)
	}
	owner, ok, err = l.GetChunkOwner(ctx, root, 2)
	if err != nil || !ok || owner != providerB {
		t.Fatalf("chunk 2 owner = %v, %v, %v; want providerB", owner, ok, err)
	}

	rec, found, err := l.GetCommitmentInfo(ctx, root)
	if err != nil || !found {
		t.Fatalf("get commitment info: %v %v", found, err)
	}
	if rec.AvailableChunks != 3 {
		t.Errorf("available chunks = %d, want 3", rec.AvailableChunks)
	}
	if rec.IsRecoverable() != true {
		t.Errorf("expected recoverable with 3 >= K=2")
	}
}

func TestMemoryLedger_ChallengeSlashOnWrongData(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	root := common.HexToHash("0x02")
	provider := common.HexToAddress("0xcc")
	challenger := common.HexToAddress("0xdd")

	l.RegisterProviderAt(provider, "p1", "http://p1", 1_000_000_000_000_000_000) // 1 ETH

	chunk := types.Chunk{Index: 0, Data: []byte("the real chunk data")}
	leaf := chunk.Hash()
	tree, err := merkle.BuildTree([][]byte{leaf[:]})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	root32 := common.BytesToHash(tree.Root())

	if err := l.SubmitCommitment(ctx, root32, 20, 1, 1, [48]byte{}); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}
	if err := l.SubmitChunkAttestations(ctx, root32, provider, []uint16{0}); err != nil {
		t.Fatalf("attest: %v", err)
	}

	if _, err := l.IssueChunkChallenge(ctx, challenger, root32, 0, provider); err != nil {
		t.Fatalf("issue challenge: %v", err)
	}
	if _, err := l.IssueChunkChallenge(ctx, challenger, root32, 0, provider); err != types.ErrDuplicateChallenge {
		t.Fatalf("expected duplicate challenge, got %v", err)
	}

	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	wire := proof.ToWire()

	// Respond with wrong data but a valid-looking Merkle path for the
	// original chunk: verification must fail and the provider must be slashed.
	err = l.RespondToChunkChallenge(ctx, root32, 0, []byte("not the real data!!"), wire)
	if err != types.ErrMerkleInvalid {
		t.Fatalf("expected merkle invalid on wrong data, got %v", err)
	}

	providers, _ := l.GetActiveProviders(ctx)
	var got *types.ProviderRecord
	for _, p := range providers {
		if p.Addr == provider {
			got = p
		}
	}
	if got == nil {
		t.Fatal("provider not found")
	}
	if got.StakedAmount != 900_000_000_000_000_000 {
		t.Errorf("staked amount after slash = %d, want 900000000000000000 (0.1 ETH slashed)", got.StakedAmount)
	}

	available, err := l.IsChunkAvailable(ctx, root32, 0)
	if err != nil {
		t.Fatalf("is chunk available: %v", err)
	}
	if available {
		t.Error("chunk should be unavailable after slashing")
	}
}

func TestMemoryLedger_SlashExpiredChallenge(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	root := common.HexToHash("0x03")
	provider := common.HexToAddress("0xee")
	challenger := common.HexToAddress("0xff")

	l.RegisterProviderAt(provider, "p1", "http://p1", 1_000_000_000_000_000_000)
	if err := l.SubmitCommitment(ctx, root, 20, 1, 1, [48]byte{}); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}
	if err := l.SubmitChunkAttestations(ctx, root, provider, []uint16{0}); err != nil {
		t.Fatalf("attest: %v", err)
	}
	if _, err := l.IssueChunkChallenge(ctx, challenger, root, 0, provider); err != nil {
		t.Fatalf("issue challenge: %v", err)
	}

	expired, err := l.GetProviderExpiredChallenges(ctx, challenger)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired challenges yet, got %d", len(expired))
	}

	l.AdvanceBlock(ChallengeDeadlineBlocks + 1)

	expired, err = l.GetProviderExpiredChallenges(ctx, challenger)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired challenge, got %d", len(expired))
	}

	if err := l.SlashExpiredChallenge(ctx, root, 0, provider); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if err := l.SlashExpiredChallenge(ctx, root, 0, provider); err != types.ErrAlreadySlashed {
		t.Fatalf("expected already slashed, got %v", err)
	}
}
