package challenger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

func seedCommitment(t *testing.T, l *ledger.MemoryLedger, root common.Hash, n, k uint16, owner common.Address) {
	t.Helper()
	if err := l.SubmitCommitment(context.Background(), root, 100, n, k, [48]byte{}); err != nil {
		t.Fatalf("submit commitment: %v", err)
	}
	indices := make([]uint16, n)
	for i := range indices {
		indices[i] = uint16(i)
	}
	if err := l.SubmitChunkAttestations(context.Background(), root, owner, indices); err != nil {
		t.Fatalf("submit attestations: %v", err)
	}
}

// TestChallenger_SampleAndIssue covers a challenge round: up to sampleSize
// challenges get issued against the sole registered commitment, and each
// is resolvable via GetChunkChallenge for the owning provider.
func TestChallenger_SampleAndIssue(t *testing.T) {
	l := ledger.NewMemoryLedger()
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	root := common.HexToHash("0xaaaa")
	seedCommitment(t, l, root, 8, 4, owner)

	self := common.HexToAddress("0x3333333333333333333333333333333333333333")
	c := New(l, self, nil)

	const sampleSize = 5
	if err := c.SampleAndIssue(context.Background(), sampleSize); err != nil {
		t.Fatalf("sample and issue: %v", err)
	}

	active, err := l.GetProviderActiveChallenges(context.Background(), owner)
	if err != nil {
		t.Fatalf("get active challenges: %v", err)
	}
	if len(active) == 0 {
		t.Fatal("expected at least one active challenge after a sample round")
	}
	if len(active) > sampleSize {
		t.Errorf("active challenges = %d, want at most %d", len(active), sampleSize)
	}
	for _, ch := range active {
		if ch.Commitment != root {
			t.Errorf("challenge commitment = %s, want %s", ch.Commitment.Hex(), root.Hex())
		}
		got, found, err := l.GetChunkChallenge(context.Background(), ch.Commitment, ch.ChunkIndex, ch.Provider)
		if err != nil || !found {
			t.Fatalf("get chunk challenge: found=%v err=%v", found, err)
		}
		if got.ChallengeID != ch.ChallengeID {
			t.Errorf("challenge id mismatch: %s != %s", got.ChallengeID, ch.ChallengeID)
		}
	}
}

// TestChallenger_ResponderClearsActiveChallenges covers a full round against
// a real Merkle-committed set of chunks: after a correct
// RespondToChunkChallenge, the challenge is no longer active and the
// provider's stake is untouched.
func TestChallenger_ResponderClearsActiveChallenges(t *testing.T) {
	const n, k = 4, 2
	chunks := make([]types.Chunk, n)
	leaves := make([][]byte, n)
	for i := range chunks {
		chunks[i] = types.Chunk{Index: uint16(i), Data: []byte{byte(i), byte(i + 10)}}
		h := chunks[i].Hash()
		leaves[i] = h[:]
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	root := common.BytesToHash(tree.Root())

	l := ledger.NewMemoryLedger()
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	seedCommitment(t, l, root, n, k, owner)
	l.RegisterProviderAt(owner, "owner", "http://owner.example", 1_000_000_000_000_000_000)

	self := common.HexToAddress("0x3333333333333333333333333333333333333333")
	if _, err := l.IssueChunkChallenge(context.Background(), self, root, 1, owner); err != nil {
		t.Fatalf("issue challenge: %v", err)
	}

	proof, err := tree.GenerateProof(1)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	if err := l.RespondToChunkChallenge(context.Background(), root, 1, chunks[1].Data, proof.ToWire()); err != nil {
		t.Fatalf("respond to challenge: %v", err)
	}

	active, err := l.GetProviderActiveChallenges(context.Background(), owner)
	if err != nil {
		t.Fatalf("get active challenges: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active challenges after a correct response = %d, want 0", len(active))
	}

	providers, err := l.GetActiveProviders(context.Background())
	if err != nil {
		t.Fatalf("get active providers: %v", err)
	}
	for _, p := range providers {
		if p.Addr == owner && p.StakedAmount != 1_000_000_000_000_000_000 {
			t.Errorf("stake moved on a correct response: %d", p.StakedAmount)
		}
	}
}

// TestChallenger_SlashExpiredChallenges covers the idempotent expiry sweep:
// a challenge past its deadline gets slashed exactly once even if the sweep
// runs twice.
func TestChallenger_SlashExpiredChallenges(t *testing.T) {
	l := ledger.NewMemoryLedger()
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	root := common.HexToHash("0xcccc")
	seedCommitment(t, l, root, 4, 2, owner)
	l.RegisterProviderAt(owner, "owner", "http://owner.example", 1_000_000_000_000_000_000)

	self := common.HexToAddress("0x3333333333333333333333333333333333333333")
	c := New(l, self, nil)

	if _, err := l.IssueChunkChallenge(context.Background(), self, root, 0, owner); err != nil {
		t.Fatalf("issue challenge: %v", err)
	}
	l.AdvanceBlock(ledger.ChallengeDeadlineBlocks + 1)

	if err := c.SlashExpiredChallenges(context.Background()); err != nil {
		t.Fatalf("slash expired challenges: %v", err)
	}
	providers, err := l.GetActiveProviders(context.Background())
	if err != nil {
		t.Fatalf("get active providers: %v", err)
	}
	var afterFirst uint64
	for _, p := range providers {
		if p.Addr == owner {
			afterFirst = p.StakedAmount
		}
	}
	if afterFirst != 900_000_000_000_000_000 {
		t.Errorf("staked amount after first slash = %d, want %d", afterFirst, uint64(900_000_000_000_000_000))
	}

	// Running the sweep again must be a no-op: the slashed challenge is no
	// longer listed as expired, so stake must not move a second time.
	if err := c.SlashExpiredChallenges(context.Background()); err != nil {
		t.Fatalf("second slash sweep: %v", err)
	}
	providers, err = l.GetActiveProviders(context.Background())
	if err != nil {
		t.Fatalf("get active providers: %v", err)
	}
	var afterSecond uint64
	for _, p := range providers {
		if p.Addr == owner {
			afterSecond = p.StakedAmount
		}
	}
	if afterSecond != afterFirst {
		t.Errorf("stake changed on second (idempotent) slash sweep: %d != %d", afterSecond, afterFirst)
	}
}
