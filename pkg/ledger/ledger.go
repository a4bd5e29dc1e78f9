// Package ledger defines the capability abstraction every other component
// depends on instead of a concrete RPC client: the dispenser, the provider
// gate, and the challenger all take a Ledger interface so their logic is
// testable against an in-memory double with no network (see MemoryLedger).
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// Ledger is the authoritative registry of providers, commitments, per-chunk
// ownership, attestations, and challenges. It is the single external
// collaborator every other package talks to; no package reaches the network
// any other way.
type Ledger interface {
	RegisterProvider(ctx context.Context, name, url string, stake uint64) error

	// SubmitCommitment inserts a new commitment record. Returns
	// types.ErrDuplicateCommitment if root is already present.
	SubmitCommitment(ctx context.Context, root common.Hash, size uint32, n, k uint16, kzg48 [48]byte) error

	// SubmitChunkAttestations is first-caller-wins per index; it increments
	// availableChunks only for indices not already owned by another provider.
	SubmitChunkAttestations(ctx context.Context, root common.Hash, provider common.Address, indices []uint16) error

	GetCommitmentInfo(ctx context.Context, root common.Hash) (*types.CommitmentRecord, bool, error)
	GetProviderChunks(ctx context.Context, root common.Hash, provider common.Address) ([]uint16, error)
	GetChunkOwner(ctx context.Context, root common.Hash, index uint16) (common.Address, bool, error)
	IsChunkAvailable(ctx context.Context, root common.Hash, index uint16) (bool, error)
	GetCommitmentList(ctx context.Context) ([]common.Hash, error)
	GetActiveProviders(ctx context.Context) ([]*types.ProviderRecord, error)

	// IssueChunkChallenge creates a challenge keyed by (root, index,
	// provider). Returns types.ErrDuplicateChallenge if one is already active.
	IssueChunkChallenge(ctx context.Context, challenger common.Address, root common.Hash, index uint16, provider common.Address) (string, error)

	// RespondToChunkChallenge verifies the Merkle path on-ledger: wrong data
	// or a bad proof slashes the provider; success marks the challenge resolved.
	RespondToChunkChallenge(ctx context.Context, root common.Hash, index uint16, chunkData []byte, proof *merkle.WireProof) error

	GetChunkChallenge(ctx context.Context, root common.Hash, index uint16, provider common.Address) (*types.ChallengeRecord, bool, error)
	GetProviderActiveChallenges(ctx context.Context, provider common.Address) ([]*types.ChallengeRecord, error)
	GetProviderExpiredChallenges(ctx context.Context, challenger common.Address) ([]*types.ChallengeRecord, error)

	// SlashExpiredChallenge slashes provider for an expired active
	// challenge. Returns types.ErrAlreadySlashed if already resolved.
	SlashExpiredChallenge(ctx context.Context, root common.Hash, index uint16, provider common.Address) error

	// VerifyChunkProof is the on-ledger Merkle verifier, byte-compatible
	// with pkg/merkle.VerifyProof.
	VerifyChunkProof(ctx context.Context, proof *merkle.WireProof, root common.Hash, index uint16, data []byte) (bool, error)
}
