package provider

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/metrics"
	"github.com/certen/poda/pkg/types"
)

// Gate is the storage-provider verification gate (spec.md §4.5): it
// validates incoming chunks against both the Merkle root and the KZG
// commitment recorded on the ledger, persists only after every check
// passes, and then attests on-ledger. No chunk is ever persisted on a
// failed verification.
type Gate struct {
	ledger ledger.Ledger
	store  ChunkStore
	self   common.Address
	kzg    *kzg.KZG // nil means use the process-wide kzg.Instance()
}

func NewGate(l ledger.Ledger, store ChunkStore, self common.Address) *Gate {
	return &Gate{ledger: l, store: store, self: self}
}

// NewGateWithKZG binds the gate to a specific KZG instance instead of the
// process-wide singleton — used by tests that construct their own toy CRS.
func NewGateWithKZG(l ledger.Ledger, store ChunkStore, self common.Address, k *kzg.KZG) *Gate {
	return &Gate{ledger: l, store: store, self: self, kzg: k}
}

func (g *Gate) kzgInstance() *kzg.KZG {
	if g.kzg != nil {
		return g.kzg
	}
	return kzg.Instance()
}

// BatchStoreRequest is the gate's input: the chunks a dispenser is
// dispersing to this provider, the single KZG batch proof covering all of
// them, and one Merkle proof per chunk.
type BatchStoreRequest struct {
	Root          common.Hash
	Chunks        []types.Chunk
	KzgBatchProof kzg.KzgProof
	MerkleProofs  []*merkle.Proof
}

// BatchStore runs the full verify-then-commit pipeline of spec.md §4.5:
// shape check, per-chunk Merkle verification, one batch KZG verification,
// persistence, and on-ledger attestation — in that order, with no
// persistence side effect on any verification failure.
func (g *Gate) BatchStore(ctx context.Context, req BatchStoreRequest) (accepted int, err error) {
	if len(req.Chunks) != len(req.MerkleProofs) {
		return 0, types.ErrShapeMismatch
	}

	rec, found, err := g.ledger.GetCommitmentInfo(ctx, req.Root)
	if err != nil {
		return 0, fmt.Errorf("gate: %w", err)
	}
	if !found {
		return 0, types.ErrUnknownCommitment
	}

	for i, chunk := range req.Chunks {
		leaf := chunk.Hash()
		if !merkle.VerifyProof(leaf[:], req.MerkleProofs[i], req.Root[:]) {
			metrics.ChunksStored.WithLabelValues("merkle_invalid").Add(float64(len(req.Chunks)))
			return 0, fmt.Errorf("gate: chunk %d: %w", chunk.Index, types.ErrMerkleInvalid)
		}
	}

	kzgCommitment, err := kzg.CommitmentFromBytes(rec.KzgCommitment[:])
	if err != nil {
		return 0, fmt.Errorf("gate: decode ledger kzg commitment: %w", err)
	}
	zs := make([]fr.Element, len(req.Chunks))
	ys := make([]fr.Element, len(req.Chunks))
	for i, chunk := range req.Chunks {
		zs[i].SetUint64(uint64(chunk.Index))
		ys[i] = kzg.ScalarFromHash(chunk)
	}
	ok, err := g.kzgInstance().VerifyMulti(kzgCommitment, zs, ys, req.KzgBatchProof)
	if err != nil {
		return 0, fmt.Errorf("gate: kzg verify: %w", err)
	}
	if !ok {
		metrics.ChunksStored.WithLabelValues("kzg_invalid").Add(float64(len(req.Chunks)))
		return 0, types.ErrKzgInvalid
	}

	indices := make([]uint16, 0, len(req.Chunks))
	for i, chunk := range req.Chunks {
		if err := g.store.Store(ctx, req.Root, chunk, req.MerkleProofs[i].ToWire()); err != nil {
			return 0, fmt.Errorf("gate: persist chunk %d: %w", chunk.Index, err)
		}
		indices = append(indices, chunk.Index)
		metrics.ChunksStored.WithLabelValues("accepted").Inc()
	}

	if err := g.ledger.SubmitChunkAttestations(ctx, req.Root, g.self, indices); err != nil {
		// Chunks are already persisted; the caller (or a future batch-store
		// retry) recovers the attestation on a subsequent attempt.
		return len(indices), fmt.Errorf("%w: %v", types.ErrAttestationFailed, err)
	}
	return len(indices), nil
}

// BatchRetrieve returns a parallel vector of optional stored chunks for the
// requested indices. Per spec.md §4.5, the caller decides 404 vs 200 based
// on whether at least one index was present.
func (g *Gate) BatchRetrieve(ctx context.Context, root common.Hash, indices []uint16) ([]*StoredChunk, error) {
	out := make([]*StoredChunk, len(indices))
	anyFound := false
	for i, idx := range indices {
		sc, found, err := g.store.Retrieve(ctx, root, idx)
		if err != nil {
			return nil, fmt.Errorf("gate: retrieve chunk %d: %w", idx, err)
		}
		if found {
			out[i] = sc
			anyFound = true
			metrics.ChunksRetrieved.WithLabelValues("hit").Inc()
		} else {
			metrics.ChunksRetrieved.WithLabelValues("miss").Inc()
		}
	}
	if !anyFound {
		return nil, fmt.Errorf("gate: no requested indices present")
	}
	return out, nil
}

// Delete is the operator/testing hard-delete tool (spec.md §4.5): it
// carries no auth since the spec itself names it an operator/testing tool,
// matching the Non-goals' exclusion of access control.
func (g *Gate) Delete(ctx context.Context, root common.Hash, indices []uint16) error {
	for _, idx := range indices {
		if err := g.store.Delete(ctx, root, idx); err != nil {
			return fmt.Errorf("gate: delete chunk %d: %w", idx, err)
		}
	}
	return nil
}

// List returns every chunk index this provider currently holds for root.
func (g *Gate) List(ctx context.Context, root common.Hash) ([]uint16, error) {
	return g.store.ListChunks(ctx, root)
}
