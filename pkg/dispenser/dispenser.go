package dispenser

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/poda/pkg/assign"
	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/metrics"
	"github.com/certen/poda/pkg/rs"
	"github.com/certen/poda/pkg/types"
)

// MinDataSize is the smallest blob submit() will accept (spec.md §4.4).
const MinDataSize = 16

// DefaultPollInterval is the fixed retry interval submit() uses while
// waiting for availableChunks >= K on the ledger.
const DefaultPollInterval = time.Second

// Dispenser is the dispersal/retrieval engine: it owns encoding, commitment
// computation, assignment, per-provider dispatch, decoding, and the
// polling loop that waits for on-ledger availability.
type Dispenser struct {
	ledger       ledger.Ledger
	client       *ProviderClient
	n, k         int
	pollInterval time.Duration
	logger       *log.Logger
	kzg          *kzg.KZG // nil means use the process-wide kzg.Instance()
}

// New builds a dispenser for a fixed (N, K) erasure-coding configuration.
func New(l ledger.Ledger, client *ProviderClient, n, k int, pollInterval time.Duration, logger *log.Logger) *Dispenser {
	if logger == nil {
		logger = log.New(log.Writer(), "[dispenser] ", log.LstdFlags)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Dispenser{ledger: l, client: client, n: n, k: k, pollInterval: pollInterval, logger: logger}
}

// NewWithKZG binds the dispenser to a specific KZG instance instead of the
// process-wide singleton — used by tests that construct their own toy CRS.
func NewWithKZG(l ledger.Ledger, client *ProviderClient, n, k int, pollInterval time.Duration, logger *log.Logger, k2 *kzg.KZG) *Dispenser {
	d := New(l, client, n, k, pollInterval, logger)
	d.kzg = k2
	return d
}

func (d *Dispenser) kzgInstance() *kzg.KZG {
	if d.kzg != nil {
		return d.kzg
	}
	return kzg.Instance()
}

// SubmitResult is the outcome of Submit: the blob's commitment root and the
// routing hint computed for each provider.
type SubmitResult struct {
	Root        common.Hash
	Assignments assign.Assignment
}

// Submit runs the full dispersal pipeline of spec.md §4.4: validate size,
// encode, commit (Merkle + KZG), register on the ledger, assign and
// dispatch chunks to providers, then block until the ledger reports
// availableChunks >= K.
func (d *Dispenser) Submit(ctx context.Context, blob []byte) (*SubmitResult, error) {
	requestID := uuid.NewString()
	if len(blob) < MinDataSize {
		metrics.DispersalsTotal.WithLabelValues("too_small").Inc()
		return nil, types.ErrTooSmall
	}

	providers, err := d.ledger.GetActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", requestID, err)
	}
	if len(providers) == 0 {
		metrics.DispersalsTotal.WithLabelValues("no_providers").Inc()
		return nil, types.ErrNoActiveProviders
	}

	codec, err := rs.NewCodec(d.n, d.k)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", requestID, err)
	}
	chunks, err := codec.Encode(blob)
	if err != nil {
		return nil, fmt.Errorf("submit %s: encode: %w", requestID, err)
	}

	leaves := make([][]byte, len(chunks))
	for i, c := range chunks {
		h := c.Hash()
		leaves[i] = h[:]
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("submit %s: build merkle tree: %w", requestID, err)
	}
	root := common.BytesToHash(tree.Root())

	poly := kzg.BuildPolynomial(chunks)
	kzgCommitment, err := d.kzgInstance().Commit(poly)
	if err != nil {
		return nil, fmt.Errorf("submit %s: kzg commit: %w", requestID, err)
	}
	kzgBytes := kzgCommitment.Bytes()

	if err := d.ledger.SubmitCommitment(ctx, root, uint32(len(blob)), uint16(d.n), uint16(d.k), kzgBytes); err != nil {
		metrics.DispersalsTotal.WithLabelValues("duplicate_or_ledger_error").Inc()
		return nil, fmt.Errorf("submit %s: %w", requestID, err)
	}

	assignment, err := assign.Assign(root, providers, uint16(d.n))
	if err != nil {
		return nil, fmt.Errorf("submit %s: assign: %w", requestID, err)
	}
	providersByAddr := make(map[common.Address]*types.ProviderRecord, len(providers))
	for _, p := range providers {
		providersByAddr[p.Addr] = p
	}

	accepted := d.disperse(ctx, requestID, root, chunks, tree, poly, assignment, providersByAddr)
	if accepted < d.k {
		metrics.DispersalsTotal.WithLabelValues("insufficient_dispersal").Inc()
		return nil, fmt.Errorf("submit %s: %w (accepted %d of %d required)", requestID, types.ErrInsufficientDispersal, accepted, d.k)
	}

	if err := d.waitForAvailability(ctx, root); err != nil {
		return nil, fmt.Errorf("submit %s: %w", requestID, err)
	}

	metrics.DispersalsTotal.WithLabelValues("success").Inc()
	return &SubmitResult{Root: root, Assignments: assignment}, nil
}

// disperse dispatches each provider's assigned chunks in one batch-store
// call apiece, carrying on past per-provider failures (spec.md §4.4 step 6)
// and returning the total count of chunks accepted across all providers.
func (d *Dispenser) disperse(ctx context.Context, requestID string, root common.Hash, chunks []types.Chunk, tree *merkle.Tree, poly []fr.Element, assignment assign.Assignment, providersByAddr map[common.Address]*types.ProviderRecord) int {
	accepted := 0
	for addr, indices := range assignment {
		p, ok := providersByAddr[addr]
		if !ok || len(indices) == 0 {
			continue
		}
		provChunks := make([]types.Chunk, len(indices))
		provProofs := make([]*merkle.Proof, len(indices))
		zs := make([]fr.Element, len(indices))
		for i, idx := range indices {
			provChunks[i] = chunks[idx]
			proof, err := tree.GenerateProof(int(idx))
			if err != nil {
				d.logger.Printf("submit %s: provider %s: merkle proof for chunk %d: %v", requestID, p.Name, idx, err)
				continue
			}
			provProofs[i] = proof
			zs[i].SetUint64(uint64(idx))
		}

		batchProof, err := d.kzgInstance().OpenMulti(poly, zs)
		if err != nil {
			d.logger.Printf("submit %s: provider %s: kzg batch open: %v", requestID, p.Name, err)
			continue
		}

		n, err := d.client.BatchStore(ctx, p.URL, [32]byte(root), provChunks, provProofs, batchProof)
		if err != nil {
			d.logger.Printf("submit %s: provider %s: %v", requestID, p.Name, err)
			continue
		}
		accepted += n
	}
	return accepted
}

func (d *Dispenser) waitForAvailability(ctx context.Context, root common.Hash) error {
	for {
		rec, found, err := d.ledger.GetCommitmentInfo(ctx, root)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrLedgerTransport, err)
		}
		if found && rec.IsRecoverable() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

// Retrieve runs spec.md §4.4's retrieval pipeline: look up the commitment,
// pull chunks from every provider that owns some, decode from any K
// present shards, and truncate to the original size.
func (d *Dispenser) Retrieve(ctx context.Context, root common.Hash) ([]byte, error) {
	rec, found, err := d.ledger.GetCommitmentInfo(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerTransport, err)
	}
	if !found || !rec.IsRecoverable() {
		metrics.RetrievalsTotal.WithLabelValues("not_recoverable").Inc()
		return nil, types.ErrNotRecoverable
	}

	providers, err := d.ledger.GetActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerTransport, err)
	}

	shards := make([][]byte, rec.TotalChunks)
	for _, p := range providers {
		indices, err := d.ledger.GetProviderChunks(ctx, root, p.Addr)
		if err != nil || len(indices) == 0 {
			continue
		}
		wireChunks, err := d.client.BatchRetrieve(ctx, p.URL, [32]byte(root), indices)
		if err != nil {
			d.logger.Printf("retrieve %s: provider %s: %v", root.Hex(), p.Name, err)
			continue
		}
		for _, wc := range wireChunks {
			if wc == nil {
				continue
			}
			data, err := hex.DecodeString(wc.Data)
			if err != nil || int(wc.Index) >= len(shards) {
				continue
			}
			shards[wc.Index] = data
		}
	}

	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < int(rec.RequiredChunks) {
		metrics.RetrievalsTotal.WithLabelValues("insufficient_shards").Inc()
		return nil, types.ErrInsufficientShards
	}

	codec, err := rs.NewCodec(int(rec.TotalChunks), int(rec.RequiredChunks))
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", root.Hex(), err)
	}
	blob, err := codec.Decode(shards, int(rec.Size))
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("decode_failed").Inc()
		return nil, fmt.Errorf("retrieve %s: %w", root.Hex(), err)
	}
	metrics.RetrievalsTotal.WithLabelValues("success").Inc()
	return blob, nil
}
