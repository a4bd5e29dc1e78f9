package provider

import (
	"context"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/metrics"
)

// Responder is the periodic loop of spec.md §4.7: enumerate this
// provider's active challenges, answer each with the chunk data and Merkle
// path it holds locally, and log-and-skip anything that fails.
type Responder struct {
	ledger ledger.Ledger
	store  ChunkStore
	self   common.Address
	logger *log.Logger
}

func NewResponder(l ledger.Ledger, store ChunkStore, self common.Address, logger *log.Logger) *Responder {
	if logger == nil {
		logger = log.New(log.Writer(), "[responder] ", log.LstdFlags)
	}
	return &Responder{ledger: l, store: store, self: self, logger: logger}
}

// Run loops every interval until ctx is cancelled. Cancellation is
// cooperative: it is only observed at the sleep boundary, matching spec.md
// §5's "cancellable only at sleep boundaries" rule.
func (r *Responder) Run(ctx context.Context, interval time.Duration) {
	for {
		if err := r.Tick(ctx); err != nil {
			r.logger.Printf("responder tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Tick answers every active challenge addressed to this provider once.
func (r *Responder) Tick(ctx context.Context) error {
	challenges, err := r.ledger.GetProviderActiveChallenges(ctx, r.self)
	if err != nil {
		return err
	}
	for _, ch := range challenges {
		r.respond(ctx, ch.Commitment, ch.ChunkIndex)
	}
	return nil
}

func (r *Responder) respond(ctx context.Context, root common.Hash, index uint16) {
	stored, found, err := r.store.Retrieve(ctx, root, index)
	if err != nil {
		r.logger.Printf("responder: retrieve chunk %d of %s: %v", index, root.Hex(), err)
		metrics.ChallengeResponses.WithLabelValues("store_error").Inc()
		return
	}
	if !found {
		// Submitting wrong data would cause slashing (spec.md §4.5/§4.7), so
		// a lost chunk is logged and simply not responded to.
		r.logger.Printf("responder: lost chunk %d of %s, cannot respond", index, root.Hex())
		metrics.ChallengeResponses.WithLabelValues("lost_chunk").Inc()
		return
	}

	if err := r.ledger.RespondToChunkChallenge(ctx, root, index, stored.Chunk.Data, stored.Proof); err != nil {
		r.logger.Printf("responder: respond to challenge for chunk %d of %s: %v", index, root.Hex(), err)
		metrics.ChallengeResponses.WithLabelValues("ledger_error").Inc()
		return
	}
	metrics.ChallengeResponses.WithLabelValues("resolved").Inc()
}
