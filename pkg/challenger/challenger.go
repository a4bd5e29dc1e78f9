// Package challenger implements the Challenger role of spec.md §4.6: a
// periodic sampler of random (commitment, chunk) pairs that issues
// on-ledger challenges, plus the idempotent sweep that slashes expired
// ones. Ported from original_source/challenger/src/challenger.rs's
// run_round/sample_challenges/slash_expired_challenges.
package challenger

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/metrics"
	"github.com/certen/poda/pkg/types"
)

// Challenger runs the sample-and-issue / slash-expired loop.
type Challenger struct {
	ledger ledger.Ledger
	self   common.Address
	logger *log.Logger
}

func New(l ledger.Ledger, self common.Address, logger *log.Logger) *Challenger {
	if logger == nil {
		logger = log.New(log.Writer(), "[challenger] ", log.LstdFlags)
	}
	return &Challenger{ledger: l, self: self, logger: logger}
}

// Run loops every interval until ctx is cancelled: slashExpiredChallenges
// then sampleAndIssue, in that order, per spec.md §4.6's state machine.
func (c *Challenger) Run(ctx context.Context, interval time.Duration, sampleSize int) {
	for {
		if err := c.SlashExpiredChallenges(ctx); err != nil {
			c.logger.Printf("slash sweep failed: %v", err)
		}
		if err := c.SampleAndIssue(ctx, sampleSize); err != nil {
			c.logger.Printf("sample-and-issue failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// SampleAndIssue draws sampleSize (commitment, chunk-index) pairs uniformly
// at random with replacement, resolves each pair's owning provider, and
// issues a challenge for it. Duplicate-challenge errors are expected and
// logged, not fatal (spec.md §4.6).
func (c *Challenger) SampleAndIssue(ctx context.Context, sampleSize int) error {
	commitments, err := c.ledger.GetCommitmentList(ctx)
	if err != nil {
		return err
	}
	if len(commitments) == 0 {
		return nil
	}

	for i := 0; i < sampleSize; i++ {
		root := commitments[rand.IntN(len(commitments))]
		rec, found, err := c.ledger.GetCommitmentInfo(ctx, root)
		if err != nil || !found || rec.TotalChunks == 0 {
			continue
		}
		index := uint16(rand.IntN(int(rec.TotalChunks)))

		owner, owned, err := c.ledger.GetChunkOwner(ctx, root, index)
		if err != nil || !owned {
			continue
		}
		available, err := c.ledger.IsChunkAvailable(ctx, root, index)
		if err != nil || !available {
			continue
		}

		if _, err := c.ledger.IssueChunkChallenge(ctx, c.self, root, index, owner); err != nil {
			if errors.Is(err, types.ErrDuplicateChallenge) {
				c.logger.Printf("challenge already active for chunk %d of %s, skipping", index, root.Hex())
				metrics.ChallengesIssued.WithLabelValues("duplicate").Inc()
				continue
			}
			c.logger.Printf("issue challenge for chunk %d of %s: %v", index, root.Hex(), err)
			metrics.ChallengesIssued.WithLabelValues("error").Inc()
			continue
		}
		metrics.ChallengesIssued.WithLabelValues("issued").Inc()
	}
	return nil
}

// SlashExpiredChallenges fetches this challenger's own expired-but-unslashed
// challenges and slashes each. The ledger associates expired-challenge
// lookups with the challenger identity, so a challenger only ever slashes
// what it previously issued.
func (c *Challenger) SlashExpiredChallenges(ctx context.Context) error {
	expired, err := c.ledger.GetProviderExpiredChallenges(ctx, c.self)
	if err != nil {
		return err
	}
	for _, ch := range expired {
		if err := c.ledger.SlashExpiredChallenge(ctx, ch.Commitment, ch.ChunkIndex, ch.Provider); err != nil {
			if errors.Is(err, types.ErrAlreadySlashed) {
				metrics.ChallengesSlashed.WithLabelValues("already_slashed").Inc()
				continue
			}
			c.logger.Printf("slash chunk %d of %s: %v", ch.ChunkIndex, ch.Commitment.Hex(), err)
			metrics.ChallengesSlashed.WithLabelValues("error").Inc()
			continue
		}
		metrics.ChallengesSlashed.WithLabelValues("slashed").Inc()
	}
	return nil
}
