package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// CommitmentRecord mirrors the ledger's view of one submitted blob.
type CommitmentRecord struct {
	Root            common.Hash
	Size            uint32
	TotalChunks     uint16 // N
	RequiredChunks  uint16 // K
	KzgCommitment   [48]byte
	AvailableChunks uint32
	ChunkOwner      map[uint16]common.Address // assigned at first attestation; immutable thereafter
}

// IsRecoverable implements the recoverability predicate: availableChunks >= K.
func (c *CommitmentRecord) IsRecoverable() bool {
	return c.AvailableChunks >= uint32(c.RequiredChunks)
}

// ProviderRecord is a registered storage provider.
type ProviderRecord struct {
	Name                   string
	URL                    string
	Addr                   common.Address
	RegisteredAt           uint64
	StakedAmount           uint64 // wei
	ChallengeCount         uint64
	ChallengeSuccessCount  uint64
	Active                 bool
}

// ChallengeState is the lifecycle state of a ChallengeRecord.
type ChallengeState int

const (
	ChallengeActive ChallengeState = iota
	ChallengeResolved
	ChallengeExpiredSlashed
)

func (s ChallengeState) String() string {
	switch s {
	case ChallengeActive:
		return "active"
	case ChallengeResolved:
		return "resolved"
	case ChallengeExpiredSlashed:
		return "expired-slashed"
	default:
		return "unknown"
	}
}

// ChallengeRecord is keyed by (root, index, provider).
type ChallengeRecord struct {
	ChallengeID string
	Challenger  common.Address
	Commitment  common.Hash
	ChunkIndex  uint16
	Provider    common.Address
	Deadline    uint64 // block number
	State       ChallengeState
}
