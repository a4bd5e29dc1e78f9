package types

import "errors"

// Dispenser errors — surfaced to the caller, never retried.
var (
	ErrTooSmall             = errors.New("blob too small")
	ErrDuplicateCommitment  = errors.New("duplicate commitment")
	ErrNotRecoverable       = errors.New("Not enough chunks retrieved to reconstruct data: commitment is not recoverable")
	ErrInsufficientShards   = errors.New("Not enough chunks retrieved to reconstruct data: insufficient shards to decode")
	ErrInsufficientDispersal = errors.New("insufficient dispersal: fewer than K chunks accepted")
	ErrNoActiveProviders    = errors.New("no active providers registered")
)

// Provider gate errors — 4xx to caller, no persistence side effects.
var (
	ErrShapeMismatch     = errors.New("shape mismatch: chunks and merkle proofs differ in length")
	ErrUnknownCommitment = errors.New("unknown commitment")
	ErrMerkleInvalid     = errors.New("merkle proof invalid")
	ErrKzgInvalid        = errors.New("kzg proof invalid")
)

// Post-persistence / transport errors.
var (
	ErrAttestationFailed = errors.New("attestation failed")
	ErrProviderTransport  = errors.New("provider transport error")
	ErrLedgerTransport    = errors.New("ledger transport error")
)

// Challenger errors — expected races, logged and skipped by callers.
var (
	ErrDuplicateChallenge = errors.New("duplicate challenge")
	ErrAlreadySlashed     = errors.New("already slashed")
)
