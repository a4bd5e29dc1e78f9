// Package provider implements the storage-provider role: the verification
// gate that accepts chunks from the dispenser, the polymorphic chunk store
// that persists them, the HTTP surface, and the challenge responder loop.
package provider

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// StoredChunk is exactly what the local store keeps per (root, index): the
// chunk bytes and the Merkle proof that let the responder answer a
// challenge without recomputing anything.
type StoredChunk struct {
	Chunk types.Chunk       `json:"chunk"`
	Proof *merkle.WireProof `json:"proof"`
}

// ChunkStore is the polymorphic persistence capability described in the
// design notes: file-backed in production, in-memory for tests. Concurrent
// writers of the same key are tolerated via atomic replace semantics.
type ChunkStore interface {
	Store(ctx context.Context, root common.Hash, chunk types.Chunk, proof *merkle.WireProof) error
	Retrieve(ctx context.Context, root common.Hash, index uint16) (*StoredChunk, bool, error)
	Exists(ctx context.Context, root common.Hash, index uint16) (bool, error)
	Delete(ctx context.Context, root common.Hash, index uint16) error
	ListChunks(ctx context.Context, root common.Hash) ([]uint16, error)
}
