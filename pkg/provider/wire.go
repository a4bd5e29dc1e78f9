package provider

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// WireChunk is the hex-encoded transport form of a types.Chunk.
type WireChunk struct {
	Index uint16 `json:"index"`
	Data  string `json:"data"` // hex
}

func chunkToWire(c types.Chunk) WireChunk {
	return WireChunk{Index: c.Index, Data: hex.EncodeToString(c.Data)}
}

func chunkFromWire(w WireChunk) (types.Chunk, error) {
	data, err := hex.DecodeString(w.Data)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("invalid hex chunk data: %w", err)
	}
	return types.Chunk{Index: w.Index, Data: data}, nil
}

// BatchStoreWireRequest is the POST /batch-store request body (spec.md §6.3).
type BatchStoreWireRequest struct {
	Commitment   string              `json:"commitment"` // hex root
	Chunks       []WireChunk         `json:"chunks"`
	KzgProof     string              `json:"kzgProof"` // hex, 48 bytes compressed
	MerkleProofs []*merkle.WireProof `json:"merkleProofs"`
}

// BatchStoreWireResponse is the POST /batch-store response body.
type BatchStoreWireResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BatchRetrieveWireRequest is the POST /batch-retrieve request body.
type BatchRetrieveWireRequest struct {
	Commitment string   `json:"commitment"`
	Indices    []uint16 `json:"indices"`
}

// BatchRetrieveWireResponse is the POST /batch-retrieve response body.
type BatchRetrieveWireResponse struct {
	Chunks []*WireChunk         `json:"chunks"`
	Proofs []*merkle.WireProof  `json:"proofs"`
}

// DeleteWireRequest is the POST /delete request body.
type DeleteWireRequest struct {
	Commitment string   `json:"commitment"`
	Indices    []uint16 `json:"indices"`
}

// DeleteWireResponse is the POST /delete response body.
type DeleteWireResponse struct {
	Success bool `json:"success"`
}

// ListWireResponse is the GET /list response body.
type ListWireResponse struct {
	Indices []uint16 `json:"indices"`
}

func parseRoot(hexRoot string) (common.Hash, error) {
	raw, err := hex.DecodeString(trimHexPrefix(hexRoot))
	if err != nil || len(raw) != 32 {
		return common.Hash{}, fmt.Errorf("invalid commitment root %q", hexRoot)
	}
	return common.BytesToHash(raw), nil
}

func decodeKzgProof(hexProof string) (kzg.KzgProof, error) {
	raw, err := hex.DecodeString(trimHexPrefix(hexProof))
	if err != nil {
		return kzg.KzgProof{}, fmt.Errorf("invalid hex kzg proof: %w", err)
	}
	return kzg.ProofFromBytes(raw)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
