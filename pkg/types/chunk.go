// Package types holds the shared domain model: chunks, commitments, providers
// and challenges, plus the Keccak/ABI chunk-hashing rule every other package
// depends on.
package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Chunk is one of the N erasure-coded shards of a blob.
type Chunk struct {
	Index uint16
	Data  []byte
}

var chunkHashArgs = mustChunkHashArgs()

func mustChunkHashArgs() abi.Arguments {
	uint16Ty, err := abi.NewType("uint16", "", nil)
	if err != nil {
		panic(err)
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Type: uint16Ty},
		{Type: bytes32Ty},
	}
}

// Hash computes hash(chunk) = keccak256(abi_encode(uint16 index, bytes32
// keccak256(data))). The ABI-encoded form is load-bearing: provider
// verification and the on-ledger Merkle verifier depend on byte-identical
// reproduction of this encoding.
func (c Chunk) Hash() common.Hash {
	dataHash := crypto.Keccak256Hash(c.Data)
	packed, err := chunkHashArgs.Pack(c.Index, dataHash)
	if err != nil {
		// Both argument types are fixed-width and always pack successfully.
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// KzgScalarLE returns the little-endian uint32 held in the first 4 bytes of
// hash(chunk), the raw material for the KZG polynomial's y-value at this
// chunk's index (see kzg.ScalarFromHash).
func (c Chunk) KzgScalarLE() uint32 {
	h := c.Hash()
	return binary.LittleEndian.Uint32(h[:4])
}
