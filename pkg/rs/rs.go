// Package rs wraps GF(2^8) Reed-Solomon erasure coding for the dispersal and
// retrieval engines. Data shards 0..K-1 carry the blob; parity shards K..N-1
// let retrieval tolerate the loss of any N-K shards.
package rs

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
	"github.com/certen/poda/pkg/types"
)

// Codec is a fixed (N, K) Reed-Solomon configuration.
type Codec struct {
	n, k int
	enc  reedsolomon.Encoder
}

// NewCodec builds a codec for K data shards and N-K parity shards.
func NewCodec(n, k int) (*Codec, error) {
	if k <= 0 || n <= k {
		return nil, fmt.Errorf("rs: invalid shard configuration n=%d k=%d", n, k)
	}
	enc, err := reedsolomon.New(k, n-k)
	if err != nil {
		return nil, fmt.Errorf("rs: construct encoder: %w", err)
	}
	return &Codec{n: n, k: k, enc: enc}, nil
}

// ShardWidth returns ceil(L/K) rounded up to the next even byte — the
// width every shard in an encoding of an L-byte blob must have. The
// even-width rule keeps compatibility with the KZG scalar-packing
// assumption downstream and must not be relaxed.
func ShardWidth(l, k int) int {
	w := (l + k - 1) / k
	if w%2 != 0 {
		w++
	}
	if w == 0 {
		w = 2
	}
	return w
}

// Encode erasure-encodes blob into exactly N chunks of identical width.
func (c *Codec) Encode(blob []byte) ([]types.Chunk, error) {
	w := ShardWidth(len(blob), c.k)
	shards := make([][]byte, c.n)
	for i := 0; i < c.k; i++ {
		shard := make([]byte, w)
		start := i * w
		if start < len(blob) {
			end := start + w
			if end > len(blob) {
				end = len(blob)
			}
			copy(shard, blob[start:end])
		}
		shards[i] = shard
	}
	for i := c.k; i < c.n; i++ {
		shards[i] = make([]byte, w)
	}
	if err := c.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("rs: encode: %w", err)
	}
	chunks := make([]types.Chunk, c.n)
	for i := 0; i < c.n; i++ {
		chunks[i] = types.Chunk{Index: uint16(i), Data: shards[i]}
	}
	return chunks, nil
}

// Decode reconstructs the original blob from a sparse vector of shards
// (nil where a chunk is missing) and the original byte length. Returns
// types.ErrInsufficientShards if fewer than K shards are present.
func (c *Codec) Decode(shards [][]byte, size int) ([]byte, error) {
	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < c.k {
		return nil, types.ErrInsufficientShards
	}
	work := make([][]byte, c.n)
	copy(work, shards)
	if err := c.enc.Reconstruct(work); err != nil {
		return nil, fmt.Errorf("rs: reconstruct: %w", err)
	}
	out := make([]byte, 0, size)
	for i := 0; i < c.k; i++ {
		out = append(out, work[i]...)
	}
	if len(out) < size {
		return nil, fmt.Errorf("rs: reconstructed data shorter than claimed size")
	}
	return out[:size], nil
}
