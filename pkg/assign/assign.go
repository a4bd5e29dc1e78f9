// Package assign implements the stake-weighted deterministic chunk-to-
// provider assignment used to route dispersal. It is a pure function of
// (root, providers, stakes) — the resulting routing is only a hint; ledger
// ownership is first-attester-wins.
package assign

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/poda/pkg/types"
)

// Assignment maps provider address to the chunk indices routed to it.
type Assignment map[common.Address][]uint16

// Assign computes, for each chunk index in [0, n), the provider selected by
// the stake-weighted deterministic rule:
//
//  1. seed = Keccak256(root || decimal_ascii(index)) — the index is hashed
//     as its base-10 ASCII representation, NOT its binary encoding. This is
//     unusual and must be preserved bit-exactly to reproduce assignments
//     cross-implementation.
//  2. r = little-endian uint64 of seed[0:8].
//  3. target = r mod S, where S is the sum of all stakes.
//  4. Walk providers in the given order; pick the first whose cumulative
//     stake strictly exceeds target.
func Assign(root common.Hash, providers []*types.ProviderRecord, n uint16) (Assignment, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("assign: no providers available")
	}
	var total uint64
	for _, p := range providers {
		total += p.StakedAmount
	}
	if total == 0 {
		return nil, fmt.Errorf("assign: total stake is zero")
	}

	out := make(Assignment)
	for i := uint16(0); i < n; i++ {
		provider := selectProvider(root, i, providers, total)
		out[provider] = append(out[provider], i)
	}
	return out, nil
}

func selectProvider(root common.Hash, index uint16, providers []*types.ProviderRecord, total uint64) common.Address {
	seedInput := append(append([]byte{}, root[:]...), []byte(strconv.FormatUint(uint64(index), 10))...)
	seed := crypto.Keccak256(seedInput)
	r := binary.LittleEndian.Uint64(seed[:8])
	target := r % total

	var cumulative uint64
	for _, p := range providers {
		cumulative += p.StakedAmount
		if cumulative > target {
			return p.Addr
		}
	}
	// Floating point / overflow guard: fall back to the last provider.
	return providers[len(providers)-1].Addr
}
