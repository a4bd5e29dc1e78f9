package assign

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/types"
)

func providers100_200_300() []*types.ProviderRecord {
	return []*types.ProviderRecord{
		{Addr: common.HexToAddress("0x01"), StakedAmount: 100},
		{Addr: common.HexToAddress("0x02"), StakedAmount: 200},
		{Addr: common.HexToAddress("0x03"), StakedAmount: 300},
	}
}

func TestAssign_Deterministic(t *testing.T) {
	root := common.HexToHash("0xdeadbeef")
	providers := providers100_200_300()

	a1, err := Assign(root, providers, 18)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	a2, err := Assign(root, providers, 18)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	var total1, total2 int
	for addr, indices := range a1 {
		total1 += len(indices)
		if len(a2[addr]) != len(indices) {
			t.Errorf("non-deterministic assignment for %s: %d vs %d", addr.Hex(), len(indices), len(a2[addr]))
		}
	}
	for _, indices := range a2 {
		total2 += len(indices)
	}
	if total1 != 18 || total2 != 18 {
		t.Errorf("assignment must sum to N=18, got %d and %d", total1, total2)
	}
}

func TestAssign_StakeWeightedDistribution(t *testing.T) {
	providers := providers100_200_300()
	const nPerRoot = 600
	const rounds = 1000

	counts := make(map[common.Address]int)
	for i := 0; i < rounds; i++ {
		root := common.BigToHash(big.NewInt(int64(i)))
		a, err := Assign(root, providers, nPerRoot)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		for addr, indices := range a {
			counts[addr] += len(indices)
		}
	}

	total := rounds * nPerRoot
	expected := map[common.Address]float64{
		providers[0].Addr: 100.0 / 600.0,
		providers[1].Addr: 200.0 / 600.0,
		providers[2].Addr: 300.0 / 600.0,
	}
	for addr, wantShare := range expected {
		gotShare := float64(counts[addr]) / float64(total)
		diff := gotShare - wantShare
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.2*wantShare {
			t.Errorf("provider %s share = %.4f, want ~%.4f (within 20%%)", addr.Hex(), gotShare, wantShare)
		}
	}
}
