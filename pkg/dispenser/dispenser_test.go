package dispenser

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/provider"
	"github.com/certen/poda/pkg/types"
)

// testProvider is one storage provider's httptest harness: a Gate over a
// MemStore, served through provider.Server, with its own signing address.
type testProvider struct {
	addr common.Address
	srv  *httptest.Server
}

func newTestProviders(t *testing.T, l *ledger.MemoryLedger, k *kzg.KZG, count int, stake uint64) []*testProvider {
	t.Helper()
	out := make([]*testProvider, count)
	for i := 0; i < count; i++ {
		addr := common.BytesToAddress([]byte{byte(i + 1)})
		store := provider.NewMemStore()
		gate := provider.NewGateWithKZG(l, store, addr, k)
		ps := provider.NewServer(gate, store, nil)
		srv := httptest.NewServer(ps.Mux())
		t.Cleanup(srv.Close)
		l.RegisterProviderAt(addr, srv.URL, srv.URL, stake)
		out[i] = &testProvider{addr: addr, srv: srv}
	}
	return out
}

func newDispenserForTest(l *ledger.MemoryLedger, n, k int, degree int) *Dispenser {
	kz := kzg.New(kzg.NewInsecureTestCRS(degree))
	client := NewProviderClient(5*time.Second, nil)
	return NewWithKZG(l, client, n, k, 5*time.Millisecond, nil, kz)
}

// TestDispenser_HappyPath covers the 3-provider, evenly-staked, fully
// available scenario: submit then retrieve must return the exact blob.
func TestDispenser_HappyPath(t *testing.T) {
	const n, k = 18, 12
	l := ledger.NewMemoryLedger()
	d := newDispenserForTest(l, n, k, n-1)
	newTestProviders(t, l, d.kzgInstance(), 3, 1_000_000_000_000_000_000)

	blob := []byte(strings.Repeat("x", 120))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := d.Submit(ctx, blob)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec, found, err := l.GetCommitmentInfo(ctx, result.Root)
	if err != nil || !found {
		t.Fatalf("get commitment info: found=%v err=%v", found, err)
	}
	if rec.AvailableChunks != uint32(n) {
		t.Errorf("available chunks = %d, want %d", rec.AvailableChunks, n)
	}

	got, err := d.Retrieve(ctx, result.Root)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("retrieved blob mismatch: got %q want %q", got, blob)
	}
}

// TestDispenser_PartialFailureStillRecoverable covers losing one of three
// providers after dispersal: the chunks still reachable drop below N but
// stay at or above K, and retrieval must still reconstruct the original blob.
func TestDispenser_PartialFailureStillRecoverable(t *testing.T) {
	// K is kept well below N/3 so that losing any single one of the three
	// equally-staked providers cannot plausibly drop availableChunks below K,
	// regardless of how the deterministic stake-weighted split happens to
	// fall for this particular commitment root.
	const n, k = 18, 4
	l := ledger.NewMemoryLedger()
	d := newDispenserForTest(l, n, k, n-1)
	provs := newTestProviders(t, l, d.kzgInstance(), 3, 1_000_000_000_000_000_000)

	blob := []byte(strings.Repeat("y", 120))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := d.Submit(ctx, blob)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Knock out one provider's chunks after dispersal has already succeeded.
	lost := provs[0]
	indices, err := l.GetProviderChunks(ctx, result.Root, lost.addr)
	if err != nil {
		t.Fatalf("get provider chunks: %v", err)
	}
	lost.srv.Close()

	got, err := d.Retrieve(ctx, result.Root)
	if err != nil {
		t.Fatalf("retrieve after one provider lost (lost %d chunks): %v", len(indices), err)
	}
	if string(got) != string(blob) {
		t.Errorf("retrieved blob mismatch: got %q want %q", got, blob)
	}
}

// TestDispenser_UnrecoverableNotEnoughChunks covers every provider but one
// disappearing before availableChunks can ever reach K: Submit must fail
// with ErrInsufficientDispersal rather than hang waiting for availability.
func TestDispenser_UnrecoverableNotEnoughChunks(t *testing.T) {
	const n, k = 18, 12
	l := ledger.NewMemoryLedger()
	d := newDispenserForTest(l, n, k, n-1)
	provs := newTestProviders(t, l, d.kzgInstance(), 3, 1_000_000_000_000_000_000)

	// Close two of three providers before dispersal so fewer than K chunks
	// can possibly be accepted.
	provs[0].srv.Close()
	provs[1].srv.Close()

	blob := []byte(strings.Repeat("z", 120))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := d.Submit(ctx, blob)
	if err == nil {
		t.Fatal("expected submit to fail when fewer than K chunks can be dispersed")
	}
	if !errors.Is(err, types.ErrInsufficientDispersal) {
		t.Errorf("error = %v, want wrapping ErrInsufficientDispersal", err)
	}
}
