package kzg

import (
	"math/big"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/certen/poda/pkg/types"
)

// testCRS builds an insecure toy CRS for a known tau, entirely in-process —
// acceptable only for tests, never for production (production always loads
// a real ceremony file via LoadCeremony).
func testCRS(t *testing.T, degree int) *CRS {
	t.Helper()
	var tau fr.Element
	tau.SetUint64(12345)

	_, _, g1Gen, g2Gen := bls12381.Generators()

	g1Powers := make([]bls12381.G1Affine, degree+1)
	g2Powers := make([]bls12381.G2Affine, degree+2)
	var cur fr.Element
	cur.SetOne()
	for i := 0; i <= degree+1; i++ {
		var curBig big.Int
		cur.BigInt(&curBig)
		if i <= degree {
			var j1 bls12381.G1Jac
			j1.ScalarMultiplication(&g1Gen, &curBig)
			g1Powers[i].FromJacobian(&j1)
		}
		var j2 bls12381.G2Jac
		j2.ScalarMultiplication(&g2Gen, &curBig)
		g2Powers[i].FromJacobian(&j2)
		cur.Mul(&cur, &tau)
	}
	return &CRS{G1Powers: g1Powers, G2Powers: g2Powers}
}

func makeChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = types.Chunk{Index: uint16(i), Data: []byte{byte(i), byte(i * 7)}}
	}
	return chunks
}

func TestCommitOpenVerify_SinglePoint(t *testing.T) {
	const n = 8
	chunks := makeChunks(n)
	k := New(testCRS(t, n-1))

	poly := BuildPolynomial(chunks)
	commitment, err := k.Commit(poly)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	for _, c := range chunks {
		var z fr.Element
		z.SetUint64(uint64(c.Index))
		y := ScalarFromHash(c)

		proof, err := k.Open(poly, z)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		ok, err := k.Verify(commitment, z, y, proof)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !ok {
			t.Errorf("chunk %d: valid opening failed to verify", c.Index)
		}

		var wrongY fr.Element
		wrongY.Add(&y, &one1())
		ok, err = k.Verify(commitment, z, wrongY, proof)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if ok {
			t.Errorf("chunk %d: perturbed y incorrectly verified", c.Index)
		}
	}
}

func TestCommitOpenVerify_MultiPoint(t *testing.T) {
	const n = 16
	chunks := makeChunks(n)
	k := New(testCRS(t, n-1))

	poly := BuildPolynomial(chunks)
	commitment, err := k.Commit(poly)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	subset := []int{0, 2, 5, 9, 15}
	zs := make([]fr.Element, len(subset))
	ys := make([]fr.Element, len(subset))
	for i, idx := range subset {
		zs[i].SetUint64(uint64(idx))
		ys[i] = ScalarFromHash(chunks[idx])
	}

	proof, err := k.OpenMulti(poly, zs)
	if err != nil {
		t.Fatalf("open multi: %v", err)
	}
	ok, err := k.VerifyMulti(commitment, zs, ys, proof)
	if err != nil {
		t.Fatalf("verify multi: %v", err)
	}
	if !ok {
		t.Error("valid multi-opening failed to verify")
	}

	ys[0].Add(&ys[0], &one1())
	ok, err = k.VerifyMulti(commitment, zs, ys, proof)
	if err != nil {
		t.Fatalf("verify multi: %v", err)
	}
	if ok {
		t.Error("perturbed multi-opening incorrectly verified")
	}
}

func TestCommitmentSerializationRoundTrip(t *testing.T) {
	const n = 4
	chunks := makeChunks(n)
	k := New(testCRS(t, n-1))
	poly := BuildPolynomial(chunks)
	commitment, err := k.Commit(poly)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b := commitment.Bytes()
	restored, err := CommitmentFromBytes(b[:])
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if restored.Bytes() != b {
		t.Error("round-tripped commitment does not match original")
	}
}

func one1() fr.Element {
	var e fr.Element
	e.SetOne()
	return e
}
