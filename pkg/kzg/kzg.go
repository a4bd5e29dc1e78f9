// Package kzg implements a KZG polynomial commitment over BLS12-381 for the
// chunk-hash polynomial: commit, single-point open/verify, and batch
// multi-point open/verify via bilinear pairings.
package kzg

import (
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/certen/poda/pkg/types"
)

// KzgCommitment and KzgProof wrap the same underlying G1 element but are
// distinct types to prevent accidental substitution in APIs; both serialize
// as the 48-byte compressed form.
type KzgCommitment struct{ point bls12381.G1Affine }
type KzgProof struct{ point bls12381.G1Affine }

func (c KzgCommitment) Bytes() [48]byte { return c.point.Bytes() }
func (p KzgProof) Bytes() [48]byte      { return p.point.Bytes() }

func CommitmentFromBytes(b []byte) (KzgCommitment, error) {
	if len(b) != 48 {
		return KzgCommitment{}, fmt.Errorf("kzg: commitment must be 48 bytes, got %d", len(b))
	}
	var c KzgCommitment
	if _, err := c.point.SetBytes(b); err != nil {
		return KzgCommitment{}, fmt.Errorf("kzg: invalid commitment encoding: %w", err)
	}
	return c, nil
}

func ProofFromBytes(b []byte) (KzgProof, error) {
	if len(b) != 48 {
		return KzgProof{}, fmt.Errorf("kzg: proof must be 48 bytes, got %d", len(b))
	}
	var p KzgProof
	if _, err := p.point.SetBytes(b); err != nil {
		return KzgProof{}, fmt.Errorf("kzg: invalid proof encoding: %w", err)
	}
	return p, nil
}

// KZG is a process-wide read-only commitment scheme instance, bound to one
// CRS. Construct it once at startup via Init/Instance; never mutate after.
type KZG struct {
	crs *CRS
}

var (
	once     sync.Once
	instance *KZG
	initErr  error
)

// Init loads the ceremony file at path and installs the process-wide KZG
// singleton, sized for polynomials of the given degree (N-1 for an N-chunk
// commitment). Safe to call multiple times; only the first call's path/degree
// takes effect. Callers MUST treat a non-nil error as fatal at startup.
func Init(ceremonyPath string, degree int) error {
	once.Do(func() {
		crs, err := LoadCeremony(ceremonyPath, degree)
		if err != nil {
			initErr = err
			return
		}
		instance = &KZG{crs: crs}
	})
	return initErr
}

// Instance returns the process-wide singleton. Panics if Init has not
// succeeded — every entrypoint must call Init before serving traffic.
func Instance() *KZG {
	if instance == nil {
		panic("kzg: Instance() called before successful Init()")
	}
	return instance
}

// New builds a standalone KZG instance from an already-loaded CRS, bypassing
// the process singleton. Used by tests that need an isolated instance.
func New(crs *CRS) *KZG { return &KZG{crs: crs} }

// ScalarFromHash derives the KZG scalar y_i from the first 4 bytes of a
// chunk's hash, interpreted as a little-endian u32 — exactly the 4-byte
// truncation the ledger's verifier also performs.
func ScalarFromHash(c types.Chunk) fr.Element {
	var e fr.Element
	e.SetUint64(uint64(c.KzgScalarLE()))
	return e
}

// BuildPolynomial interpolates the polynomial P such that P(i) = scalar(i)
// for every chunk, padded/truncated to degree N-1.
func BuildPolynomial(chunks []types.Chunk) []fr.Element {
	xs := make([]fr.Element, len(chunks))
	ys := make([]fr.Element, len(chunks))
	for i, c := range chunks {
		xs[i].SetUint64(uint64(c.Index))
		ys[i] = ScalarFromHash(c)
	}
	return polyInterpolate(xs, ys)
}

// Commit computes C = Sum_i P_i * (g1*tau^i).
func (k *KZG) Commit(poly []fr.Element) (KzgCommitment, error) {
	if len(poly) > len(k.crs.G1Powers) {
		return KzgCommitment{}, fmt.Errorf("kzg: polynomial degree %d exceeds CRS degree %d", len(poly)-1, len(k.crs.G1Powers)-1)
	}
	affine := k.msmG1(poly)
	return KzgCommitment{point: affine}, nil
}

// msmG1 computes Sum_i coeffs[i] * g1Powers[i] as an affine point.
func (k *KZG) msmG1(coeffs []fr.Element) bls12381.G1Affine {
	var acc bls12381.G1Jac
	for i, coef := range coeffs {
		if coef.IsZero() {
			continue
		}
		var scalarBig big.Int
		coef.BigInt(&scalarBig)
		var term bls12381.G1Jac
		term.ScalarMultiplication(&k.crs.G1Powers[i], &scalarBig)
		acc.AddAssign(&term)
	}
	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return out
}

// Open computes the single-point opening proof at z: q(X) = (P(X)-P(z))/(X-z).
func (k *KZG) Open(poly []fr.Element, z fr.Element) (KzgProof, error) {
	y := polyEvaluate(poly, z)
	numerator := polySub(poly, []fr.Element{y})
	denom := []fr.Element{negOf(z), one()} // (X - z)
	q := polyDiv(numerator, denom)
	if len(q) > len(k.crs.G1Powers) {
		return KzgProof{}, fmt.Errorf("kzg: quotient degree %d exceeds CRS degree %d", len(q)-1, len(k.crs.G1Powers)-1)
	}
	return KzgProof{point: k.msmG1(q)}, nil
}

// OpenMulti computes the batch opening proof over a set of points Z.
func (k *KZG) OpenMulti(poly []fr.Element, zs []fr.Element) (KzgProof, error) {
	ys := make([]fr.Element, len(zs))
	for i, z := range zs {
		ys[i] = polyEvaluate(poly, z)
	}
	zPoly := vanishingPolynomial(zs)
	lPoly := polyInterpolate(zs, ys)
	numerator := polySub(poly, lPoly)
	q := polyDiv(numerator, zPoly)
	if len(q) > len(k.crs.G1Powers) {
		return KzgProof{}, fmt.Errorf("kzg: quotient degree %d exceeds CRS degree %d", len(q)-1, len(k.crs.G1Powers)-1)
	}
	return KzgProof{point: k.msmG1(q)}, nil
}

// Verify checks e(pi, g2*tau - g2*z) == e(C - g1*y, g2).
func (k *KZG) Verify(commitment KzgCommitment, z, y fr.Element, proof KzgProof) (bool, error) {
	g2 := k.crs.G2Powers[0]
	g2Tau := k.crs.G2Powers[1]

	var zBig big.Int
	z.BigInt(&zBig)
	var g2z bls12381.G2Jac
	g2z.ScalarMultiplication(&g2, &zBig)
	var g2TauJac bls12381.G2Jac
	g2TauJac.FromAffine(&g2Tau)
	g2TauJac.SubAssign(&g2z)
	var rhsG2 bls12381.G2Affine
	rhsG2.FromJacobian(&g2TauJac)

	var yBig big.Int
	y.BigInt(&yBig)
	var g1y bls12381.G1Jac
	g1y.ScalarMultiplication(&k.crs.G1Powers[0], &yBig)
	var cJac bls12381.G1Jac
	cJac.FromAffine(&commitment.point)
	cJac.SubAssign(&g1y)
	var lhsG1 bls12381.G1Affine
	lhsG1.FromJacobian(&cJac)
	lhsG1.Neg(&lhsG1)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{proof.point, lhsG1},
		[]bls12381.G2Affine{rhsG2, g2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg: pairing check: %w", err)
	}
	return ok, nil
}

// VerifyMulti checks e(pi, [Z]2) == e(C - [L]1, g2) for a batch of points.
func (k *KZG) VerifyMulti(commitment KzgCommitment, zs, ys []fr.Element, proof KzgProof) (bool, error) {
	if len(zs) != len(ys) {
		return false, fmt.Errorf("kzg: zs/ys length mismatch")
	}
	if len(zs)+1 > len(k.crs.G2Powers) {
		return false, fmt.Errorf("kzg: CRS has %d G2 powers, need %d for a %d-point batch", len(k.crs.G2Powers), len(zs)+1, len(zs))
	}
	zPoly := vanishingPolynomial(zs)
	zG2 := k.msmG2(zPoly)

	lPoly := polyInterpolate(zs, ys)
	lG1 := k.msmG1(lPoly)

	var cJac bls12381.G1Jac
	cJac.FromAffine(&commitment.point)
	var lJac bls12381.G1Jac
	lJac.FromAffine(&lG1)
	cJac.SubAssign(&lJac)
	var lhsG1 bls12381.G1Affine
	lhsG1.FromJacobian(&cJac)
	lhsG1.Neg(&lhsG1)

	g2 := k.crs.G2Powers[0]
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{proof.point, lhsG1},
		[]bls12381.G2Affine{zG2, g2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg: pairing check: %w", err)
	}
	return ok, nil
}

func (k *KZG) msmG2(coeffs []fr.Element) bls12381.G2Affine {
	var acc bls12381.G2Jac
	for i, coef := range coeffs {
		if coef.IsZero() {
			continue
		}
		var scalarBig big.Int
		coef.BigInt(&scalarBig)
		var term bls12381.G2Jac
		term.ScalarMultiplication(&k.crs.G2Powers[i], &scalarBig)
		acc.AddAssign(&term)
	}
	var out bls12381.G2Affine
	out.FromJacobian(&acc)
	return out
}

func negOf(e fr.Element) fr.Element {
	var n fr.Element
	n.Neg(&e)
	return n
}
