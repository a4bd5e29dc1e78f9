package kzg

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// NewInsecureTestCRS builds a toy CRS for a known, hard-coded tau entirely
// in-process. It exists so other packages' tests can exercise commit/open/
// verify without a real ceremony file; it must never be used outside tests
// — a known tau makes every opening forgeable.
func NewInsecureTestCRS(degree int) *CRS {
	var tau fr.Element
	tau.SetUint64(997)

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
