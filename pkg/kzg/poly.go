package kzg

import (
	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// polynomial is a dense coefficient vector, poly[i] is the coefficient of X^i.

func polyAdd(a, b []fr.Element) []fr.Element {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		var av, bv fr.Element
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i].Add(&av, &bv)
	}
	return trim(out)
}

func polySub(a, b []fr.Element) []fr.Element {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		var av, bv fr.Element
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i].Sub(&av, &bv)
	}
	return trim(out)
}

// polyMul computes the convolution a*b.
func polyMul(a, b []fr.Element) []fr.Element {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]fr.Element, len(a)+len(b)-1)
	for i, av := range a {
		if av.IsZero() {
			continue
		}
		for j, bv := range b {
			var t fr.Element
			t.Mul(&av, &bv)
			out[i+j].Add(&out[i+j], &t)
		}
	}
	return trim(out)
}

// polyMulLinear multiplies poly by the monic linear factor (X - root).
func polyMulLinear(poly []fr.Element, root fr.Element) []fr.Element {
	neg := root
	neg.Neg(&neg)
	return polyMul(poly, []fr.Element{neg, one()})
}

// polyDiv performs exact polynomial long division num / den, assuming den
// divides num with zero remainder (true for every (P(X)-P(z))/(X-z) and
// (P(X)-L(X))/Z(X) construction used by KZG opening).
func polyDiv(num, den []fr.Element) []fr.Element {
	numCopy := make([]fr.Element, len(num))
	copy(numCopy, num)

	degNum := len(numCopy) - 1
	degDen := len(den) - 1
	if degNum < degDen {
		return []fr.Element{zero()}
	}

	var denLeadInv fr.Element
	denLeadInv.Inverse(&den[degDen])

	quotient := make([]fr.Element, degNum-degDen+1)
	for i := degNum; i >= degDen; i-- {
		var coef fr.Element
		coef.Mul(&numCopy[i], &denLeadInv)
		quotient[i-degDen] = coef
		if coef.IsZero() {
			continue
		}
		for j := 0; j <= degDen; j++ {
			var t fr.Element
			t.Mul(&coef, &den[j])
			numCopy[i-degDen+j].Sub(&numCopy[i-degDen+j], &t)
		}
	}
	return trim(quotient)
}

// polyEvaluate evaluates poly at x via Horner's method.
func polyEvaluate(poly []fr.Element, x fr.Element) fr.Element {
	var result fr.Element
	for i := len(poly) - 1; i >= 0; i-- {
		result.Mul(&result, &x)
		result.Add(&result, &poly[i])
	}
	return result
}

// polyInterpolate returns the unique minimal-degree polynomial passing
// through the given (x, y) points via Lagrange interpolation.
func polyInterpolate(xs, ys []fr.Element) []fr.Element {
	n := len(xs)
	result := make([]fr.Element, 1)

	for i := 0; i < n; i++ {
		numer := []fr.Element{one()}
		denom := one()
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			numer = polyMulLinear(numer, xs[j])
			var diff fr.Element
			diff.Sub(&xs[i], &xs[j])
			denom.Mul(&denom, &diff)
		}
		var denomInv fr.Element
		denomInv.Inverse(&denom)
		var scale fr.Element
		scale.Mul(&ys[i], &denomInv)
		for k := range numer {
			numer[k].Mul(&numer[k], &scale)
		}
		result = polyAdd(result, numer)
	}
	return trim(result)
}

// vanishingPolynomial returns Z(X) = Π (X - z_j).
func vanishingPolynomial(zs []fr.Element) []fr.Element {
	poly := []fr.Element{one()}
	for _, z := range zs {
		poly = polyMulLinear(poly, z)
	}
	return poly
}

func trim(poly []fr.Element) []fr.Element {
	n := len(poly)
	for n > 1 && poly[n-1].IsZero() {
		n--
	}
	return poly[:n]
}

func zero() fr.Element {
	var e fr.Element
	return e
}

func one() fr.Element {
	var e fr.Element
	e.SetOne()
	return e
}
