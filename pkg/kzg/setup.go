package kzg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// CRS is the structured reference string: (g1*tau^i) and (g2*tau^i) for an
// unknown tau, loaded from a pre-existing trusted-setup ceremony file. No
// insecure self-setup is performed in production; failure to load a CRS
// covering the requested degree is fatal.
type CRS struct {
	G1Powers []bls12381.G1Affine
	G2Powers []bls12381.G2Affine
}

// ceremonyFile mirrors the "powers of tau" ceremony JSON layout: a list of
// sequential contributions, each holding the full power set accumulated so
// far. Only the final (most-contributed-to) entry is trustworthy.
type ceremonyFile struct {
	Contributions []struct {
		PowersOfTau struct {
			G1Powers []string `json:"G1Powers"`
			G2Powers []string `json:"G2Powers"`
		} `json:"powersOfTau"`
	} `json:"contributions"`
}

// LoadCeremony reads a ceremony file from path and returns a CRS with at
// least `degree`+1 G1 powers and at least 2 G2 powers (g2, g2*tau) — the
// minimum needed for single-point commit/open/verify. Multi-point verify
// over B points additionally requires B+1 G2 powers, checked lazily by
// VerifyMulti.
func LoadCeremony(path string, degree int) (*CRS, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kzg: read ceremony file: %w", err)
	}
	var cf ceremonyFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("kzg: parse ceremony file: %w", err)
	}
	if len(cf.Contributions) == 0 {
		return nil, fmt.Errorf("kzg: ceremony file has no contributions")
	}
	last := cf.Contributions[len(cf.Contributions)-1].PowersOfTau

	need := degree + 1
	if len(last.G1Powers) < need {
		return nil, fmt.Errorf("kzg: ceremony only has %d G1 powers, need %d for degree %d", len(last.G1Powers), need, degree)
	}
	if len(last.G2Powers) < 2 {
		return nil, fmt.Errorf("kzg: ceremony needs at least 2 G2 powers, has %d", len(last.G2Powers))
	}

	crs := &CRS{
		G1Powers: make([]bls12381.G1Affine, need),
		G2Powers: make([]bls12381.G2Affine, len(last.G2Powers)),
	}
	for i := 0; i < need; i++ {
		if err := decodeG1(last.G1Powers[i], &crs.G1Powers[i]); err != nil {
			return nil, fmt.Errorf("kzg: decode G1 power %d: %w", i, err)
		}
	}
	for i := range last.G2Powers {
		if err := decodeG2(last.G2Powers[i], &crs.G2Powers[i]); err != nil {
			return nil, fmt.Errorf("kzg: decode G2 power %d: %w", i, err)
		}
	}
	return crs, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return hex.DecodeString(s)
}

func decodeG1(s string, out *bls12381.G1Affine) error {
	raw, err := decodeHex(s)
	if err != nil {
		return err
	}
	_, err = out.SetBytes(raw)
	return err
}

func decodeG2(s string, out *bls12381.G2Affine) error {
	raw, err := decodeHex(s)
	if err != nil {
		return err
	}
	_, err = out.SetBytes(raw)
	return err
}
