package merkle

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// WireProof is the portable, hex-encoded form of a Proof exchanged over the
// batch-store / batch-retrieve / respondToChunkChallenge HTTP payloads.
type WireProof struct {
	LeafIndex int             `json:"leafIndex"`
	Path      []WireProofStep `json:"path"`
}

// WireProofStep is one hex-encoded sibling hash and its position.
type WireProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// ToWire converts a Proof to its hex-encoded transport form.
func (p *Proof) ToWire() *WireProof {
	wp := &WireProof{
		LeafIndex: p.LeafIndex,
		Path:      make([]WireProofStep, len(p.Path)),
	}
	for i, step := range p.Path {
		wp.Path[i] = WireProofStep{
			Hash:     hex.EncodeToString(step.Hash[:]),
			Position: string(step.Position),
		}
	}
	return wp
}

// FromWire parses a WireProof back into a Proof, validating every hash is
// exactly 32 bytes (fail-closed, as any malformed step would otherwise
// silently verify against the wrong root).
func FromWire(wp *WireProof) (*Proof, error) {
	p := &Proof{LeafIndex: wp.LeafIndex, Path: make([]ProofStep, len(wp.Path))}
	for i, step := range wp.Path {
		raw, err := hex.DecodeString(step.Hash)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("merkle: wire proof step %d: invalid 32-byte hex hash", i)
		}
		pos := Position(step.Position)
		if pos != Left && pos != Right {
			return nil, fmt.Errorf("merkle: wire proof step %d: invalid position %q", i, step.Position)
		}
		copy(p.Path[i].Hash[:], raw)
		p.Path[i].Position = pos
	}
	return p, nil
}

func (wp *WireProof) MarshalBinary() ([]byte, error) { return json.Marshal(wp) }

func WireProofFromJSON(data []byte) (*WireProof, error) {
	var wp WireProof
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, err
	}
	return &wp, nil
}
