// proof.go - Structural proof object and its serialized form.
//
// The proof mirrors the snarkjs Groth16 JSON layout (pi_a, pi_b, pi_c,
// protocol, curve) but carries no curve points: the fields embed witness
// components and a permutation-hash binding tag. Verification is therefore a
// structural check, not a pairing check.

package protocol

import "encoding/json"

const (
	// ProtocolTag is the protocol identifier every proof must carry.
	ProtocolTag = "groth16"
	// CurveTag names the curve the field arithmetic is sized for.
	CurveTag = "bn128"
)

// Proof is the serialized proof bundle. Slices rather than arrays so that
// malformed arities survive deserialization and are rejected explicitly.
type Proof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// Marshal serializes the proof to its canonical JSON string.
func (p *Proof) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseProof deserializes a proof JSON string. Shape validation is left to
// the verifier so that it can report malformed proofs as invalid rather
// than erroring.
func ParseProof(s string) (*Proof, error) {
	var p Proof
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// wellFormed reports whether the proof has the expected arities:
// 3 entries in pi_a and pi_c, 3 pairs in pi_b.
func (p *Proof) wellFormed() bool {
	if len(p.PiA) != 3 || len(p.PiC) != 3 || len(p.PiB) != 3 {
		return false
	}
	for _, row := range p.PiB {
		if len(row) != 2 {
			return false
		}
	}
	return true
}
