// poseidon.go - Fixed-width permutation hash over the BN254 scalar field.
//
// Poseidon-shaped sponge: a width-6 state run through 8 full rounds split
// around 57 partial rounds, with an x^5 S-box and a dense mixing matrix.
// The round constants and matrix come from a simplified derivation rather
// than the reference Grain/Cauchy construction; they are fixed at
// construction and pinned by the test vectors, so any change breaks every
// digest ever produced.

package poseidon

import (
	"math/big"

	"implementation/internal/field"
)

const (
	// Width is the sponge state size t; up to Width-1 inputs per call.
	Width = 6
	// FullRounds is the total number of full rounds, half before and half
	// after the partial block.
	FullRounds = 8
	// PartialRounds is the number of rounds applying the S-box to state[0]
	// only.
	PartialRounds = 57
)

// Hasher holds the derived round constants and mixing matrix. It is
// stateless across calls and safe to share immutably; construct one per
// component that hashes, there is no package-level singleton.
type Hasher struct {
	constants []*big.Int // (FullRounds+PartialRounds)*Width flat sequence
	matrix    [][]*big.Int
}

// New derives the round constants and mixing matrix.
//
// constants[i] = (i+1) * 7^(i+1) mod p
// matrix[i][j] = (i + j*Width + 1) mod p
func New() *Hasher {
	n := (FullRounds + PartialRounds) * Width
	constants := make([]*big.Int, n)
	seven := big.NewInt(7)
	acc := big.NewInt(1)
	for i := 0; i < n; i++ {
		acc = field.Mul(acc, seven)
		constants[i] = field.Mul(big.NewInt(int64(i+1)), acc)
	}
	matrix := make([][]*big.Int, Width)
	for i := 0; i < Width; i++ {
		matrix[i] = make([]*big.Int, Width)
		for j := 0; j < Width; j++ {
			matrix[i][j] = field.Mod(big.NewInt(int64(i + j*Width + 1)))
		}
	}
	return &Hasher{constants: constants, matrix: matrix}
}

// Hash absorbs up to Width-1 inputs and squeezes a single field element.
// Inputs are reduced mod p before use; surplus inputs are ignored. The
// function is pure and total: identical input sequences always yield the
// same output.
func (h *Hasher) Hash(inputs []*big.Int) *big.Int {
	state := make([]*big.Int, Width)
	for i := range state {
		state[i] = big.NewInt(0)
	}
	for i := 0; i < len(inputs) && i < Width-1; i++ {
		state[i+1] = field.Mod(inputs[i])
	}

	round := 0
	for r := 0; r < FullRounds/2; r++ {
		state = h.fullRound(state, round)
		round++
	}
	for r := 0; r < PartialRounds; r++ {
		state = h.partialRound(state, round)
		round++
	}
	for r := 0; r < FullRounds/2; r++ {
		state = h.fullRound(state, round)
		round++
	}
	return state[0]
}

// fullRound applies ARK, the x^5 S-box on every element, then MIX.
func (h *Hasher) fullRound(state []*big.Int, round int) []*big.Int {
	state = h.addRoundConstants(state, round)
	for i := range state {
		state[i] = sbox(state[i])
	}
	return h.mix(state)
}

// partialRound is identical but applies the S-box to state[0] only.
func (h *Hasher) partialRound(state []*big.Int, round int) []*big.Int {
	state = h.addRoundConstants(state, round)
	state[0] = sbox(state[0])
	return h.mix(state)
}

func (h *Hasher) addRoundConstants(state []*big.Int, round int) []*big.Int {
	out := make([]*big.Int, Width)
	for i := range state {
		out[i] = field.Add(state[i], h.constants[round*Width+i])
	}
	return out
}

func sbox(x *big.Int) *big.Int {
	x2 := field.Mul(x, x)
	x4 := field.Mul(x2, x2)
	return field.Mul(x4, x)
}

func (h *Hasher) mix(state []*big.Int) []*big.Int {
	out := make([]*big.Int, Width)
	for i := 0; i < Width; i++ {
		acc := big.NewInt(0)
		for j := 0; j < Width; j++ {
			acc = field.Add(acc, field.Mul(h.matrix[i][j], state[j]))
		}
		out[i] = acc
	}
	return out
}
