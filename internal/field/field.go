// field.go - Modular arithmetic over the BN254 scalar field.
//
// All operations take and return *big.Int with value semantics: arguments are
// never mutated and every result is reduced into [0, p). The modulus is the
// scalar field order of BN254, taken from gnark-crypto so it matches the
// curve the proof format is tagged with.

package field

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Modulus is the BN254 scalar field order:
// 21888242871839275222246405745257275088548364400416034343698204186575808495617
var Modulus = fr.Modulus()

var (
	ErrNoInverse      = errors.New("field: no modular inverse")
	ErrNoSquareRoot   = errors.New("field: element is not a quadratic residue")
	ErrNotImplemented = errors.New("field: square root requires p = 3 (mod 4)")
	ErrOutOfField     = errors.New("field: value outside [0, p)")
)

var one = big.NewInt(1)

// Mod reduces a into [0, p), normalizing negative remainders.
func Mod(a *big.Int) *big.Int {
	r := new(big.Int).Mod(a, Modulus)
	if r.Sign() < 0 {
		r.Add(r, Modulus)
	}
	return r
}

// Add returns (a + b) mod p.
func Add(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Add(a, b))
}

// Sub returns (a - b) mod p.
func Sub(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Sub(a, b))
}

// Mul returns (a * b) mod p.
func Mul(a, b *big.Int) *big.Int {
	return Mod(new(big.Int).Mul(a, b))
}

// Pow returns base^exp mod p by left-to-right square-and-multiply.
// Pow(base, 0) is 1 for any base.
func Pow(base, exp *big.Int) *big.Int {
	b := Mod(base)
	result := big.NewInt(1)
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result = Mul(result, result)
		if exp.Bit(i) == 1 {
			result = Mul(result, b)
		}
	}
	return result
}

// Inverse returns a^-1 mod p via the extended Euclidean algorithm.
// Fails with ErrNoInverse when gcd(a, p) != 1, in particular for a = 0.
func Inverse(a *big.Int) (*big.Int, error) {
	r := Mod(a)
	if r.Sign() == 0 {
		return nil, fmt.Errorf("inverse of zero: %w", ErrNoInverse)
	}
	// Extended Euclid on (r, p): track t such that r*t = gcd (mod p).
	t, newT := big.NewInt(0), big.NewInt(1)
	m, newM := new(big.Int).Set(Modulus), r
	for newM.Sign() != 0 {
		q := new(big.Int).Div(m, newM)
		t, newT = newT, new(big.Int).Sub(t, new(big.Int).Mul(q, newT))
		m, newM = newM, new(big.Int).Sub(m, new(big.Int).Mul(q, newM))
	}
	if m.Cmp(one) != 0 {
		return nil, fmt.Errorf("gcd(a, p) = %s: %w", m, ErrNoInverse)
	}
	return Mod(t), nil
}

// Div returns a * b^-1 mod p, failing when b has no inverse.
func Div(a, b *big.Int) (*big.Int, error) {
	inv, err := Inverse(b)
	if err != nil {
		return nil, err
	}
	return Mul(a, inv), nil
}

// IsQuadraticResidue reports whether a is a square mod p using Euler's
// criterion. Zero counts as a residue.
func IsQuadraticResidue(a *big.Int) bool {
	r := Mod(a)
	if r.Sign() == 0 {
		return true
	}
	exp := new(big.Int).Rsh(new(big.Int).Sub(Modulus, one), 1) // (p-1)/2
	return Pow(r, exp).Cmp(one) == 0
}

// Sqrt returns a square root of a mod p. Only the p = 3 (mod 4) shortcut
// a^((p+1)/4) is implemented; any other prime shape fails with
// ErrNotImplemented, and non-residues fail with ErrNoSquareRoot.
func Sqrt(a *big.Int) (*big.Int, error) {
	if new(big.Int).Mod(Modulus, big.NewInt(4)).Cmp(big.NewInt(3)) != 0 {
		return nil, ErrNotImplemented
	}
	r := Mod(a)
	if !IsQuadraticResidue(r) {
		return nil, fmt.Errorf("sqrt of %s: %w", r, ErrNoSquareRoot)
	}
	exp := new(big.Int).Rsh(new(big.Int).Add(Modulus, one), 2) // (p+1)/4
	return Pow(r, exp), nil
}

// Random samples a field element by reducing 32 uniformly random bytes mod p.
// The reduction bias is negligible for the protocol's purposes and is
// accepted instead of rejection sampling.
func Random() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("field: random sampling failed: %w", err)
	}
	return Mod(new(big.Int).SetBytes(buf)), nil
}

// ToLE encodes x as exactly n little-endian bytes, zero-padding or
// truncating as needed.
func ToLE(x *big.Int, n int) []byte {
	be := x.Bytes()
	out := make([]byte, n)
	for i := 0; i < len(be) && i < n; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// FromLE decodes a little-endian byte sequence into an integer.
func FromLE(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}

// IsInField reports whether a lies in [0, p).
func IsInField(a *big.Int) bool {
	return a.Sign() >= 0 && a.Cmp(Modulus) < 0
}

// AssertInField fails with ErrOutOfField unless a lies in [0, p).
func AssertInField(a *big.Int) error {
	if !IsInField(a) {
		return fmt.Errorf("%s: %w", a, ErrOutOfField)
	}
	return nil
}
