// circuit.go - Minimal rank-1 constraint system over named signals.
//
// Signals are arbitrary-precision integers; constraints snapshot the signal
// values at recording time and are replayed verbatim by VerifyCircuit.
// Mutating a signal after a constraint was recorded does not change what the
// constraint asserts.

package circuit

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrSignalNotFound         = errors.New("circuit: signal not found")
	ErrOutOfRange             = errors.New("circuit: signal value out of range")
	ErrMultiplicationMismatch = errors.New("circuit: product does not match output signal")
)

// OneSignal is the constant wire every circuit starts with, fixed to 1.
const OneSignal = "one"

// Constraint is one rank-1 relation: sum(A) * sum(B) = sum(C), evaluated
// over unbounded integers.
type Constraint struct {
	A []*big.Int
	B []*big.Int
	C []*big.Int
}

// Engine owns a signal store and an ordered constraint log. Single-owner:
// concurrent mutation must be serialized externally.
type Engine struct {
	signals     map[string]*big.Int
	order       []string // insertion order, for reproducible witnesses
	constraints []Constraint
}

// NewEngine creates an engine seeded with the constant signal.
func NewEngine() *Engine {
	e := &Engine{signals: make(map[string]*big.Int)}
	e.SetSignal(OneSignal, big.NewInt(1))
	return e
}

// SetSignal upserts a signal value. The value is copied.
func (e *Engine) SetSignal(name string, value *big.Int) {
	if _, exists := e.signals[name]; !exists {
		e.order = append(e.order, name)
	}
	e.signals[name] = new(big.Int).Set(value)
}

// GetSignal looks up a signal, reporting absence explicitly.
func (e *Engine) GetSignal(name string) (*big.Int, bool) {
	v, ok := e.signals[name]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// DefineConstraint appends one (A, B, C) triple to the log. No shape
// validation: the vectors may differ in length since verification reduces
// each to a scalar sum. Values are copied.
func (e *Engine) DefineConstraint(a, b, c []*big.Int) {
	e.constraints = append(e.constraints, Constraint{
		A: copyVector(a),
		B: copyVector(b),
		C: copyVector(c),
	})
}

// AddRangeConstraint checks min <= value <= max for the named signal and
// records the trivial relation [v]*[1] = [v].
func (e *Engine) AddRangeConstraint(name string, min, max *big.Int) error {
	v, ok := e.GetSignal(name)
	if !ok {
		return fmt.Errorf("range constraint on %q: %w", name, ErrSignalNotFound)
	}
	if v.Cmp(min) < 0 || v.Cmp(max) > 0 {
		return fmt.Errorf("signal %q = %s not in [%s, %s]: %w", name, v, min, max, ErrOutOfRange)
	}
	e.DefineConstraint([]*big.Int{v}, []*big.Int{big.NewInt(1)}, []*big.Int{v})
	return nil
}

// AddEqualityConstraint records [v1]*[1] = [v2] without checking equality up
// front; an unequal pair surfaces when VerifyCircuit replays the log.
func (e *Engine) AddEqualityConstraint(s1, s2 string) error {
	v1, ok := e.GetSignal(s1)
	if !ok {
		return fmt.Errorf("equality constraint on %q: %w", s1, ErrSignalNotFound)
	}
	v2, ok := e.GetSignal(s2)
	if !ok {
		return fmt.Errorf("equality constraint on %q: %w", s2, ErrSignalNotFound)
	}
	e.DefineConstraint([]*big.Int{v1}, []*big.Int{big.NewInt(1)}, []*big.Int{v2})
	return nil
}

// AddMultiplicationConstraint checks s1*s2 = out eagerly, failing with
// ErrMultiplicationMismatch, then records [v1]*[v2] = [out].
func (e *Engine) AddMultiplicationConstraint(s1, s2, out string) error {
	v1, ok := e.GetSignal(s1)
	if !ok {
		return fmt.Errorf("multiplication constraint on %q: %w", s1, ErrSignalNotFound)
	}
	v2, ok := e.GetSignal(s2)
	if !ok {
		return fmt.Errorf("multiplication constraint on %q: %w", s2, ErrSignalNotFound)
	}
	vOut, ok := e.GetSignal(out)
	if !ok {
		return fmt.Errorf("multiplication constraint on %q: %w", out, ErrSignalNotFound)
	}
	if new(big.Int).Mul(v1, v2).Cmp(vOut) != 0 {
		return fmt.Errorf("%s * %s != %s: %w", v1, v2, vOut, ErrMultiplicationMismatch)
	}
	e.DefineConstraint([]*big.Int{v1}, []*big.Int{v2}, []*big.Int{vOut})
	return nil
}

// VerifyCircuit replays every recorded constraint and reports whether all of
// them hold: sum(A) * sum(B) = sum(C) over unbounded integers, no modular
// reduction. Total: any internal failure counts as an unsatisfied circuit.
func (e *Engine) VerifyCircuit() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	for _, c := range e.constraints {
		lhs := new(big.Int).Mul(sum(c.A), sum(c.B))
		if lhs.Cmp(sum(c.C)) != 0 {
			return false
		}
	}
	return true
}

// Witness returns the current signal values in insertion order.
func (e *Engine) Witness() []*big.Int {
	out := make([]*big.Int, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, new(big.Int).Set(e.signals[name]))
	}
	return out
}

// ConstraintCount returns the number of recorded constraints.
func (e *Engine) ConstraintCount() int {
	return len(e.constraints)
}

// Reset clears signals and constraints and re-seeds the constant signal.
func (e *Engine) Reset() {
	e.signals = make(map[string]*big.Int)
	e.order = nil
	e.constraints = nil
	e.SetSignal(OneSignal, big.NewInt(1))
}

func copyVector(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = new(big.Int).Set(x)
	}
	return out
}

func sum(v []*big.Int) *big.Int {
	acc := new(big.Int)
	for _, x := range v {
		acc.Add(acc, x)
	}
	return acc
}
