// merkle.go - Binary hash tree over 32-byte leaves.
//
// The pair hash is injected so the tree stays independent of the keccak
// collaborator that supplies it in the protocol layer. Mutations rebuild the
// whole pyramid; batches are small and infrequent, so correctness wins over
// incremental recompute.

package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math"
)

// ErrIndexOutOfBounds is returned for leaf or layer indices outside the tree.
var ErrIndexOutOfBounds = errors.New("merkle: index out of bounds")

// PairHash combines two sibling hashes into their parent. Order matters:
// implementations must bind left before right.
type PairHash func(left, right []byte) []byte

// ZeroLeaf pads the leaf layer up to 2^depth entries.
var ZeroLeaf = make([]byte, 32)

// Tree owns its leaf slice and the derived layers up to the root.
// Not safe for concurrent mutation; callers serialize access.
type Tree struct {
	hash      PairHash
	leafCount int // leaves supplied by the caller, before padding
	depth     int
	layers    [][][]byte
}

// ProofStep is one element of a positioned proof: the sibling hash and
// whether the queried node was the right child at that level.
type ProofStep struct {
	Sibling []byte
	Right   bool
}

// New builds a tree over the given leaves. depth <= 0 derives the depth as
// ceil(log2(len(leaves))) with a minimum of 1; the leaf layer is padded with
// ZeroLeaf up to 2^depth entries.
func New(leaves [][]byte, depth int, hash PairHash) *Tree {
	if depth <= 0 {
		depth = 1
		if len(leaves) > 1 {
			depth = int(math.Ceil(math.Log2(float64(len(leaves)))))
			if depth < 1 {
				depth = 1
			}
		}
	}
	t := &Tree{hash: hash, leafCount: len(leaves), depth: depth}
	t.rebuild(leaves)
	return t
}

func (t *Tree) rebuild(leaves [][]byte) {
	padded := make([][]byte, len(leaves), 1<<t.depth)
	copy(padded, leaves)
	for len(padded) < 1<<t.depth {
		padded = append(padded, ZeroLeaf)
	}

	layers := [][][]byte{padded}
	current := padded
	for len(current) > 1 {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left // odd tail pairs with itself
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, t.hash(left, right))
		}
		layers = append(layers, next)
		current = next
	}
	t.layers = layers
}

// Root returns the single hash at the top of the pyramid.
func (t *Tree) Root() []byte {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// LeafCount returns the number of caller-supplied leaves (padding excluded).
func (t *Tree) LeafCount() int { return t.leafCount }

// Depth returns the padded tree depth.
func (t *Tree) Depth() int { return t.depth }

// Layer returns layer i, leaves first.
func (t *Tree) Layer(i int) ([][]byte, error) {
	if i < 0 || i >= len(t.layers) {
		return nil, fmt.Errorf("layer %d of %d: %w", i, len(t.layers), ErrIndexOutOfBounds)
	}
	return t.layers[i], nil
}

// Proof returns the sibling path from leaf index up to the root.
func (t *Tree) Proof(index int) ([][]byte, error) {
	steps, err := t.ProofWithPositions(index)
	if err != nil {
		return nil, err
	}
	proof := make([][]byte, len(steps))
	for i, s := range steps {
		proof[i] = s.Sibling
	}
	return proof, nil
}

// ProofWithPositions returns the sibling path together with left/right
// position flags, enabling verification without the numeric leaf index.
func (t *Tree) ProofWithPositions(index int) ([]ProofStep, error) {
	if index < 0 || index >= t.leafCount {
		return nil, fmt.Errorf("leaf %d of %d: %w", index, t.leafCount, ErrIndexOutOfBounds)
	}
	var steps []ProofStep
	pos := index
	for level := 0; level < len(t.layers)-1; level++ {
		layer := t.layers[level]
		sibling := pos ^ 1
		if sibling >= len(layer) {
			sibling = pos // odd tail duplicated
		}
		steps = append(steps, ProofStep{Sibling: layer[sibling], Right: pos&1 == 1})
		pos /= 2
	}
	return steps, nil
}

// AddLeaf appends a leaf and rebuilds. The depth grows when the padded
// capacity is exceeded.
func (t *Tree) AddLeaf(leaf []byte) {
	leaves := t.currentLeaves()
	leaves = append(leaves, leaf)
	t.leafCount = len(leaves)
	for len(leaves) > 1<<t.depth {
		t.depth++
	}
	t.rebuild(leaves)
}

// UpdateLeaf replaces the leaf at index and rebuilds.
func (t *Tree) UpdateLeaf(index int, leaf []byte) error {
	if index < 0 || index >= t.leafCount {
		return fmt.Errorf("leaf %d of %d: %w", index, t.leafCount, ErrIndexOutOfBounds)
	}
	leaves := t.currentLeaves()
	leaves[index] = leaf
	t.rebuild(leaves)
	return nil
}

func (t *Tree) currentLeaves() [][]byte {
	leaves := make([][]byte, t.leafCount)
	copy(leaves, t.layers[0][:t.leafCount])
	return leaves
}

// VerifyProof recomputes the path hash from leaf to root, using the index
// parity at each level to order siblings.
func VerifyProof(leaf []byte, proof [][]byte, root []byte, index int, hash PairHash) bool {
	current := leaf
	pos := index
	for _, sibling := range proof {
		if pos&1 == 1 {
			current = hash(sibling, current)
		} else {
			current = hash(current, sibling)
		}
		pos /= 2
	}
	return bytes.Equal(current, root)
}

// VerifyProofWithPositions verifies using the recorded position flags
// instead of index parity. The flags are trusted as recorded.
func VerifyProofWithPositions(leaf []byte, proof []ProofStep, root []byte, hash PairHash) bool {
	current := leaf
	for _, step := range proof {
		if step.Right {
			current = hash(step.Sibling, current)
		} else {
			current = hash(current, step.Sibling)
		}
	}
	return bytes.Equal(current, root)
}
