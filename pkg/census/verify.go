package census

import (
	"fmt"
	"math/big"

	"github.com/CensusLabs/census-zkproof/pkg/hash"
)

// ProofRequest is the value shape consumed by the inclusion verifier: the
// claimed position, the secret preimage whose Hash1 is the leaf, the
// committed root, and the authentication path (one sibling per level, leaf
// level first).
type ProofRequest struct {
	Key      int
	Value    *big.Int
	Root     *big.Int
	Siblings []*big.Int
}

// Verifier recomputes a root from a proof request and compares it to the
// committed one. It is the native mirror of the zero-knowledge circuit in
// circuits/inclusion and must use the exact hash parameterization the tree
// was built with.
type Verifier struct {
	h     hash.Hash
	depth int
}

// NewVerifier returns a verifier for trees of the given depth.
func NewVerifier(h hash.Hash, depth int) *Verifier {
	return &Verifier{h: h, depth: depth}
}

// NewTreeVerifier returns a verifier paired with an existing tree. It fails
// fast with ErrHashMismatch when the hash parameterizations differ, instead
// of letting every verification silently fail later.
func NewTreeVerifier(h hash.Hash, t *Tree) (*Verifier, error) {
	if h.Name() != t.HashName() {
		return nil, fmt.Errorf("%w: tree built with %s, verifier given %s",
			ErrHashMismatch, t.HashName(), h.Name())
	}
	return NewVerifier(h, t.Depth()), nil
}

// combine performs one tree level: bit 1 places the accumulator on the
// right (Hash2(sibling, acc)), bit 0 on the left (Hash2(acc, sibling)).
// The circuit expresses the same rule branch-free with two selects; here a
// plain conditional carries identical semantics.
func combine(h hash.Hash, acc, sibling *big.Int, bit uint8) *big.Int {
	if bit == 1 {
		return h.Hash2(sibling, acc)
	}
	return h.Hash2(acc, sibling)
}

// Verify checks that some secret value whose derived public value sits at
// req.Key in the committed tree is known:
//
//	acc = Hash1(req.Value)
//	for each level l: acc = combine(acc, req.Siblings[l], bit_l(req.Key))
//	acc == req.Root
//
// A false result means the statement does not hold for this witness; it is
// an expected negative outcome, not a failure of the verifier. Errors are
// reserved for malformed input and surface before any hashing.
func (v *Verifier) Verify(req ProofRequest) (bool, error) {
	if len(req.Siblings) != v.depth {
		return false, fmt.Errorf("%w: got %d siblings, depth %d",
			ErrProofLength, len(req.Siblings), v.depth)
	}

	bits, err := Decompose(req.Key, v.depth)
	if err != nil {
		return false, err
	}

	acc := v.h.Hash1(req.Value)
	for l := 0; l < v.depth; l++ {
		acc = combine(v.h, acc, req.Siblings[l], bits[l])
	}

	return acc.Cmp(req.Root) == 0, nil
}
