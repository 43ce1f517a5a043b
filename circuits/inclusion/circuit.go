// Package inclusion implements the zero-knowledge census membership
// statement: the prover knows a secret value whose derived public value
// Hash(secret) is a leaf of the Merkle tree committed to by the public
// root. Neither the secret, the leaf, nor its position are revealed.
package inclusion

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// Circuit is the inclusion statement. The root is the only public input;
// the leaf position stays in the private witness — revealing it would leak
// which census member is proving.
type Circuit struct {
	// Public input
	Root frontend.Variable `gnark:"root,public"`

	// Private witness
	SecretKey frontend.Variable   `gnark:"secretKey"`
	Index     frontend.Variable   `gnark:"index"`
	Siblings  []frontend.Variable `gnark:"siblings"` // one per level, leaf level first
}

// NewCircuit returns a circuit skeleton for censuses of the given depth.
// The sibling slice length fixes the depth at compile time.
func NewCircuit(depth int) *Circuit {
	return &Circuit{Siblings: make([]frontend.Variable, depth)}
}

// Depth returns the tree depth the circuit was sized for.
func (c *Circuit) Depth() int { return len(c.Siblings) }

// Define builds the constraint system. Native counterpart:
// census.Verifier.Verify with the Poseidon2 parameterization.
func (c *Circuit) Define(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}
	hasher := hash.NewMerkleDamgardHasher(api, p, 0)

	// publicValue = H(secretKey): proves control of the secret without
	// revealing it. The value only ever feeds the fold below, so the
	// verifier observes it solely through the final root equality.
	hasher.Write(c.SecretKey)
	acc := hasher.Sum()

	// Little-endian position bits. ToBinary constrains every bit to {0,1}
	// and the recomposition to equal Index, so a position outside
	// [0, 2^depth) has no satisfying assignment — nothing ever truncates.
	bits := api.ToBinary(c.Index, len(c.Siblings))

	// Branch-free level fold, leaf level upward. bit = 1 places the
	// accumulator on the right of the pair, bit = 0 on the left.
	for l, sibling := range c.Siblings {
		left := api.Select(bits[l], sibling, acc)
		right := api.Select(bits[l], acc, sibling)

		hasher.Reset()
		hasher.Write(left, right)
		acc = hasher.Sum()
	}

	api.AssertIsEqual(acc, c.Root)
	return nil
}
