package inclusion

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/CensusLabs/census-zkproof/pkg/census"
	"github.com/CensusLabs/census-zkproof/pkg/crypto"
	"github.com/CensusLabs/census-zkproof/pkg/hash"
)

// WitnessResult holds the populated circuit assignment plus the derived
// values callers typically want for logging.
type WitnessResult struct {
	Assignment  Circuit
	PublicValue *big.Int
	Root        *big.Int
}

// PrepareWitness derives the full circuit assignment from the minimal
// independent inputs: the member's secret key, its leaf index, and the
// census tree. It fails fast when the tree was built with a hash other than
// the circuit's Poseidon2 parameterization, and when the derived public
// value does not match the leaf at index (a proof attempt with the wrong
// secret would otherwise only surface as an unsatisfiable circuit).
func PrepareWitness(secretKey *big.Int, index int, t *census.Tree) (*WitnessResult, error) {
	if t.HashName() != hash.Poseidon2Name {
		return nil, fmt.Errorf("%w: circuit uses %s, tree built with %s",
			census.ErrHashMismatch, hash.Poseidon2Name, t.HashName())
	}

	h, _ := hash.ByName(hash.Poseidon2Name)
	publicValue := crypto.DerivePublicValue(h, secretKey)

	leaf, err := t.Leaf(index)
	if err != nil {
		return nil, err
	}
	if leaf.Cmp(publicValue) != 0 {
		return nil, fmt.Errorf("leaf %d is not the public value derived from the given secret", index)
	}

	proof, err := t.Proof(index)
	if err != nil {
		return nil, err
	}

	siblings := make([]frontend.Variable, t.Depth())
	for l, s := range proof.Siblings {
		siblings[l] = s
	}

	root := t.Root()
	assignment := Circuit{
		Root:      root,
		SecretKey: new(big.Int).Set(secretKey),
		Index:     index,
		Siblings:  siblings,
	}

	return &WitnessResult{
		Assignment:  assignment,
		PublicValue: publicValue,
		Root:        root,
	}, nil
}
