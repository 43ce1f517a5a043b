package inclusion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"

	"github.com/CensusLabs/census-zkproof/pkg/census"
	"github.com/CensusLabs/census-zkproof/pkg/crypto"
	"github.com/CensusLabs/census-zkproof/pkg/hash"
	"github.com/CensusLabs/census-zkproof/pkg/setup"
)

// Fixture parameters: an 8-member census at depth 3, membership proven for
// the member at index 2. Deterministic so the Solidity test vectors are
// reproducible.
const fixtureDepth = 3

var fixtureSecrets = []int64{11, 22, 33, 44, 55, 66, 77, 88}

// ProofFixture holds all values needed for Solidity verifier tests.
type ProofFixture struct {
	SolidityProof [8]string `json:"solidity_proof"`
	Root          string    `json:"root"`
}

// ExportProofFixture generates a deterministic proof fixture for Solidity
// tests. keysDir must contain keys produced by setup for a depth-3 circuit.
func ExportProofFixture(keysDir string) ([]byte, error) {
	ccs, err := setup.CompileCircuit(NewCircuit(fixtureDepth))
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}

	pk, vk, err := setup.LoadKeys(keysDir, CircuitName)
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}

	// Deterministic census: leaves are the derived public values of the
	// fixture secrets.
	h, _ := hash.ByName(hash.Poseidon2Name)
	leaves := make([]*big.Int, len(fixtureSecrets))
	for i, sk := range fixtureSecrets {
		leaves[i] = crypto.DerivePublicValue(h, big.NewInt(sk))
	}
	tree, err := census.Build(h, fixtureDepth, leaves)
	if err != nil {
		return nil, fmt.Errorf("build census: %w", err)
	}
	fmt.Printf("Census root: 0x%x\n", tree.Root().Bytes())

	result, err := PrepareWitness(big.NewInt(fixtureSecrets[2]), 2, tree)
	if err != nil {
		return nil, fmt.Errorf("prepare witness: %w", err)
	}

	witness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}

	fmt.Println("Generating proof...")
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	// Proof points in Solidity calldata order:
	// [A.x, A.y, B.x1, B.x0, B.y1, B.y0, C.x, C.y].
	p := proof.(*groth16bn254.Proof)
	coords := []interface{ BigInt(*big.Int) *big.Int }{
		&p.Ar.X, &p.Ar.Y,
		&p.Bs.X.A1, &p.Bs.X.A0,
		&p.Bs.Y.A1, &p.Bs.Y.A0,
		&p.Krs.X, &p.Krs.Y,
	}

	fixture := ProofFixture{
		Root: fmt.Sprintf("0x%064x", result.Root),
	}
	for i, c := range coords {
		fixture.SolidityProof[i] = fmt.Sprintf("0x%064x", c.BigInt(new(big.Int)))
	}

	jsonOut, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fixture: %w", err)
	}

	fmt.Println("\n=== PROOF FIXTURE (JSON) ===")
	fmt.Println(string(jsonOut))
	fmt.Println("\nPublic input order (from circuit struct tags): [root]")

	return jsonOut, nil
}
