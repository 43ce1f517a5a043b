package inclusion_test

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/CensusLabs/census-zkproof/circuits/inclusion"
	"github.com/CensusLabs/census-zkproof/pkg/census"
	"github.com/CensusLabs/census-zkproof/pkg/crypto"
	"github.com/CensusLabs/census-zkproof/pkg/hash"
	"github.com/CensusLabs/census-zkproof/pkg/setup"
)

var memberSecrets = []int64{11, 22, 33, 44, 55, 66, 77, 88}

// buildCensus builds a depth-3 census whose leaves are the derived public
// values of memberSecrets.
func buildCensus(t *testing.T) *census.Tree {
	t.Helper()
	h, _ := hash.ByName(hash.Poseidon2Name)
	leaves := make([]*big.Int, len(memberSecrets))
	for i, sk := range memberSecrets {
		leaves[i] = crypto.DerivePublicValue(h, big.NewInt(sk))
	}
	tree, err := census.Build(h, 3, leaves)
	if err != nil {
		t.Fatalf("build census: %v", err)
	}
	return tree
}

func compileAndSetup(t *testing.T) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey) {
	t.Helper()
	ccs, err := setup.CompileCircuit(inclusion.NewCircuit(3))
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}
	return ccs, pk, vk
}

func proveAndVerify(t *testing.T, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, assignment *inclusion.Circuit) {
	t.Helper()

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		t.Fatalf("extract public witness: %v", err)
	}
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// expectProveFails asserts that the assignment does not satisfy the circuit.
func expectProveFails(t *testing.T, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment *inclusion.Circuit) {
	t.Helper()

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}
	if _, err := groth16.Prove(ccs, pk, witness); err == nil {
		t.Fatal("prove succeeded on an unsatisfiable assignment")
	}
}

// TestInclusionEndToEnd compiles the circuit, performs a dev setup, builds
// a census, prepares a witness for member 2, proves, and verifies.
func TestInclusionEndToEnd(t *testing.T) {
	ccs, pk, vk := compileAndSetup(t)
	tree := buildCensus(t)
	t.Logf("Census root: 0x%x", tree.Root().Bytes())

	result, err := inclusion.PrepareWitness(big.NewInt(33), 2, tree)
	if err != nil {
		t.Fatalf("prepare witness: %v", err)
	}

	proveAndVerify(t, ccs, pk, vk, &result.Assignment)
	t.Log("ZK proof verified successfully!")
}

// TestInclusionAllMembers proves membership for every leaf position with the
// same compiled circuit and keys.
func TestInclusionAllMembers(t *testing.T) {
	ccs, pk, vk := compileAndSetup(t)
	tree := buildCensus(t)

	for i, sk := range memberSecrets {
		result, err := inclusion.PrepareWitness(big.NewInt(sk), i, tree)
		if err != nil {
			t.Fatalf("prepare witness for member %d: %v", i, err)
		}
		proveAndVerify(t, ccs, pk, vk, &result.Assignment)
	}
}

// TestInclusionUnsatisfiable exercises the negative paths: every tampered
// assignment must be rejected at proving time.
func TestInclusionUnsatisfiable(t *testing.T) {
	ccs, pk, _ := compileAndSetup(t)
	tree := buildCensus(t)

	result, err := inclusion.PrepareWitness(big.NewInt(33), 2, tree)
	if err != nil {
		t.Fatalf("prepare witness: %v", err)
	}

	t.Run("tampered_root", func(t *testing.T) {
		a := result.Assignment
		a.Root = new(big.Int).Add(result.Root, big.NewInt(1))
		expectProveFails(t, ccs, pk, &a)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		a := result.Assignment
		a.SecretKey = big.NewInt(34)
		expectProveFails(t, ccs, pk, &a)
	})

	t.Run("wrong_index", func(t *testing.T) {
		a := result.Assignment
		a.Index = 3
		expectProveFails(t, ccs, pk, &a)
	})

	t.Run("index_out_of_range", func(t *testing.T) {
		a := result.Assignment
		a.Index = 10
		expectProveFails(t, ccs, pk, &a)
	})

	t.Run("tampered_sibling", func(t *testing.T) {
		a := result.Assignment
		siblings := make([]frontend.Variable, len(a.Siblings))
		copy(siblings, a.Siblings)
		siblings[1] = big.NewInt(12345)
		a.Siblings = siblings
		expectProveFails(t, ccs, pk, &a)
	})
}

// TestPrepareWitnessErrors checks the fail-fast paths before any proving.
func TestPrepareWitnessErrors(t *testing.T) {
	tree := buildCensus(t)

	// Secret that does not derive the leaf at the claimed index.
	if _, err := inclusion.PrepareWitness(big.NewInt(34), 2, tree); err == nil {
		t.Fatal("accepted a secret that does not derive the leaf")
	}

	// Index out of range.
	if _, err := inclusion.PrepareWitness(big.NewInt(33), 8, tree); !errors.Is(err, census.ErrIndexOutOfRange) {
		t.Fatalf("index 8: got %v, want ErrIndexOutOfRange", err)
	}

	// Tree built with a hash the circuit does not implement.
	h, _ := hash.ByName(hash.MiMCName)
	leaves := make([]*big.Int, 8)
	for i := range leaves {
		leaves[i] = crypto.DerivePublicValue(h, big.NewInt(memberSecrets[i]))
	}
	mimcTree, err := census.Build(h, 3, leaves)
	if err != nil {
		t.Fatalf("build mimc census: %v", err)
	}
	if _, err := inclusion.PrepareWitness(big.NewInt(11), 0, mimcTree); !errors.Is(err, census.ErrHashMismatch) {
		t.Fatalf("mimc tree: got %v, want ErrHashMismatch", err)
	}
}

// TestCircuitMatchesNativeVerifier cross-checks the two implementations of
// the same statement: an assignment the circuit accepts must also pass the
// native verifier, and vice versa on the negative side.
func TestCircuitMatchesNativeVerifier(t *testing.T) {
	tree := buildCensus(t)
	h, _ := hash.ByName(hash.Poseidon2Name)
	v, err := census.NewTreeVerifier(h, tree)
	if err != nil {
		t.Fatal(err)
	}

	req, err := tree.Request(big.NewInt(33), 2)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := v.Verify(req)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("native verifier rejected the fixture witness")
	}

	if _, err := inclusion.PrepareWitness(big.NewInt(33), 2, tree); err != nil {
		t.Fatalf("circuit witness preparation rejected the fixture witness: %v", err)
	}
}

// TestExportFixture generates a deterministic fixture and verifies it
// round-trips through JSON.
func TestExportFixture(t *testing.T) {
	ccs, err := setup.CompileCircuit(inclusion.NewCircuit(3))
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	tmpDir := t.TempDir()
	if err := setup.ExportKeys(pk, vk, tmpDir, inclusion.CircuitName); err != nil {
		t.Fatalf("export keys: %v", err)
	}

	jsonOut, err := inclusion.ExportProofFixture(tmpDir)
	if err != nil {
		t.Fatalf("export proof fixture: %v", err)
	}

	var fixture inclusion.ProofFixture
	if err := json.Unmarshal(jsonOut, &fixture); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	if fixture.Root == "" {
		t.Fatal("fixture root is empty")
	}
	for i, p := range fixture.SolidityProof {
		if p == "" {
			t.Fatalf("fixture solidity proof[%d] is empty", i)
		}
	}
}
