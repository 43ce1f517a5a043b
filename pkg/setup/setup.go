// Package setup wraps circuit compilation, trusted setup, and key
// management for the census circuits. The dev paths are single-party and
// insecure; production keys come out of the MPC ceremony flow.
package setup

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/groth16/bn254/mpcsetup"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/constraint"
	cs_bn254 "github.com/consensys/gnark/constraint/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"
)

// Backend selects which proof system to use for a circuit.
type Backend int

const (
	Groth16Backend Backend = iota
	PlonkBackend
)

// Key file layout inside a keys directory:
//
//	<circuitName>_prover.key
//	<circuitName>_verifier.key
//	<circuitName>_verifier.sol
func proverKeyPath(dir, name string) string   { return filepath.Join(dir, name+"_prover.key") }
func verifierKeyPath(dir, name string) string { return filepath.Join(dir, name+"_verifier.key") }
func solidityPath(dir, name string) string    { return filepath.Join(dir, name+"_verifier.sol") }

// CompileCircuit compiles a circuit for the Groth16 backend (R1CS).
func CompileCircuit(circuit frontend.Circuit) (constraint.ConstraintSystem, error) {
	return CompileCircuitForBackend(circuit, Groth16Backend)
}

// CompileCircuitForBackend compiles a circuit with the builder the given
// backend needs: R1CS for Groth16, sparse R1CS for PLONK.
func CompileCircuitForBackend(circuit frontend.Circuit, b Backend) (constraint.ConstraintSystem, error) {
	var builder frontend.NewBuilder
	switch b {
	case Groth16Backend:
		builder = r1cs.NewBuilder
	case PlonkBackend:
		builder = scs.NewBuilder
	default:
		return nil, fmt.Errorf("unknown backend: %d", b)
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), builder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	return ccs, nil
}

func printDevWarning(detail string) {
	fmt.Println("================================================================")
	fmt.Printf("  WARNING: %s (1-of-1 trust assumption)\n", detail)
	fmt.Println("  DO NOT use these keys in production.")
	fmt.Println("  For production keys, run: census setup ceremony --help")
	fmt.Println("================================================================")
}

// DevSetup compiles the circuit and runs a single-party Groth16 setup,
// writing the proving key, verifying key, and Solidity verifier to
// outputDir. Not for production.
func DevSetup(circuit frontend.Circuit, outputDir, circuitName string) error {
	printDevWarning("Single-party Groth16 setup")

	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}
	return ExportKeys(pk, vk, outputDir, circuitName)
}

// PlonkDevSetup is the PLONK analogue of DevSetup, using an unsafe locally
// generated KZG SRS. Not for production.
func PlonkDevSetup(circuit frontend.Circuit, outputDir, circuitName string) error {
	printDevWarning("Unsafe KZG SRS")

	ccs, err := CompileCircuitForBackend(circuit, PlonkBackend)
	if err != nil {
		return err
	}
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return fmt.Errorf("generate unsafe KZG SRS: %w", err)
	}
	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		return fmt.Errorf("plonk setup: %w", err)
	}
	return ExportPlonkKeys(pk, vk, outputDir, circuitName)
}

// exportArtifacts writes a proving key, verifying key, and Solidity
// verifier under outputDir. Both Groth16 and PLONK verifying keys satisfy
// the constraint.
func exportArtifacts(pk io.WriterTo, vk interface {
	io.WriterTo
	ExportSolidity(io.Writer, ...solidity.ExportOption) error
}, outputDir, circuitName string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	solPath := solidityPath(outputDir, circuitName)
	f, err := os.Create(solPath)
	if err != nil {
		return fmt.Errorf("create solidity verifier: %w", err)
	}
	if err := vk.ExportSolidity(f); err != nil {
		f.Close()
		return fmt.Errorf("export solidity verifier: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	vkPath := verifierKeyPath(outputDir, circuitName)
	if err := saveObject(vkPath, vk); err != nil {
		return err
	}
	pkPath := proverKeyPath(outputDir, circuitName)
	if err := saveObject(pkPath, pk); err != nil {
		return err
	}

	fmt.Printf("Exported: %s, %s, %s\n", pkPath, vkPath, solPath)
	return nil
}

// ExportKeys writes Groth16 keys and the Solidity verifier to outputDir.
func ExportKeys(pk groth16.ProvingKey, vk groth16.VerifyingKey, outputDir, circuitName string) error {
	return exportArtifacts(pk, vk, outputDir, circuitName)
}

// ExportPlonkKeys writes PLONK keys and the Solidity verifier to outputDir.
func ExportPlonkKeys(pk plonk.ProvingKey, vk plonk.VerifyingKey, outputDir, circuitName string) error {
	return exportArtifacts(pk, vk, outputDir, circuitName)
}

// LoadKeys loads Groth16 proving and verifying keys from dir.
func LoadKeys(dir, circuitName string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := loadObject(proverKeyPath(dir, circuitName), pk); err != nil {
		return nil, nil, fmt.Errorf("proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := loadObject(verifierKeyPath(dir, circuitName), vk); err != nil {
		return nil, nil, fmt.Errorf("verifying key: %w", err)
	}
	return pk, vk, nil
}

// LoadPlonkKeys loads PLONK proving and verifying keys from dir.
func LoadPlonkKeys(dir, circuitName string) (plonk.ProvingKey, plonk.VerifyingKey, error) {
	pk := plonk.NewProvingKey(ecc.BN254)
	if err := loadObject(proverKeyPath(dir, circuitName), pk); err != nil {
		return nil, nil, fmt.Errorf("proving key: %w", err)
	}
	vk := plonk.NewVerifyingKey(ecc.BN254)
	if err := loadObject(verifierKeyPath(dir, circuitName), vk); err != nil {
		return nil, nil, fmt.Errorf("verifying key: %w", err)
	}
	return pk, vk, nil
}

// CeremonyDir holds the intermediate state of a multi-party Groth16 setup:
// phase1_NNNN.bin / phase2_NNNN.bin contribution chains (index 0 is the
// init state) plus the sealed srs_commons.bin between the phases.
const CeremonyDir = "ceremony"

// CeremonyP1Init writes the initial Phase 1 (Powers of Tau) state, sized to
// the circuit's constraint count.
func CeremonyP1Init(circuit frontend.Circuit) error {
	if err := os.MkdirAll(CeremonyDir, 0o755); err != nil {
		return err
	}
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}

	N := ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))
	fmt.Printf("Phase 1: domain size N = %d (2^%d), %d constraints\n", N, bits.Len64(N)-1, ccs.GetNbConstraints())

	p := mpcsetup.NewPhase1(N)
	path := nextContribPath("phase1")
	if err := saveObject(path, p); err != nil {
		return err
	}
	fmt.Printf("Wrote initial Phase 1 state to %s\n", path)
	return nil
}

// CeremonyP1Contribute mixes fresh randomness into the latest Phase 1 state.
func CeremonyP1Contribute() error {
	latest, err := latestContrib("phase1")
	if err != nil {
		return err
	}
	fmt.Printf("Loading %s\n", latest)

	var p mpcsetup.Phase1
	if err := loadObject(latest, &p); err != nil {
		return err
	}
	p.Contribute()

	path := nextContribPath("phase1")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote Phase 1 contribution to %s\n", path)
	return nil
}

// CeremonyP1Verify checks the whole Phase 1 contribution chain and seals it
// with a random beacon, writing the SRS commons for Phase 2.
func CeremonyP1Verify(circuit frontend.Circuit, beaconHex string) error {
	beacon, err := parseBeacon(beaconHex)
	if err != nil {
		return err
	}
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return err
	}
	N := ecc.NextPowerOfTwo(uint64(ccs.GetNbConstraints()))

	phases, err := loadContribChain[mpcsetup.Phase1]("phase1")
	if err != nil {
		return err
	}
	fmt.Printf("Verifying %d Phase 1 contribution(s)...\n", len(phases))

	commons, err := mpcsetup.VerifyPhase1(N, beacon, phases...)
	if err != nil {
		return fmt.Errorf("Phase 1 verification FAILED: %w", err)
	}

	srsPath := filepath.Join(CeremonyDir, "srs_commons.bin")
	if err := saveObject(srsPath, &commons); err != nil {
		return err
	}
	fmt.Printf("Phase 1 verified and sealed. SRS commons written to %s\n", srsPath)
	return nil
}

// CeremonyP2Init writes the initial Phase 2 (circuit-specific) state from
// the sealed Phase 1 SRS commons.
func CeremonyP2Init(circuit frontend.Circuit) error {
	if err := os.MkdirAll(CeremonyDir, 0o755); err != nil {
		return err
	}
	r1csConcrete, commons, err := phase2Inputs(circuit)
	if err != nil {
		return err
	}

	var p mpcsetup.Phase2
	p.Initialize(r1csConcrete, commons)

	path := nextContribPath("phase2")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote initial Phase 2 state to %s\n", path)
	return nil
}

// CeremonyP2Contribute mixes fresh randomness into the latest Phase 2 state.
func CeremonyP2Contribute() error {
	latest, err := latestContrib("phase2")
	if err != nil {
		return err
	}
	fmt.Printf("Loading %s\n", latest)

	var p mpcsetup.Phase2
	if err := loadObject(latest, &p); err != nil {
		return err
	}
	p.Contribute()

	path := nextContribPath("phase2")
	if err := saveObject(path, &p); err != nil {
		return err
	}
	fmt.Printf("Wrote Phase 2 contribution to %s\n", path)
	return nil
}

// CeremonyP2Verify checks the Phase 2 contribution chain, seals it with a
// random beacon, and exports the resulting production keys.
func CeremonyP2Verify(circuit frontend.Circuit, beaconHex, outputDir, circuitName string) error {
	beacon, err := parseBeacon(beaconHex)
	if err != nil {
		return err
	}
	r1csConcrete, commons, err := phase2Inputs(circuit)
	if err != nil {
		return err
	}

	phases, err := loadContribChain[mpcsetup.Phase2]("phase2")
	if err != nil {
		return err
	}
	fmt.Printf("Verifying %d Phase 2 contribution(s)...\n", len(phases))

	pk, vk, err := mpcsetup.VerifyPhase2(r1csConcrete, commons, beacon, phases...)
	if err != nil {
		return fmt.Errorf("Phase 2 verification FAILED: %w", err)
	}

	if err := ExportKeys(pk, vk, outputDir, circuitName); err != nil {
		return err
	}
	fmt.Println("Ceremony complete. Keys are production-ready.")
	return nil
}

func phase2Inputs(circuit frontend.Circuit) (*cs_bn254.R1CS, *mpcsetup.SrsCommons, error) {
	ccs, err := CompileCircuit(circuit)
	if err != nil {
		return nil, nil, err
	}
	r1csConcrete := ccs.(*cs_bn254.R1CS)

	var commons mpcsetup.SrsCommons
	if err := loadObject(filepath.Join(CeremonyDir, "srs_commons.bin"), &commons); err != nil {
		return nil, nil, fmt.Errorf("SRS commons (run p1-verify first): %w", err)
	}
	return r1csConcrete, &commons, nil
}

// loadContribChain loads every contributed state of a phase, skipping the
// init file at index 0.
func loadContribChain[P any, PP interface {
	*P
	io.ReaderFrom
}](prefix string) ([]PP, error) {
	contribs := findContribs(prefix)
	if len(contribs) < 2 {
		return nil, fmt.Errorf("need the %s init file plus at least one contribution", prefix)
	}

	phases := make([]PP, len(contribs)-1)
	for i, path := range contribs[1:] {
		phases[i] = PP(new(P))
		if err := loadObject(path, phases[i]); err != nil {
			return nil, err
		}
	}
	return phases, nil
}

func saveObject(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := obj.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func loadObject(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func parseBeacon(hexStr string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid beacon hex: %w", err)
	}
	if len(b) < 16 {
		return nil, fmt.Errorf("beacon must be at least 16 bytes for sufficient entropy")
	}
	return b, nil
}

// findContribs returns the sorted ceremony/<prefix>_NNNN.bin paths.
func findContribs(prefix string) []string {
	matches, _ := filepath.Glob(filepath.Join(CeremonyDir, prefix+"_????.bin"))
	sort.Strings(matches)
	return matches
}

func latestContrib(prefix string) (string, error) {
	contribs := findContribs(prefix)
	if len(contribs) == 0 {
		return "", fmt.Errorf("no %s contributions found in %s/", prefix, CeremonyDir)
	}
	return contribs[len(contribs)-1], nil
}

func nextContribPath(prefix string) string {
	return filepath.Join(CeremonyDir, fmt.Sprintf("%s_%04d.bin", prefix, len(findContribs(prefix))))
}
