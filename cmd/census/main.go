// Command census is the operator tool around the census-zkproof library:
// key generation, census tree construction, trusted setup, proving, and
// proof verification.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/CensusLabs/census-zkproof/circuits/inclusion"
	"github.com/CensusLabs/census-zkproof/pkg/census"
	"github.com/CensusLabs/census-zkproof/pkg/crypto"
	"github.com/CensusLabs/census-zkproof/pkg/field"
	"github.com/CensusLabs/census-zkproof/pkg/hash"
	"github.com/CensusLabs/census-zkproof/pkg/setup"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Flag defaults may come from the environment (.env supported).
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "census",
		Short:         "Anonymous census membership proofs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		keygenCmd(log),
		buildCmd(log),
		setupCmd(log),
		proveCmd(log),
		verifyCmd(log),
		exportFixtureCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func keygenCmd(log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a member secret key and its derived public value",
		RunE: func(_ *cobra.Command, _ []string) error {
			sk, err := crypto.GenerateSecretKey()
			if err != nil {
				return err
			}
			pub := crypto.DerivePublicValue(hash.Poseidon2(), sk)

			log.Info().Msg("keep the secret key private; register only the public value")
			fmt.Printf("secret: %s\n", field.ElementString(sk))
			fmt.Printf("public: %s\n", field.ElementString(pub))
			return nil
		},
	}
}

func buildCmd(log zerolog.Logger) *cobra.Command {
	var (
		censusFile string
		depth      int
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the census tree from a file of member public values",
		RunE: func(_ *cobra.Command, _ []string) error {
			leaves, err := readCensusFile(censusFile)
			if err != nil {
				return err
			}
			log.Info().Int("members", len(leaves)).Int("depth", depth).Msg("building census tree")

			tree, err := census.Build(hash.Poseidon2(), depth, leaves)
			if err != nil {
				return err
			}

			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := tree.Save(f); err != nil {
				return err
			}

			log.Info().Str("root", field.ElementString(tree.Root())).Str("out", outFile).Msg("census committed")
			return nil
		},
	}

	cmd.Flags().StringVar(&censusFile, "census", envOr("CENSUS_FILE", ""), "file with one member public value per line")
	cmd.Flags().IntVar(&depth, "depth", inclusion.DefaultDepth, "tree depth (leaf count is 2^depth)")
	cmd.Flags().StringVar(&outFile, "out", envOr("CENSUS_TREE", "census_tree.bin"), "output tree file")
	_ = cmd.MarkFlagRequired("census")
	return cmd
}

func setupCmd(log zerolog.Logger) *cobra.Command {
	var (
		depth   int
		keysDir string
		plonk   bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Single-party dev setup for the inclusion circuit (insecure)",
		RunE: func(_ *cobra.Command, _ []string) error {
			circuit := inclusion.NewCircuit(depth)
			if plonk {
				return setup.PlonkDevSetup(circuit, keysDir, inclusion.CircuitName)
			}
			return setup.DevSetup(circuit, keysDir, inclusion.CircuitName)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", inclusion.DefaultDepth, "tree depth the circuit is compiled for")
	cmd.Flags().StringVar(&keysDir, "keys", envOr("CENSUS_KEYS_DIR", "keys"), "output directory for keys")
	cmd.Flags().BoolVar(&plonk, "plonk", false, "use the PLONK backend instead of Groth16")

	cmd.AddCommand(ceremonyCmd(log, &depth))
	return cmd
}

func ceremonyCmd(log zerolog.Logger, depth *int) *cobra.Command {
	var keysDir string

	cmd := &cobra.Command{
		Use:   "ceremony",
		Short: "Multi-party Groth16 setup ceremony",
	}
	cmd.PersistentFlags().StringVar(&keysDir, "keys", envOr("CENSUS_KEYS_DIR", "keys"), "output directory for final keys")

	circuit := func() frontend.Circuit { return inclusion.NewCircuit(*depth) }

	cmd.AddCommand(
		&cobra.Command{Use: "p1-init", Short: "Initialize Phase 1 (Powers of Tau)",
			RunE: func(_ *cobra.Command, _ []string) error { return setup.CeremonyP1Init(circuit()) }},
		&cobra.Command{Use: "p1-contribute", Short: "Add a Phase 1 contribution",
			RunE: func(_ *cobra.Command, _ []string) error { return setup.CeremonyP1Contribute() }},
		&cobra.Command{Use: "p1-verify BEACON_HEX", Short: "Verify Phase 1 and seal with a random beacon", Args: cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error { return setup.CeremonyP1Verify(circuit(), args[0]) }},
		&cobra.Command{Use: "p2-init", Short: "Initialize Phase 2 (circuit-specific)",
			RunE: func(_ *cobra.Command, _ []string) error { return setup.CeremonyP2Init(circuit()) }},
		&cobra.Command{Use: "p2-contribute", Short: "Add a Phase 2 contribution",
			RunE: func(_ *cobra.Command, _ []string) error { return setup.CeremonyP2Contribute() }},
		&cobra.Command{Use: "p2-verify BEACON_HEX", Short: "Verify Phase 2, seal, and export keys", Args: cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return setup.CeremonyP2Verify(circuit(), args[0], keysDir, inclusion.CircuitName)
			}},
	)
	return cmd
}

func proveCmd(log zerolog.Logger) *cobra.Command {
	var (
		treeFile string
		secretS  string
		index    int
		keysDir  string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Prove membership of a census member",
		RunE: func(_ *cobra.Command, _ []string) error {
			secret, err := field.ParseElement(secretS)
			if err != nil {
				return err
			}

			f, err := os.Open(treeFile)
			if err != nil {
				return err
			}
			tree, err := census.Load(f, hash.Poseidon2())
			f.Close()
			if err != nil {
				return err
			}
			log.Info().Int("depth", tree.Depth()).Str("root", field.ElementString(tree.Root())).Msg("census loaded")

			result, err := inclusion.PrepareWitness(secret, index, tree)
			if err != nil {
				return err
			}

			ccs, err := setup.CompileCircuit(inclusion.NewCircuit(tree.Depth()))
			if err != nil {
				return err
			}
			pk, vk, err := setup.LoadKeys(keysDir, inclusion.CircuitName)
			if err != nil {
				return err
			}

			witness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
			if err != nil {
				return err
			}
			publicWitness, err := witness.Public()
			if err != nil {
				return err
			}

			proof, err := groth16.Prove(ccs, pk, witness)
			if err != nil {
				return err
			}
			if err := groth16.Verify(proof, vk, publicWitness); err != nil {
				return fmt.Errorf("self-check verify: %w", err)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			proofPath := filepath.Join(outDir, "inclusion_proof.bin")
			var buf bytes.Buffer
			if _, err := proof.WriteTo(&buf); err != nil {
				return err
			}
			if err := os.WriteFile(proofPath, buf.Bytes(), 0o644); err != nil {
				return err
			}
			rootPath := filepath.Join(outDir, "inclusion_root.txt")
			if err := os.WriteFile(rootPath, []byte(field.ElementString(result.Root)+"\n"), 0o644); err != nil {
				return err
			}

			log.Info().Str("proof", proofPath).Str("root", field.ElementString(result.Root)).Msg("membership proven")
			return nil
		},
	}

	cmd.Flags().StringVar(&treeFile, "tree", envOr("CENSUS_TREE", "census_tree.bin"), "census tree file")
	cmd.Flags().StringVar(&secretS, "secret", "", "member secret key")
	cmd.Flags().IntVar(&index, "index", 0, "member leaf index")
	cmd.Flags().StringVar(&keysDir, "keys", envOr("CENSUS_KEYS_DIR", "keys"), "directory with proving/verifying keys")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory for proof artifacts")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func verifyCmd(log zerolog.Logger) *cobra.Command {
	var (
		proofFile string
		rootS     string
		depth     int
		keysDir   string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a stored membership proof against a census root",
		RunE: func(_ *cobra.Command, _ []string) error {
			root, err := field.ParseElement(rootS)
			if err != nil {
				return err
			}

			proof := groth16.NewProof(ecc.BN254)
			raw, err := os.ReadFile(proofFile)
			if err != nil {
				return err
			}
			if _, err := proof.ReadFrom(bytes.NewReader(raw)); err != nil {
				return fmt.Errorf("read proof: %w", err)
			}

			_, vk, err := setup.LoadKeys(keysDir, inclusion.CircuitName)
			if err != nil {
				return err
			}

			assignment := inclusion.NewCircuit(depth)
			assignment.Root = root
			publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
			if err != nil {
				return err
			}

			if err := groth16.Verify(proof, vk, publicWitness); err != nil {
				log.Error().Err(err).Msg("proof REJECTED")
				return err
			}
			log.Info().Str("root", field.ElementString(root)).Msg("proof verified")
			return nil
		},
	}

	cmd.Flags().StringVar(&proofFile, "proof", "inclusion_proof.bin", "proof file")
	cmd.Flags().StringVar(&rootS, "root", "", "census root the proof is checked against")
	cmd.Flags().IntVar(&depth, "depth", inclusion.DefaultDepth, "tree depth the circuit was compiled for")
	cmd.Flags().StringVar(&keysDir, "keys", envOr("CENSUS_KEYS_DIR", "keys"), "directory with verifying key")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func exportFixtureCmd() *cobra.Command {
	var keysDir string

	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Generate the deterministic Solidity test fixture",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := inclusion.ExportProofFixture(keysDir)
			return err
		},
	}
	cmd.Flags().StringVar(&keysDir, "keys", envOr("CENSUS_KEYS_DIR", "keys"), "directory with depth-3 fixture keys")
	return cmd
}

// readCensusFile parses one member public value per line; blank lines and
// '#' comments are skipped.
func readCensusFile(path string) ([]*big.Int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var leaves []*big.Int
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		v, err := field.ParseElement(s)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		leaves = append(leaves, v)
	}
	return leaves, sc.Err()
}
