// Package hash provides the algebraic hash functions used for census
// commitments. All values are BN254 scalar field elements; inputs are
// written to the underlying hashers as canonical 32-byte fr.Element
// encodings so that a zero value hashes identically on the native and
// in-circuit sides (big.Int.Bytes() would emit an empty slice instead).
package hash

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Hash names, also used as parameterization fingerprints: a census tree
// records the name of the hash it was built with, and verifiers refuse to
// pair with a tree built under a different parameterization.
const (
	Poseidon2Name = "poseidon2-bn254"
	MiMCName      = "mimc-bn254"
)

// Hash is an arity-1/arity-2 collision-resistant hash over the BN254 scalar
// field. Hash1 derives a public value from a secret preimage; Hash2 combines
// two child nodes into their parent and is order-sensitive.
type Hash interface {
	Name() string
	Hash1(x *big.Int) *big.Int
	Hash2(left, right *big.Int) *big.Int
}

// Poseidon2 returns the Poseidon2 Merkle-Damgard hash. The in-circuit
// counterpart is poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50) wrapped
// in std/hash.NewMerkleDamgardHasher; both sides share the same round
// constants, so tree construction and circuit verification agree.
func Poseidon2() Hash { return poseidon2Hash{} }

// MiMC returns the MiMC hash over BN254. Native-only alternative for
// deployments that verify proofs with the MiMC gadget instead.
func MiMC() Hash { return mimcHash{} }

// ByName resolves a recorded hash name back to an implementation.
func ByName(name string) (Hash, bool) {
	switch name {
	case Poseidon2Name:
		return Poseidon2(), true
	case MiMCName:
		return MiMC(), true
	}
	return nil, false
}

type poseidon2Hash struct{}

func (poseidon2Hash) Name() string { return Poseidon2Name }

func (poseidon2Hash) Hash1(x *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	b := feBytes(x)
	h.Write(b[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

func (poseidon2Hash) Hash2(left, right *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	lb := feBytes(left)
	rb := feBytes(right)
	h.Write(lb[:])
	h.Write(rb[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

type mimcHash struct{}

func (mimcHash) Name() string { return MiMCName }

func (mimcHash) Hash1(x *big.Int) *big.Int {
	h := mimc.NewMiMC()
	b := feBytes(x)
	h.Write(b[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

func (mimcHash) Hash2(left, right *big.Int) *big.Int {
	h := mimc.NewMiMC()
	lb := feBytes(left)
	rb := feBytes(right)
	h.Write(lb[:])
	h.Write(rb[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

// feBytes reduces x into the field and returns its canonical 32-byte
// big-endian encoding.
func feBytes(x *big.Int) [fr.Bytes]byte {
	var e fr.Element
	e.SetBigInt(x)
	return e.Bytes()
}
