// Package crypto holds the key material helpers for census members: secret
// key generation and the one-way derivation of the public value committed
// into the census tree.
package crypto

import (
	"crypto/rand"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"

	"github.com/CensusLabs/census-zkproof/pkg/hash"
)

// GenerateSecretKey generates a random secret key as a non-zero BN254 scalar
// field element.
func GenerateSecretKey() (*big.Int, error) {
	for {
		sk, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
		if err != nil {
			return nil, err
		}
		if sk.Sign() != 0 {
			return sk, nil
		}
	}
}

// DerivePublicValue computes publicValue = Hash1(secretKey). The public
// value is what gets committed as a census leaf; the secret key never
// leaves the member. h must be the same hash instance the census tree is
// built with.
func DerivePublicValue(h hash.Hash, secretKey *big.Int) *big.Int {
	return h.Hash1(secretKey)
}
