// Package field converts between the external representations of census
// member values (decimal or 0x-prefixed hex strings, canonical 32-byte
// encodings) and the big.Int field elements the rest of the library works
// with.
package field

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ParseElement parses a census member value. Accepts decimal ("123") and
// hex ("0xab…") forms. The value is reduced into the BN254 scalar field.
func ParseElement(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty field element")
	}

	v := new(big.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, ok := v.SetString(s[2:], 16); !ok {
			return nil, fmt.Errorf("invalid hex field element %q", s)
		}
	} else {
		if _, ok := v.SetString(s, 10); !ok {
			return nil, fmt.Errorf("invalid decimal field element %q", s)
		}
	}

	var e fr.Element
	e.SetBigInt(v)
	out := new(big.Int)
	e.BigInt(out)
	return out, nil
}

// ElementBytes returns the canonical 32-byte big-endian encoding of x,
// reduced into the field. This is the encoding used by the tree
// serialization format.
func ElementBytes(x *big.Int) [fr.Bytes]byte {
	var e fr.Element
	e.SetBigInt(x)
	return e.Bytes()
}

// ElementFromBytes decodes a canonical 32-byte encoding produced by
// ElementBytes.
func ElementFromBytes(b []byte) *big.Int {
	var e fr.Element
	e.SetBytes(b)
	out := new(big.Int)
	e.BigInt(out)
	return out
}

// ElementString formats x as a 0x-prefixed hex string, zero-padded to the
// full 32-byte width.
func ElementString(x *big.Int) string {
	b := ElementBytes(x)
	return fmt.Sprintf("0x%x", b[:])
}
