package census

import (
	"errors"
	"testing"
)

func TestDecomposeLittleEndian(t *testing.T) {
	cases := []struct {
		key, depth int
		want       []uint8
	}{
		{0, 3, []uint8{0, 0, 0}},
		{1, 3, []uint8{1, 0, 0}},
		{2, 3, []uint8{0, 1, 0}},
		{5, 3, []uint8{1, 0, 1}},
		{7, 3, []uint8{1, 1, 1}},
		{0, 0, []uint8{}},
	}

	for _, c := range cases {
		bits, err := Decompose(c.key, c.depth)
		if err != nil {
			t.Fatalf("Decompose(%d, %d): %v", c.key, c.depth, err)
		}
		if len(bits) != len(c.want) {
			t.Fatalf("Decompose(%d, %d): got %d bits, want %d", c.key, c.depth, len(bits), len(c.want))
		}
		for i := range bits {
			if bits[i] != c.want[i] {
				t.Fatalf("Decompose(%d, %d): bit %d = %d, want %d", c.key, c.depth, i, bits[i], c.want[i])
			}
		}
	}
}

func TestDecomposeRecomposeRoundTrip(t *testing.T) {
	const depth = 4
	for key := 0; key < 1<<depth; key++ {
		bits, err := Decompose(key, depth)
		if err != nil {
			t.Fatalf("key %d: %v", key, err)
		}
		if got := Recompose(bits); got != key {
			t.Fatalf("round trip: got %d, want %d", got, key)
		}
	}
}

func TestDecomposeOverflow(t *testing.T) {
	cases := []struct{ key, depth int }{
		{8, 3},  // exactly 2^depth
		{9, 3},  // above
		{1, 0},  // anything non-zero at depth 0
		{-1, 3}, // negative keys never fit
		{0, -1},
		{0, MaxDepth + 1},
	}

	for _, c := range cases {
		if _, err := Decompose(c.key, c.depth); !errors.Is(err, ErrKeyOverflow) {
			t.Fatalf("Decompose(%d, %d): got %v, want ErrKeyOverflow", c.key, c.depth, err)
		}
	}
}
