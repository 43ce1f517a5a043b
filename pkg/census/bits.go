package census

// MaxDepth bounds the supported tree depth. 2^32 leaves is already far
// beyond any census this library targets, and keeping depth well below the
// bit width of int makes the shift arithmetic below safe on all platforms.
const MaxDepth = 32

// Decompose returns the little-endian bit expansion of key in exactly depth
// bits (bits[0] is the least significant). It fails with ErrKeyOverflow when
// the key does not fit: a truncated decomposition would silently
// authenticate a path to a different leaf index.
func Decompose(key, depth int) ([]uint8, error) {
	if depth < 0 || depth > MaxDepth {
		return nil, ErrKeyOverflow
	}
	if key < 0 || key >= 1<<uint(depth) {
		return nil, ErrKeyOverflow
	}

	bits := make([]uint8, depth)
	for i := 0; i < depth; i++ {
		bits[i] = uint8((key >> uint(i)) & 1)
	}
	return bits, nil
}

// Recompose is the inverse of Decompose: Recompose(Decompose(k, d)) == k
// for every k in [0, 2^d).
func Recompose(bits []uint8) int {
	key := 0
	for i, b := range bits {
		key |= int(b&1) << uint(i)
	}
	return key
}
