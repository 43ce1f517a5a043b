package census

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/CensusLabs/census-zkproof/pkg/field"
	"github.com/CensusLabs/census-zkproof/pkg/hash"
)

// Binary tree format:
//
//	uint32(depth)
//	uint16(len(hashName)) | hashName bytes
//	for each level 0..depth:
//	  2^(depth-level) entries of 32 bytes (canonical big-endian fr.Element)
//
// Level sizes are implied by the depth, so no per-level counts are stored.

// Save writes the tree to w in a deterministic binary format.
func (t *Tree) Save(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(t.depth)); err != nil {
		return fmt.Errorf("write depth: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(t.hashName))); err != nil {
		return fmt.Errorf("write hash name length: %w", err)
	}
	if _, err := io.WriteString(w, t.hashName); err != nil {
		return fmt.Errorf("write hash name: %w", err)
	}

	for l := 0; l <= t.depth; l++ {
		for i, v := range t.levels[l] {
			b := field.ElementBytes(v)
			if _, err := w.Write(b[:]); err != nil {
				return fmt.Errorf("write level %d entry %d: %w", l, i, err)
			}
		}
	}

	return nil
}

// Load reads a tree written by Save. h must match the hash the tree was
// built with; a mismatch is rejected with ErrHashMismatch before any node
// is read. As a cheap corruption check the stored root is recomputed from
// the level below it.
func Load(r io.Reader, h hash.Hash) (*Tree, error) {
	var depth32 uint32
	if err := binary.Read(r, binary.BigEndian, &depth32); err != nil {
		return nil, fmt.Errorf("read depth: %w", err)
	}
	depth := int(depth32)
	if depth > MaxDepth {
		return nil, fmt.Errorf("stored depth %d exceeds max %d", depth, MaxDepth)
	}

	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("read hash name length: %w", err)
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, fmt.Errorf("read hash name: %w", err)
	}
	if string(nameBuf) != h.Name() {
		return nil, fmt.Errorf("%w: stored %s, given %s", ErrHashMismatch, nameBuf, h.Name())
	}

	levels := make([][]*big.Int, depth+1)
	var buf [32]byte
	for l := 0; l <= depth; l++ {
		n := 1 << uint(depth-l)
		levels[l] = make([]*big.Int, n)
		for i := 0; i < n; i++ {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("read level %d entry %d: %w", l, i, err)
			}
			levels[l][i] = field.ElementFromBytes(buf[:])
		}
	}

	if depth > 0 {
		recomputed := h.Hash2(levels[depth-1][0], levels[depth-1][1])
		if recomputed.Cmp(levels[depth][0]) != 0 {
			return nil, fmt.Errorf("stored root does not match its children")
		}
	}

	return &Tree{
		depth:    depth,
		hashName: h.Name(),
		hash:     h,
		levels:   levels,
	}, nil
}
