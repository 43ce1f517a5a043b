// Package census implements the committed member set: a fixed-depth binary
// Merkle tree over BN254 field elements, proof extraction, and the native
// inclusion verifier that mirrors the zero-knowledge circuit.
package census

import (
	"fmt"
	"math/big"
	"runtime"
	"sync"

	"github.com/CensusLabs/census-zkproof/pkg/hash"
)

// Tree is an immutable fixed-depth binary Merkle tree. levels[0] holds the
// 2^depth leaves and levels[depth] the single root; levels[l][i] =
// Hash2(levels[l-1][2i], levels[l-1][2i+1]). Once built a tree is never
// mutated, so any number of Proof calls may run concurrently and previously
// issued proofs stay pinned to the root they were extracted under.
type Tree struct {
	depth    int
	hashName string
	hash     hash.Hash
	levels   [][]*big.Int
}

// Proof is the authentication path for one leaf. Siblings[l] is the sibling
// of the path node at level l, leaf level first, so len(Siblings) equals the
// tree depth.
type Proof struct {
	Index    int
	Siblings []*big.Int
}

// Build constructs the tree bottom-up from exactly 2^depth leaves using
// pairwise Hash2. It fails with ErrInvalidLeafCount before creating any
// state when the count is off. Within one level all hash evaluations are
// independent and run on a worker pool; levels are completed strictly in
// order because each depends on the previous one.
func Build(h hash.Hash, depth int, leaves []*big.Int) (*Tree, error) {
	if depth < 0 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d outside [0, %d]", ErrInvalidLeafCount, depth, MaxDepth)
	}
	if len(leaves) != 1<<uint(depth) {
		return nil, fmt.Errorf("%w: got %d leaves for depth %d", ErrInvalidLeafCount, len(leaves), depth)
	}

	levels := make([][]*big.Int, depth+1)
	levels[0] = make([]*big.Int, len(leaves))
	for i, leaf := range leaves {
		levels[0][i] = new(big.Int).Set(leaf)
	}

	for l := 1; l <= depth; l++ {
		levels[l] = hashLevel(h, levels[l-1])
	}

	return &Tree{
		depth:    depth,
		hashName: h.Name(),
		hash:     h,
		levels:   levels,
	}, nil
}

// hashLevel combines a completed level into its parent level. Every pair is
// independent, so the work is spread over NumCPU workers; the caller
// provides the barrier by not starting the next level until this returns.
func hashLevel(h hash.Hash, prev []*big.Int) []*big.Int {
	n := len(prev) / 2
	next := make([]*big.Int, n)

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			next[i] = h.Hash2(prev[2*i], prev[2*i+1])
		}
		return next
	}

	var wg sync.WaitGroup
	work := make(chan int, n)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				next[i] = h.Hash2(prev[2*i], prev[2*i+1])
			}
		}()
	}
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	return next
}

// Depth returns the tree depth (0 for a single-leaf tree).
func (t *Tree) Depth() int { return t.depth }

// HashName returns the parameterization fingerprint of the hash the tree
// was built with.
func (t *Tree) HashName() string { return t.hashName }

// NumLeaves returns 2^depth.
func (t *Tree) NumLeaves() int { return len(t.levels[0]) }

// Root returns the public commitment to the whole leaf set.
func (t *Tree) Root() *big.Int {
	return new(big.Int).Set(t.levels[t.depth][0])
}

// Leaf returns the leaf value at the given index.
func (t *Tree) Leaf(index int) (*big.Int, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("%w: index %d, depth %d", ErrIndexOutOfRange, index, t.depth)
	}
	return new(big.Int).Set(t.levels[0][index]), nil
}

// Proof extracts the authentication path for the leaf at index. The sibling
// at level l is levels[l][node^1] where node = index >> l. The tree is only
// read, never touched.
func (t *Tree) Proof(index int) (*Proof, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("%w: index %d, depth %d", ErrIndexOutOfRange, index, t.depth)
	}

	siblings := make([]*big.Int, t.depth)
	for l := 0; l < t.depth; l++ {
		node := index >> uint(l)
		siblings[l] = new(big.Int).Set(t.levels[l][node^1])
	}
	return &Proof{Index: index, Siblings: siblings}, nil
}

// Request assembles a full inclusion request for the member at index:
// its secret value, the current root, and the authentication path. The
// caller supplies the secret; the tree only ever sees the derived leaf.
func (t *Tree) Request(secretValue *big.Int, index int) (ProofRequest, error) {
	p, err := t.Proof(index)
	if err != nil {
		return ProofRequest{}, err
	}
	return ProofRequest{
		Key:      index,
		Value:    new(big.Int).Set(secretValue),
		Root:     t.Root(),
		Siblings: p.Siblings,
	}, nil
}

// WithLeaf returns a new tree snapshot with the leaf at index replaced.
// The receiver is left untouched, so proofs issued against its root remain
// valid against that root. Only the depth nodes on the affected path are
// rehashed; untouched nodes are shared (they are never mutated by either
// snapshot).
func (t *Tree) WithLeaf(index int, value *big.Int) (*Tree, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("%w: index %d, depth %d", ErrIndexOutOfRange, index, t.depth)
	}

	levels := make([][]*big.Int, t.depth+1)
	for l := range t.levels {
		levels[l] = append([]*big.Int(nil), t.levels[l]...)
	}

	levels[0][index] = new(big.Int).Set(value)
	node := index
	for l := 1; l <= t.depth; l++ {
		node >>= 1
		levels[l][node] = t.hash.Hash2(levels[l-1][2*node], levels[l-1][2*node+1])
	}

	return &Tree{
		depth:    t.depth,
		hashName: t.hashName,
		hash:     t.hash,
		levels:   levels,
	}, nil
}
