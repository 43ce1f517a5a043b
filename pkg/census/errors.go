package census

import "errors"

// Malformed-input errors. These surface immediately and are never recovered
// from locally; a failed root comparison is a plain false verification
// result, not an error.
var (
	// ErrInvalidLeafCount is returned by Build when the leaf count is not
	// exactly 2^depth.
	ErrInvalidLeafCount = errors.New("census: leaf count is not 2^depth")

	// ErrIndexOutOfRange is returned for proof requests outside [0, 2^depth).
	ErrIndexOutOfRange = errors.New("census: leaf index out of range")

	// ErrKeyOverflow is returned when a key does not fit losslessly in depth
	// bits. Truncating instead would let a proof authenticate a path to the
	// wrong index.
	ErrKeyOverflow = errors.New("census: key does not fit in depth bits")

	// ErrProofLength is returned when a request carries a sibling count that
	// does not match the verifier depth.
	ErrProofLength = errors.New("census: sibling count does not match depth")

	// ErrHashMismatch is returned when a tree and a verifier (or witness
	// preparer) disagree on the hash parameterization. A silent mismatch
	// would make every verification fail in a way that looks like a bad
	// witness, so it is rejected at construction time.
	ErrHashMismatch = errors.New("census: hash parameterization mismatch")
)
