package inclusion

const (
	// DefaultDepth is the census depth the production circuit is compiled
	// for: 2^16 member slots. The depth is a compile-time property of the
	// constraint system; trees of a different depth need their own compiled
	// circuit (see NewCircuit).
	DefaultDepth = 16

	// CircuitName keys the exported proving/verifying key files.
	CircuitName = "inclusion"
)
