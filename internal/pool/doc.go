// Package pool provides memory management optimizations.
// This includes buffer pooling and resource reuse to reduce allocations.
//
// The pool package keeps per-writer memory bounded on streaming transfer
// paths by recycling part and copy buffers across operations.
package pool
