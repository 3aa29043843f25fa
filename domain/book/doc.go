// Package book implements the in-memory limit order book and matching
// engine: a dense price-level array per side, a word-packed bitmap for
// best-price search, a slab-allocated pool of 64-byte order records
// linked into per-level FIFO queues, and a batched event stream drained
// through a lock-free SPSC ring.
//
// All mutating operations are single-writer. The locked entry points
// wrap the unlocked ones behind a sync.RWMutex so observers can run
// concurrently in mixed deployments; replay and benchmarks call the
// NoLock surface directly.
package book
