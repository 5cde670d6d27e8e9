package store

import (
	"gismap/internal/tile"
)

// Store is a durable tile cache keyed by tile address. A Store is an
// optimization, never a correctness dependency: every operation is allowed
// to fail quietly and callers must deliver tiles regardless.
type Store interface {
	// TryGet returns the cached tile bytes if present, decodable and fresh.
	// Stale or corrupt entries are deleted as a side effect and reported as
	// a miss.
	TryGet(addr tile.Address) ([]byte, bool)

	// Put writes tile bytes, overwriting any existing entry, and then
	// reclaims space if the cache exceeds its byte budget.
	Put(addr tile.Address, data []byte) error

	// Clear removes every cached tile, leaving an empty writable root.
	Clear() error

	// SizeBytes walks the cache tree and sums file sizes. It is O(file
	// count); callers poll it at most once per UI refresh tick, never per
	// tile.
	SizeBytes() (int64, error)

	// Reclaim deletes oldest-written tiles until the cache fits maxBytes.
	Reclaim(maxBytes int64) error
}
