package store

import "gismap/internal/tile"

// Noop is the disabled-cache store: every read misses, every write is
// dropped.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) TryGet(addr tile.Address) ([]byte, bool) {
	return nil, false
}

func (n *Noop) Put(addr tile.Address, data []byte) error {
	return nil
}

func (n *Noop) Clear() error {
	return nil
}

func (n *Noop) SizeBytes() (int64, error) {
	return 0, nil
}

func (n *Noop) Reclaim(maxBytes int64) error {
	return nil
}
