package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"gismap/internal/tile"
)

// Memory is a small in-process LRU of tile bytes sitting in front of the
// disk store, so repeated paints over the same area skip file I/O.
type Memory struct {
	cache *lru.Cache[tile.Address, []byte]
}

func NewMemory(maxTiles int) (*Memory, error) {
	c, err := lru.New[tile.Address, []byte](maxTiles)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c}, nil
}

func (m *Memory) Get(addr tile.Address) ([]byte, bool) {
	return m.cache.Get(addr)
}

func (m *Memory) Add(addr tile.Address, data []byte) {
	m.cache.Add(addr, data)
}

func (m *Memory) Purge() {
	m.cache.Purge()
}
