package store

import (
	"bytes"
	"testing"

	"gismap/internal/tile"
)

func TestMemoryAddGet(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatal(err)
	}

	addr := tile.Address{Server: "openstreetmap", Z: 12, X: 1, Y: 2}
	data := []byte("tile-bytes")
	m.Add(addr, data)

	got, ok := m.Get(addr)
	if !ok || !bytes.Equal(got, data) {
		t.Errorf("Get = (%q, %v), want (%q, true)", got, ok, data)
	}

	if _, ok := m.Get(tile.Address{Server: "openstreetmap", Z: 12, X: 9, Y: 9}); ok {
		t.Error("Get hit for an address never added")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewMemory(2)
	if err != nil {
		t.Fatal(err)
	}

	a := tile.Address{Server: "openstreetmap", Z: 1, X: 0, Y: 0}
	b := tile.Address{Server: "openstreetmap", Z: 1, X: 1, Y: 0}
	c := tile.Address{Server: "openstreetmap", Z: 1, X: 0, Y: 1}

	m.Add(a, []byte("a"))
	m.Add(b, []byte("b"))
	m.Get(a) // a is now more recent than b
	m.Add(c, []byte("c"))

	if _, ok := m.Get(b); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := m.Get(a); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestMemoryPurge(t *testing.T) {
	m, err := NewMemory(4)
	if err != nil {
		t.Fatal(err)
	}
	addr := tile.Address{Server: "openstreetmap", Z: 3, X: 2, Y: 1}
	m.Add(addr, []byte("x"))
	m.Purge()
	if _, ok := m.Get(addr); ok {
		t.Error("entry survived Purge")
	}
}
