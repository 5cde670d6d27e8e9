package tile

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Address identifies one map tile on one tile server. It is comparable and
// used directly as a cache key.
type Address struct {
	Server string
	Z      int
	X      int
	Y      int
}

// Valid reports whether the tile coordinates exist at the zoom level.
func (a Address) Valid() bool {
	if a.Z < 0 {
		return false
	}
	n := 1 << uint(a.Z)
	return a.X >= 0 && a.X < n && a.Y >= 0 && a.Y < n
}

// Path returns the cache-relative file path for the tile.
// Layout: {server}/{z}/{x}/{y}.png
func (a Address) Path() string {
	return filepath.Join(a.Server, strconv.Itoa(a.Z), strconv.Itoa(a.X), strconv.Itoa(a.Y)+".png")
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", a.Server, a.Z, a.X, a.Y)
}
