package viewport

import (
	"image"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"gismap/internal/fetch"
	"gismap/internal/geo"
	"gismap/internal/tile"
)

// Offset is a grid position relative to the viewport's center tile.
type Offset struct {
	DX, DY int
}

// TileSource is what the tile set needs from the fetch layer: a cache probe
// and an asynchronous fetch tagged with the requesting grid generation.
type TileSource interface {
	Cached(addr tile.Address) ([]byte, bool)
	Request(addr tile.Address, dx, dy int, generation uint64)
}

// Limits bounds the viewport grid so worst-case fetch fan-out stays fixed
// regardless of window size.
type Limits struct {
	MaxTilesX int
	MaxTilesY int
	Margin    int
}

// DefaultLimits matches a desktop map window: up to 8x6 tiles with a
// 3-tile margin for fractional offsets.
func DefaultLimits() Limits {
	return Limits{MaxTilesX: 8, MaxTilesY: 6, Margin: 3}
}

// Cell describes one grid slot for inspection.
type Cell struct {
	Offset      Offset
	Address     tile.Address
	Placeholder bool
}

// TileSet is the set of tiles covering the current viewport. Every cell
// always holds an image: a cached tile on hit, a synthesized placeholder
// until the asynchronous fetch lands. Each rebuild bumps a generation
// counter that outstanding fetches carry back, so a slow response for a
// viewport that no longer exists is discarded instead of overwriting a
// coincidentally matching cell of the new grid.
type TileSet struct {
	mu       sync.Mutex
	source   TileSource
	server   string
	tileSize int
	limits   Limits
	log      *zap.Logger

	generation  uint64
	zoom        int
	centerTX    int
	centerTY    int
	lastView    geo.Viewport
	hasView     bool
	grid        map[Offset]image.Image
	addrs       map[Offset]tile.Address
	placeholder map[Offset]bool
}

func NewTileSet(source TileSource, server string, tileSize int, limits Limits, log *zap.Logger) *TileSet {
	return &TileSet{
		source:      source,
		server:      server,
		tileSize:    tileSize,
		limits:      limits,
		log:         log,
		grid:        make(map[Offset]image.Image),
		addrs:       make(map[Offset]tile.Address),
		placeholder: make(map[Offset]bool),
	}
}

// Recompute derives the tile grid for a viewport snapshot. Sub-tile pans
// keep the existing grid; once the center tile moves a full tile in either
// axis (or force is set) the grid is rebuilt under a new generation. Returns
// whether a rebuild happened.
func (t *TileSet) Recompute(vp geo.Viewport, force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	px, py := geo.GeoToPixel(vp.Center, vp.Zoom, t.tileSize)
	ctx := int(math.Floor(px / float64(t.tileSize)))
	cty := int(math.Floor(py / float64(t.tileSize)))

	t.lastView = vp
	t.hasView = true

	if !force && len(t.grid) > 0 && vp.Zoom == t.zoom &&
		absInt(ctx-t.centerTX) < 1 && absInt(cty-t.centerTY) < 1 {
		return false
	}

	t.generation++
	t.zoom = vp.Zoom
	t.centerTX = ctx
	t.centerTY = cty
	t.grid = make(map[Offset]image.Image)
	t.addrs = make(map[Offset]tile.Address)
	t.placeholder = make(map[Offset]bool)

	tilesX := vp.Width/t.tileSize + t.limits.Margin
	if tilesX > t.limits.MaxTilesX {
		tilesX = t.limits.MaxTilesX
	}
	tilesY := vp.Height/t.tileSize + t.limits.Margin
	if tilesY > t.limits.MaxTilesY {
		tilesY = t.limits.MaxTilesY
	}

	for dy := -tilesY / 2; dy <= tilesY/2; dy++ {
		for dx := -tilesX / 2; dx <= tilesX/2; dx++ {
			addr := tile.Address{Server: t.server, Z: vp.Zoom, X: ctx + dx, Y: cty + dy}
			if !addr.Valid() {
				continue
			}
			off := Offset{DX: dx, DY: dy}
			t.addrs[off] = addr

			if data, ok := t.source.Cached(addr); ok {
				if img, err := tile.Decode(data); err == nil {
					t.grid[off] = img
					continue
				}
			}

			// The cell is never blank: a placeholder covers it until the
			// fetch lands.
			t.grid[off] = tile.Placeholder(addr, t.tileSize)
			t.placeholder[off] = true
			t.source.Request(addr, dx, dy, t.generation)
		}
	}

	t.log.Debug("Viewport grid rebuilt",
		zap.Uint64("generation", t.generation),
		zap.Int("zoom", vp.Zoom),
		zap.Int("center_x", ctx),
		zap.Int("center_y", cty),
		zap.Int("cells", len(t.grid)),
	)
	return true
}

// Apply places a resolved fetch into the grid. Deliveries from a superseded
// generation, or for an offset no longer in the grid, are discarded.
// Returns whether the delivery was placed.
func (t *TileSet) Apply(d fetch.Delivery) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d.Generation != t.generation {
		return false
	}
	off := Offset{DX: d.DX, DY: d.DY}
	if _, ok := t.grid[off]; !ok {
		return false
	}
	t.grid[off] = d.Image
	if d.Err == nil {
		delete(t.placeholder, off)
	}
	return true
}

// SetServer switches the tile source and rebuilds the grid when the name
// actually changes.
func (t *TileSet) SetServer(name string) {
	t.mu.Lock()
	if name == t.server {
		t.mu.Unlock()
		return
	}
	t.server = name
	vp, ok := t.lastView, t.hasView
	t.mu.Unlock()

	if ok {
		t.Recompute(vp, true)
	}
}

// Refresh forces a full grid rebuild of the last seen viewport.
func (t *TileSet) Refresh() {
	t.mu.Lock()
	vp, ok := t.lastView, t.hasView
	t.mu.Unlock()

	if ok {
		t.Recompute(vp, true)
	}
}

// Tiles returns a copy of the current grid for rendering.
func (t *TileSet) Tiles() map[Offset]image.Image {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Offset]image.Image, len(t.grid))
	for off, img := range t.grid {
		out[off] = img
	}
	return out
}

// Cells returns the grid layout in row-major order for inspection.
func (t *TileSet) Cells() []Cell {
	t.mu.Lock()
	defer t.mu.Unlock()

	cells := make([]Cell, 0, len(t.addrs))
	for off, addr := range t.addrs {
		cells = append(cells, Cell{Offset: off, Address: addr, Placeholder: t.placeholder[off]})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Offset.DY != cells[j].Offset.DY {
			return cells[i].Offset.DY < cells[j].Offset.DY
		}
		return cells[i].Offset.DX < cells[j].Offset.DX
	})
	return cells
}

// Generation returns the current grid generation.
func (t *TileSet) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// CenterTile returns the tile coordinates the grid is centered on.
func (t *TileSet) CenterTile() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.centerTX, t.centerTY
}

// Server returns the active tile server name.
func (t *TileSet) Server() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
