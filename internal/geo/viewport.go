package geo

// Viewport is an immutable snapshot of the visible map window: geographic
// center, zoom level and pixel dimensions. The UI layer owns the live state
// and hands copies to the cache core, so concurrent fetch completion never
// observes a torn viewport.
type Viewport struct {
	Center   Point
	Zoom     int
	Width    int
	Height   int
	TileSize int
}

func (v Viewport) tileSize() int {
	if v.TileSize > 0 {
		return v.TileSize
	}
	return DefaultTileSize
}

// WithZoom returns the viewport at the requested zoom, clamped to [min, max].
func (v Viewport) WithZoom(zoom, min, max int) Viewport {
	if zoom < min {
		zoom = min
	}
	if zoom > max {
		zoom = max
	}
	v.Zoom = zoom
	return v
}

// WithCenter returns the viewport recentered on p.
func (v Viewport) WithCenter(p Point) Viewport {
	v.Center = p
	return v
}

// GeoToScreen converts a geographic point to screen pixels, with the viewport
// center at the middle of the screen.
func (v Viewport) GeoToScreen(p Point) (float64, float64) {
	cx, cy := GeoToPixel(v.Center, v.Zoom, v.tileSize())
	px, py := GeoToPixel(p, v.Zoom, v.tileSize())
	return px - cx + float64(v.Width)/2, py - cy + float64(v.Height)/2
}

// ScreenToGeo converts screen pixels back to a geographic point.
func (v Viewport) ScreenToGeo(x, y float64) Point {
	cx, cy := GeoToPixel(v.Center, v.Zoom, v.tileSize())
	return PixelToGeo(cx+x-float64(v.Width)/2, cy+y-float64(v.Height)/2, v.Zoom, v.tileSize())
}

// Pan returns the viewport shifted by a screen-pixel delta.
func (v Viewport) Pan(dx, dy float64) Viewport {
	cx, cy := GeoToPixel(v.Center, v.Zoom, v.tileSize())
	v.Center = PixelToGeo(cx+dx, cy+dy, v.Zoom, v.tileSize())
	return v
}

// Bounds returns the geographic corners of the visible area as
// (northWest, southEast).
func (v Viewport) Bounds() (Point, Point) {
	nw := v.ScreenToGeo(0, 0)
	se := v.ScreenToGeo(float64(v.Width), float64(v.Height))
	return nw, se
}

// MetersPerPixel reports the ground resolution at the viewport center.
func (v Viewport) MetersPerPixel() float64 {
	return MetersPerPixel(v.Center.Lat, v.Zoom, v.tileSize())
}
