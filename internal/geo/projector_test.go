package geo

import (
	"math"
	"testing"
)

func TestGeoToPixelKnownPoints(t *testing.T) {
	tests := []struct {
		name  string
		p     Point
		zoom  int
		wantX float64
		wantY float64
	}{
		{"origin zoom 0", Point{Lat: 0, Lon: 0}, 0, 128, 128},
		{"date line west zoom 0", Point{Lat: 0, Lon: -180}, 0, 0, 128},
		{"origin zoom 1", Point{Lat: 0, Lon: 0}, 1, 256, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := GeoToPixel(tt.p, tt.zoom, DefaultTileSize)
			if math.Abs(x-tt.wantX) > 1e-6 || math.Abs(y-tt.wantY) > 1e-6 {
				t.Errorf("GeoToPixel(%v, %d) = (%f, %f), want (%f, %f)", tt.p, tt.zoom, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestPixelRoundTrip(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 21.03, Lon: 105.85},
		{Lat: -33.86, Lon: 151.21},
		{Lat: 64.13, Lon: -21.82},
		{Lat: 84.99, Lon: 179.99},
		{Lat: -84.99, Lon: -179.99},
	}

	for _, p := range points {
		for zoom := 0; zoom <= 18; zoom += 3 {
			x, y := GeoToPixel(p, zoom, DefaultTileSize)
			got := PixelToGeo(x, y, zoom, DefaultTileSize)
			if math.Abs(got.Lat-p.Lat) > 1e-9 || math.Abs(got.Lon-p.Lon) > 1e-9 {
				t.Errorf("round trip at zoom %d: %v -> %v", zoom, p, got)
			}
		}
	}
}

func TestMetersPerPixel(t *testing.T) {
	// At the equator at zoom 0 one tile covers the whole circumference.
	got := MetersPerPixel(0, 0, DefaultTileSize)
	want := EarthCircumference / DefaultTileSize
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("MetersPerPixel(0, 0) = %f, want %f", got, want)
	}

	// Doubling the zoom level halves the resolution.
	z5 := MetersPerPixel(45, 5, DefaultTileSize)
	z6 := MetersPerPixel(45, 6, DefaultTileSize)
	if math.Abs(z5/z6-2) > 1e-9 {
		t.Errorf("resolution ratio z5/z6 = %f, want 2", z5/z6)
	}

	// Resolution shrinks with latitude.
	if MetersPerPixel(60, 10, DefaultTileSize) >= MetersPerPixel(0, 10, DefaultTileSize) {
		t.Error("expected finer resolution at higher latitude")
	}
}

func TestClampLat(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{45.5, 45.5},
		{90, MaxMercatorLat},
		{-90, -MaxMercatorLat},
	}
	for _, tt := range tests {
		if got := ClampLat(tt.in); got != tt.want {
			t.Errorf("ClampLat(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
