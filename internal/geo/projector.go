package geo

import "math"

const (
	// EarthCircumference is the equatorial circumference in meters.
	EarthCircumference = 40075016.686

	// MaxMercatorLat is the highest latitude representable in Web-Mercator.
	MaxMercatorLat = 85.05112878

	DefaultTileSize = 256
)

// Point is a geographic position in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// GeoToPixel projects p onto the global Web-Mercator pixel plane at the given
// zoom level. Inputs are not validated; latitudes beyond the Mercator range
// produce non-finite results.
func GeoToPixel(p Point, zoom int, tileSize int) (float64, float64) {
	n := math.Exp2(float64(zoom))
	latRad := p.Lat * math.Pi / 180
	x := (p.Lon + 180) / 360 * n * float64(tileSize)
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n * float64(tileSize)
	return x, y
}

// PixelToGeo is the exact inverse of GeoToPixel.
func PixelToGeo(x, y float64, zoom int, tileSize int) Point {
	n := math.Exp2(float64(zoom))
	lon := x/(n*float64(tileSize))*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/(n*float64(tileSize)))))
	return Point{Lat: latRad * 180 / math.Pi, Lon: lon}
}

// MetersPerPixel reports the ground resolution at a latitude and zoom level.
func MetersPerPixel(lat float64, zoom int, tileSize int) float64 {
	return math.Cos(lat*math.Pi/180) * EarthCircumference / (math.Exp2(float64(zoom)) * float64(tileSize))
}

// ClampLat bounds a latitude to the usable Web-Mercator range. The projector
// itself never clamps; callers that need defined behavior at the poles use this.
func ClampLat(lat float64) float64 {
	return math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, lat))
}
