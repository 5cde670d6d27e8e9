package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	fallbackBackground = color.RGBA{240, 248, 255, 255}
	fallbackGrid       = color.RGBA{200, 200, 200, 255}
	fallbackText       = color.RGBA{96, 96, 96, 255}
	fallbackLand       = color.RGBA{220, 240, 220, 255}
	fallbackOutline    = color.RGBA{180, 180, 180, 255}
)

// Placeholder synthesizes a deterministic fallback tile for an address: a
// light background with grid lines, the tile coordinates as a caption, and a
// few pseudo-random "land mass" blobs seeded from the tile position so that
// neighboring placeholders are distinguishable.
func Placeholder(a Address, size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{fallbackBackground}, image.Point{}, draw.Src)

	spacing := size / 8
	for i := 0; i <= size; i += spacing {
		drawHLine(img, 0, size, i, fallbackGrid)
		drawVLine(img, i, 0, size, fallbackGrid)
	}

	for i := 0; i < 3; i++ {
		x := (a.X*37 + i*67) % (size - 60)
		y := (a.Y*43 + i*53) % (size - 40)
		w := 30 + (a.X+a.Y+i)%60
		h := 20 + absInt(a.X-a.Y+i)%40
		fillEllipse(img, x, y, w, h, fallbackLand, fallbackOutline)
	}

	drawLabel(img, 10, 20, fmt.Sprintf("Tile %d/%d", a.X, a.Y))
	drawLabel(img, 10, 34, fmt.Sprintf("Zoom %d", a.Z))

	return img
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fallbackText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x < x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func drawVLine(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y < y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

func fillEllipse(img *image.RGBA, x, y, w, h int, fill, outline color.RGBA) {
	cx := float64(x) + float64(w)/2
	cy := float64(y) + float64(h)/2
	rx := float64(w) / 2
	ry := float64(h) / 2
	for py := y; py <= y+h; py++ {
		for px := x; px <= x+w; px++ {
			dx := (float64(px) - cx) / rx
			dy := (float64(py) - cy) / ry
			d := dx*dx + dy*dy
			if d <= 1 {
				c := fill
				if d > 0.85 {
					c = outline
				}
				img.SetRGBA(px, py, c)
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// EncodePNG renders an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses tile bytes into an image. Tile servers occasionally answer
// with HTML error pages, so callers treat a failure here as a corrupt tile.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
