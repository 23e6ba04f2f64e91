package preview

import (
	"image"
	"image/color"
)

// Thermal reduces img to black and white the way a direct thermal head
// would print it.
func Thermal(img image.Image, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if rgbToGray(img.At(b.Min.X+x, b.Min.Y+y)) < threshold {
				out.SetGray(x, y, color.Gray{0})
			} else {
				out.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return out
}

// rgbToGray converts a color to grayscale value
func rgbToGray(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	// Standard luminance formula, values are 16-bit so divide by 256
	gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256
	return uint8(gray)
}
