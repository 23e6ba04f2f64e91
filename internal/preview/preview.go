// Package preview draws an on-screen approximation of a label: the text
// body at its printed position and a placeholder where the barcode goes.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"zebra-label/internal/label"
)

// DPI of every supported Zebra mobile printer
const DPI = 203

// Options configures rendering
type Options struct {
	FontDots float64 // glyph height in printer dots
	Invert   bool    // White text on black background
}

func DefaultOptions() Options {
	return Options{FontDots: 20}
}

var barcodeFill = color.Gray{Y: 200}

// Renderer draws label previews for one encoder configuration
type Renderer struct {
	encoder *label.Encoder
	font    *truetype.Font
	opts    Options
}

func NewRenderer(encoder *label.Encoder, opts Options) (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	if opts.FontDots <= 0 {
		opts.FontDots = DefaultOptions().FontDots
	}
	return &Renderer{encoder: encoder, font: f, opts: opts}, nil
}

// Render draws rec as it would print on size in lang
func (r *Renderer) Render(rec label.Record, size label.Size, lang label.Language) (image.Image, error) {
	lines, err := r.encoder.BodyLines(rec, size, lang)
	if err != nil {
		return nil, err
	}

	width, height, _ := size.Dots()
	x, y, step, _ := size.Origin(lang)
	bx, by, bh, _ := size.Barcode(lang)

	// Some layouts place the last line below the nominal media height.
	lineHeight := int(r.opts.FontDots)
	if bottom := y + step*(len(lines)-1) + lineHeight; bottom > height {
		height = bottom
	}

	bg, fg := color.Color(color.White), color.Color(color.Black)
	if r.opts.Invert {
		bg, fg = fg, bg
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(bx, by, width, by+bh), &image.Uniform{barcodeFill}, image.Point{}, draw.Src)

	points := r.opts.FontDots * 72 / DPI
	c := freetype.NewContext()
	c.SetDPI(DPI)
	c.SetFont(r.font)
	c.SetFontSize(points)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(&image.Uniform{fg})
	c.SetHinting(font.HintingFull)

	face := truetype.NewFace(r.font, &truetype.Options{Size: points, DPI: DPI})
	ascent := face.Metrics().Ascent.Ceil()

	if _, err := c.DrawString(clip(face, rec.Barcode, width-bx), freetype.Pt(bx, by+bh/2+ascent/2)); err != nil {
		return nil, fmt.Errorf("failed to draw barcode text: %w", err)
	}
	for i, line := range lines {
		pt := freetype.Pt(x, y+i*step+ascent)
		if _, err := c.DrawString(clip(face, line, width-x), pt); err != nil {
			return nil, fmt.Errorf("failed to draw line %d: %w", i, err)
		}
	}
	return img, nil
}

// clip cuts s to the runes that fit in maxWidth pixels
func clip(face font.Face, s string, maxWidth int) string {
	var width fixed.Int26_6
	for i, r := range s {
		adv, ok := face.GlyphAdvance(r)
		if ok {
			width += adv
		}
		if width.Ceil() > maxWidth {
			return s[:i]
		}
	}
	return s
}
