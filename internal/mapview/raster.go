package mapview

import (
	"fmt"
	"image"
	"image/color"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// rasterMax bounds the resampled overlay; the terminal never shows more.
const rasterMax = 256

// rasterGrid is a downscaled copy of a background image, sampled per cell.
type rasterGrid struct {
	img *image.RGBA
}

func newRasterGrid(src image.Image) *rasterGrid {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > rasterMax || h > rasterMax {
		if w >= h {
			h = max(1, h*rasterMax/w)
			w = rasterMax
		} else {
			w = max(1, w*rasterMax/h)
			h = rasterMax
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return &rasterGrid{img: dst}
}

// sample returns the colour at normalized (u, v) blended over black.
func (r *rasterGrid) sample(u, v, opacity float64) (lipgloss.Color, bool) {
	if u < 0 || v < 0 || u >= 1 || v >= 1 {
		return "", false
	}
	b := r.img.Bounds()
	x := b.Min.X + int(u*float64(b.Dx()))
	y := b.Min.Y + int(v*float64(b.Dy()))
	c := color.RGBAModel.Convert(r.img.At(x, y)).(color.RGBA)
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	scale := func(ch uint8) uint8 { return uint8(float64(ch) * opacity) }
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", scale(c.R), scale(c.G), scale(c.B))), true
}
