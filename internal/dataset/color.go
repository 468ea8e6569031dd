package dataset

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// abScale maps go-colorful's a/b range (about [-1.08, 0.98]) into [-1, 1].
const abScale = 1.1

// ToLab converts an RGBA image to planar L [H*W] in [0, 1] and ab [2*H*W]
// in [-1, 1], channel-first.
func ToLab(img *image.RGBA) (l, ab []float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	l = make([]float32, n)
	ab = make([]float32, 2*n)

	for y := range h {
		for x := range w {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			c := colorful.Color{
				R: float64(img.Pix[off]) / 255,
				G: float64(img.Pix[off+1]) / 255,
				B: float64(img.Pix[off+2]) / 255,
			}
			lv, av, bv := c.Lab()
			i := y*w + x
			l[i] = clamp(float32(lv), 0, 1)
			ab[i] = clamp(float32(av/abScale), -1, 1)
			ab[n+i] = clamp(float32(bv/abScale), -1, 1)
		}
	}
	return l, ab
}

// ToRGB converts planar L and ab back to an RGBA image of w x h pixels.
// Out-of-gamut colors are clamped.
func ToRGB(l, ab []float32, w, h int) *image.RGBA {
	n := w * h
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range n {
		c := colorful.Lab(float64(l[i]), float64(ab[i])*abScale, float64(ab[n+i])*abScale).Clamped()
		r, g, b := c.RGB255()
		img.SetRGBA(i%w, i/w, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return img
}

// Grey renders planar L as a greyscale RGBA image.
func Grey(l []float32, w, h int) *image.RGBA {
	zero := make([]float32, 2*w*h)
	return ToRGB(l, zero, w, h)
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
