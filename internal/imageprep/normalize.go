// Package imageprep shapes reference images into the geometry the remote
// video service accepts and serializes them for inline transport.
//
// Normalization is two-phase and never crops: the image is first padded into
// the service's accepted input range [0.5, 2.0], then padded again until its
// ratio matches the requested output ratio. Both phases center the original
// content and fill the new area with a uniform pad color.
package imageprep

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"videogen/internal/domain"
)

const (
	// MinInputRatio and MaxInputRatio bound the ratios the service accepts as input.
	MinInputRatio = 0.5
	MaxInputRatio = 2.0
)

// DefaultPadColor is used when no pad color is configured.
var DefaultPadColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Normalize flattens img onto fill and pads it until width/height matches
// target. Images that already match skip both phases, which keeps the
// operation idempotent for every allowed target including those above 2.0.
func Normalize(img image.Image, target float64, fill color.Color) *image.NRGBA {
	flat := Flatten(img, fill)
	w, h := flat.Bounds().Dx(), flat.Bounds().Dy()
	if w == 0 || h == 0 || target <= 0 || settled(w, h, target) {
		return flat
	}
	return MatchRatio(Clamp(flat, fill), target, fill)
}

// Flatten composites img over an opaque fill so every pixel is fully opaque RGB.
func Flatten(img image.Image, fill color.Color) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), opaque(fill))
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// Clamp pads img so its ratio lies within [MinInputRatio, MaxInputRatio].
// Images already inside the range are returned as an unmodified copy.
func Clamp(img image.Image, fill color.Color) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return imaging.Clone(img)
	}
	r := float64(w) / float64(h)
	switch {
	case r > MaxInputRatio:
		return padTo(img, w, round(float64(w)/MaxInputRatio), fill)
	case r < MinInputRatio:
		return padTo(img, round(float64(h)*MinInputRatio), h, fill)
	}
	return imaging.Clone(img)
}

// MatchRatio pads a single axis so width/height is within domain.RatioTolerance
// of target: height when the image is too wide, width otherwise.
func MatchRatio(img image.Image, target float64, fill color.Color) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 || target <= 0 || domain.MatchesRatio(w, h, target) {
		return imaging.Clone(img)
	}
	if float64(w)/float64(h) > target {
		nh := round(float64(w) / target)
		if nh <= h {
			return imaging.Clone(img)
		}
		return padTo(img, w, nh, fill)
	}
	nw := round(float64(h) * target)
	if nw <= w {
		return imaging.Clone(img)
	}
	return padTo(img, nw, h, fill)
}

// settled reports whether MatchRatio would leave a w x h image unchanged.
func settled(w, h int, target float64) bool {
	if domain.MatchesRatio(w, h, target) {
		return true
	}
	return round(float64(w)/target) == h || round(float64(h)*target) == w
}

// padTo centers img on a width x height canvas. The leading side receives the
// floor of the padding and the trailing side the remainder.
func padTo(img image.Image, width, height int, fill color.Color) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(width, height, opaque(fill))
	x := (width - b.Dx()) / 2
	y := (height - b.Dy()) / 2
	return imaging.Paste(canvas, img, image.Pt(x, y))
}

func opaque(c color.Color) color.NRGBA {
	if c == nil {
		return DefaultPadColor
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

func round(v float64) int {
	return int(math.Round(v))
}
