package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"videogen/internal/domain"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// patterned returns an opaque image whose pixels encode their coordinates so
// displaced or altered content is detectable.
func patterned(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func assertContains(t *testing.T, outer *image.NRGBA, inner *image.NRGBA, at image.Point) {
	t.Helper()
	b := inner.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			got := outer.NRGBAAt(at.X+x, at.Y+y)
			want := inner.NRGBAAt(x, y)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", at.X+x, at.Y+y, got, want)
			}
		}
	}
}

func assertSize(t *testing.T, img *image.NRGBA, w, h int) {
	t.Helper()
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("size = %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), w, h)
	}
}

func TestClampNoOpWithinRange(t *testing.T) {
	sizes := [][2]int{{100, 100}, {200, 100}, {50, 100}, {150, 100}, {64, 120}}
	for _, s := range sizes {
		t.Run(fmt.Sprintf("%dx%d", s[0], s[1]), func(t *testing.T) {
			src := patterned(s[0], s[1])
			got := Clamp(src, white)
			assertSize(t, got, s[0], s[1])
			if !bytes.Equal(got.Pix, src.Pix) {
				t.Fatal("clamp altered pixel content of an in-range image")
			}
			if &got.Pix[0] == &src.Pix[0] {
				t.Fatal("clamp returned the input buffer instead of a copy")
			}
		})
	}
}

func TestClampWideImagePadsHeight(t *testing.T) {
	src := patterned(2000, 500)
	got := Clamp(src, white)
	assertSize(t, got, 2000, 1000)
	if !domain.MatchesRatio(2000, got.Bounds().Dy(), MaxInputRatio) {
		t.Fatalf("ratio = %f, want %f", float64(2000)/float64(got.Bounds().Dy()), MaxInputRatio)
	}
	assertContains(t, got, src, image.Pt(0, 250))
	if got.NRGBAAt(10, 0) != white || got.NRGBAAt(10, 999) != white {
		t.Fatal("padding rows are not the pad color")
	}
}

func TestClampTallImagePadsWidth(t *testing.T) {
	src := patterned(300, 1000)
	got := Clamp(src, black)
	assertSize(t, got, 500, 1000)
	assertContains(t, got, src, image.Pt(100, 0))
	if got.NRGBAAt(0, 500) != black || got.NRGBAAt(499, 500) != black {
		t.Fatal("padding columns are not the pad color")
	}
}

func TestClampOddRemainderGoesToTrailingSide(t *testing.T) {
	src := patterned(1001, 300)
	got := Clamp(src, white)
	// round(1001/2) = 501, 201 rows of padding: 100 above, 101 below.
	assertSize(t, got, 1001, 501)
	assertContains(t, got, src, image.Pt(0, 100))
}

func TestMatchRatioAllAllowedTargets(t *testing.T) {
	sizes := [][2]int{{1600, 1600}, {1920, 1080}, {1080, 1920}, {2000, 1000}, {1000, 2000}, {1700, 1100}}
	for _, s := range sizes {
		clamped := Clamp(imaging.New(s[0], s[1], black), white)
		for _, r := range domain.AllowedRatios {
			t.Run(fmt.Sprintf("%dx%d@%s", s[0], s[1], r), func(t *testing.T) {
				got := MatchRatio(clamped, r.Float(), white)
				w, h := got.Bounds().Dx(), got.Bounds().Dy()
				if !domain.MatchesRatio(w, h, r.Float()) {
					t.Fatalf("ratio = %f, want %f within %g", float64(w)/float64(h), r.Float(), domain.RatioTolerance)
				}
				if w < s[0] || h < s[1] {
					t.Fatalf("size %dx%d cropped the %dx%d input", w, h, s[0], s[1])
				}
				if w != s[0] && h != s[1] {
					t.Fatalf("both axes padded: %dx%d from %dx%d", w, h, s[0], s[1])
				}
			})
		}
	}
}

func TestNormalizeSquareToSquareIsNoOp(t *testing.T) {
	src := patterned(640, 640)
	got := Normalize(src, domain.Ratio{Width: 960, Height: 960}.Float(), white)
	assertSize(t, got, 640, 640)
	if !bytes.Equal(got.Pix, src.Pix) {
		t.Fatal("square image was modified")
	}
}

func TestNormalizeLandscapeUnchanged(t *testing.T) {
	src := patterned(1280, 720)
	got := Normalize(src, domain.Ratio{Width: 1280, Height: 720}.Float(), white)
	assertSize(t, got, 1280, 720)
	if !bytes.Equal(got.Pix, src.Pix) {
		t.Fatal("1280x720 image was modified for a 1280:720 target")
	}
}

func TestNormalizeElongatedTakesTwoPasses(t *testing.T) {
	src := patterned(2000, 500)
	clamped := Clamp(src, white)
	assertSize(t, clamped, 2000, 1000)

	got := Normalize(src, domain.Ratio{Width: 960, Height: 960}.Float(), white)
	assertSize(t, got, 2000, 2000)
	// 250 rows from the clamp pass plus 500 from the ratio match.
	assertContains(t, got, src, image.Pt(0, 750))
	if got.NRGBAAt(0, 0) != white || got.NRGBAAt(1999, 1999) != white {
		t.Fatal("padding is not the pad color")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	sizes := [][2]int{{100, 100}, {37, 301}, {1000, 80}, {90, 1000}, {1280, 720}, {333, 222}}
	for _, s := range sizes {
		src := patterned(s[0], s[1])
		for _, r := range domain.AllowedRatios {
			t.Run(fmt.Sprintf("%dx%d@%s", s[0], s[1], r), func(t *testing.T) {
				once := Normalize(src, r.Float(), white)
				twice := Normalize(once, r.Float(), white)
				if once.Bounds() != twice.Bounds() {
					t.Fatalf("bounds changed: %v then %v", once.Bounds(), twice.Bounds())
				}
				if !bytes.Equal(once.Pix, twice.Pix) {
					t.Fatal("second normalization changed pixels")
				}
			})
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	src := patterned(2000, 500)
	before := append([]byte(nil), src.Pix...)
	_ = Normalize(src, domain.Ratio{Width: 720, Height: 1280}.Float(), black)
	if !bytes.Equal(before, src.Pix) {
		t.Fatal("input image was mutated")
	}
	assertSize(t, src, 2000, 500)
}

func TestNormalizeFlattensTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	fill := color.NRGBA{R: 200, G: 100, B: 50, A: 255}

	got := Normalize(src, 1.0, fill)
	if px := got.NRGBAAt(0, 0); px != fill {
		t.Fatalf("transparent pixel = %v, want pad color %v", px, fill)
	}
	if px := got.NRGBAAt(1, 1); px != (color.NRGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("opaque pixel = %v, want unchanged", px)
	}
}

func TestNormalizeNonZeroOrigin(t *testing.T) {
	base := patterned(400, 100)
	sub := base.SubImage(image.Rect(100, 0, 400, 100)).(*image.NRGBA)
	got := Normalize(sub, 1.0, white)
	// 300x100 (ratio 3) clamps to 300x150, then matches to 300x300.
	assertSize(t, got, 300, 300)
	if got.NRGBAAt(0, 100) != base.NRGBAAt(100, 0) {
		t.Fatalf("content origin shifted: %v vs %v", got.NRGBAAt(0, 100), base.NRGBAAt(100, 0))
	}
}
