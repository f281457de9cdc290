package imageprep

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestEncodeImageRoundTripsThroughDataURI(t *testing.T) {
	enc := NewEncoder(Policy{}, nil)
	src := patterned(100, 100)

	got, err := enc.EncodeImage(src, domain.Ratio{Width: 960, Height: 960})
	if err != nil {
		t.Fatalf("EncodeImage returned error: %v", err)
	}
	if got.MIME != "image/png" {
		t.Fatalf("MIME = %q, want image/png", got.MIME)
	}
	if got.Oversized {
		t.Fatal("small image flagged oversized")
	}

	uri := got.URI()
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("URI prefix = %q", uri[:min(len(uri), 30)])
	}
	mime, data, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI returned error: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("parsed MIME = %q, want image/png", mime)
	}
	decoded, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes returned error: %v", err)
	}
	flat := imaging.Clone(decoded)
	assertSize(t, flat, 100, 100)
	if !bytes.Equal(flat.Pix, src.Pix) {
		t.Fatal("PNG round trip altered pixels")
	}
}

func TestEncodeImageDownscalesLongSide(t *testing.T) {
	enc := NewEncoder(Policy{}, nil)
	got, err := enc.EncodeImage(imaging.New(3000, 1000, black), domain.Ratio{Width: 1280, Height: 720})
	if err != nil {
		t.Fatalf("EncodeImage returned error: %v", err)
	}
	if got.Width != 1536 || got.Height != 864 {
		t.Fatalf("size = %dx%d, want 1536x864", got.Width, got.Height)
	}
	if !domain.MatchesRatio(got.Width, got.Height, domain.Ratio{Width: 1280, Height: 720}.Float()) {
		t.Fatalf("downscaled ratio %f drifted", float64(got.Width)/float64(got.Height))
	}
}

func TestEncodeImageSmallImageNotUpscaled(t *testing.T) {
	enc := NewEncoder(Policy{}, nil)
	got, err := enc.EncodeImage(patterned(64, 64), domain.Ratio{Width: 960, Height: 960})
	if err != nil {
		t.Fatalf("EncodeImage returned error: %v", err)
	}
	if got.Width != 64 || got.Height != 64 {
		t.Fatalf("size = %dx%d, want 64x64", got.Width, got.Height)
	}
}

func TestEncodeImageJPEG(t *testing.T) {
	enc := NewEncoder(Policy{Format: FormatJPEG, JPEGQuality: 80}, nil)
	got, err := enc.EncodeImage(patterned(200, 100), domain.Ratio{Width: 1280, Height: 720})
	if err != nil {
		t.Fatalf("EncodeImage returned error: %v", err)
	}
	if got.MIME != "image/jpeg" {
		t.Fatalf("MIME = %q, want image/jpeg", got.MIME)
	}
	img, err := DecodeBytes(got.Data)
	if err != nil {
		t.Fatalf("DecodeBytes returned error: %v", err)
	}
	if img.Bounds().Dx() != got.Width || img.Bounds().Dy() != got.Height {
		t.Fatalf("decoded %v, want %dx%d", img.Bounds(), got.Width, got.Height)
	}
}

func TestEncodeImageOversizedIsFlaggedNotRejected(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		wantMIME string
	}{
		{name: "png", format: FormatPNG, wantMIME: "image/png"},
		{name: "auto falls back to jpeg", format: FormatAuto, wantMIME: "image/jpeg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(Policy{Format: tc.format, SizeCeiling: 100}, nil)
			got, err := enc.EncodeImage(noise(256, 256), domain.Ratio{Width: 960, Height: 960})
			if err != nil {
				t.Fatalf("EncodeImage returned error: %v", err)
			}
			if !got.Oversized {
				t.Fatalf("Oversized = false for %d bytes", len(got.Data))
			}
			if got.MIME != tc.wantMIME {
				t.Fatalf("MIME = %q, want %q", got.MIME, tc.wantMIME)
			}
		})
	}
}

func TestEncodeAutoKeepsPNGUnderCeiling(t *testing.T) {
	enc := NewEncoder(Policy{Format: FormatAuto}, nil)
	got, err := enc.EncodeImage(patterned(50, 50), domain.Ratio{Width: 960, Height: 960})
	if err != nil {
		t.Fatalf("EncodeImage returned error: %v", err)
	}
	if got.MIME != "image/png" {
		t.Fatalf("MIME = %q, want image/png", got.MIME)
	}
}

func TestEncodeRejectsEmptyImage(t *testing.T) {
	enc := NewEncoder(Policy{}, nil)
	_, err := enc.Encode([]image.Image{patterned(10, 10), image.NewNRGBA(image.Rect(0, 0, 0, 0))}, domain.Ratio{Width: 960, Height: 960})
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("error = %v, want ErrInvalidImage", err)
	}
	if !strings.Contains(err.Error(), "image 2") {
		t.Fatalf("error %q does not name the failing image", err)
	}
}

func TestEncodePreservesOrder(t *testing.T) {
	enc := NewEncoder(Policy{}, nil)
	out, err := enc.Encode([]image.Image{patterned(10, 10), patterned(20, 20), patterned(30, 30)}, domain.Ratio{Width: 960, Height: 960})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	for i, want := range []int{10, 20, 30} {
		if out[i].Width != want {
			t.Fatalf("out[%d].Width = %d, want %d", i, out[i].Width, want)
		}
	}
}

func TestNewEncoderFillsDefaults(t *testing.T) {
	p := NewEncoder(Policy{}, nil).Policy()
	if p != DefaultPolicy() {
		t.Fatalf("policy = %+v, want %+v", p, DefaultPolicy())
	}
}

func TestDecodeBytesRejectsUnsupported(t *testing.T) {
	tests := map[string][]byte{
		"empty": nil,
		"text":  []byte("definitely not an image"),
		"gif":   []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeBytes(data); !errors.Is(err, domain.ErrInvalidImage) {
				t.Fatalf("DecodeBytes error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestAssemblePromptImage(t *testing.T) {
	one := AssemblePromptImage([]domain.EncodedImage{{MIME: "image/png", Data: []byte{1}}})
	if len(one) != 1 || one[0].Position != domain.PositionFirst {
		t.Fatalf("single = %+v, want one first-position image", one)
	}

	three := AssemblePromptImage([]domain.EncodedImage{
		{MIME: "image/png", Data: []byte{1}},
		{MIME: "image/png", Data: []byte{2}},
		{MIME: "image/jpeg", Data: []byte{3}},
	})
	want := []domain.ImagePosition{domain.PositionFirst, domain.PositionLast, domain.PositionLast}
	for i, p := range want {
		if three[i].Position != p {
			t.Fatalf("three[%d].Position = %q, want %q", i, three[i].Position, p)
		}
	}
	if !strings.HasPrefix(three[2].URI, "data:image/jpeg;base64,") {
		t.Fatalf("three[2].URI = %q", three[2].URI)
	}

	if got := AssemblePromptImage(nil); got != nil {
		t.Fatalf("empty = %+v, want nil", got)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#FFFFFF", want: white},
		{in: "000000", want: black},
		{in: " #1a2B3c ", want: color.NRGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 255}},
		{in: "#FFF", wantErr: true},
		{in: "#GGGGGG", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseHexColor(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseHexColor(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseHexColor(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestParseDataURIErrors(t *testing.T) {
	for _, in := range []string{
		"https://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,AAAA",
		"data:image/png;base64,@@@",
	} {
		if _, _, err := ParseDataURI(in); err == nil {
			t.Fatalf("ParseDataURI(%q) returned nil error", in)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatPNG, "PNG": FormatPNG, "jpg": FormatJPEG, "auto": FormatAuto}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("bmp"); err == nil {
		t.Fatal("ParseFormat(bmp) returned nil error")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := &infra.Config{PadColor: "#000000", ImageFormat: "auto", JPEGQuality: 75, MaxImageDimension: 1024, PayloadSoftLimit: 1000}
	p, err := PolicyFromConfig(cfg)
	if err != nil {
		t.Fatalf("PolicyFromConfig returned error: %v", err)
	}
	want := Policy{PadColor: black, Format: FormatAuto, JPEGQuality: 75, MaxDimension: 1024, SizeCeiling: 1000}
	if p != want {
		t.Fatalf("policy = %+v, want %+v", p, want)
	}

	cfg.PadColor = "white"
	if _, err := PolicyFromConfig(cfg); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
}

func TestPolicyOverride(t *testing.T) {
	base := DefaultPolicy()
	got, err := base.Override("#000000", "jpeg")
	if err != nil {
		t.Fatalf("Override returned error: %v", err)
	}
	if got.PadColor != (color.NRGBA{A: 255}) || got.Format != FormatJPEG {
		t.Fatalf("Override = %+v", got)
	}
	if base.Format != FormatPNG {
		t.Fatal("Override must not mutate the receiver")
	}
	same, err := base.Override("", "")
	if err != nil || same != base {
		t.Fatalf("empty Override = %+v, %v", same, err)
	}
	if _, err := base.Override("#12", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad colour error = %v, want ErrValidation", err)
	}
}
