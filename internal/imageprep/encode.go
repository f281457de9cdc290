package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// Format is the compression applied to normalized images.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	// FormatAuto encodes PNG and falls back to JPEG when the PNG exceeds the size ceiling.
	FormatAuto Format = "auto"
)

const (
	DefaultMaxDimension = 1536
	DefaultSizeCeiling  = 5 * 1024 * 1024
	DefaultJPEGQuality  = 90
)

var supportedMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

// Policy holds the encoding knobs that differ between deployments.
type Policy struct {
	PadColor     color.NRGBA
	Format       Format
	JPEGQuality  int
	MaxDimension int
	SizeCeiling  int
}

// DefaultPolicy pads with white, encodes PNG and caps the long side at 1536px.
func DefaultPolicy() Policy {
	return Policy{
		PadColor:     DefaultPadColor,
		Format:       FormatPNG,
		JPEGQuality:  DefaultJPEGQuality,
		MaxDimension: DefaultMaxDimension,
		SizeCeiling:  DefaultSizeCeiling,
	}
}

// PolicyFromConfig builds a Policy from the environment-backed settings.
func PolicyFromConfig(cfg *infra.Config) (Policy, error) {
	pad, err := ParseHexColor(cfg.PadColor)
	if err != nil {
		return Policy{}, &domain.ConfigError{Key: "PAD_COLOR", Reason: err.Error()}
	}
	format, err := ParseFormat(cfg.ImageFormat)
	if err != nil {
		return Policy{}, &domain.ConfigError{Key: "IMAGE_FORMAT", Reason: err.Error()}
	}
	return Policy{
		PadColor:     pad,
		Format:       format,
		JPEGQuality:  cfg.JPEGQuality,
		MaxDimension: cfg.MaxImageDimension,
		SizeCeiling:  cfg.PayloadSoftLimit,
	}, nil
}

// Override returns a copy of p with the non-empty per-job settings applied.
func (p Policy) Override(padColor, format string) (Policy, error) {
	if strings.TrimSpace(padColor) != "" {
		pad, err := ParseHexColor(padColor)
		if err != nil {
			return p, &domain.ValidationError{Field: "pad_color", Reason: err.Error()}
		}
		p.PadColor = pad
	}
	if strings.TrimSpace(format) != "" {
		f, err := ParseFormat(format)
		if err != nil {
			return p, &domain.ValidationError{Field: "format", Reason: err.Error()}
		}
		p.Format = f
	}
	return p, nil
}

// Encoder turns decoded images into inline payloads for a given output ratio.
type Encoder struct {
	policy Policy
	logger *infra.Logger
}

// NewEncoder fills unset policy fields with defaults. A nil logger discards output.
func NewEncoder(policy Policy, logger *infra.Logger) *Encoder {
	def := DefaultPolicy()
	if policy.PadColor.A == 0 {
		policy.PadColor = def.PadColor
	}
	if policy.Format == "" {
		policy.Format = def.Format
	}
	if policy.JPEGQuality <= 0 || policy.JPEGQuality > 100 {
		policy.JPEGQuality = def.JPEGQuality
	}
	if policy.MaxDimension <= 0 {
		policy.MaxDimension = def.MaxDimension
	}
	if policy.SizeCeiling <= 0 {
		policy.SizeCeiling = def.SizeCeiling
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Encoder{policy: policy, logger: logger}
}

// Policy returns the effective policy.
func (e *Encoder) Policy() Policy {
	return e.policy
}

// Encode normalizes, downscales and compresses every image, preserving order.
func (e *Encoder) Encode(images []image.Image, ratio domain.Ratio) ([]domain.EncodedImage, error) {
	out := make([]domain.EncodedImage, 0, len(images))
	for i, img := range images {
		enc, err := e.EncodeImage(img, ratio)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

// EncodeImage prepares a single image. Exceeding the size ceiling only sets
// Oversized; the remote service makes the final call.
func (e *Encoder) EncodeImage(img image.Image, ratio domain.Ratio) (domain.EncodedImage, error) {
	if img == nil || img.Bounds().Empty() {
		return domain.EncodedImage{}, fmt.Errorf("%w: empty image", domain.ErrInvalidImage)
	}
	normalized := Normalize(img, ratio.Float(), e.policy.PadColor)
	scaled := Downscale(normalized, e.policy.MaxDimension)

	format := e.policy.Format
	if format == FormatAuto {
		format = FormatPNG
	}
	data, mime, err := compress(scaled, format, e.policy.JPEGQuality)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	if e.policy.Format == FormatAuto && len(data) > e.policy.SizeCeiling {
		data, mime, err = compress(scaled, FormatJPEG, e.policy.JPEGQuality)
		if err != nil {
			return domain.EncodedImage{}, err
		}
	}

	enc := domain.EncodedImage{
		MIME:   mime,
		Data:   data,
		Width:  scaled.Bounds().Dx(),
		Height: scaled.Bounds().Dy(),
	}
	if len(data) > e.policy.SizeCeiling {
		enc.Oversized = true
		e.logger.Warn().
			Int("bytes", len(data)).
			Int("ceiling", e.policy.SizeCeiling).
			Str("ratio", ratio.String()).
			Msg("imageprep: encoded image exceeds soft size ceiling")
	}
	e.logger.Debug().
		Int("width", enc.Width).
		Int("height", enc.Height).
		Str("mime", enc.MIME).
		Int("bytes", len(data)).
		Msg("imageprep: encoded reference image")
	return enc, nil
}

// Downscale shrinks img with Lanczos so its longer side equals maxDim. Images
// already within the bound are returned as-is.
func Downscale(img *image.NRGBA, maxDim int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, round(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, round(float64(w)*float64(maxDim)/float64(h)))
	}
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

func compress(img image.Image, format Format, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, "", fmt.Errorf("imageprep: encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, "", fmt.Errorf("imageprep: encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		return nil, "", fmt.Errorf("imageprep: unsupported format %q", format)
	}
}

// DecodeBytes sniffs and decodes an uploaded reference image, honoring EXIF orientation.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidImage)
	}
	mt := mimetype.Detect(data)
	if _, ok := supportedMIMEs[mt.String()]; !ok {
		return nil, fmt.Errorf("%w: unsupported type %s", domain.ErrInvalidImage, mt.String())
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	return img, nil
}

// ParseDataURI splits a base64 data URI into its MIME type and raw bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("imageprep: not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("imageprep: data uri missing payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("imageprep: data uri is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imageprep: decode data uri: %w", err)
	}
	return mime, data, nil
}

// ParseHexColor parses "#RRGGBB" or "RRGGBB" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("imageprep: color %q must be #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("imageprep: color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// ParseFormat accepts png, jpeg/jpg or auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "auto":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("imageprep: unsupported format %q", s)
	}
}
