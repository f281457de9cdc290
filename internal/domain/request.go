package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPromptRunes is the longest promptText the remote service accepts.
	MaxPromptRunes = 1000
	// MaxReferenceImages bounds how many reference images one job may carry.
	MaxReferenceImages = 3
)

// Mode selects the submission endpoint. It is fixed when the request is built.
type Mode string

const (
	ModeImageToVideo Mode = "image_to_video"
	ModeTextToVideo  Mode = "text_to_video"
)

// ImagePosition is the conditioning role of a reference image.
type ImagePosition string

const (
	PositionFirst ImagePosition = "first"
	PositionLast  ImagePosition = "last"
)

// EncodedImage is a compressed, normalized reference image ready for inline transport.
type EncodedImage struct {
	MIME      string
	Data      []byte
	Width     int
	Height    int
	Oversized bool
}

// URI renders the image as a data URI.
func (e EncodedImage) URI() string {
	return "data:" + e.MIME + ";base64," + base64.StdEncoding.EncodeToString(e.Data)
}

// PromptImage is one reference attached to a JobRequest.
type PromptImage struct {
	URI      string        `json:"uri"`
	Position ImagePosition `json:"position"`
}

// PromptImages marshals as a bare URI string when it holds a single image and
// as an ordered list of {uri, position} otherwise.
type PromptImages []PromptImage

func (p PromptImages) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0].URI)
	}
	return json.Marshal([]PromptImage(p))
}

// JobSpec is the user-controlled part of a generation request.
type JobSpec struct {
	Model    string
	Prompt   string
	Ratio    Ratio
	Duration int
	Seed     *uint32
}

// JobRequest is a validated submission. Mode is derived once in NewJobRequest.
type JobRequest struct {
	Model      string
	PromptText string
	Ratio      Ratio
	Duration   int
	Seed       *uint32
	Images     PromptImages
	Mode       Mode
}

// Validate checks spec against the catalog before any image work or network
// call happens. imageCount is the number of reference images that will be attached.
func (c *Catalog) Validate(spec JobSpec, imageCount int) (Model, error) {
	model, err := c.Lookup(spec.Model)
	if err != nil {
		return Model{}, err
	}
	if !spec.Ratio.Allowed() {
		return Model{}, &ValidationError{Field: "ratio", Reason: fmt.Sprintf("%s is not one of %s", spec.Ratio, allowedRatioList())}
	}
	if err := ValidateDuration(model, spec.Duration); err != nil {
		return Model{}, err
	}
	prompt := strings.TrimSpace(spec.Prompt)
	if n := utf8.RuneCountInString(prompt); n > MaxPromptRunes {
		return Model{}, &ValidationError{Field: "prompt", Reason: fmt.Sprintf("%d characters exceeds the %d limit", n, MaxPromptRunes)}
	}
	if imageCount > MaxReferenceImages {
		return Model{}, &ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d reference images are supported", MaxReferenceImages)}
	}
	if imageCount == 0 {
		if model.ImageRequired {
			return Model{}, &ValidationError{Field: "images", Reason: fmt.Sprintf("%s requires at least one reference image", model.Name)}
		}
		if prompt == "" {
			return Model{}, &ValidationError{Field: "prompt", Reason: "text-only generation requires a prompt"}
		}
	}
	return model, nil
}

// NewJobRequest assembles a request from a validated spec and its reference images.
func NewJobRequest(spec JobSpec, images PromptImages) JobRequest {
	mode := ModeTextToVideo
	if len(images) > 0 {
		mode = ModeImageToVideo
	}
	return JobRequest{
		Model:      strings.TrimSpace(spec.Model),
		PromptText: strings.TrimSpace(spec.Prompt),
		Ratio:      spec.Ratio,
		Duration:   spec.Duration,
		Seed:       spec.Seed,
		Images:     images,
		Mode:       mode,
	}
}
