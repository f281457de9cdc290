package video

import (
	"context"
	"image"
	"io"

	"videogen/internal/domain"
	"videogen/internal/imageprep"
	"videogen/internal/lifecycle"
)

type GenerateRequest struct {
	Spec      domain.JobSpec
	Images    []image.Image
	RequestID string
	// Policy overrides the generator's image policy when non-nil.
	Policy *imageprep.Policy
	// Output receives the artifact. A nil Output skips the download.
	Output    io.Writer
	OnSubmit  func(domain.TaskHandle)
	OnObserve func(lifecycle.Observation)
}

type Asset struct {
	TaskID   string
	URL      string
	Outputs  []string
	Format   string
	Length   int
	Bytes    int64
	FileName string
	Polls    int
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
