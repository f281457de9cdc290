package video

import (
	"context"
	"errors"
	"fmt"
	"io"

	"videogen/internal/domain"
	"videogen/internal/imageprep"
	"videogen/internal/infra"
	"videogen/internal/lifecycle"
)

// RemoteClient is the Runway surface the generator drives.
type RemoteClient interface {
	lifecycle.Client
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// RunwayGenerator runs the full pipeline for one job: validate, normalize and
// encode references, submit, poll to a terminal state and download.
type RunwayGenerator struct {
	client  RemoteClient
	catalog *domain.Catalog
	encoder *imageprep.Encoder
	poll    lifecycle.Config
	logger  *infra.Logger
}

func NewRunwayGenerator(client RemoteClient, catalog *domain.Catalog, encoder *imageprep.Encoder, poll lifecycle.Config, logger *infra.Logger) *RunwayGenerator {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	if encoder == nil {
		encoder = imageprep.NewEncoder(imageprep.DefaultPolicy(), logger)
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	if poll.Logger == nil {
		poll.Logger = logger
	}
	return &RunwayGenerator{client: client, catalog: catalog, encoder: encoder, poll: poll, logger: logger}
}

func (g *RunwayGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	jobReq, model, err := prepare(g.catalog, g.encoderFor(req), req)
	if err != nil {
		return nil, err
	}

	cfg := g.poll
	cfg.OnObserve = req.OnObserve
	ctrl, err := lifecycle.NewController(g.client, cfg)
	if err != nil {
		return nil, err
	}

	handle, err := g.client.Submit(ctx, jobReq)
	if err != nil {
		return nil, err
	}
	if req.OnSubmit != nil {
		req.OnSubmit(handle)
	}
	g.logger.Info().
		Str("job_id", req.RequestID).
		Str("task_id", handle.ID).
		Str("model", model.Name).
		Int("estimated_credits", model.EstimatedCredits(jobReq.Duration)).
		Msg("video: polling task")

	outcome, err := ctrl.Run(ctx, handle)
	if err != nil {
		return nil, err
	}
	if len(outcome.Outputs) == 0 {
		return nil, &domain.RemoteJobFailure{TaskID: handle.ID, Payload: outcome.Payload}
	}

	asset := &Asset{
		TaskID:   handle.ID,
		URL:      outcome.Outputs[0],
		Outputs:  outcome.Outputs,
		Format:   "video/mp4",
		Length:   jobReq.Duration,
		FileName: domain.ArtifactFileName(jobReq.Model, jobReq.Ratio, jobReq.Duration),
		Polls:    outcome.Polls,
	}
	if req.Output != nil {
		n, err := g.download(ctx, handle.ID, asset.URL, req.Output)
		if err != nil {
			return nil, fmt.Errorf("video: download %s: %w", handle.ID, err)
		}
		asset.Bytes = n
	}
	return asset, nil
}

// download fetches the artifact, retrying retryable fetch errors up to
// FetchRetries times with the poll interval in between. A partial write is
// discarded before the next attempt; outputs that cannot be rewound get no
// retry once bytes have reached them.
func (g *RunwayGenerator) download(ctx context.Context, taskID, url string, w io.Writer) (int64, error) {
	sleep := g.poll.Sleep
	if sleep == nil {
		sleep = lifecycle.Sleep
	}
	interval := g.poll.Interval
	if interval <= 0 {
		interval = lifecycle.DefaultInterval
	}

	for attempt := 1; ; attempt++ {
		n, err := g.client.Download(ctx, url, w)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil || attempt > g.poll.FetchRetries || !domain.IsRetryableFetch(err) {
			return n, err
		}
		if n > 0 {
			if rerr := rewind(w); rerr != nil {
				g.logger.Warn().Err(rerr).Str("task_id", taskID).Msg("video: output cannot be rewound")
				return n, err
			}
		}
		g.logger.Warn().Err(err).
			Str("task_id", taskID).
			Int("attempt", attempt).
			Int64("partial_bytes", n).
			Msg("video: download failed, retrying")
		if serr := sleep(ctx, interval); serr != nil {
			return n, serr
		}
	}
}

// Rewinder is an Output that can drop everything written so far.
type Rewinder interface {
	Rewind() error
}

var errNotRewindable = errors.New("video: output cannot be rewound")

// rewind resets w for a fresh download. Files are truncated in place, which
// covers both the CLI's .part file and FileStore objects.
func rewind(w io.Writer) error {
	switch out := w.(type) {
	case Rewinder:
		return out.Rewind()
	case interface {
		io.Seeker
		Truncate(size int64) error
	}:
		if err := out.Truncate(0); err != nil {
			return err
		}
		_, err := out.Seek(0, io.SeekStart)
		return err
	}
	return errNotRewindable
}

func (g *RunwayGenerator) encoderFor(req GenerateRequest) *imageprep.Encoder {
	if req.Policy == nil {
		return g.encoder
	}
	return imageprep.NewEncoder(*req.Policy, g.logger)
}

// prepare validates before any image work and encodes before any network call.
func prepare(catalog *domain.Catalog, encoder *imageprep.Encoder, req GenerateRequest) (domain.JobRequest, domain.Model, error) {
	model, err := catalog.Validate(req.Spec, len(req.Images))
	if err != nil {
		return domain.JobRequest{}, domain.Model{}, err
	}
	encoded, err := encoder.Encode(req.Images, req.Spec.Ratio)
	if err != nil {
		return domain.JobRequest{}, domain.Model{}, err
	}
	return domain.NewJobRequest(req.Spec, imageprep.AssemblePromptImage(encoded)), model, nil
}

var _ Generator = (*RunwayGenerator)(nil)
