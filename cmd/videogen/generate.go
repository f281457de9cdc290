package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"videogen/internal/domain"
	"videogen/internal/domain/jsoncfg"
	"videogen/internal/imageprep"
	"videogen/internal/infra"
	"videogen/internal/infra/credentials"
	"videogen/internal/lifecycle"
	"videogen/internal/providers/runway"
	videoprovider "videogen/internal/providers/video"
)

const recordTimeout = 10 * time.Second

type generatorOptions struct {
	dryRun  bool
	maxWait time.Duration
	policy  imageprep.Policy
	logger  *infra.Logger
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type generateFlags struct {
	prompt   string
	model    string
	ratio    string
	duration int
	seed     int64
	images   stringList
	out      string
	padColor string
	format   string
	locale   string
	maxWait  time.Duration
	dryRun   bool
	verbose  bool
}

func (c *cli) generate(ctx context.Context, args []string) int {
	var f generateFlags
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&f.prompt, "prompt", "", "text prompt (required without -image)")
	fs.StringVar(&f.model, "model", jsoncfg.DefaultModel, "model name, see videogen catalog")
	fs.StringVar(&f.ratio, "ratio", jsoncfg.DefaultRatio, "output ratio W:H")
	fs.IntVar(&f.duration, "duration", 0, "clip length in seconds (default: longest the model supports)")
	fs.Int64Var(&f.seed, "seed", int64(domain.DefaultSeed), "seed for reproducible runs, negative to let the service pick")
	fs.Var(&f.images, "image", "reference image path, repeatable")
	fs.StringVar(&f.out, "out", "", "output file or directory (default: <model>_<WxH>_<N>s.mp4)")
	fs.StringVar(&f.padColor, "pad-color", "", "letterbox color as #RRGGBB (default from PAD_COLOR)")
	fs.StringVar(&f.format, "format", "", "reference encoding, png or jpeg (default from IMAGE_FORMAT)")
	fs.StringVar(&f.locale, "locale", jsoncfg.DefaultLocale, "language for hints, en or id")
	fs.DurationVar(&f.maxWait, "max-wait", 0, "give up polling after this long (default from POLL_MAX_WAIT_SECONDS)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the request body instead of submitting it")
	fs.BoolVar(&f.verbose, "verbose", false, "debug logging on stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(c.stderr, "videogen: unexpected arguments %q\n", fs.Args())
		return 2
	}

	logger := c.newLogger(f.verbose)
	spec, images, err := c.buildSpec(f)
	if err != nil {
		c.report(err, f.locale)
		return 1
	}
	jobSpec, err := spec.JobSpec()
	if err != nil {
		c.report(err, spec.Locale)
		return 1
	}
	policy, err := c.policy.Override(spec.Policy.PadColor, spec.Policy.Format)
	if err != nil {
		c.report(err, spec.Locale)
		return 1
	}

	gen, err := c.newGenerator(ctx, generatorOptions{dryRun: f.dryRun, maxWait: f.maxWait, policy: policy, logger: &logger})
	if err != nil {
		c.report(err, spec.Locale)
		return 1
	}
	req := videoprovider.GenerateRequest{Spec: jobSpec, Images: images, Policy: &policy}

	if f.dryRun {
		return c.dryRun(ctx, gen, req, f.out)
	}
	return c.submit(ctx, gen, req, spec, f.out, &logger)
}

// buildSpec turns flags into a validated spec and loads the reference images.
func (c *cli) buildSpec(f generateFlags) (jsoncfg.VideoSpecJSON, []image.Image, error) {
	spec := jsoncfg.VideoSpecJSON{
		Model:    f.model,
		Prompt:   f.prompt,
		Ratio:    f.ratio,
		Duration: f.duration,
		Policy:   jsoncfg.PolicyConfig{PadColor: strings.TrimSpace(f.padColor), Format: strings.TrimSpace(f.format)},
		Locale:   strings.TrimSpace(f.locale),
	}
	if f.seed > math.MaxUint32 {
		return spec, nil, &domain.ValidationError{Field: "seed", Reason: fmt.Sprintf("must be at most %d", uint32(math.MaxUint32))}
	}
	if f.seed >= 0 {
		seed := uint32(f.seed)
		spec.Seed = &seed
	}
	if len(f.images) > domain.MaxReferenceImages {
		return spec, nil, &domain.ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d reference images are supported", domain.MaxReferenceImages)}
	}

	images := make([]image.Image, 0, len(f.images))
	for i, path := range f.images {
		ref, img, err := loadImageFile(path)
		if err != nil {
			return spec, nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		spec.Images = append(spec.Images, ref)
		images = append(images, img)
	}

	spec.Normalize(f.locale, c.modelCatalog)
	if _, err := spec.Validate(c.modelCatalog); err != nil {
		return spec, nil, err
	}
	return spec, images, nil
}

func loadImageFile(path string) (jsoncfg.ImageRef, image.Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return jsoncfg.ImageRef{}, nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return jsoncfg.ImageRef{}, nil, err
	}
	img, err := imageprep.DecodeBytes(data)
	if err != nil {
		return jsoncfg.ImageRef{}, nil, err
	}
	ref := jsoncfg.ImageRef{
		StorageKey: abs,
		MIME:       mimetype.Detect(data).String(),
		Filename:   filepath.Base(abs),
	}
	return ref, img, nil
}

func (c *cli) dryRun(ctx context.Context, gen videoprovider.Generator, req videoprovider.GenerateRequest, out string) int {
	var w io.Writer = c.stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			c.report(err, "")
			return 1
		}
		defer file.Close()
		w = file
	}
	req.Output = w
	if _, err := gen.Generate(ctx, req); err != nil {
		c.report(err, "")
		return 1
	}
	if out == "" {
		fmt.Fprintln(c.stdout)
	}
	return 0
}

func (c *cli) submit(ctx context.Context, gen videoprovider.Generator, req videoprovider.GenerateRequest, spec jsoncfg.VideoSpecJSON, out string, logger *infra.Logger) int {
	history, err := c.openHistory(ctx)
	if err != nil {
		c.report(err, spec.Locale)
		return 1
	}
	defer history.Close()

	job := &domain.Job{
		ID:          c.newID(),
		Status:      domain.JobStatusRunning,
		Model:       spec.Model,
		AspectRatio: spec.Ratio,
		SpecJSON:    jsoncfg.MustMarshal(spec),
	}
	if err := history.Create(ctx, job); err != nil {
		c.report(err, spec.Locale)
		return 1
	}
	log := logger.With().Str("job_id", job.ID).Logger()

	target, err := outputPath(out, domain.ArtifactFileName(req.Spec.Model, req.Spec.Ratio, req.Spec.Duration))
	if err != nil {
		c.finish(history, job.ID, err, spec.Locale)
		return 1
	}
	partial := target + ".part"
	file, err := os.Create(partial)
	if err != nil {
		c.finish(history, job.ID, err, spec.Locale)
		return 1
	}

	progress := newProgressReporter(c.stdout, c.tty)
	req.RequestID = job.ID
	req.Output = file
	req.OnSubmit = func(h domain.TaskHandle) {
		fmt.Fprintf(c.stdout, "submitted task %s (%s)\n", h.ID, h.Mode)
		if err := history.MarkSubmitted(ctx, job.ID, h.ID); err != nil {
			log.Warn().Err(err).Msg("videogen: record task id failed")
		}
	}
	req.OnObserve = func(o lifecycle.Observation) {
		progress.observe(o)
		if o.Err != nil || o.Progress <= 0 {
			return
		}
		if err := history.UpdateProgress(ctx, job.ID, o.Progress); err != nil {
			log.Warn().Err(err).Msg("videogen: record progress failed")
		}
	}

	asset, err := gen.Generate(ctx, req)
	progress.done()
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(partial, target)
	}
	if err != nil {
		_ = os.Remove(partial)
		c.finish(history, job.ID, err, spec.Locale)
		return 1
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	result := domain.JobResult{TaskID: asset.TaskID, Outputs: asset.Outputs, StorageKey: target, Bytes: asset.Bytes}
	if err := history.Complete(recordCtx, job.ID, result); err != nil {
		log.Warn().Err(err).Msg("videogen: record success failed")
	}
	fmt.Fprintf(c.stdout, "saved %s (%d bytes, task %s, %d polls)\n", target, asset.Bytes, asset.TaskID, asset.Polls)
	return 0
}

// finish records a failed run and prints the error.
func (c *cli) finish(history historyStore, jobID string, err error, locale string) {
	recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if recErr := history.Fail(recordCtx, jobID, domain.FailureFor(err)); recErr != nil {
		fmt.Fprintf(c.stderr, "videogen: record failure: %v\n", recErr)
	}
	c.report(err, locale)
	fmt.Fprintf(c.stderr, "history id: %s\n", jobID)
}

// outputPath resolves -out against the default artifact name. An existing
// directory receives the default name.
func outputPath(out, name string) (string, error) {
	if out == "" {
		return filepath.Abs(name)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, name)
	}
	return filepath.Abs(out)
}

// report prints err with a localized hint when one applies.
func (c *cli) report(err error, locale string) {
	fmt.Fprintf(c.stderr, "videogen: %v\n", err)

	hint := domain.HintNone
	var (
		submit     *domain.SubmitError
		validation *domain.ValidationError
		timeout    *domain.TimeoutError
	)
	switch {
	case errors.As(err, &submit):
		hint = submit.Hint
	case errors.As(err, &validation):
		switch validation.Field {
		case "ratio":
			hint = domain.HintRatio
		case "duration":
			hint = domain.HintDuration
		}
	case errors.As(err, &timeout):
		fmt.Fprintf(c.stderr, "task %s may still finish remotely\n", timeout.TaskID)
	}
	if msg := hint.Message(locale); msg != "" {
		fmt.Fprintf(c.stderr, "hint: %s\n", msg)
	}
}

func (c *cli) runwayGenerator(ctx context.Context, opts generatorOptions) (videoprovider.Generator, error) {
	encoder := imageprep.NewEncoder(opts.policy, opts.logger)
	if opts.dryRun {
		return videoprovider.NewDryRun(c.modelCatalog, encoder), nil
	}

	apiKey, err := credentials.ResolveRunwayAPIKey(ctx, nil, c.cfg.RunwayAPIKey)
	if err != nil {
		return nil, err
	}
	client, err := runway.NewClient(runway.Options{
		APIKey:          apiKey,
		BaseURL:         c.cfg.RunwayBaseURL,
		APIVersion:      c.cfg.RunwayAPIVersion,
		RequestTimeout:  c.cfg.RunwayRequestTimeout,
		DownloadTimeout: c.cfg.RunwayDownloadTimeout,
		Logger:          opts.logger,
	})
	if err != nil {
		return nil, err
	}
	poll := lifecycle.ConfigFromEnv(c.cfg, opts.logger)
	if opts.maxWait > 0 {
		poll.MaxWait = opts.maxWait
	}
	return videoprovider.NewRunwayGenerator(client, c.modelCatalog, encoder, poll, opts.logger), nil
}
