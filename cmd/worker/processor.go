package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"videogen/internal/domain"
	"videogen/internal/domain/jsoncfg"
	"videogen/internal/imageprep"
	"videogen/internal/infra"
	"videogen/internal/lifecycle"
	videoprovider "videogen/internal/providers/video"
	"videogen/internal/storage"
)

const (
	jobPollInterval = 2 * time.Second
	recordTimeout   = 10 * time.Second
)

type jobWorker struct {
	jobs      domain.JobRepository
	store     *storage.FileStore
	generator videoprovider.Generator
	policy    imageprep.Policy
	logger    infra.Logger
	idle      time.Duration
	sleep     lifecycle.SleepFunc
}

// Run starts concurrency claim loops and blocks until ctx is cancelled or a
// loop fails.
func (w *jobWorker) Run(ctx context.Context, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	w.logger.Info().Int("concurrency", concurrency).Msg("worker: started")
	g, ctx := errgroup.WithContext(ctx)
	for slot := 0; slot < concurrency; slot++ {
		slot := slot
		g.Go(func() error { return w.loop(ctx, slot) })
	}
	return g.Wait()
}

func (w *jobWorker) loop(ctx context.Context, slot int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := w.processNext(ctx)
		if err != nil {
			w.logger.Error().Err(err).Int("slot", slot).Msg("worker: failed to claim job")
		}
		if claimed {
			continue
		}
		if err := w.sleep(ctx, w.idle); err != nil {
			return err
		}
	}
}

// processNext claims one job and records its terminal state. It reports
// whether a job was claimed.
func (w *jobWorker) processNext(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	w.handleJob(ctx, job)
	return true, nil
}

func (w *jobWorker) handleJob(ctx context.Context, job *domain.Job) {
	log := w.logger.With().Str("job_id", job.ID).Str("model", job.Model).Logger()
	log.Info().Msg("worker: picked job")

	result, err := w.process(ctx, job)

	// The outcome is recorded even when shutdown cancelled ctx.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err != nil {
		failure := domain.FailureFor(err)
		log.Error().Err(err).Str("kind", string(failure.Kind)).Msg("worker: job failed")
		if recErr := w.jobs.Fail(recordCtx, job.ID, failure); recErr != nil {
			log.Error().Err(recErr).Msg("worker: record failure failed")
		}
		return
	}
	if recErr := w.jobs.Complete(recordCtx, job.ID, result); recErr != nil {
		log.Error().Err(recErr).Msg("worker: record success failed")
		return
	}
	log.Info().Str("task_id", result.TaskID).Int64("bytes", result.Bytes).Msg("worker: job succeeded")
}

func (w *jobWorker) process(ctx context.Context, job *domain.Job) (domain.JobResult, error) {
	var spec jsoncfg.VideoSpecJSON
	if err := json.Unmarshal(job.SpecJSON, &spec); err != nil {
		return domain.JobResult{}, fmt.Errorf("decode spec: %w", err)
	}
	jobSpec, err := spec.JobSpec()
	if err != nil {
		return domain.JobResult{}, err
	}
	policy, err := w.policy.Override(spec.Policy.PadColor, spec.Policy.Format)
	if err != nil {
		return domain.JobResult{}, err
	}
	images, err := w.loadImages(ctx, spec.Images)
	if err != nil {
		return domain.JobResult{}, err
	}

	out, key, err := w.store.Create(ctx, fmt.Sprintf("videos/%s.mp4", job.ID))
	if err != nil {
		return domain.JobResult{}, err
	}
	asset, err := w.generator.Generate(ctx, videoprovider.GenerateRequest{
		Spec:      jobSpec,
		Images:    images,
		RequestID: job.ID,
		Policy:    &policy,
		Output:    out,
		OnSubmit: func(h domain.TaskHandle) {
			if err := w.jobs.MarkSubmitted(ctx, job.ID, h.ID); err != nil {
				w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: record task id failed")
			}
		},
		OnObserve: func(o lifecycle.Observation) {
			if o.Err != nil || o.Progress <= 0 {
				return
			}
			if err := w.jobs.UpdateProgress(ctx, job.ID, o.Progress); err != nil {
				w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: record progress failed")
			}
		},
	})
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = w.store.Delete(context.WithoutCancel(ctx), key)
		return domain.JobResult{}, err
	}
	return domain.JobResult{
		TaskID:     asset.TaskID,
		Outputs:    asset.Outputs,
		StorageKey: key,
		Bytes:      asset.Bytes,
	}, nil
}

func (w *jobWorker) loadImages(ctx context.Context, refs []jsoncfg.ImageRef) ([]image.Image, error) {
	images := make([]image.Image, 0, len(refs))
	for i, ref := range refs {
		data, err := w.store.Read(ctx, ref.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("load reference %d: %w", i+1, err)
		}
		img, err := imageprep.DecodeBytes(data)
		if err != nil {
			return nil, fmt.Errorf("reference %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}
