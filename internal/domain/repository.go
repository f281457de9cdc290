package domain

import "context"

// JobRepository persists video jobs for the API, the worker and the CLI history.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// ClaimNext moves the oldest QUEUED job to RUNNING and returns it, or
	// ErrNotFound when the queue is empty.
	ClaimNext(ctx context.Context) (*Job, error)
	MarkSubmitted(ctx context.Context, jobID, taskID string) error
	UpdateProgress(ctx context.Context, jobID string, progress float64) error
	Complete(ctx context.Context, jobID string, result JobResult) error
	Fail(ctx context.Context, jobID string, failure JobFailure) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
}
