package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/sqlinline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// EnsureSchema creates the video_jobs and integration_tokens tables when missing.
func (r *JobRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QEnsureVideoJobsSchema)
	return err
}

// Create inserts a new job record and fills its timestamps.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	spec := job.SpecJSON
	if len(spec) == 0 {
		spec = []byte("{}")
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertVideoJob,
		job.ID,
		string(job.Status),
		job.Model,
		job.AspectRatio,
		spec,
	)
	return row.Scan(&job.CreatedAt, &job.UpdatedAt)
}

// ClaimNext atomically moves the oldest queued job to RUNNING.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimVideoJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepositoryPG) MarkSubmitted(ctx context.Context, jobID, taskID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkVideoJobSubmitted, jobID, taskID)
	return err
}

func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress float64) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateVideoJobProgress, jobID, progress)
	return err
}

func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, result domain.JobResult) error {
	outputs, err := marshalOutputs(result.Outputs)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteVideoJob, jobID, result.TaskID, outputs, result.StorageKey, result.Bytes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) Fail(ctx context.Context, jobID string, failure domain.JobFailure) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailVideoJob, jobID, string(failure.Kind), failure.Message, nullableJSON(failure.Diagnostic))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectVideoJob, jobID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns the most recent jobs first.
func (r *JobRepositoryPG) List(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListVideoJobs, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// scanJob reads the column order shared by the claim, select and list queries.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job        domain.Job
		status     string
		errorKind  string
		outputsRaw []byte
	)
	if err := row.Scan(
		&job.ID,
		&status,
		&job.Model,
		&job.AspectRatio,
		&job.SpecJSON,
		&job.TaskID,
		&job.Progress,
		&outputsRaw,
		&job.StorageKey,
		&job.Bytes,
		&errorKind,
		&job.ErrorMessage,
		&job.Diagnostic,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	outputs, err := unmarshalOutputs(outputsRaw)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.Outputs = outputs
	return &job, nil
}

func marshalOutputs(outputs []string) ([]byte, error) {
	if outputs == nil {
		outputs = []string{}
	}
	return json.Marshal(outputs)
}

func unmarshalOutputs(raw []byte) ([]string, error) {
	outputs := []string{}
	if len(raw) == 0 {
		return outputs, nil
	}
	if err := json.Unmarshal(raw, &outputs); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	return outputs, nil
}

// nullableJSON keeps valid JSON verbatim and stores anything else as a JSON string.
func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return b
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
