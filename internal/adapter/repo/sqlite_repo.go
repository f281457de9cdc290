package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"videogen/internal/domain"
	"videogen/internal/sqlinline"
)

// JobRepositorySQLite keeps the CLI job history in a local SQLite file.
type JobRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteHistory opens (and creates if needed) the history database at path.
func OpenSQLiteHistory(ctx context.Context, path string) (*JobRepositorySQLite, error) {
	if path == "" {
		return nil, &domain.ConfigError{Key: "HISTORY_DB_PATH"}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqlinline.QSQLiteEnsureHistorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &JobRepositorySQLite{db: db, now: time.Now}, nil
}

func (r *JobRepositorySQLite) Close() error {
	return r.db.Close()
}

func (r *JobRepositorySQLite) stamp() int64 {
	return r.now().UnixMilli()
}

func (r *JobRepositorySQLite) Create(ctx context.Context, job *domain.Job) error {
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	spec := job.SpecJSON
	if len(spec) == 0 {
		spec = []byte("{}")
	}
	ts := r.stamp()
	if _, err := r.db.ExecContext(ctx, sqlinline.QSQLiteInsertJob,
		job.ID, string(job.Status), job.Model, job.AspectRatio, string(spec), ts, ts,
	); err != nil {
		return fmt.Errorf("history: insert %s: %w", job.ID, err)
	}
	job.CreatedAt = time.UnixMilli(ts).UTC()
	job.UpdatedAt = job.CreatedAt
	return nil
}

func (r *JobRepositorySQLite) ClaimNext(ctx context.Context) (*domain.Job, error) {
	job, err := scanSQLiteJob(r.db.QueryRowContext(ctx, sqlinline.QSQLiteClaimJob, r.stamp()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *JobRepositorySQLite) MarkSubmitted(ctx context.Context, jobID, taskID string) error {
	return r.update(ctx, sqlinline.QSQLiteMarkSubmitted, taskID, r.stamp(), jobID)
}

// UpdateProgress is a no-op for jobs that are no longer running.
func (r *JobRepositorySQLite) UpdateProgress(ctx context.Context, jobID string, progress float64) error {
	_, err := r.db.ExecContext(ctx, sqlinline.QSQLiteUpdateProgress, progress, r.stamp(), jobID)
	return err
}

func (r *JobRepositorySQLite) Complete(ctx context.Context, jobID string, result domain.JobResult) error {
	outputs, err := marshalOutputs(result.Outputs)
	if err != nil {
		return err
	}
	return r.update(ctx, sqlinline.QSQLiteCompleteJob,
		result.TaskID, result.TaskID, string(outputs), result.StorageKey, result.Bytes, r.stamp(), jobID)
}

func (r *JobRepositorySQLite) Fail(ctx context.Context, jobID string, failure domain.JobFailure) error {
	var diagnostic any
	if b := nullableJSON(failure.Diagnostic); b != nil {
		diagnostic = string(b)
	}
	return r.update(ctx, sqlinline.QSQLiteFailJob,
		string(failure.Kind), failure.Message, diagnostic, r.stamp(), jobID)
}

func (r *JobRepositorySQLite) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanSQLiteJob(r.db.QueryRowContext(ctx, sqlinline.QSQLiteSelectJob, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *JobRepositorySQLite) List(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, sqlinline.QSQLiteListJobs, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositorySQLite) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row sqliteScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		status     string
		errorKind  string
		spec       string
		outputs    string
		diagnostic sql.NullString
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&job.ID,
		&status,
		&job.Model,
		&job.AspectRatio,
		&spec,
		&job.TaskID,
		&job.Progress,
		&outputs,
		&job.StorageKey,
		&job.Bytes,
		&errorKind,
		&job.ErrorMessage,
		&diagnostic,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	job.SpecJSON = []byte(spec)
	if diagnostic.Valid {
		job.Diagnostic = []byte(diagnostic.String)
	}
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	decoded, err := unmarshalOutputs([]byte(outputs))
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.Outputs = decoded
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositorySQLite)(nil)
