package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"videogen/internal/domain"
)

func openHistory(t *testing.T) *JobRepositorySQLite {
	t.Helper()
	repo, err := OpenSQLiteHistory(context.Background(), filepath.Join(t.TempDir(), "history", "jobs.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteHistory returned error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestSQLiteHistoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openHistory(t)

	for _, id := range []string{"job-a", "job-b"} {
		if err := repo.Create(ctx, &domain.Job{ID: id, Model: "gen4_turbo", AspectRatio: "1280:720", SpecJSON: []byte(`{"prompt":"x"}`)}); err != nil {
			t.Fatalf("Create(%s) returned error: %v", id, err)
		}
	}

	claimed, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext returned error: %v", err)
	}
	if claimed.ID != "job-a" || claimed.Status != domain.JobStatusRunning {
		t.Fatalf("claimed = %s/%s, want oldest job running", claimed.ID, claimed.Status)
	}

	if err := repo.MarkSubmitted(ctx, "job-a", "task-1"); err != nil {
		t.Fatalf("MarkSubmitted returned error: %v", err)
	}
	if err := repo.UpdateProgress(ctx, "job-a", 0.6); err != nil {
		t.Fatalf("UpdateProgress returned error: %v", err)
	}
	if err := repo.UpdateProgress(ctx, "job-a", 0.2); err != nil {
		t.Fatalf("UpdateProgress returned error: %v", err)
	}
	job, err := repo.GetByID(ctx, "job-a")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if job.TaskID != "task-1" || job.Progress != 0.6 {
		t.Fatalf("job = %+v, want task-1 at 0.6", job)
	}

	err = repo.Complete(ctx, "job-a", domain.JobResult{Outputs: []string{"https://cdn.test/a.mp4"}, StorageKey: "videos/job-a.mp4", Bytes: 9})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	job, _ = repo.GetByID(ctx, "job-a")
	if job.Status != domain.JobStatusSucceeded || job.TaskID != "task-1" || job.Progress != 1 {
		t.Fatalf("completed job = %+v", job)
	}
	if len(job.Outputs) != 1 || job.StorageKey != "videos/job-a.mp4" || job.Bytes != 9 {
		t.Fatalf("completed job result = %+v", job)
	}

	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext returned error: %v", err)
	}
	err = repo.Fail(ctx, "job-b", domain.JobFailure{Kind: domain.ErrorKindTimeout, Message: "still pending", Diagnostic: []byte("gave up")})
	if err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if _, err := repo.ClaimNext(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ClaimNext on empty queue = %v, want ErrNotFound", err)
	}

	jobs, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-b" {
		t.Fatalf("List order = %+v, want newest first", jobs)
	}
	if jobs[0].ErrorKind != domain.ErrorKindTimeout || string(jobs[0].Diagnostic) != `"gave up"` {
		t.Fatalf("failed job = %+v", jobs[0])
	}
}

func TestSQLiteHistoryUnknownJob(t *testing.T) {
	repo := openHistory(t)
	ctx := context.Background()
	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID error = %v, want ErrNotFound", err)
	}
	if err := repo.Complete(ctx, "nope", domain.JobResult{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Complete error = %v, want ErrNotFound", err)
	}
}

func TestOpenSQLiteHistoryRequiresPath(t *testing.T) {
	if _, err := OpenSQLiteHistory(context.Background(), ""); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
}
