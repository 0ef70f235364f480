package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scenecast/internal/domain"
	"scenecast/internal/sqlinline"
)

func TestJobStoreCreate(t *testing.T) {
	exec := &fakeExecutor{rowFn: func(args []any) []any {
		return []any{args[0]}
	}}
	store := NewJobStore(exec)

	job := &domain.Job{
		ID:       "6e7c3a1e-43cd-4f50-9e56-3e1f4f3dd001",
		Topic:    "volcanoes",
		Language: "en",
		Audience: "kids",
		TraceID:  "trace-1",
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if job.ID != "6e7c3a1e-43cd-4f50-9e56-3e1f4f3dd001" {
		t.Fatalf("unexpected id %q", job.ID)
	}
	if len(exec.calls) != 1 || exec.calls[0].query != sqlinline.QInsertJob {
		t.Fatalf("expected one QInsertJob call, got %+v", exec.calls)
	}
	if got := len(exec.calls[0].args); got != 7 {
		t.Fatalf("expected 7 insert args, got %d", got)
	}
}

func TestJobStoreResetNotFound(t *testing.T) {
	exec := &fakeExecutor{rowErr: pgx.ErrNoRows}
	store := NewJobStore(exec)

	err := store.Reset(context.Background(), &domain.Job{ID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobStoreGetScansFullRow(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{rowVals: []any{
		"job-1", "failed", "volcanoes", "en", "kids", "dramatic", "", "trace-1",
		[]byte(`{"scenes":[]}`), nil, nil,
		"render exploded", 2, 1, 3, created, created.Add(time.Minute),
	}}
	store := NewJobStore(exec)

	job, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q", job.Status)
	}
	if string(job.Storyboard) != `{"scenes":[]}` {
		t.Fatalf("storyboard = %q", job.Storyboard)
	}
	if job.Script != nil || job.FinalPackage != nil {
		t.Fatalf("expected nil script and package, got %q %q", job.Script, job.FinalPackage)
	}
	if job.SpeechDone != 2 || job.SpeechFailed != 1 || job.ImagesDone != 3 {
		t.Fatalf("counters = %d/%d/%d", job.SpeechDone, job.SpeechFailed, job.ImagesDone)
	}
	if !job.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Fatalf("updated_at = %v", job.UpdatedAt)
	}
}

func TestJobStoreGetNotFound(t *testing.T) {
	store := NewJobStore(&fakeExecutor{rowErr: pgx.ErrNoRows})
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobStoreListScansSummaries(t *testing.T) {
	now := time.Now()
	exec := &fakeExecutor{rows: &fakeRows{rows: [][]any{
		{"job-2", "running", "comets", "en", "general", "t2", "", now, now},
		{"job-1", "succeeded", "volcanoes", "id", "kids", "t1", "", now, now},
	}}}
	store := NewJobStore(exec)

	jobs, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "job-2" || jobs[1].Status != domain.JobStatusSucceeded {
		t.Fatalf("unexpected rows %+v", jobs)
	}
	if exec.calls[0].args[0] != 10 {
		t.Fatalf("limit arg = %v", exec.calls[0].args[0])
	}
}

func TestJobStoreClaimNextEmptyQueue(t *testing.T) {
	store := NewJobStore(&fakeExecutor{rowErr: pgx.ErrNoRows})

	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext error: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestJobStoreClaimNextMarksRunning(t *testing.T) {
	exec := &fakeExecutor{rowVals: []any{"job-1", "volcanoes", "en", "kids", "", "trace-1"}}
	store := NewJobStore(exec)

	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext error: %v", err)
	}
	if job == nil || job.Status != domain.JobStatusRunning {
		t.Fatalf("expected running job, got %+v", job)
	}
	if exec.calls[0].query != sqlinline.QClaimNextJob {
		t.Fatalf("unexpected query %q", exec.calls[0].query)
	}
}

func TestJobStoreDelete(t *testing.T) {
	exec := &fakeExecutor{execTag: pgconn.NewCommandTag("DELETE 1")}
	store := NewJobStore(exec)

	if err := store.Delete(context.Background(), "job-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	store = NewJobStore(&fakeExecutor{execTag: pgconn.NewCommandTag("DELETE 0")})
	if err := store.Delete(context.Background(), "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
