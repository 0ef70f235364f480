package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scenecast/internal/domain"
	"scenecast/internal/sqlinline"
)

func TestSceneStoreBulkInsertAssignsIDs(t *testing.T) {
	exec := &fakeExecutor{rowFn: func(args []any) []any {
		return []any{args[0]}
	}}
	store := NewSceneStore(exec)

	scenes := []domain.Scene{
		{Index: 1, Narration: "first", DurationSec: 5},
		{Index: 2, Narration: "second", DurationSec: 7},
	}
	out, err := store.BulkInsert(context.Background(), "job-1", scenes)
	if err != nil {
		t.Fatalf("BulkInsert error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(out))
	}
	for i, sc := range out {
		if _, err := uuid.Parse(sc.ID); err != nil {
			t.Fatalf("scene %d id %q is not a uuid: %v", i, sc.ID, err)
		}
		if sc.JobID != "job-1" {
			t.Fatalf("scene %d job id = %q", i, sc.JobID)
		}
	}
	if out[0].ID == out[1].ID {
		t.Fatal("scene ids must be distinct")
	}
	if exec.calls[1].args[2] != 2 {
		t.Fatalf("second insert idx arg = %v", exec.calls[1].args[2])
	}
}

func TestSceneStoreGetScansClaim(t *testing.T) {
	claimed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{rowVals: []any{
		"scene-1", "job-1", 1, "narration", "caption", "brief", "calm", 6,
		"prompt", "jobs/job-1/s1.png", "http://cdn/s1.png",
		"generating", "req-9", claimed, "",
	}}
	store := NewSceneStore(exec)

	sc, err := store.Get(context.Background(), "scene-1", "job-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if sc.ClaimStatus != domain.ClaimStatusGenerating || sc.ClaimRequestID != "req-9" {
		t.Fatalf("claim = %q/%q", sc.ClaimStatus, sc.ClaimRequestID)
	}
	if !sc.ClaimedAt.Equal(claimed) {
		t.Fatalf("claimed at = %v", sc.ClaimedAt)
	}
	if !sc.HasImage() {
		t.Fatal("expected HasImage")
	}
}

func TestSceneStoreGetNotFound(t *testing.T) {
	store := NewSceneStore(&fakeExecutor{rowErr: pgx.ErrNoRows})
	if _, err := store.Get(context.Background(), "scene-x", "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSceneStoreListByJob(t *testing.T) {
	now := time.Now()
	exec := &fakeExecutor{rows: &fakeRows{rows: [][]any{
		{"scene-1", "job-1", 1, "n1", "", "b1", "calm", 5, "p1", "", "", "", "", now, ""},
		{"scene-2", "job-1", 2, "n2", "", "b2", "tense", 5, "p2", "", "", "failed", "req-1", now, "boom"},
	}}}
	store := NewSceneStore(exec)

	scenes, err := store.ListByJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ListByJob error: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(scenes))
	}
	if scenes[0].ClaimStatus != "" {
		t.Fatalf("unclaimed scene status = %q", scenes[0].ClaimStatus)
	}
	if scenes[1].ClaimStatus != domain.ClaimStatusFailed || scenes[1].ClaimError != "boom" {
		t.Fatalf("claim = %q/%q", scenes[1].ClaimStatus, scenes[1].ClaimError)
	}
}

func TestSceneStoreAcquireClaim(t *testing.T) {
	cases := []struct {
		name string
		tag  string
		want bool
	}{
		{name: "wins", tag: "UPDATE 1", want: true},
		{name: "loses race", tag: "UPDATE 0", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{execTag: pgconn.NewCommandTag(tc.tag)}
			store := NewSceneStore(exec)

			won, err := store.AcquireClaim(context.Background(), "scene-1", "req-2", domain.ClaimStatusFailed, "req-1")
			if err != nil {
				t.Fatalf("AcquireClaim error: %v", err)
			}
			if won != tc.want {
				t.Fatalf("won = %v, want %v", won, tc.want)
			}
			args := exec.calls[0].args
			if exec.calls[0].query != sqlinline.QAcquireSceneClaim || len(args) != 4 {
				t.Fatalf("unexpected call %+v", exec.calls[0])
			}
			if args[2] != "failed" || args[3] != "req-1" {
				t.Fatalf("expected observed claim identity, got %v", args)
			}
		})
	}
}

func TestSceneStoreCompleteClaimGatedByRequestID(t *testing.T) {
	exec := &fakeExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	store := NewSceneStore(exec)

	done, err := store.CompleteClaim(context.Background(), "scene-1", "stale-req", "k", "u")
	if err != nil {
		t.Fatalf("CompleteClaim error: %v", err)
	}
	if done {
		t.Fatal("stale request id must not complete the claim")
	}
}
