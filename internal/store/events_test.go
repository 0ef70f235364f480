package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"scenecast/internal/domain"
	"scenecast/internal/sqlinline"
)

func TestEventStoreAppendMarshalsFields(t *testing.T) {
	exec := &fakeExecutor{}
	store := NewEventStore(exec)

	err := store.Append(context.Background(), "job-1", domain.EventLevelWarn, "speech failed", map[string]any{
		"scene_index": 3,
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	args := exec.calls[0].args
	if exec.calls[0].query != sqlinline.QInsertEvent || len(args) != 4 {
		t.Fatalf("unexpected call %+v", exec.calls[0])
	}
	if args[1] != "warn" || args[2] != "speech failed" {
		t.Fatalf("level/message = %v/%v", args[1], args[2])
	}
	var fields map[string]any
	if err := json.Unmarshal(args[3].([]byte), &fields); err != nil {
		t.Fatalf("fields payload not json: %v", err)
	}
	if fields["scene_index"] != float64(3) {
		t.Fatalf("fields = %v", fields)
	}
}

func TestEventStoreAppendEmptyFields(t *testing.T) {
	exec := &fakeExecutor{}
	store := NewEventStore(exec)

	if err := store.Append(context.Background(), "job-1", domain.EventLevelInfo, "job accepted", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if got := string(exec.calls[0].args[3].([]byte)); got != "{}" {
		t.Fatalf("payload = %q", got)
	}
}

func TestEventStoreListByJob(t *testing.T) {
	now := time.Now()
	exec := &fakeExecutor{rows: &fakeRows{rows: [][]any{
		{int64(1), "job-1", "info", "job accepted", []byte(`{}`), now},
		{int64(2), "job-1", "error", "pipeline failed", []byte(`{"stage":"script"}`), now},
	}}}
	store := NewEventStore(exec)

	events, err := store.ListByJob(context.Background(), "job-1", 50)
	if err != nil {
		t.Fatalf("ListByJob error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Level != domain.EventLevelError || events[1].ID != 2 {
		t.Fatalf("unexpected event %+v", events[1])
	}
	if exec.calls[0].args[1] != 50 {
		t.Fatalf("limit arg = %v", exec.calls[0].args[1])
	}
}
