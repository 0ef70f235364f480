package store

import (
	"context"
	"testing"
	"time"

	"scenecast/internal/domain"
	"scenecast/internal/sqlinline"
)

func TestAssetStoreInsertSetsID(t *testing.T) {
	exec := &fakeExecutor{rowVals: []any{"asset-9"}}
	store := NewAssetStore(exec)

	asset := &domain.Asset{
		JobID:      "job-1",
		SceneID:    "scene-1",
		Kind:       domain.AssetKindImage,
		StorageKey: "jobs/job-1/scenes/scene-1.png",
		URL:        "http://cdn/scene-1.png",
		Metadata:   []byte(`{"w":1024}`),
	}
	if err := store.Insert(context.Background(), asset); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if asset.ID != "asset-9" {
		t.Fatalf("id = %q", asset.ID)
	}
	args := exec.calls[0].args
	if exec.calls[0].query != sqlinline.QInsertAsset || len(args) != 6 {
		t.Fatalf("unexpected call %+v", exec.calls[0])
	}
	if args[2] != "image" {
		t.Fatalf("kind arg = %v", args[2])
	}
}

func TestAssetStoreListByJob(t *testing.T) {
	now := time.Now()
	exec := &fakeExecutor{rows: &fakeRows{rows: [][]any{
		{"a1", "job-1", "scene-1", "image", "k1", "u1", []byte(`{}`), now},
		{"a2", "job-1", "", "metadata", "k2", "u2", []byte(`{"final":true}`), now},
	}}}
	store := NewAssetStore(exec)

	assets, err := store.ListByJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ListByJob error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[1].Kind != domain.AssetKindMetadata || assets[1].SceneID != "" {
		t.Fatalf("unexpected asset %+v", assets[1])
	}
}

func TestAssetStoreListKeys(t *testing.T) {
	exec := &fakeExecutor{rows: &fakeRows{rows: [][]any{{"k1"}, {"k2"}}}}
	store := NewAssetStore(exec)

	keys, err := store.ListKeys(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ListKeys error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" {
		t.Fatalf("keys = %v", keys)
	}
}
