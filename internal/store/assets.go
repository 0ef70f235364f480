package store

import (
	"context"
	"fmt"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/sqlinline"
)

// AssetStore appends to and reads the per-job artifact audit trail.
type AssetStore struct {
	sql infra.SQLExecutor
}

func NewAssetStore(sql infra.SQLExecutor) *AssetStore {
	return &AssetStore{sql: sql}
}

// Insert appends one produced artifact. Asset writes are best-effort
// from the pipeline's point of view; callers log and continue on error.
func (s *AssetStore) Insert(ctx context.Context, asset *domain.Asset) error {
	row := s.sql.QueryRow(ctx, sqlinline.QInsertAsset,
		asset.JobID,
		asset.SceneID,
		string(asset.Kind),
		asset.StorageKey,
		asset.URL,
		asset.Metadata,
	)
	if err := row.Scan(&asset.ID); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// ListByJob returns the job's artifacts oldest first.
func (s *AssetStore) ListByJob(ctx context.Context, jobID string) ([]domain.Asset, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListAssets, jobID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(
			&a.ID,
			&a.JobID,
			&a.SceneID,
			&a.Kind,
			&a.StorageKey,
			&a.URL,
			&a.Metadata,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// ListKeys returns the storage keys referenced by a job's assets, used
// for best-effort object cleanup before deletion.
func (s *AssetStore) ListKeys(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListAssetKeys, jobID)
	if err != nil {
		return nil, fmt.Errorf("list asset keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan asset key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *AssetStore) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteJobAssets, jobID)
	return err
}
