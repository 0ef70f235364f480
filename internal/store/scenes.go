package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/sqlinline"
)

// SceneStore persists scenes and their image-generation claims.
type SceneStore struct {
	sql infra.SQLExecutor
}

func NewSceneStore(sql infra.SQLExecutor) *SceneStore {
	return &SceneStore{sql: sql}
}

// BulkInsert writes the validated scene list for a job. Scene ids are
// assigned here; the caller has already normalized indices to 1..N.
func (s *SceneStore) BulkInsert(ctx context.Context, jobID string, scenes []domain.Scene) ([]domain.Scene, error) {
	out := make([]domain.Scene, 0, len(scenes))
	for _, sc := range scenes {
		sc.ID = uuid.NewString()
		sc.JobID = jobID
		row := s.sql.QueryRow(ctx, sqlinline.QInsertScene,
			sc.ID,
			sc.JobID,
			sc.Index,
			sc.Narration,
			sc.OnScreenText,
			sc.VisualBrief,
			sc.Mood,
			sc.DurationSec,
			sc.ImagePrompt,
		)
		if err := row.Scan(&sc.ID); err != nil {
			return out, fmt.Errorf("insert scene %d: %w", sc.Index, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// ListByJob returns the job's scenes ordered by index.
func (s *SceneStore) ListByJob(ctx context.Context, jobID string) ([]domain.Scene, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListScenes, jobID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []domain.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

// Get fetches one scene scoped to its job.
func (s *SceneStore) Get(ctx context.Context, sceneID, jobID string) (*domain.Scene, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QGetScene, sceneID, jobID)
	sc, err := scanScene(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &sc, nil
}

// AcquireClaim performs the conditional claim write. The WHERE clause
// re-checks the claim identity the caller observed, so of any number of
// concurrent acquirers exactly one sees a row update.
func (s *SceneStore) AcquireClaim(ctx context.Context, sceneID, requestID string, prevStatus domain.ClaimStatus, prevRequestID string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QAcquireSceneClaim,
		sceneID,
		requestID,
		string(prevStatus),
		prevRequestID,
	)
	if err != nil {
		return false, fmt.Errorf("acquire claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteClaim finishes a claim successfully, recording the image.
// A mismatched request id makes this a no-op.
func (s *SceneStore) CompleteClaim(ctx context.Context, sceneID, requestID, imageKey, imageURL string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteSceneClaim, sceneID, requestID, imageKey, imageURL)
	if err != nil {
		return false, fmt.Errorf("complete claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailClaim records a failed generation attempt, gated like CompleteClaim.
func (s *SceneStore) FailClaim(ctx context.Context, sceneID, requestID, message string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QFailSceneClaim, sceneID, requestID, message)
	if err != nil {
		return false, fmt.Errorf("fail claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *SceneStore) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteJobScenes, jobID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(row rowScanner) (domain.Scene, error) {
	var sc domain.Scene
	var claimStatus string
	err := row.Scan(
		&sc.ID,
		&sc.JobID,
		&sc.Index,
		&sc.Narration,
		&sc.OnScreenText,
		&sc.VisualBrief,
		&sc.Mood,
		&sc.DurationSec,
		&sc.ImagePrompt,
		&sc.ImageKey,
		&sc.ImageURL,
		&claimStatus,
		&sc.ClaimRequestID,
		&sc.ClaimedAt,
		&sc.ClaimError,
	)
	if err != nil {
		return sc, err
	}
	sc.ClaimStatus = domain.ClaimStatus(claimStatus)
	return sc, nil
}
