package store

import (
	"context"
	"fmt"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/sqlinline"
)

// TaskStore is the durable queue behind bulk retry operations.
type TaskStore struct {
	sql infra.SQLExecutor
}

func NewTaskStore(sql infra.SQLExecutor) *TaskStore {
	return &TaskStore{sql: sql}
}

// Enqueue inserts a queued batch task and returns its id.
func (s *TaskStore) Enqueue(ctx context.Context, task *domain.BatchTask) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QEnqueueTask,
		task.JobID,
		string(task.Kind),
		task.SceneIDs,
		task.Force,
		task.MissingOnly,
		task.Depth,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	task.ID = id
	return id, nil
}

// ClaimNext atomically claims the oldest queued task and marks it
// running. Returns nil when the queue is empty.
func (s *TaskStore) ClaimNext(ctx context.Context) (*domain.BatchTask, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QClaimNextTask)
	var task domain.BatchTask
	var kind string
	if err := row.Scan(
		&task.ID,
		&task.JobID,
		&kind,
		&task.SceneIDs,
		&task.Force,
		&task.MissingOnly,
		&task.Depth,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}
	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatusRunning
	return &task, nil
}

// Finish records the task's final counters and marks it done.
func (s *TaskStore) Finish(ctx context.Context, task *domain.BatchTask) error {
	_, err := s.sql.Exec(ctx, sqlinline.QFinishTask,
		task.ID,
		task.Attempted,
		task.Succeeded,
		task.Failed,
		task.Skipped,
	)
	return err
}

// Fail records counters plus the error that stopped the task.
func (s *TaskStore) Fail(ctx context.Context, task *domain.BatchTask, cause string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QFailTask,
		task.ID,
		task.Attempted,
		task.Succeeded,
		task.Failed,
		task.Skipped,
		cause,
	)
	return err
}

func (s *TaskStore) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteJobTasks, jobID)
	return err
}
