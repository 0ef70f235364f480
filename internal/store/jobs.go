package store

import (
	"context"
	"fmt"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/sqlinline"
)

// JobStore persists jobs through the marker-logged SQL runner.
type JobStore struct {
	sql infra.SQLExecutor
}

func NewJobStore(sql infra.SQLExecutor) *JobStore {
	return &JobStore{sql: sql}
}

// Create inserts a fresh queued job.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	row := s.sql.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.Topic,
		job.Language,
		job.Audience,
		job.Hint,
		job.ReuseOf,
		job.TraceID,
	)
	if err := row.Scan(&job.ID); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Reset returns an existing job to queued with fresh input and trace id.
// Result slots and counters are cleared; callers delete child rows
// separately before re-running the pipeline.
func (s *JobStore) Reset(ctx context.Context, job *domain.Job) error {
	row := s.sql.QueryRow(ctx, sqlinline.QResetJob,
		job.ID,
		job.Topic,
		job.Language,
		job.Audience,
		job.Hint,
		job.ReuseOf,
		job.TraceID,
	)
	if err := row.Scan(&job.ID); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reset job: %w", err)
	}
	return nil
}

// Get fetches the full job row.
func (s *JobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QGetJob, id)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Topic,
		&job.Language,
		&job.Audience,
		&job.Hint,
		&job.ReuseOf,
		&job.TraceID,
		&job.Storyboard,
		&job.Script,
		&job.FinalPackage,
		&job.ErrorMessage,
		&job.SpeechDone,
		&job.SpeechFailed,
		&job.ImagesDone,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns recent jobs as summaries, newest first.
func (s *JobStore) List(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(
			&job.ID,
			&job.Status,
			&job.Topic,
			&job.Language,
			&job.Audience,
			&job.TraceID,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNext atomically claims the oldest queued job and marks it
// running. Returns nil when the queue is empty.
func (s *JobStore) ClaimNext(ctx context.Context) (*domain.Job, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QClaimNextJob)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Topic,
		&job.Language,
		&job.Audience,
		&job.Hint,
		&job.TraceID,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job.Status = domain.JobStatusRunning
	return &job, nil
}

func (s *JobStore) SetStoryboard(ctx context.Context, id string, payload []byte) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetJobStoryboard, id, payload)
	return err
}

func (s *JobStore) SetScript(ctx context.Context, id string, payload []byte) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetJobScript, id, payload)
	return err
}

// Succeed marks the job terminal-successful with its assembled package.
func (s *JobStore) Succeed(ctx context.Context, id string, finalPackage []byte) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSucceedJob, id, finalPackage)
	return err
}

// Fail marks the job terminal-failed with a client-visible message.
func (s *JobStore) Fail(ctx context.Context, id, message string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QFailJob, id, message)
	return err
}

func (s *JobStore) BumpSpeechDone(ctx context.Context, id string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QBumpSpeechDone, id)
	return err
}

func (s *JobStore) BumpSpeechFailed(ctx context.Context, id string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QBumpSpeechFailed, id)
	return err
}

func (s *JobStore) BumpImagesDone(ctx context.Context, id string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QBumpImagesDone, id)
	return err
}

// Delete removes the job row; scenes, assets, events and batch tasks go
// with it via FK cascade.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteJob, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
