package store

import (
	"context"
	"encoding/json"
	"fmt"

	"scenecast/internal/domain"
	"scenecast/internal/infra"
	"scenecast/internal/sqlinline"
)

// EventStore appends to and reads the per-job runtime log.
type EventStore struct {
	sql infra.SQLExecutor
}

func NewEventStore(sql infra.SQLExecutor) *EventStore {
	return &EventStore{sql: sql}
}

// Append writes one runtime log entry. Errors are returned so callers
// can log them, but by contract no caller lets an append failure stop
// the work being logged.
func (s *EventStore) Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error {
	payload := []byte("{}")
	if len(fields) > 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal event fields: %w", err)
		}
		payload = b
	}
	_, err := s.sql.Exec(ctx, sqlinline.QInsertEvent, jobID, string(level), message, payload)
	return err
}

// ListByJob returns up to limit entries in append order.
func (s *EventStore) ListByJob(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListEvents, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.JobEvent
	for rows.Next() {
		var ev domain.JobEvent
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Level, &ev.Message, &ev.Fields, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *EventStore) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteJobEvents, jobID)
	return err
}
