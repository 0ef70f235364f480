package sceneclaim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"scenecast/internal/domain"
	"scenecast/internal/store"
)

type stubSQL struct {
	scene  *domain.Scene
	getErr error

	tag   pgconn.CommandTag
	execs [][]any
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, args)
	return s.tag, nil
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.getErr != nil {
		return errRow{err: s.getErr}
	}
	return sceneRow{sc: *s.scene}
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type sceneRow struct{ sc domain.Scene }

func (r sceneRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.sc.ID
	*(dest[1].(*string)) = r.sc.JobID
	*(dest[2].(*int)) = r.sc.Index
	*(dest[3].(*string)) = r.sc.Narration
	*(dest[4].(*string)) = r.sc.OnScreenText
	*(dest[5].(*string)) = r.sc.VisualBrief
	*(dest[6].(*string)) = r.sc.Mood
	*(dest[7].(*int)) = r.sc.DurationSec
	*(dest[8].(*string)) = r.sc.ImagePrompt
	*(dest[9].(*string)) = r.sc.ImageKey
	*(dest[10].(*string)) = r.sc.ImageURL
	*(dest[11].(*string)) = string(r.sc.ClaimStatus)
	*(dest[12].(*string)) = r.sc.ClaimRequestID
	*(dest[13].(*time.Time)) = r.sc.ClaimedAt
	*(dest[14].(*string)) = r.sc.ClaimError
	return nil
}

func newManager(sql *stubSQL) *Manager {
	return NewManager(store.NewSceneStore(sql), 2*time.Minute, zerolog.Nop())
}

func TestAcquireFirstClaim(t *testing.T) {
	sql := &stubSQL{
		scene: &domain.Scene{ID: "scene-1", JobID: "job-1"},
		tag:   pgconn.NewCommandTag("UPDATE 1"),
	}
	m := newManager(sql)

	won, err := m.Acquire(context.Background(), "job-1", "scene-1", "req-1", m.StaleBefore())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if !won {
		t.Fatal("expected to win the first claim")
	}
	if len(sql.execs) != 1 {
		t.Fatalf("expected one conditional write, got %d", len(sql.execs))
	}
	if sql.execs[0][2] != "" || sql.execs[0][3] != "" {
		t.Fatalf("expected empty observed identity, got %v", sql.execs[0])
	}
}

func TestAcquireRefusesActiveClaim(t *testing.T) {
	sql := &stubSQL{
		scene: &domain.Scene{
			ID:             "scene-1",
			JobID:          "job-1",
			ClaimStatus:    domain.ClaimStatusGenerating,
			ClaimRequestID: "req-held",
			ClaimedAt:      time.Now(),
		},
	}
	m := newManager(sql)

	won, err := m.Acquire(context.Background(), "job-1", "scene-1", "req-2", m.StaleBefore())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if won {
		t.Fatal("active claim must not be taken over")
	}
	if len(sql.execs) != 0 {
		t.Fatalf("expected no write against a fresh claim, got %d", len(sql.execs))
	}
}

func TestAcquirePreemptsStaleClaim(t *testing.T) {
	sql := &stubSQL{
		scene: &domain.Scene{
			ID:             "scene-1",
			JobID:          "job-1",
			ClaimStatus:    domain.ClaimStatusGenerating,
			ClaimRequestID: "req-dead",
			ClaimedAt:      time.Now().Add(-10 * time.Minute),
		},
		tag: pgconn.NewCommandTag("UPDATE 1"),
	}
	m := newManager(sql)

	won, err := m.Acquire(context.Background(), "job-1", "scene-1", "req-2", m.StaleBefore())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if !won {
		t.Fatal("stale claim should be preempted")
	}
	if sql.execs[0][2] != "generating" || sql.execs[0][3] != "req-dead" {
		t.Fatalf("conditional write must carry the stale identity, got %v", sql.execs[0])
	}
}

func TestAcquireLosesConditionalWrite(t *testing.T) {
	// Eligible at read time, but another acquirer updated the row first
	// so the conditional write matches nothing.
	sql := &stubSQL{
		scene: &domain.Scene{
			ID:          "scene-1",
			JobID:       "job-1",
			ClaimStatus: domain.ClaimStatusFailed,
		},
		tag: pgconn.NewCommandTag("UPDATE 0"),
	}
	m := newManager(sql)

	won, err := m.Acquire(context.Background(), "job-1", "scene-1", "req-2", m.StaleBefore())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if won {
		t.Fatal("losing the conditional write must report false")
	}
}

func TestAcquireUnknownScene(t *testing.T) {
	sql := &stubSQL{getErr: pgx.ErrNoRows}
	m := newManager(sql)

	if _, err := m.Acquire(context.Background(), "job-1", "scene-x", "req-1", m.StaleBefore()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteWithStaleRequestID(t *testing.T) {
	sql := &stubSQL{tag: pgconn.NewCommandTag("UPDATE 0")}
	m := newManager(sql)

	done, err := m.Complete(context.Background(), "scene-1", "req-old", "key", "url")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if done {
		t.Fatal("a stale completion must not overwrite a newer claim")
	}
}
