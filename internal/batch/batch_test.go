package batch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scenecast/internal/domain"
	"scenecast/internal/imagegen"
	"scenecast/internal/providers/speech"
	"scenecast/internal/storage"
)

type fakeJobs struct {
	job          *domain.Job
	err          error
	speechDone   int
	speechFailed int
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeJobs) BumpSpeechDone(ctx context.Context, id string) error {
	f.speechDone++
	return nil
}

func (f *fakeJobs) BumpSpeechFailed(ctx context.Context, id string) error {
	f.speechFailed++
	return nil
}

type fakeScenes struct {
	scenes []domain.Scene
}

func (f *fakeScenes) ListByJob(ctx context.Context, jobID string) ([]domain.Scene, error) {
	return f.scenes, nil
}

type fakeAssets struct {
	listed   []domain.Asset
	inserted []*domain.Asset
}

func (f *fakeAssets) ListByJob(ctx context.Context, jobID string) ([]domain.Asset, error) {
	return f.listed, nil
}

func (f *fakeAssets) Insert(ctx context.Context, asset *domain.Asset) error {
	f.inserted = append(f.inserted, asset)
	return nil
}

type fakeTasks struct {
	enqueued    []*domain.BatchTask
	finishCalls int
	failCalls   int
	failCause   string
}

func (f *fakeTasks) Enqueue(ctx context.Context, task *domain.BatchTask) (string, error) {
	f.enqueued = append(f.enqueued, task)
	task.ID = "continuation-1"
	return task.ID, nil
}

func (f *fakeTasks) Finish(ctx context.Context, task *domain.BatchTask) error {
	f.finishCalls++
	return nil
}

func (f *fakeTasks) Fail(ctx context.Context, task *domain.BatchTask, cause string) error {
	f.failCalls++
	f.failCause = cause
	return nil
}

type fakeEvents struct {
	messages []string
}

func (f *fakeEvents) Append(ctx context.Context, jobID string, level domain.EventLevel, message string, fields map[string]any) error {
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeEvents) contains(message string) bool {
	for _, m := range f.messages {
		if m == message {
			return true
		}
	}
	return false
}

type fakeImages struct {
	outcomes map[string]imagegen.Outcome
	forces   []bool
	calls    []string
}

func (f *fakeImages) Generate(ctx context.Context, job domain.Job, scene domain.Scene, force bool) (imagegen.Result, error) {
	f.calls = append(f.calls, scene.ID)
	f.forces = append(f.forces, force)
	outcome, ok := f.outcomes[scene.ID]
	if !ok {
		outcome = imagegen.OutcomeSucceeded
	}
	return imagegen.Result{Outcome: outcome}, nil
}

type stubSpeech struct {
	failOn map[string]bool
	calls  int
}

func (s *stubSpeech) Synthesize(ctx context.Context, text string) (*speech.Clip, error) {
	s.calls++
	if s.failOn[text] {
		return nil, errors.New("voice backend unavailable")
	}
	return &speech.Clip{Data: []byte("wav-bytes"), MIME: "audio/wav"}, nil
}

func (s *stubSpeech) Name() string { return "stub-voice" }

type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type batchFixture struct {
	runner *Runner
	jobs   *fakeJobs
	scenes *fakeScenes
	assets *fakeAssets
	tasks  *fakeTasks
	events *fakeEvents
	images *fakeImages
	speech *stubSpeech
}

func newBatchFixture(t *testing.T, cfg Config) *batchFixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	f := &batchFixture{
		jobs:   &fakeJobs{job: &domain.Job{ID: "job-1", Status: domain.JobStatusSucceeded}},
		scenes: &fakeScenes{},
		assets: &fakeAssets{},
		tasks:  &fakeTasks{},
		events: &fakeEvents{},
		images: &fakeImages{outcomes: map[string]imagegen.Outcome{}},
		speech: &stubSpeech{failOn: map[string]bool{}},
	}
	f.runner = NewRunner(f.jobs, f.scenes, f.assets, f.tasks, f.events, f.images, f.speech, files, cfg, zerolog.New(io.Discard))
	return f
}

func sceneList(ids ...string) []domain.Scene {
	scenes := make([]domain.Scene, 0, len(ids))
	for i, id := range ids {
		scenes = append(scenes, domain.Scene{
			ID:        id,
			JobID:     "job-1",
			Index:     i + 1,
			Narration: "narration for " + id,
		})
	}
	return scenes
}

func TestRunImageRetryCountsOutcomes(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.scenes.scenes = sceneList("a", "b", "c", "d")
	f.images.outcomes = map[string]imagegen.Outcome{
		"a": imagegen.OutcomeSucceeded,
		"b": imagegen.OutcomeAlreadyExists,
		"c": imagegen.OutcomeFailed,
		"d": imagegen.OutcomeInProgress,
	}
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a", "b", "c", "d"},
		Force:    true,
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if task.Succeeded != 2 || task.Failed != 1 || task.Skipped != 1 {
		t.Fatalf("counters = %d/%d/%d, want 2/1/1", task.Succeeded, task.Failed, task.Skipped)
	}
	if task.Status != domain.TaskStatusDone {
		t.Fatalf("status = %q", task.Status)
	}
	if f.tasks.finishCalls != 1 || len(f.tasks.enqueued) != 0 {
		t.Fatalf("finish=%d enqueued=%d", f.tasks.finishCalls, len(f.tasks.enqueued))
	}
	for _, force := range f.images.forces {
		if !force {
			t.Fatalf("image retries should pass force through")
		}
	}
}

func TestRunBudgetExhaustionEnqueuesContinuation(t *testing.T) {
	f := newBatchFixture(t, Config{Budget: 50 * time.Second, ServiceToken: "secret"})
	f.runner.now = (&steppingClock{now: time.Unix(0, 0), step: 20 * time.Second}).Now
	f.scenes.scenes = sceneList("a", "b", "c", "d", "e")
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a", "b", "c", "d", "e"},
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.images.calls) != 2 {
		t.Fatalf("processed = %d, want 2 before the budget ran out", len(f.images.calls))
	}
	if len(f.tasks.enqueued) != 1 {
		t.Fatalf("continuations = %d, want 1", len(f.tasks.enqueued))
	}
	next := f.tasks.enqueued[0]
	if next.Depth != 1 {
		t.Fatalf("continuation depth = %d, want 1", next.Depth)
	}
	if len(next.SceneIDs) != 3 || next.SceneIDs[0] != "c" {
		t.Fatalf("continuation scenes = %v", next.SceneIDs)
	}
	if got := len(f.images.calls) + len(next.SceneIDs); got != 5 {
		t.Fatalf("conservation violated: processed+remaining = %d, want 5", got)
	}
	if f.tasks.finishCalls != 1 {
		t.Fatalf("exhausted task must still persist its counts")
	}
}

func TestRunDepthLimitStopsChain(t *testing.T) {
	f := newBatchFixture(t, Config{Budget: 50 * time.Second, MaxDepth: 10, ServiceToken: "secret"})
	f.runner.now = (&steppingClock{now: time.Unix(0, 0), step: 60 * time.Second}).Now
	f.scenes.scenes = sceneList("a", "b")
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a", "b"},
		Depth:    9,
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.tasks.enqueued) != 0 {
		t.Fatalf("no continuation may be enqueued at the depth limit")
	}
	if !f.events.contains("batch depth limit reached") {
		t.Fatalf("depth limit event missing: %v", f.events.messages)
	}
	if f.tasks.finishCalls != 1 {
		t.Fatalf("task counts must still be persisted")
	}
}

func TestRunWithoutServiceTokenStopsChain(t *testing.T) {
	f := newBatchFixture(t, Config{Budget: 50 * time.Second})
	f.runner.now = (&steppingClock{now: time.Unix(0, 0), step: 60 * time.Second}).Now
	f.scenes.scenes = sceneList("a", "b")
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a", "b"},
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.tasks.enqueued) != 0 {
		t.Fatalf("continuation requires the service credential")
	}
	if !f.events.contains("batch continuation not scheduled") {
		t.Fatalf("credential event missing: %v", f.events.messages)
	}
}

func TestRunAudioRetrySkipsScenesWithAudio(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.scenes.scenes = sceneList("a", "b")
	f.assets.listed = []domain.Asset{
		{JobID: "job-1", SceneID: "a", Kind: domain.AssetKindAudio},
	}
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindAudioRetry,
		SceneIDs: []string{"a", "b"},
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if task.Skipped != 1 || task.Succeeded != 1 {
		t.Fatalf("counters = skipped %d succeeded %d, want 1/1", task.Skipped, task.Succeeded)
	}
	if f.speech.calls != 1 {
		t.Fatalf("speech calls = %d, want 1", f.speech.calls)
	}
	if len(f.assets.inserted) != 1 || f.assets.inserted[0].SceneID != "b" {
		t.Fatalf("asset not recorded for retried scene: %#v", f.assets.inserted)
	}
	if f.jobs.speechDone != 1 {
		t.Fatalf("speech_done bumps = %d, want 1", f.jobs.speechDone)
	}
}

func TestRunAudioRetryForceRegeneratesAll(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.scenes.scenes = sceneList("a", "b")
	f.assets.listed = []domain.Asset{
		{JobID: "job-1", SceneID: "a", Kind: domain.AssetKindAudio},
		{JobID: "job-1", SceneID: "b", Kind: domain.AssetKindAudio},
	}
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindAudioRetry,
		SceneIDs: []string{"a", "b"},
		Force:    true,
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if task.Succeeded != 2 || task.Skipped != 0 {
		t.Fatalf("counters = succeeded %d skipped %d, want 2/0", task.Succeeded, task.Skipped)
	}
	if f.speech.calls != 2 {
		t.Fatalf("speech calls = %d, want 2", f.speech.calls)
	}
}

func TestRunAudioRetryCountsFailures(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.scenes.scenes = sceneList("a", "b")
	f.speech.failOn["narration for b"] = true
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindAudioRetry,
		SceneIDs: []string{"a", "b"},
		Force:    true,
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if task.Succeeded != 1 || task.Failed != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", task.Succeeded, task.Failed)
	}
	if f.jobs.speechFailed != 1 {
		t.Fatalf("speech_failed bumps = %d, want 1", f.jobs.speechFailed)
	}
	if !f.events.contains("scene narration retry failed") {
		t.Fatalf("failure event missing: %v", f.events.messages)
	}
}

func TestRunSkipsUnknownScenes(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.scenes.scenes = sceneList("a")
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a", "deleted-scene"},
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if task.Succeeded != 1 || task.Skipped != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", task.Succeeded, task.Skipped)
	}
}

func TestRunFailsTaskWhenJobGone(t *testing.T) {
	f := newBatchFixture(t, Config{ServiceToken: "secret"})
	f.jobs.err = domain.ErrNotFound
	task := &domain.BatchTask{
		ID:       "task-1",
		JobID:    "job-1",
		Kind:     domain.TaskKindImageRetry,
		SceneIDs: []string{"a"},
	}

	if err := f.runner.Run(context.Background(), task); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.tasks.failCalls != 1 || f.tasks.failCause != "job not found" {
		t.Fatalf("task not failed: calls=%d cause=%q", f.tasks.failCalls, f.tasks.failCause)
	}
	if len(f.images.calls) != 0 {
		t.Fatalf("no items may run for a missing job")
	}
}
