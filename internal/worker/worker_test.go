package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/pipeline"
	"github.com/bobarin/narrator/internal/queue"
)

type fakeStore struct {
	mu       sync.Mutex
	job      *models.RenderJob
	statuses []models.JobStatus
	errMsg   string
	outputs  []*models.RenderOutput
	stored   map[uuid.UUID]string
}

func (s *fakeStore) GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	if s.job == nil || s.job.ID != id {
		return nil, errors.New("not found")
	}
	return s.job, nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) UpdateJobError(ctx context.Context, id uuid.UUID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, models.JobStatusFailed)
	s.errMsg = msg
	return nil
}

func (s *fakeStore) CreateOutput(ctx context.Context, out *models.RenderOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, out)
	return nil
}

func (s *fakeStore) SetOutputStorage(ctx context.Context, id uuid.UUID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = map[uuid.UUID]string{}
	}
	s.stored[id] = path
	return nil
}

func (s *fakeStore) last() models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fakeRenderer struct {
	result pipeline.Result
	got    pipeline.Job
}

func (r *fakeRenderer) Run(ctx context.Context, job pipeline.Job) pipeline.Result {
	r.got = job
	return r.result
}

type fakeUploader struct {
	mu      sync.Mutex
	enabled bool
	fail    string
	paths   []string
}

func (u *fakeUploader) Enabled() bool { return u.enabled }

func (u *fakeUploader) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	if u.fail != "" && strings.Contains(localPath, u.fail) {
		return errors.New("bucket full")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, storagePath)
	return nil
}

func (u *fakeUploader) GenerateStoragePath(jobID uuid.UUID, language, localPath string) string {
	return jobID.String() + "/" + language + "/" + filepath.Base(localPath)
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newJob() *models.RenderJob {
	return &models.RenderJob{
		ID:         uuid.New(),
		Status:     models.JobStatusQueued,
		Languages:  []string{"en", "ko"},
		InputDir:   "/in",
		OutputDir:  "/out",
		ShortsMode: models.ShortsModeReflow,
	}
}

func TestProcessRecordsAndUploadsOutputs(t *testing.T) {
	dir := t.TempDir()
	job := newJob()
	store := &fakeStore{job: job}
	renderer := &fakeRenderer{result: pipeline.Result{Languages: []pipeline.LanguageResult{
		{Language: "en", Outputs: []pipeline.Output{
			{Language: "en", Kind: pipeline.KindVideo, Format: models.FormatStandard, Path: touch(t, dir, "video_en.mp4")},
			{Language: "en", Kind: pipeline.KindShorts, Format: models.FormatShorts, Path: touch(t, dir, "shorts_en.mp4")},
		}},
		{Language: "ko", Outputs: []pipeline.Output{
			{Language: "ko", Kind: pipeline.KindVideo, Format: models.FormatStandard, Path: touch(t, dir, "video_ko.mp4")},
		}},
	}}}
	uploader := &fakeUploader{enabled: true}

	w := New(store, nil, uploader, renderer, 2, logging.Discard())
	w.Process(context.Background(), job.ID)

	if store.last() != models.JobStatusSucceeded {
		t.Fatalf("final status = %s (%s)", store.last(), store.errMsg)
	}
	if store.statuses[0] != models.JobStatusRunning {
		t.Errorf("first status = %s", store.statuses[0])
	}
	if len(store.outputs) != 3 || len(uploader.paths) != 3 || len(store.stored) != 3 {
		t.Fatalf("outputs=%d uploads=%d stored=%d", len(store.outputs), len(uploader.paths), len(store.stored))
	}
	for _, out := range store.outputs {
		if out.ByteSize == nil || *out.ByteSize != 4 {
			t.Errorf("output %s byte size = %v", out.LocalPath, out.ByteSize)
		}
		if out.JobID != job.ID {
			t.Errorf("output job id = %s", out.JobID)
		}
	}
	if renderer.got.ShortsMode != models.ShortsModeReflow || len(renderer.got.Languages) != 2 {
		t.Errorf("pipeline job = %+v", renderer.got)
	}
}

func TestProcessFailsOnLanguageError(t *testing.T) {
	dir := t.TempDir()
	job := newJob()
	store := &fakeStore{job: job}
	renderer := &fakeRenderer{result: pipeline.Result{Languages: []pipeline.LanguageResult{
		{Language: "en", Outputs: []pipeline.Output{{Language: "en", Kind: pipeline.KindVideo, Path: touch(t, dir, "video_en.mp4")}}},
		{Language: "ko", Err: &models.MissingInputError{Kind: "audio", Path: "/in/speech_ko.mp3"}},
	}}}

	w := New(store, nil, &fakeUploader{}, renderer, 1, logging.Discard())
	w.Process(context.Background(), job.ID)

	if store.last() != models.JobStatusFailed {
		t.Fatalf("final status = %s", store.last())
	}
	if !strings.Contains(store.errMsg, "ko") {
		t.Errorf("error message %q does not name the language", store.errMsg)
	}
	if len(store.outputs) != 1 {
		t.Errorf("successful language outputs not recorded: %d", len(store.outputs))
	}
}

func TestProcessFailsOnUploadError(t *testing.T) {
	dir := t.TempDir()
	job := newJob()
	store := &fakeStore{job: job}
	renderer := &fakeRenderer{result: pipeline.Result{Languages: []pipeline.LanguageResult{
		{Language: "en", Outputs: []pipeline.Output{{Language: "en", Kind: pipeline.KindVideo, Path: touch(t, dir, "video_en.mp4")}}},
	}}}

	w := New(store, nil, &fakeUploader{enabled: true, fail: "video_en"}, renderer, 1, logging.Discard())
	w.Process(context.Background(), job.ID)

	if store.last() != models.JobStatusFailed || !strings.Contains(store.errMsg, "bucket full") {
		t.Fatalf("status=%s msg=%q", store.last(), store.errMsg)
	}
}

func TestProcessUnknownJob(t *testing.T) {
	store := &fakeStore{}
	w := New(store, nil, nil, &fakeRenderer{}, 1, logging.Discard())
	w.Process(context.Background(), uuid.New())

	if store.last() != models.JobStatusFailed {
		t.Fatalf("final status = %s", store.last())
	}
}

type chanQueue struct {
	jobs chan *queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context, name string, timeout time.Duration) (*queue.Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func TestStartConsumesQueue(t *testing.T) {
	job := newJob()
	store := &fakeStore{job: job}
	q := &chanQueue{jobs: make(chan *queue.Job, 1)}
	q.jobs <- &queue.Job{ID: job.ID}

	w := New(store, q, nil, &fakeRenderer{}, 1, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx, 2)
		close(stopped)
	}()

	deadline := time.After(2 * time.Second)
	for store.last() != models.JobStatusSucceeded {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("job not processed, status %q", store.last())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
