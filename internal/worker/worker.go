package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/pipeline"
	"github.com/bobarin/narrator/internal/queue"
	"github.com/bobarin/narrator/internal/storage"
)

const dequeueTimeout = 5 * time.Second

// Store is the job persistence the worker needs.
type Store interface {
	GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
	CreateOutput(ctx context.Context, out *models.RenderOutput) error
	SetOutputStorage(ctx context.Context, id uuid.UUID, storagePath string) error
}

type Dequeuer interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
}

// Uploader publishes outputs to object storage. It may be disabled.
type Uploader interface {
	Enabled() bool
	UploadFile(ctx context.Context, storagePath, localPath, contentType string) error
	GenerateStoragePath(jobID uuid.UUID, language, localPath string) string
}

// Renderer runs one render job.
type Renderer interface {
	Run(ctx context.Context, job pipeline.Job) pipeline.Result
}

type Worker struct {
	store      Store
	queue      Dequeuer
	uploader   Uploader
	renderer   Renderer
	maxUploads int
	logger     *slog.Logger
}

func New(store Store, q Dequeuer, uploader Uploader, renderer Renderer, maxUploads int, logger *slog.Logger) *Worker {
	if maxUploads <= 0 {
		maxUploads = 3
	}
	return &Worker{
		store:      store,
		queue:      q,
		uploader:   uploader,
		renderer:   renderer,
		maxUploads: maxUploads,
		logger:     logger,
	}
}

// Start consumes the render queue with the given number of goroutines until
// ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	w.logger.Info("worker started", "concurrency", concurrency)

	done := make(chan struct{}, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			w.processQueue(ctx, queue.QueueRender)
			done <- struct{}{}
		}()
	}
	for i := 0; i < concurrency; i++ {
		<-done
	}
	w.logger.Info("worker stopped")
}

func (w *Worker) processQueue(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, queueName, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", "queue", queueName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.Process(ctx, job.ID)
	}
}

// Process runs one job end to end and records its final status.
func (w *Worker) Process(ctx context.Context, jobID uuid.UUID) {
	logger := w.logger.With("job_id", jobID)
	logger.Info("processing render job")

	if err := w.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning); err != nil {
		logger.Warn("failed to mark job running", "error", err)
	}

	if err := w.handleRender(ctx, logger, jobID); err != nil {
		logger.Error("render job failed", "error", err)
		if err := w.store.UpdateJobError(context.WithoutCancel(ctx), jobID, err.Error()); err != nil {
			logger.Error("failed to record job error", "error", err)
		}
		return
	}

	logger.Info("render job succeeded")
	if err := w.store.UpdateJobStatus(ctx, jobID, models.JobStatusSucceeded); err != nil {
		logger.Error("failed to mark job succeeded", "error", err)
	}
}

func (w *Worker) handleRender(ctx context.Context, logger *slog.Logger, jobID uuid.UUID) error {
	record, err := w.store.GetRenderJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	start := time.Now()
	result := w.renderer.Run(ctx, pipeline.JobFromModel(record))
	logger.Info("render finished", "languages", len(result.Languages), "outputs", len(result.Outputs()),
		"elapsed", time.Since(start).Round(time.Second))

	records := make([]*models.RenderOutput, 0, len(result.Outputs()))
	for _, out := range result.Outputs() {
		rec := &models.RenderOutput{
			ID:        uuid.New(),
			JobID:     jobID,
			Language:  out.Language,
			Kind:      out.Kind,
			Format:    out.Format,
			LocalPath: out.Path,
		}
		if info, err := os.Stat(out.Path); err == nil {
			size := info.Size()
			rec.ByteSize = &size
		}
		if err := w.store.CreateOutput(ctx, rec); err != nil {
			return fmt.Errorf("failed to save output record: %w", err)
		}
		records = append(records, rec)
	}

	uploadErr := w.uploadOutputs(ctx, logger, records)

	return errors.Join(result.Err(), uploadErr)
}

// uploadOutputs pushes every output to storage, at most maxUploads at a time.
func (w *Worker) uploadOutputs(ctx context.Context, logger *slog.Logger, records []*models.RenderOutput) error {
	if w.uploader == nil || !w.uploader.Enabled() || len(records) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxUploads)

	for _, rec := range records {
		g.Go(func() error {
			storagePath := w.uploader.GenerateStoragePath(rec.JobID, rec.Language, rec.LocalPath)
			logger.Info("uploading output", "language", rec.Language, "kind", rec.Kind, "path", storagePath)

			if err := w.uploader.UploadFile(gctx, storagePath, rec.LocalPath, storage.ContentType(rec.LocalPath)); err != nil {
				return fmt.Errorf("failed to upload %s: %w", rec.LocalPath, err)
			}
			if err := w.store.SetOutputStorage(gctx, rec.ID, storagePath); err != nil {
				return fmt.Errorf("failed to record upload of %s: %w", rec.LocalPath, err)
			}
			rec.StoragePath = &storagePath
			return nil
		})
	}

	return g.Wait()
}
