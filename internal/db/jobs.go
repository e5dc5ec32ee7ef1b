package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/narrator/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

const renderJobColumns = `
	id, status, languages, input_dir, images_dir, output_dir, shorts_mode,
	wrap_intro_outro, secondary_language, options, attempts,
	started_at, finished_at, error_message, created_at`

func (db *DB) CreateRenderJob(ctx context.Context, job *models.RenderJob) error {
	query := `
		INSERT INTO render_jobs (
			id, status, languages, input_dir, images_dir, output_dir,
			shorts_mode, wrap_intro_outro, secondary_language, options, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, pq.Array(job.Languages), job.InputDir, job.ImagesDir,
		job.OutputDir, job.ShortsMode, job.WrapIntroOutro, job.SecondaryLanguage,
		job.Options, job.Attempts,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + ` FROM render_jobs WHERE id = $1`

	job, err := scanRenderJob(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("render job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}

	return job, nil
}

// ListRenderJobs returns jobs newest first, optionally filtered by status.
func (db *DB) ListRenderJobs(ctx context.Context, status string, limit, offset int) ([]models.RenderJob, error) {
	query := `SELECT ` + renderJobColumns + ` FROM render_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query render jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.RenderJob
	for rows.Next() {
		job, err := scanRenderJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRenderJob(row rowScanner) (*models.RenderJob, error) {
	job := &models.RenderJob{}
	err := row.Scan(
		&job.ID, &job.Status, pq.Array(&job.Languages), &job.InputDir, &job.ImagesDir,
		&job.OutputDir, &job.ShortsMode, &job.WrapIntroOutro, &job.SecondaryLanguage,
		&job.Options, &job.Attempts, &job.StartedAt, &job.FinishedAt,
		&job.ErrorMessage, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	now := time.Now()
	query := `UPDATE render_jobs SET status = $1, started_at = $2, attempts = attempts + 1 WHERE id = $3`

	if status == models.JobStatusSucceeded || status == models.JobStatusFailed {
		query = `UPDATE render_jobs SET status = $1, finished_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

func (db *DB) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}
