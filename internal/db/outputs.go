package db

import (
	"context"
	"fmt"

	"github.com/bobarin/narrator/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateOutput(ctx context.Context, out *models.RenderOutput) error {
	query := `
		INSERT INTO render_outputs (
			id, job_id, language, kind, format, local_path, storage_path, byte_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		out.ID, out.JobID, out.Language, out.Kind, out.Format,
		out.LocalPath, out.StoragePath, out.ByteSize,
	).Scan(&out.CreatedAt)
}

func (db *DB) GetJobOutputs(ctx context.Context, jobID uuid.UUID) ([]models.RenderOutput, error) {
	query := `
		SELECT
			id, job_id, language, kind, format, local_path,
			storage_path, byte_size, created_at
		FROM render_outputs
		WHERE job_id = $1
		ORDER BY language, created_at
	`

	rows, err := db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.RenderOutput
	for rows.Next() {
		var out models.RenderOutput
		err := rows.Scan(
			&out.ID, &out.JobID, &out.Language, &out.Kind, &out.Format,
			&out.LocalPath, &out.StoragePath, &out.ByteSize, &out.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}
		outputs = append(outputs, out)
	}

	return outputs, rows.Err()
}

// SetOutputStorage records where an output was uploaded.
func (db *DB) SetOutputStorage(ctx context.Context, id uuid.UUID, storagePath string) error {
	_, err := db.ExecContext(ctx, `UPDATE render_outputs SET storage_path = $1 WHERE id = $2`, storagePath, id)
	return err
}
