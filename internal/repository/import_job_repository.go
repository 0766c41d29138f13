package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

const importJobColumns = `id, year, month, day, fast, status, days_fetched, created, skipped, failed, error, requested_by, enqueued_at, finished_at`

// ImportJobRepository persists importer runs.
type ImportJobRepository struct {
	db *sqlx.DB
}

// NewImportJobRepository creates a new ImportJobRepository.
func NewImportJobRepository(db *sqlx.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ImportStatusQueued
	}
	const query = `INSERT INTO import_jobs (id, year, month, day, fast, status, requested_by, enqueued_at) VALUES (:id, :year, :month, :day, :fast, :status, :requested_by, :enqueued_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// FindByID loads one job.
func (r *ImportJobRepository) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, "SELECT "+importJobColumns+" FROM import_jobs WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find import job: %w", err)
	}
	return &job, nil
}

// MarkRunning flags a job as picked up by a worker.
func (r *ImportJobRepository) MarkRunning(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE import_jobs SET status = $2 WHERE id = $1`, id, models.ImportStatusRunning); err != nil {
		return fmt.Errorf("mark import job running: %w", err)
	}
	return nil
}

// Finish stores the final status, counters and error message.
func (r *ImportJobRepository) Finish(ctx context.Context, id string, status models.ImportStatus, result models.ImportResult, message *string) error {
	const query = `UPDATE import_jobs SET status = $2, days_fetched = $3, created = $4, skipped = $5, failed = $6, error = $7, finished_at = $8 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, result.DaysFetched, result.Created, result.Skipped, result.Failed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	return nil
}
