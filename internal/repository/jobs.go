package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one unit of background work.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

// EnqueueJobParams describes a job to insert into the queue.
type EnqueueJobParams struct {
	ID          uuid.UUID
	JobType     string
	Payload     json.RawMessage
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job.
func (q *Queries) EnqueueJob(ctx context.Context, params EnqueueJobParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, job_type, payload, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		params.ID, params.JobType, []byte(params.Payload),
		params.Priority, params.MaxAttempts, params.ScheduledAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// DequeueJob claims the next due pending job. Rows are locked with
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same job.
// Returns sql.ErrNoRows when the queue is empty.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	var (
		j       Job
		payload []byte
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, job_type, payload, status, priority, attempts, max_attempts,
		       scheduled_at, started_at, completed_at, error_message, created_at
		FROM jobs
		WHERE status = $1 AND scheduled_at <= now()
		ORDER BY priority DESC, scheduled_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, JobStatusPending).Scan(
		&j.ID, &j.JobType, &payload, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.ScheduledAt, &j.StartedAt,
		&j.CompletedAt, &j.ErrorMessage, &j.CreatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	j.Payload = json.RawMessage(payload)
	return j, nil
}

// UpdateJobStarted marks a claimed job as running and counts the attempt.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, attempts = attempts + 1, started_at = now()
		WHERE id = $2`, JobStatusRunning, id)
	if err != nil {
		return fmt.Errorf("update job started: %w", err)
	}
	return nil
}

// UpdateJobCompleted marks a job as successfully completed.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = now(), error_message = NULL
		WHERE id = $2`, JobStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

// UpdateJobFailedParams records a job failure.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	// Permanent skips the retry schedule and fails the job outright.
	Permanent bool
}

// UpdateJobFailed handles a failed attempt. Jobs that still have attempts
// left are rescheduled with exponential backoff (1m, 4m, 9m, ...);
// permanent failures and exhausted jobs are marked failed.
func (q *Queries) UpdateJobFailed(ctx context.Context, params UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = CASE
		        WHEN $2 OR attempts >= max_attempts THEN 'failed'
		        ELSE 'pending'
		    END,
		    scheduled_at = CASE
		        WHEN $2 OR attempts >= max_attempts THEN scheduled_at
		        ELSE now() + (attempts * attempts) * interval '1 minute'
		    END,
		    error_message = $3,
		    started_at = NULL
		WHERE id = $1`,
		params.ID, params.Permanent, params.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	return nil
}

// RecoverStaleJobs resets jobs stuck in running longer than the threshold
// back to pending so they are retried after a worker crash.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, started_at = NULL
		WHERE status = $2
		  AND started_at < now() - ($3 * interval '1 second')`,
		JobStatusPending, JobStatusRunning, thresholdSeconds)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return count, nil
}
