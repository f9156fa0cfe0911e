package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `id, athlete_id, from_date, generation, status, cursor_date, cursor_activity_id,
	activities_done, attempts, next_attempt_at, lease_expires_at, last_error, created_at, updated_at`

// EnqueueRecomputeJob queues a reclassification of the athlete's activities
// dated on or after from.
func (db *DB) EnqueueRecomputeJob(ctx context.Context, athleteID int64, from time.Time, generation int64) (*RecomputeJob, error) {
	return enqueueRecomputeJob(ctx, db, athleteID, Day(from), generation, time.Now())
}

func enqueueRecomputeJob(ctx context.Context, q querier, athleteID int64, from time.Time, generation int64, now time.Time) (*RecomputeJob, error) {
	job := &RecomputeJob{
		ID:            uuid.NewString(),
		AthleteID:     athleteID,
		FromDate:      from,
		Generation:    generation,
		Status:        JobPending,
		NextAttemptAt: now.UTC(),
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO recompute_jobs (
			id, athlete_id, from_date, generation, status, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, athleteID, FormatDate(from), generation, JobPending,
		formatTimestamp(now), formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return nil, fmt.Errorf("enqueueing recompute job: %w", err)
	}
	return job, nil
}

// ClaimRecomputeJob leases the oldest job that is ready to run: pending with
// next_attempt_at reached, or running with an expired lease. Returns ErrNoJob
// when nothing is ready.
func (db *DB) ClaimRecomputeJob(ctx context.Context, now time.Time, lease time.Duration) (*RecomputeJob, error) {
	ts := formatTimestamp(now)
	row := db.QueryRowContext(ctx, `
		UPDATE recompute_jobs
		SET status = ?, lease_expires_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM recompute_jobs
			WHERE (status = ? AND next_attempt_at <= ?)
				OR (status = ? AND lease_expires_at <= ?)
			ORDER BY created_at, id
			LIMIT 1
		)
		RETURNING `+jobColumns,
		JobRunning, formatTimestamp(now.Add(lease)), ts,
		JobPending, ts, JobRunning, ts,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("claiming recompute job: %w", err)
	}
	return job, nil
}

// CheckpointRecomputeJob records the last processed activity and extends the lease.
func (db *DB) CheckpointRecomputeJob(ctx context.Context, id string, cursorDate time.Time, cursorActivityID int64, done int, leaseUntil time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE recompute_jobs
		SET cursor_date = ?, cursor_activity_id = ?, activities_done = ?,
			lease_expires_at = ?, updated_at = ?
		WHERE id = ?
	`, FormatDate(cursorDate), cursorActivityID, done, formatTimestamp(leaseUntil), formatTimestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("checkpointing job %s: %w", id, err)
	}
	return expectRow(result, ErrNoJob)
}

// CompleteRecomputeJob marks a job done.
func (db *DB) CompleteRecomputeJob(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE recompute_jobs
		SET status = ?, lease_expires_at = NULL, last_error = NULL, updated_at = ?
		WHERE id = ?
	`, JobDone, formatTimestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	return expectRow(result, ErrNoJob)
}

// RetryRecomputeJob records a failed attempt and schedules the next one. The
// cursor is kept so the retry resumes where the attempt stopped.
func (db *DB) RetryRecomputeJob(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastErr string) error {
	return db.failJob(ctx, id, JobPending, attempts, nextAttempt, lastErr)
}

// QuarantineRecomputeJob marks a job failed after its final attempt.
func (db *DB) QuarantineRecomputeJob(ctx context.Context, id string, attempts int, lastErr string) error {
	return db.failJob(ctx, id, JobFailed, attempts, time.Now(), lastErr)
}

func (db *DB) failJob(ctx context.Context, id, status string, attempts int, nextAttempt time.Time, lastErr string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE recompute_jobs
		SET status = ?, attempts = ?, next_attempt_at = ?, last_error = ?,
			lease_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, status, attempts, formatTimestamp(nextAttempt), lastErr, formatTimestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	return expectRow(result, ErrNoJob)
}

// GetRecomputeJob returns a job by ID.
func (db *DB) GetRecomputeJob(ctx context.Context, id string) (*RecomputeJob, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM recompute_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJob
	}
	return job, err
}

// ListRecomputeJobs returns the athlete's jobs, newest first.
func (db *DB) ListRecomputeJobs(ctx context.Context, athleteID int64, limit int) ([]RecomputeJob, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM recompute_jobs
		WHERE athlete_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, athleteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []RecomputeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountRecomputeJobs returns the number of jobs per status.
func (db *DB) CountRecomputeJobs(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM recompute_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{JobPending: 0, JobRunning: 0, JobDone: 0, JobFailed: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanJob(row scanner) (*RecomputeJob, error) {
	var j RecomputeJob
	var from, nextAttempt, createdAt, updatedAt string
	var cursorDate, lease, lastErr sql.NullString
	var cursorID sql.NullInt64

	err := row.Scan(&j.ID, &j.AthleteID, &from, &j.Generation, &j.Status, &cursorDate, &cursorID,
		&j.ActivitiesDone, &j.Attempts, &nextAttempt, &lease, &lastErr, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if j.FromDate, err = ParseDate(from); err != nil {
		return nil, err
	}
	if cursorDate.Valid && cursorID.Valid {
		d, err := ParseDate(cursorDate.String)
		if err != nil {
			return nil, err
		}
		id := cursorID.Int64
		j.CursorDate = &d
		j.CursorActivityID = &id
	}
	if lease.Valid {
		t, err := parseTimestamp(lease.String)
		if err != nil {
			return nil, err
		}
		j.LeaseExpiresAt = &t
	}
	j.LastError = lastErr.String
	if j.NextAttemptAt, err = parseTimestamp(nextAttempt); err != nil {
		return nil, err
	}
	if j.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
