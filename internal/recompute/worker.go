// Package recompute runs the reclassification jobs queued when a zone
// configuration changes the zones of already classified activities.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paceload/internal/analysis"
	"paceload/internal/service"
	"paceload/internal/store"
)

// Reporter receives jobs that exhausted their attempts.
type Reporter interface {
	CaptureException(err error, tags map[string]string)
}

// Engine is the part of service.Engine a job drives.
type Engine interface {
	Classify(ctx context.Context, activityID int64) (*store.ActivityZoneTime, error)
	AggregateWeek(ctx context.Context, athleteID int64, weekStart time.Time) (*store.WeeklyZoneTime, error)
	ComputeWeek(ctx context.Context, athleteID int64, weekStart time.Time) (*store.WeeklyMonotonyStrain, error)
}

// Options configures a Worker. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
	Lease        time.Duration
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	PageSize     int
	Logger       *slog.Logger
	Reporter     Reporter
	Now          func() time.Time
}

// Defaults
const (
	DefaultPollInterval = 5 * time.Second
	DefaultLease        = 5 * time.Minute
	DefaultBaseDelay    = 30 * time.Second
	DefaultMaxDelay     = time.Hour
	DefaultMaxAttempts  = 5
)

// Worker claims recompute jobs and reclassifies the affected activities.
type Worker struct {
	db     *store.DB
	engine Engine
	opts   Options

	shutdownComplete chan struct{}
}

// NewWorker creates a worker.
func NewWorker(db *store.DB, engine Engine, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.PageSize <= 0 {
		opts.PageSize = service.RecomputePageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		db:               db,
		engine:           engine,
		opts:             opts,
		shutdownComplete: make(chan struct{}),
	}
}

// Run polls for jobs until ctx is done. It should be called in a goroutine.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer func() {
		ticker.Stop()
		close(w.shutdownComplete)
	}()

	for {
		if err := w.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.opts.Logger.Error("recompute worker error", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.shutdownComplete
}

// Drain runs jobs until none is ready.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		ran, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// RunOnce claims and runs at most one ready job. It reports whether a job was
// claimed. A failing job is rescheduled or quarantined and does not make
// RunOnce fail; the returned error is for the queue itself.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.db.ClaimRecomputeJob(ctx, w.opts.Now(), w.opts.Lease)
	if errors.Is(err, store.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logger := w.opts.Logger.With("job_id", job.ID, "athlete_id", job.AthleteID)
	logger.Info("recompute job claimed",
		"from_date", store.FormatDate(job.FromDate),
		"attempt", job.Attempts+1,
		"resumed", job.CursorActivityID != nil,
	)

	start := time.Now()
	err = w.safeProcess(ctx, job)
	jobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the lease expires and the job resumes from its cursor.
			return true, ctx.Err()
		}
		return true, w.fail(ctx, job, err, logger)
	}

	if err := w.db.CompleteRecomputeJob(ctx, job.ID); err != nil {
		return true, err
	}
	jobsCounter.WithLabelValues(store.JobDone).Inc()
	logger.Info("recompute job done", "duration", time.Since(start))
	return true, nil
}

func (w *Worker) safeProcess(ctx context.Context, job *store.RecomputeJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job *store.RecomputeJob) error {
	cursorDate, cursorID := job.CursorDate, job.CursorActivityID
	done := job.ActivitiesDone

	for {
		page, err := w.db.ListActivitiesSince(ctx, job.AthleteID, job.FromDate, cursorDate, cursorID, w.opts.PageSize)
		if err != nil {
			return fmt.Errorf("listing activities: %w", err)
		}

		for _, a := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := w.engine.Classify(ctx, a.ID); err != nil {
				return fmt.Errorf("classifying activity %d: %w", a.ID, err)
			}
			done++
			d, id := a.Date(), a.ID
			cursorDate, cursorID = &d, &id

			leaseUntil := w.opts.Now().Add(w.opts.Lease)
			if err := w.db.CheckpointRecomputeJob(ctx, job.ID, d, id, done, leaseUntil); err != nil {
				return err
			}
			activitiesCounter.Inc()
		}

		if len(page) < w.opts.PageSize {
			break
		}
	}

	end := job.FromDate
	latest, ok, err := w.db.LatestActivityDate(ctx, job.AthleteID)
	if err != nil {
		return fmt.Errorf("reading latest activity date: %w", err)
	}
	if ok && latest.After(end) {
		end = latest
	}

	for _, week := range analysis.WeeksBetween(job.FromDate, end) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.engine.AggregateWeek(ctx, job.AthleteID, week); err != nil {
			return fmt.Errorf("aggregating week %s: %w", store.FormatDate(week), err)
		}
		if _, err := w.engine.ComputeWeek(ctx, job.AthleteID, week); err != nil {
			return fmt.Errorf("computing week %s: %w", store.FormatDate(week), err)
		}
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job *store.RecomputeJob, cause error, logger *slog.Logger) error {
	attempts := job.Attempts + 1
	if attempts >= w.opts.MaxAttempts {
		logger.Error("recompute job quarantined", "attempts", attempts, "error", cause)
		jobsCounter.WithLabelValues(store.JobFailed).Inc()
		if w.opts.Reporter != nil {
			w.opts.Reporter.CaptureException(fmt.Errorf("recompute job %s: %w", job.ID, cause), map[string]string{
				"job_id":     job.ID,
				"athlete_id": fmt.Sprint(job.AthleteID),
			})
		}
		return w.db.QuarantineRecomputeJob(ctx, job.ID, attempts, cause.Error())
	}

	delay := BackoffDelay(w.opts.BaseDelay, w.opts.MaxDelay, attempts)
	logger.Warn("recompute job failed, retrying", "attempts", attempts, "retry_in", delay, "error", cause)
	jobsCounter.WithLabelValues("retried").Inc()
	return w.db.RetryRecomputeJob(ctx, job.ID, attempts, w.opts.Now().Add(delay), cause.Error())
}

// BackoffDelay returns base * 2^(attempt-1), capped at limit.
func BackoffDelay(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}
