package service

import (
	"context"
	"fmt"
	"time"

	"paceload/internal/analysis"
	"paceload/internal/store"
)

// QueryService provides read-only access to the engine's output tables for
// dashboards and exports.
type QueryService struct {
	store    *store.DB
	resolver *Resolver
}

// NewQueryService creates a new query service
func NewQueryService(db *store.DB, resolver *Resolver) *QueryService {
	return &QueryService{store: db, resolver: resolver}
}

// ActivityZoneTimes returns per-activity zone minutes for activities dated
// within [from, to].
func (q *QueryService) ActivityZoneTimes(ctx context.Context, athleteID int64, from, to time.Time) ([]store.ActivityZoneTime, error) {
	rows, err := q.store.ListActivityZoneTimes(ctx, athleteID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing activity zone times: %w", err)
	}
	return rows, nil
}

// WeeklyZoneTimes returns weekly zone minutes for weeks overlapping [from, to].
func (q *QueryService) WeeklyZoneTimes(ctx context.Context, athleteID int64, from, to time.Time) ([]store.WeeklyZoneTime, error) {
	rows, err := q.store.ListWeeklyZoneTimes(ctx, athleteID, analysis.WeekStart(from), to)
	if err != nil {
		return nil, fmt.Errorf("listing weekly zone times: %w", err)
	}
	return rows, nil
}

// WeeklyMonotonyStrain returns monotony/strain rows for weeks overlapping [from, to].
func (q *QueryService) WeeklyMonotonyStrain(ctx context.Context, athleteID int64, from, to time.Time) ([]store.WeeklyMonotonyStrain, error) {
	rows, err := q.store.ListWeeklyMonotonyStrain(ctx, athleteID, analysis.WeekStart(from), to)
	if err != nil {
		return nil, fmt.Errorf("listing weekly monotony: %w", err)
	}
	return rows, nil
}

// ResolveVersion returns the configuration that was active on the date.
func (q *QueryService) ResolveVersion(ctx context.Context, athleteID int64, asOf time.Time) (*ResolvedZones, error) {
	return q.resolver.ResolveVersion(ctx, athleteID, asOf)
}

// HasZoneConfig reports whether the athlete has ever configured zones, which
// separates "no zones yet" from "zero minutes".
func (q *QueryService) HasZoneConfig(ctx context.Context, athleteID int64) (bool, error) {
	gen, err := q.store.ZoneGeneration(ctx, athleteID)
	if err != nil {
		return false, err
	}
	return gen > 0, nil
}

// ListJobs returns the athlete's most recent recompute jobs.
func (q *QueryService) ListJobs(ctx context.Context, athleteID int64) ([]store.RecomputeJob, error) {
	return q.store.ListRecomputeJobs(ctx, athleteID, RecomputeJobsLimit)
}

// StaleActivities lists classifications that predate a version covering their
// activity date. Such activities fall inside the range of the recompute job
// enqueued with that version and converge when it finishes.
func (q *QueryService) StaleActivities(ctx context.Context, athleteID int64) ([]store.ActivityZoneTime, error) {
	return q.store.ListStaleActivityZoneTimes(ctx, athleteID)
}
