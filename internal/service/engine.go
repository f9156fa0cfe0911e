package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paceload/internal/analysis"
	"paceload/internal/store"
)

// WeekPublisher is notified after a week's monotony/strain has been stored.
type WeekPublisher interface {
	PublishWeekUpdated(ctx context.Context, week *store.WeeklyMonotonyStrain) error
}

// EngineOptions configures an Engine. Zero values select defaults.
type EngineOptions struct {
	RunTypes  []string
	MinSpeed  float64 // m/s
	Publisher WeekPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine classifies activities into pace zones and maintains the weekly
// zone time and monotony/strain tables derived from them.
type Engine struct {
	store     *store.DB
	resolver  *Resolver
	runTypes  map[string]bool
	minSpeed  float64
	publisher WeekPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine creates an engine.
func NewEngine(db *store.DB, resolver *Resolver, opts EngineOptions) *Engine {
	e := &Engine{
		store:     db,
		resolver:  resolver,
		runTypes:  make(map[string]bool),
		minSpeed:  opts.MinSpeed,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	runTypes := opts.RunTypes
	if len(runTypes) == 0 {
		runTypes = DefaultRunTypes
	}
	for _, t := range runTypes {
		e.runTypes[t] = true
	}
	if e.minSpeed <= 0 {
		e.minSpeed = analysis.DefaultMinSpeed
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Classify computes and stores the per-zone minutes of an activity against
// the zone configuration in force on the activity's local date. Activities
// that cannot be classified still get an all-zero row whose status says why.
func (e *Engine) Classify(ctx context.Context, activityID int64) (*store.ActivityZoneTime, error) {
	a, err := e.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", activityID, err)
	}

	row := &store.ActivityZoneTime{
		ActivityID:   a.ID,
		AthleteID:    a.AthleteID,
		ActivityDate: a.Date(),
		ComputedAt:   e.now(),
	}

	resolved, err := e.resolver.ResolveVersion(ctx, a.AthleteID, row.ActivityDate)
	if err != nil {
		return nil, fmt.Errorf("resolving zones for activity %d: %w", activityID, err)
	}
	row.ConfigGeneration = resolved.Generation

	switch {
	case !e.runTypes[a.Type]:
		row.Status = store.StatusNonRun
	case len(resolved.Zones) == 0:
		row.Status = store.StatusNoZones
	default:
		row.NumZones = len(resolved.Zones)
		row.ConfigEffectiveFrom = resolved.EffectiveFrom

		speeds, err := e.store.GetSpeeds(ctx, activityID)
		if err != nil {
			return nil, fmt.Errorf("loading speeds for activity %d: %w", activityID, err)
		}
		c := analysis.ClassifySamples(speeds, resolved.Zones, e.minSpeed)
		if c.Moving == 0 {
			row.Status = store.StatusNoSamples
			break
		}
		row.Status = store.StatusClassified
		row.ZoneMinutes = c.ZoneMinutes
		row.TotalMinutes = c.Total
		if c.Unmatched > 0 {
			e.logger.Debug("samples outside all zones",
				"activity_id", activityID, "unmatched_seconds", c.Unmatched)
		}
	}

	if err := e.store.UpsertActivityZoneTime(ctx, row); err != nil {
		return nil, err
	}
	classificationsCounter.WithLabelValues(row.Status).Inc()
	return row, nil
}

// Process classifies an activity and refreshes the weekly tables of its week.
func (e *Engine) Process(ctx context.Context, activityID int64) (*store.ActivityZoneTime, error) {
	row, err := e.Classify(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if err := e.refreshWeek(ctx, row.AthleteID, row.ActivityDate); err != nil {
		return nil, err
	}
	return row, nil
}

func (e *Engine) refreshWeek(ctx context.Context, athleteID int64, day time.Time) error {
	week := analysis.WeekStart(day)
	if _, err := e.AggregateWeek(ctx, athleteID, week); err != nil {
		return err
	}
	if _, err := e.ComputeWeek(ctx, athleteID, week); err != nil {
		return err
	}
	return nil
}

// AggregateWeek recomputes the weekly zone time row for the Monday-start week
// containing weekStart. A week without activity rows has no weekly row; any
// previous one is removed and nil is returned.
func (e *Engine) AggregateWeek(ctx context.Context, athleteID int64, weekStart time.Time) (*store.WeeklyZoneTime, error) {
	week := analysis.WeekStart(weekStart)
	w, rows, err := e.store.SumWeek(ctx, athleteID, week)
	if err != nil {
		return nil, err
	}
	weeksAggregatedCounter.Inc()

	if rows == 0 {
		if err := e.store.DeleteWeeklyZoneTime(ctx, athleteID, week); err != nil {
			return nil, fmt.Errorf("deleting empty week %s: %w", store.FormatDate(week), err)
		}
		return nil, nil
	}

	w.ComputedAt = e.now()
	if err := e.store.UpsertWeeklyZoneTime(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ComputeWeek recomputes Foster monotony and strain for the week, in total
// and per zone, from the daily minutes of the week's activity rows (days
// without activities count as zero). When the week has no rows the all-zero
// result is returned but nothing is stored.
func (e *Engine) ComputeWeek(ctx context.Context, athleteID int64, weekStart time.Time) (*store.WeeklyMonotonyStrain, error) {
	week := analysis.WeekStart(weekStart)
	rows, err := e.store.ListActivityZoneTimes(ctx, athleteID, week, week.AddDate(0, 0, 6))
	if err != nil {
		return nil, fmt.Errorf("loading zone times for week %s: %w", store.FormatDate(week), err)
	}

	result := &store.WeeklyMonotonyStrain{AthleteID: athleteID, WeekStart: week}
	if len(rows) == 0 {
		if err := e.store.DeleteWeeklyMonotonyStrain(ctx, athleteID, week); err != nil {
			return nil, err
		}
		return result, nil
	}

	var perZone [store.MaxZones][7]float64
	var total [7]float64
	for _, r := range rows {
		day := analysis.WeekDay(r.ActivityDate)
		for i, m := range r.ZoneMinutes {
			perZone[i][day] += m
		}
		total[day] += r.TotalMinutes
		if r.NumZones > result.NumZones {
			result.NumZones = r.NumZones
		}
	}

	for i := 0; i < result.NumZones; i++ {
		l := analysis.WeekLoad(perZone[i])
		result.Zones = append(result.Zones, store.ZoneLoad{
			ZoneNumber:  i + 1,
			LoadMinutes: l.Load,
			Monotony:    l.Monotony,
			Strain:      l.Strain,
		})
	}
	t := analysis.WeekLoad(total)
	result.TotalLoadMinutes = t.Load
	result.TotalMonotony = t.Monotony
	result.TotalStrain = t.Strain
	result.ComputedAt = e.now()

	if err := e.store.UpsertWeeklyMonotonyStrain(ctx, result); err != nil {
		return nil, err
	}
	weeksComputedCounter.Inc()

	if e.publisher != nil {
		if err := e.publisher.PublishWeekUpdated(ctx, result); err != nil {
			e.logger.Warn("publishing week update failed",
				"athlete_id", athleteID, "week_start", store.FormatDate(week), "error", err)
		}
	}
	return result, nil
}

// RecomputeAllWeeks discards and rebuilds every weekly zone time and
// monotony row of the athlete from the activity rows. It returns the number
// of weeks rebuilt.
func (e *Engine) RecomputeAllWeeks(ctx context.Context, athleteID int64) (int, error) {
	if err := e.store.DeleteAthleteWeeks(ctx, athleteID); err != nil {
		return 0, err
	}

	dates, err := e.store.ListZoneTimeDates(ctx, athleteID)
	if err != nil {
		return 0, fmt.Errorf("listing activity dates: %w", err)
	}

	seen := make(map[time.Time]bool)
	for _, d := range dates {
		week := analysis.WeekStart(d)
		if seen[week] {
			continue
		}
		seen[week] = true
		if err := e.refreshWeek(ctx, athleteID, week); err != nil {
			return len(seen) - 1, err
		}
	}

	e.logger.Info("weeks recomputed", "athlete_id", athleteID, "weeks", len(seen))
	return len(seen), nil
}

// Rebuild reclassifies every activity of the athlete and then rebuilds all
// weekly rows.
func (e *Engine) Rebuild(ctx context.Context, athleteID int64) (int, error) {
	ids, err := e.store.ListActivityIDs(ctx, athleteID)
	if err != nil {
		return 0, fmt.Errorf("listing activities: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := e.Classify(ctx, id); err != nil {
			return 0, err
		}
	}
	e.logger.Info("activities reclassified", "athlete_id", athleteID, "activities", len(ids))
	return e.RecomputeAllWeeks(ctx, athleteID)
}

// DeleteActivity removes an activity with its samples and zone time, then
// refreshes the weekly rows of its week.
func (e *Engine) DeleteActivity(ctx context.Context, activityID int64) error {
	a, err := e.store.GetActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("loading activity %d: %w", activityID, err)
	}
	if err := e.store.DeleteActivity(ctx, activityID); err != nil {
		return fmt.Errorf("deleting activity %d: %w", activityID, err)
	}
	return e.refreshWeek(ctx, a.AthleteID, a.Date())
}
