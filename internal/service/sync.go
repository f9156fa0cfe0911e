package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paceload/internal/ingest"
	"paceload/internal/store"
	"paceload/internal/strava"
)

// ActivitySource lists activity summaries.
type ActivitySource interface {
	GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.Activity, error)
}

// SampleFetcher produces the per-second samples of an activity.
type SampleFetcher interface {
	Fetch(ctx context.Context, activityID int64) (*ingest.Result, error)
}

// Enricher adds best-effort context to a stored activity.
type Enricher interface {
	Enrich(ctx context.Context, a *store.Activity, points []store.StreamPoint) error
}

// SyncOptions configures a SyncService.
type SyncOptions struct {
	Weather   Enricher // optional
	BatchSize int
	Logger    *slog.Logger
}

// SyncService orchestrates syncing data from Strava
type SyncService struct {
	client    ActivitySource
	fetcher   SampleFetcher
	store     *store.DB
	engine    *Engine
	weather   Enricher
	batchSize int
	logger    *slog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(client ActivitySource, fetcher SampleFetcher, db *store.DB, engine *Engine, opts SyncOptions) *SyncService {
	s := &SyncService{
		client:    client,
		fetcher:   fetcher,
		store:     db,
		engine:    engine,
		weather:   opts.Weather,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}
	if s.batchSize <= 0 {
		s.batchSize = SyncStreamsBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase           string // "activities", "samples", "classify"
	Total           int
	Completed       int
	CurrentActivity string
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	ActivitiesStored  int
	SamplesFetched    int
	Classified        int
	Errors            []error
}

// SyncAll performs a full sync: activities, then samples, then zone
// classification of everything that changed. Per-activity failures are
// collected in the result and never stop the sync.
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}
	touched := newTouchedSet()

	// Phase 1: Sync activity summaries
	if err := s.syncActivities(ctx, progress, result, touched); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}

	// Phase 2: Fetch samples for activities that need them
	if err := s.syncSamples(ctx, progress, result, touched); err != nil {
		return result, fmt.Errorf("syncing samples: %w", err)
	}

	// Phase 3: Classify and refresh the affected weeks
	if err := s.classify(ctx, progress, result, touched); err != nil {
		return result, fmt.Errorf("classifying activities: %w", err)
	}

	s.logger.Info("sync complete",
		"fetched", result.ActivitiesFetched,
		"stored", result.ActivitiesStored,
		"samples", result.SamplesFetched,
		"classified", result.Classified,
		"errors", len(result.Errors),
	)
	return result, nil
}

// touchedSet tracks activities needing classification and the weeks an
// activity moved out of.
type touchedSet struct {
	order    []int64
	ids      map[int64]bool
	oldWeeks map[int64]time.Time
}

func newTouchedSet() *touchedSet {
	return &touchedSet{ids: make(map[int64]bool), oldWeeks: make(map[int64]time.Time)}
}

func (t *touchedSet) add(id int64) {
	if !t.ids[id] {
		t.ids[id] = true
		t.order = append(t.order, id)
	}
}

// syncActivities fetches new activities from Strava and stores them
func (s *SyncService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult, touched *touchedSet) error {
	lastSyncStr, err := s.store.GetSyncState(ctx, SyncStateLastActivitySync)
	if err != nil {
		return fmt.Errorf("reading sync watermark: %w", err)
	}
	var after time.Time
	if lastSyncStr != "" {
		after, err = time.Parse(time.RFC3339, lastSyncStr)
		if err != nil {
			s.logger.Warn("ignoring malformed sync watermark", "value", lastSyncStr, "error", err)
			after = time.Time{}
		}
	}

	report(progress, SyncProgress{Phase: "activities"})

	watermark := after
	page := 1
	perPage := SyncActivitiesPerPage

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		activities, err := s.client.GetActivities(ctx, after, page, perPage)
		if err != nil {
			return fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(activities) == 0 {
			break
		}

		result.ActivitiesFetched += len(activities)

		for _, a := range activities {
			if err := s.storeActivity(ctx, a, touched); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
				continue
			}
			result.ActivitiesStored++
			if a.StartDate.After(watermark) {
				watermark = a.StartDate
			}
		}

		report(progress, SyncProgress{
			Phase:     "activities",
			Total:     result.ActivitiesFetched,
			Completed: result.ActivitiesStored,
		})

		if len(activities) < perPage {
			break // Last page
		}

		page++
	}

	syncActivitiesCounter.Add(float64(result.ActivitiesStored))

	if watermark.After(after) {
		if err := s.store.SetSyncState(ctx, SyncStateLastActivitySync, watermark.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("saving sync watermark: %w", err)
		}
	}
	return nil
}

// storeActivity upserts an activity. Manual activities have no samples to
// fetch; already synced activities keep their samples but are reclassified
// since their type or date may have changed.
func (s *SyncService) storeActivity(ctx context.Context, a strava.Activity, touched *touchedSet) error {
	existing, err := s.store.GetActivity(ctx, a.ID)
	if err != nil && !errors.Is(err, store.ErrActivityNotFound) {
		return err
	}

	activity := convertActivity(a)
	if existing != nil {
		activity.StreamsSynced = existing.StreamsSynced
		if !existing.Date().Equal(activity.Date()) {
			touched.oldWeeks[a.ID] = existing.Date()
		}
	}
	if err := s.store.UpsertActivity(ctx, activity); err != nil {
		return err
	}

	switch {
	case a.Manual && !activity.StreamsSynced:
		if err := s.store.MarkStreamsSynced(ctx, a.ID, store.SampleSources{
			Speed: store.SourceNone, Heartrate: store.SourceNone, Power: store.SourceNone,
		}); err != nil {
			return err
		}
		touched.add(a.ID)
	case activity.StreamsSynced:
		touched.add(a.ID)
	}
	return nil
}

// syncSamples runs the ingestion cascade for activities without samples
func (s *SyncService) syncSamples(ctx context.Context, progress chan<- SyncProgress, result *SyncResult, touched *touchedSet) error {
	// Limit to batch size to respect rate limits
	activities, err := s.store.GetActivitiesNeedingStreams(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("getting activities needing samples: %w", err)
	}

	if len(activities) == 0 {
		return nil
	}

	for i := range activities {
		activity := &activities[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		report(progress, SyncProgress{
			Phase:           "samples",
			Total:           len(activities),
			Completed:       i,
			CurrentActivity: activity.Name,
		})

		res, err := s.fetcher.Fetch(ctx, activity.ID)
		if err != nil {
			return err
		}

		if len(res.Points) > 0 {
			if err := s.store.SaveStreams(ctx, activity.ID, res.Points); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("saving samples for %d: %w", activity.ID, err))
				continue
			}
		}

		if err := s.store.MarkStreamsSynced(ctx, activity.ID, res.Sources); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("marking synced for %d: %w", activity.ID, err))
			continue
		}

		if s.weather != nil {
			if err := s.weather.Enrich(ctx, activity, res.Points); err != nil {
				return err
			}
		}

		touched.add(activity.ID)
		result.SamplesFetched++
	}

	report(progress, SyncProgress{
		Phase:     "samples",
		Total:     len(activities),
		Completed: len(activities),
	})

	return nil
}

// classify processes every activity touched by this sync
func (s *SyncService) classify(ctx context.Context, progress chan<- SyncProgress, result *SyncResult, touched *touchedSet) error {
	for i, id := range touched.order {
		if err := ctx.Err(); err != nil {
			return err
		}

		report(progress, SyncProgress{Phase: "classify", Total: len(touched.order), Completed: i})

		row, err := s.engine.Process(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("classifying activity %d: %w", id, err))
			continue
		}
		if old, moved := touched.oldWeeks[id]; moved {
			if err := s.engine.refreshWeek(ctx, row.AthleteID, old); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("refreshing previous week of %d: %w", id, err))
				continue
			}
		}
		result.Classified++
	}

	report(progress, SyncProgress{Phase: "classify", Total: len(touched.order), Completed: len(touched.order)})
	return nil
}

func report(progress chan<- SyncProgress, p SyncProgress) {
	if progress != nil {
		progress <- p
	}
}

// convertActivity converts a Strava API activity to a store activity
func convertActivity(a strava.Activity) *store.Activity {
	activity := &store.Activity{
		ID:             a.ID,
		AthleteID:      a.Athlete.ID,
		Name:           a.Name,
		Type:           a.Type,
		StartDate:      a.StartDate,
		StartDateLocal: a.StartDateLocal,
		Timezone:       a.Timezone,
		Distance:       a.Distance,
		MovingTime:     a.MovingTime,
		ElapsedTime:    a.ElapsedTime,
		AverageSpeed:   a.AverageSpeed,
		HasHeartrate:   a.HasHeartrate,
	}
	if a.SportType != "" {
		activity.Type = a.SportType
	}

	if a.AverageHeartrate > 0 {
		hr := a.AverageHeartrate
		activity.AverageHeartrate = &hr
	}

	return activity
}
