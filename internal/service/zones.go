package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"paceload/internal/store"
)

// InsertResult describes an appended zone configuration.
type InsertResult struct {
	Generation int64  `json:"generation"`
	Backdated  bool   `json:"backdated"`
	JobID      string `json:"job_id,omitempty"` // empty when no recompute was needed
}

// ZoneService appends zone configurations to the athlete's ledger.
type ZoneService struct {
	store  *store.DB
	logger *slog.Logger

	locks sync.Map // athlete ID -> *sync.Mutex
}

// NewZoneService creates a zone service.
func NewZoneService(db *store.DB, logger *slog.Logger) *ZoneService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZoneService{store: db, logger: logger}
}

// InsertVersion validates and appends a zone configuration effective from the
// given date. Configurations are never updated in place; a change is a new
// version. When existing activities are affected, a recompute job is enqueued
// atomically with the insert and its ID returned.
func (s *ZoneService) InsertVersion(ctx context.Context, athleteID int64, effectiveFrom time.Time, zones []store.ZoneBracket) (*InsertResult, error) {
	if athleteID <= 0 {
		return nil, invalid("athlete_id", "must be positive")
	}
	if effectiveFrom.IsZero() {
		return nil, invalid("effective_from", "required")
	}
	sorted, err := ValidateZones(zones)
	if err != nil {
		return nil, err
	}

	mu := s.athleteLock(athleteID)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.store.InsertZoneVersion(ctx, athleteID, store.Day(effectiveFrom), sorted)
	if errors.Is(err, store.ErrDuplicateVersion) {
		return nil, invalid("effective_from", "a configuration already exists for %s", store.FormatDate(effectiveFrom))
	}
	if err != nil {
		return nil, fmt.Errorf("inserting zone version: %w", err)
	}

	zoneVersionsCounter.WithLabelValues(strconv.FormatBool(res.Backdated)).Inc()

	out := &InsertResult{Generation: res.Generation, Backdated: res.Backdated}
	if res.Job != nil {
		out.JobID = res.Job.ID
	}
	s.logger.Info("zone configuration inserted",
		"athlete_id", athleteID,
		"effective_from", store.FormatDate(effectiveFrom),
		"num_zones", len(sorted),
		"generation", res.Generation,
		"backdated", res.Backdated,
		"job_id", out.JobID,
	)
	return out, nil
}

// Versions lists every configuration of the athlete, oldest first.
func (s *ZoneService) Versions(ctx context.Context, athleteID int64) ([]store.ZoneVersion, error) {
	return s.store.ListZoneVersions(ctx, athleteID)
}

func (s *ZoneService) athleteLock(athleteID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(athleteID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ValidateZones checks a zone set and returns a copy ordered by zone number.
// Zones must be numbered exactly 1..N with N between 1 and store.MaxZones,
// bounds must be positive, and a closed bracket must have min <= max.
func ValidateZones(zones []store.ZoneBracket) ([]store.ZoneBracket, error) {
	if len(zones) == 0 {
		return nil, invalid("zones", "at least one zone is required")
	}
	if len(zones) > store.MaxZones {
		return nil, invalid("zones", "at most %d zones are allowed, got %d", store.MaxZones, len(zones))
	}

	sorted := make([]store.ZoneBracket, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ZoneNumber < sorted[j].ZoneNumber })

	for i, z := range sorted {
		if z.ZoneNumber != i+1 {
			return nil, invalid("zone_number", "zones must be numbered 1..%d without gaps or duplicates", len(sorted))
		}
		for _, b := range []*float64{z.PaceMin, z.PaceMax} {
			if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0) || *b <= 0) {
				return nil, invalid("zones", "zone %d has a non-positive or non-finite pace bound", z.ZoneNumber)
			}
		}
		if z.PaceMin != nil && z.PaceMax != nil && *z.PaceMin > *z.PaceMax {
			return nil, invalid("zones", "zone %d has pace_min_sec_per_km greater than pace_max_sec_per_km", z.ZoneNumber)
		}
	}
	return sorted, nil
}
