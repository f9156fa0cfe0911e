package api

import (
	"time"

	"paceload/internal/service"
	"paceload/internal/store"
)

// CreateZonesRequest is the payload for POST /v1/athletes/{athleteID}/zones.
type CreateZonesRequest struct {
	EffectiveFrom string              `json:"effective_from"`
	Zones         []store.ZoneBracket `json:"zones"`
}

// ZonesView is the configuration in force on a date.
type ZonesView struct {
	AthleteID     int64               `json:"athlete_id"`
	AsOf          string              `json:"as_of"`
	Configured    bool                `json:"configured"`
	EffectiveFrom *string             `json:"effective_from"`
	Generation    int64               `json:"generation"`
	Zones         []store.ZoneBracket `json:"zones"`
}

// ZoneVersionView is one entry of the athlete's configuration ledger.
type ZoneVersionView struct {
	EffectiveFrom string              `json:"effective_from"`
	Generation    int64               `json:"generation"`
	Zones         []store.ZoneBracket `json:"zones"`
}

// ActivityZoneTimeView is the zone breakdown of one activity.
type ActivityZoneTimeView struct {
	ActivityID          int64     `json:"activity_id"`
	ActivityDate        string    `json:"activity_date"`
	Status              string    `json:"status"`
	ZoneMinutes         []float64 `json:"zone_minutes"`
	TotalMinutes        float64   `json:"total_minutes"`
	ConfigEffectiveFrom *string   `json:"config_effective_from"`
	ConfigGeneration    int64     `json:"config_generation"`
	ComputedAt          time.Time `json:"computed_at"`
}

// WeeklyZoneTimeView is the zone breakdown of one week.
type WeeklyZoneTimeView struct {
	WeekStart     string    `json:"week_start"`
	ZoneMinutes   []float64 `json:"zone_minutes"`
	TotalMinutes  float64   `json:"total_minutes"`
	ActivityCount int       `json:"activity_count"`
	ComputedAt    time.Time `json:"computed_at"`
}

// ZoneLoadView carries one zone's weekly load figures.
type ZoneLoadView struct {
	ZoneNumber  int     `json:"zone_number"`
	LoadMinutes float64 `json:"load_minutes"`
	Monotony    float64 `json:"monotony"`
	Strain      float64 `json:"strain"`
}

// MonotonyStrainView is the Foster monotony and strain of one week.
type MonotonyStrainView struct {
	WeekStart        string         `json:"week_start"`
	TotalLoadMinutes float64        `json:"total_load_minutes"`
	TotalMonotony    float64        `json:"total_monotony"`
	TotalStrain      float64        `json:"total_strain"`
	Zones            []ZoneLoadView `json:"zones"`
	ComputedAt       time.Time      `json:"computed_at"`
}

// RecomputeJobView exposes a recompute job's progress.
type RecomputeJobView struct {
	JobID          string     `json:"job_id"`
	FromDate       string     `json:"from_date"`
	Generation     int64      `json:"generation"`
	Status         string     `json:"status"`
	ActivitiesDone int        `json:"activities_done"`
	Attempts       int        `json:"attempts"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	LastError      string     `json:"last_error,omitempty"`
	CursorDate     *string    `json:"cursor_date,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	AthleteID int64 `json:"athlete_id"`
	Items     []T   `json:"items"`
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := store.FormatDate(*t)
	return &s
}

func toZonesView(athleteID int64, asOf time.Time, v *service.ResolvedZones) ZonesView {
	zones := v.Zones
	if zones == nil {
		zones = []store.ZoneBracket{}
	}
	return ZonesView{
		AthleteID:     athleteID,
		AsOf:          store.FormatDate(asOf),
		Configured:    v.Generation > 0,
		EffectiveFrom: dateString(v.EffectiveFrom),
		Generation:    v.Generation,
		Zones:         zones,
	}
}

func toActivityZoneTimeView(z store.ActivityZoneTime) ActivityZoneTimeView {
	return ActivityZoneTimeView{
		ActivityID:          z.ActivityID,
		ActivityDate:        store.FormatDate(z.ActivityDate),
		Status:              z.Status,
		ZoneMinutes:         append([]float64{}, z.ZoneMinutes[:z.NumZones]...),
		TotalMinutes:        z.TotalMinutes,
		ConfigEffectiveFrom: dateString(z.ConfigEffectiveFrom),
		ConfigGeneration:    z.ConfigGeneration,
		ComputedAt:          z.ComputedAt,
	}
}

func toWeeklyZoneTimeView(w store.WeeklyZoneTime) WeeklyZoneTimeView {
	return WeeklyZoneTimeView{
		WeekStart:     store.FormatDate(w.WeekStart),
		ZoneMinutes:   append([]float64{}, w.ZoneMinutes[:w.NumZones]...),
		TotalMinutes:  w.TotalMinutes,
		ActivityCount: w.ActivityCount,
		ComputedAt:    w.ComputedAt,
	}
}

func toMonotonyStrainView(m store.WeeklyMonotonyStrain) MonotonyStrainView {
	zones := make([]ZoneLoadView, 0, len(m.Zones))
	for _, z := range m.Zones {
		zones = append(zones, ZoneLoadView(z))
	}
	return MonotonyStrainView{
		WeekStart:        store.FormatDate(m.WeekStart),
		TotalLoadMinutes: m.TotalLoadMinutes,
		TotalMonotony:    m.TotalMonotony,
		TotalStrain:      m.TotalStrain,
		Zones:            zones,
		ComputedAt:       m.ComputedAt,
	}
}

func toRecomputeJobView(j store.RecomputeJob) RecomputeJobView {
	return RecomputeJobView{
		JobID:          j.ID,
		FromDate:       store.FormatDate(j.FromDate),
		Generation:     j.Generation,
		Status:         j.Status,
		ActivitiesDone: j.ActivitiesDone,
		Attempts:       j.Attempts,
		NextAttemptAt:  j.NextAttemptAt,
		LastError:      j.LastError,
		CursorDate:     dateString(j.CursorDate),
		LeaseExpiresAt: j.LeaseExpiresAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func mapSlice[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
