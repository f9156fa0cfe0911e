package store

import "time"

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Sample provenance values recorded per metric on an activity.
const (
	SourceFIT     = "fit"
	SourceStreams = "streams"
	SourceDerived = "derived"
	SourceNone    = "none"
)

// Activity represents a Strava activity summary
type Activity struct {
	ID               int64
	AthleteID        int64
	Name             string
	Type             string
	StartDate        time.Time
	StartDateLocal   time.Time // wall-clock time in the activity's zone
	Timezone         string
	Distance         float64  // meters
	MovingTime       int      // seconds
	ElapsedTime      int      // seconds
	AverageSpeed     float64  // m/s
	AverageHeartrate *float64 // nullable
	HasHeartrate     bool
	StreamsSynced    bool
	SpeedSource      string
	HeartrateSource  string
	PowerSource      string
	WeatherTempC     *float64
	WeatherCode      *int
}

// Date returns the local calendar date the activity belongs to.
func (a *Activity) Date() time.Time {
	return Day(a.StartDateLocal)
}

// SampleSources records which ingestion source supplied each metric.
type SampleSources struct {
	Speed     string
	Heartrate string
	Power     string
}

// StreamPoint represents a single data point from activity streams
type StreamPoint struct {
	ActivityID     int64
	TimeOffset     int // seconds
	Lat            *float64
	Lng            *float64
	Altitude       *float64 // meters
	VelocitySmooth *float64 // m/s
	Heartrate      *int     // bpm
	Cadence        *int     // spm
	Watts          *int
	Distance       *float64 // cumulative meters
}

// ZoneBracket is one pace zone. Paces are seconds per kilometre; a nil bound
// is open on that side.
type ZoneBracket struct {
	ZoneNumber int      `json:"zone_number"`
	PaceMin    *float64 `json:"pace_min_sec_per_km"`
	PaceMax    *float64 `json:"pace_max_sec_per_km"`
}

// ZoneVersion is the set of zones an athlete defined for one effective date.
type ZoneVersion struct {
	AthleteID     int64
	EffectiveFrom time.Time
	Generation    int64
	Zones         []ZoneBracket
}

// ZoneInsert is the outcome of appending a zone configuration.
type ZoneInsert struct {
	Generation int64
	Backdated  bool
	Job        *RecomputeJob // nil when no activity is affected
}

// Classification status of an activity zone time row.
const (
	StatusClassified = "classified"
	StatusNonRun     = "non_run"
	StatusNoZones    = "no_zones"
	StatusNoSamples  = "no_samples"
)

// ActivityZoneTime is the per-zone minute breakdown for a single activity.
type ActivityZoneTime struct {
	ActivityID          int64
	AthleteID           int64
	ActivityDate        time.Time
	NumZones            int
	ZoneMinutes         [MaxZones]float64
	TotalMinutes        float64
	Status              string
	ConfigEffectiveFrom *time.Time
	ConfigGeneration    int64
	ComputedAt          time.Time
}

// WeeklyZoneTime sums activity zone minutes over a Monday-Sunday week.
type WeeklyZoneTime struct {
	AthleteID     int64
	WeekStart     time.Time
	NumZones      int
	ZoneMinutes   [MaxZones]float64
	TotalMinutes  float64
	ActivityCount int
	ComputedAt    time.Time
}

// ZoneLoad is the weekly load, monotony and strain of one zone.
type ZoneLoad struct {
	ZoneNumber  int
	LoadMinutes float64
	Monotony    float64
	Strain      float64
}

// WeeklyMonotonyStrain holds Foster monotony and strain for a week, in total
// and per zone.
type WeeklyMonotonyStrain struct {
	AthleteID        int64
	WeekStart        time.Time
	NumZones         int
	TotalLoadMinutes float64
	TotalMonotony    float64
	TotalStrain      float64
	Zones            []ZoneLoad
	ComputedAt       time.Time
}

// Recompute job states.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// RecomputeJob reclassifies an athlete's activities from FromDate onward after
// a zone configuration change.
type RecomputeJob struct {
	ID               string
	AthleteID        int64
	FromDate         time.Time
	Generation       int64
	Status           string
	CursorDate       *time.Time
	CursorActivityID *int64
	ActivitiesDone   int
	Attempts         int
	NextAttemptAt    time.Time
	LeaseExpiresAt   *time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
