package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// MaxZones is the largest number of pace zones a configuration may define.
const MaxZones = 10

// zoneColumnDefs renders the zone_N_minutes column definitions shared by the
// per-activity and weekly tables.
func zoneColumnDefs() string {
	cols := make([]string, MaxZones)
	for i := range cols {
		cols[i] = fmt.Sprintf("zone_%d_minutes REAL NOT NULL DEFAULT 0", i+1)
	}
	return strings.Join(cols, ",\n\t\t\t")
}

// zoneColumns lists the zone_N_minutes columns in zone order, each rendered
// through format (e.g. "SUM(%s)").
func zoneColumns(format string) string {
	cols := make([]string, MaxZones)
	for i := range cols {
		cols[i] = fmt.Sprintf(format, fmt.Sprintf("zone_%d_minutes", i+1))
	}
	return strings.Join(cols, ", ")
}

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Authentication (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activities (summary data from /athlete/activities)
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			start_date TEXT NOT NULL,
			start_date_local TEXT NOT NULL,
			activity_date TEXT NOT NULL,
			timezone TEXT,
			distance REAL NOT NULL,
			moving_time INTEGER NOT NULL,
			elapsed_time INTEGER NOT NULL,
			average_speed REAL,
			average_heartrate REAL,
			has_heartrate INTEGER NOT NULL,
			streams_synced INTEGER DEFAULT 0,
			speed_source TEXT,
			heartrate_source TEXT,
			power_source TEXT,
			weather_temp_c REAL,
			weather_code INTEGER,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_athlete_date ON activities(athlete_id, activity_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(type)`,

		// Streams (second-by-second samples)
		`CREATE TABLE IF NOT EXISTS streams (
			activity_id INTEGER NOT NULL,
			time_offset INTEGER NOT NULL,
			latlng_lat REAL,
			latlng_lng REAL,
			altitude REAL,
			velocity_smooth REAL,
			heartrate INTEGER,
			cadence INTEGER,
			watts INTEGER,
			distance REAL,
			PRIMARY KEY (activity_id, time_offset),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Zone configuration ledger (append-only)
		`CREATE TABLE IF NOT EXISTS zone_config_versions (
			athlete_id INTEGER NOT NULL,
			effective_from TEXT NOT NULL,
			num_zones INTEGER NOT NULL CHECK (num_zones BETWEEN 1 AND 10),
			zone_number INTEGER NOT NULL CHECK (zone_number >= 1 AND zone_number <= num_zones),
			pace_min_sec_per_km REAL,
			pace_max_sec_per_km REAL,
			generation INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, effective_from, zone_number),
			CHECK (pace_min_sec_per_km IS NULL OR pace_max_sec_per_km IS NULL
				OR pace_min_sec_per_km <= pace_max_sec_per_km)
		)`,

		`CREATE TABLE IF NOT EXISTS zone_config_generations (
			athlete_id INTEGER PRIMARY KEY,
			generation INTEGER NOT NULL
		)`,

		// Per-activity zone minutes
		`CREATE TABLE IF NOT EXISTS activity_zone_times (
			activity_id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			activity_date TEXT NOT NULL,
			num_zones INTEGER NOT NULL DEFAULT 0,
			` + zoneColumnDefs() + `,
			total_minutes REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			config_effective_from TEXT,
			config_generation INTEGER NOT NULL DEFAULT 0,
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activity_zone_times_athlete_date ON activity_zone_times(athlete_id, activity_date)`,

		// Weekly zone minutes (materialized from activity_zone_times)
		`CREATE TABLE IF NOT EXISTS weekly_zone_times (
			athlete_id INTEGER NOT NULL,
			week_start TEXT NOT NULL,
			num_zones INTEGER NOT NULL DEFAULT 0,
			` + zoneColumnDefs() + `,
			total_minutes REAL NOT NULL DEFAULT 0,
			activity_count INTEGER NOT NULL DEFAULT 0,
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, week_start)
		)`,

		// Weekly monotony/strain (Foster), totals plus per-zone rows
		`CREATE TABLE IF NOT EXISTS weekly_monotony_strain (
			athlete_id INTEGER NOT NULL,
			week_start TEXT NOT NULL,
			num_zones INTEGER NOT NULL DEFAULT 0,
			total_load_minutes REAL NOT NULL,
			total_monotony REAL NOT NULL,
			total_strain REAL NOT NULL,
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, week_start)
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_monotony_strain_zones (
			athlete_id INTEGER NOT NULL,
			week_start TEXT NOT NULL,
			zone_number INTEGER NOT NULL,
			load_minutes REAL NOT NULL,
			monotony REAL NOT NULL,
			strain REAL NOT NULL,
			PRIMARY KEY (athlete_id, week_start, zone_number),
			FOREIGN KEY (athlete_id, week_start)
				REFERENCES weekly_monotony_strain(athlete_id, week_start) ON DELETE CASCADE
		)`,

		// Recompute cascade queue
		`CREATE TABLE IF NOT EXISTS recompute_jobs (
			id TEXT PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			from_date TEXT NOT NULL,
			generation INTEGER NOT NULL,
			status TEXT NOT NULL,
			cursor_date TEXT,
			cursor_activity_id INTEGER,
			activities_done INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at TEXT NOT NULL,
			lease_expires_at TEXT,
			last_error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recompute_jobs_status ON recompute_jobs(status, next_attempt_at)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
