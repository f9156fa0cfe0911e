package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var azColumns = `activity_id, athlete_id, activity_date, num_zones, ` + zoneColumns("%s") + `,
	total_minutes, status, config_effective_from, config_generation, computed_at`

// UpsertActivityZoneTime stores the zone breakdown of an activity, replacing
// any previous classification. A classification made against an older
// configuration generation than the stored one is dropped, so a slow writer
// cannot undo a finished recompute.
func (db *DB) UpsertActivityZoneTime(ctx context.Context, z *ActivityZoneTime) error {
	var effective *string
	if z.ConfigEffectiveFrom != nil {
		s := FormatDate(*z.ConfigEffectiveFrom)
		effective = &s
	}

	args := []any{z.ActivityID, z.AthleteID, FormatDate(z.ActivityDate), z.NumZones}
	for _, m := range z.ZoneMinutes {
		args = append(args, m)
	}
	args = append(args, z.TotalMinutes, z.Status, effective, z.ConfigGeneration, formatTimestamp(z.ComputedAt))

	updates := make([]string, MaxZones)
	for i := range updates {
		updates[i] = fmt.Sprintf("zone_%d_minutes = excluded.zone_%d_minutes", i+1, i+1)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO activity_zone_times (`+azColumns+`)
		VALUES (`+placeholders(len(args))+`)
		ON CONFLICT(activity_id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			activity_date = excluded.activity_date,
			num_zones = excluded.num_zones,
			`+strings.Join(updates, ",\n\t\t\t")+`,
			total_minutes = excluded.total_minutes,
			status = excluded.status,
			config_effective_from = excluded.config_effective_from,
			config_generation = excluded.config_generation,
			computed_at = excluded.computed_at
		WHERE excluded.config_generation >= activity_zone_times.config_generation
	`, args...)
	if err != nil {
		return fmt.Errorf("upserting zone time for activity %d: %w", z.ActivityID, err)
	}
	return nil
}

// GetActivityZoneTime returns the stored classification of an activity.
func (db *DB) GetActivityZoneTime(ctx context.Context, activityID int64) (*ActivityZoneTime, error) {
	row := db.QueryRowContext(ctx, `SELECT `+azColumns+` FROM activity_zone_times WHERE activity_id = ?`, activityID)
	z, err := scanActivityZoneTime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return z, err
}

// ListActivityZoneTimes returns the athlete's classifications for activities
// dated within [from, to], ordered by date.
func (db *DB) ListActivityZoneTimes(ctx context.Context, athleteID int64, from, to time.Time) ([]ActivityZoneTime, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+azColumns+`
		FROM activity_zone_times
		WHERE athlete_id = ? AND activity_date BETWEEN ? AND ?
		ORDER BY activity_date, activity_id
	`, athleteID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivityZoneTimes(rows)
}

// ListStaleActivityZoneTimes returns classifications computed before a version
// dated on or before their activity was inserted. Versions dated after an
// activity never apply to it and do not make it stale.
func (db *DB) ListStaleActivityZoneTimes(ctx context.Context, athleteID int64) ([]ActivityZoneTime, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+azColumns+`
		FROM activity_zone_times
		WHERE athlete_id = ? AND config_generation < (
			SELECT MAX(v.generation) FROM zone_config_versions v
			WHERE v.athlete_id = activity_zone_times.athlete_id
				AND v.effective_from <= activity_zone_times.activity_date
		)
		ORDER BY activity_date, activity_id
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivityZoneTimes(rows)
}

// ListZoneTimeDates returns the distinct activity dates with a classification.
func (db *DB) ListZoneTimeDates(ctx context.Context, athleteID int64) ([]time.Time, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT activity_date FROM activity_zone_times
		WHERE athlete_id = ?
		ORDER BY activity_date
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func scanActivityZoneTime(row scanner) (*ActivityZoneTime, error) {
	var z ActivityZoneTime
	var date, computedAt string
	var effective sql.NullString

	dest := []any{&z.ActivityID, &z.AthleteID, &date, &z.NumZones}
	for i := range z.ZoneMinutes {
		dest = append(dest, &z.ZoneMinutes[i])
	}
	dest = append(dest, &z.TotalMinutes, &z.Status, &effective, &z.ConfigGeneration, &computedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if z.ActivityDate, err = ParseDate(date); err != nil {
		return nil, err
	}
	if effective.Valid {
		d, err := ParseDate(effective.String)
		if err != nil {
			return nil, err
		}
		z.ConfigEffectiveFrom = &d
	}
	if z.ComputedAt, err = parseTimestamp(computedAt); err != nil {
		return nil, err
	}
	return &z, nil
}

func scanActivityZoneTimes(rows *sql.Rows) ([]ActivityZoneTime, error) {
	var out []ActivityZoneTime
	for rows.Next() {
		z, err := scanActivityZoneTime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
