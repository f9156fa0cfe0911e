package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, athlete_id, name, type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, average_speed, average_heartrate,
	has_heartrate, streams_synced, speed_source, heartrate_source, power_source,
	weather_temp_c, weather_code`

// UpsertActivity inserts or updates an activity
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (
			id, athlete_id, name, type, start_date, start_date_local, activity_date, timezone,
			distance, moving_time, elapsed_time, average_speed, average_heartrate,
			has_heartrate, streams_synced, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			activity_date = excluded.activity_date,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			average_speed = excluded.average_speed,
			average_heartrate = excluded.average_heartrate,
			has_heartrate = excluded.has_heartrate,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type,
		a.StartDate.Format(time.RFC3339), a.StartDateLocal.Format(time.RFC3339),
		FormatDate(a.StartDateLocal), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.AverageSpeed, a.AverageHeartrate,
		boolToInt(a.HasHeartrate), boolToInt(a.StreamsSynced),
	)
	if err != nil {
		return fmt.Errorf("upserting activity %d: %w", a.ID, err)
	}
	return nil
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	row := db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListActivities returns an athlete's activities ordered by start date descending
func (db *DB) ListActivities(ctx context.Context, athleteID int64, limit, offset int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE athlete_id = ?
		ORDER BY start_date DESC
		LIMIT ? OFFSET ?
	`, athleteID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListActivitiesSince returns up to limit activities of the athlete dated on or
// after from, in (activity_date, id) order, strictly after the given cursor
// when one is set.
func (db *DB) ListActivitiesSince(ctx context.Context, athleteID int64, from time.Time, cursorDate *time.Time, cursorID *int64, limit int) ([]Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE athlete_id = ? AND activity_date >= ?`
	args := []any{athleteID, FormatDate(from)}
	if cursorDate != nil && cursorID != nil {
		query += ` AND (activity_date > ? OR (activity_date = ? AND id > ?))`
		d := FormatDate(*cursorDate)
		args = append(args, d, d, *cursorID)
	}
	query += ` ORDER BY activity_date, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// CountActivitiesSince counts the athlete's activities dated on or after from.
func (db *DB) CountActivitiesSince(ctx context.Context, athleteID int64, from time.Time) (int, error) {
	return countActivitiesSince(ctx, db, athleteID, from)
}

func countActivitiesSince(ctx context.Context, q querier, athleteID int64, from time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activities WHERE athlete_id = ? AND activity_date >= ?
	`, athleteID, FormatDate(from)).Scan(&count)
	return count, err
}

// LatestActivityDate returns the most recent activity date of the athlete.
// ok is false when the athlete has no activities.
func (db *DB) LatestActivityDate(ctx context.Context, athleteID int64) (date time.Time, ok bool, err error) {
	var s sql.NullString
	err = db.QueryRowContext(ctx, `
		SELECT MAX(activity_date) FROM activities WHERE athlete_id = ?
	`, athleteID).Scan(&s)
	if err != nil || !s.Valid {
		return time.Time{}, false, err
	}
	date, err = ParseDate(s.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return date, true, nil
}

// ListActivityIDs returns every activity ID of the athlete in (date, id) order.
func (db *DB) ListActivityIDs(ctx context.Context, athleteID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id FROM activities WHERE athlete_id = ? ORDER BY activity_date, id
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAthleteIDs returns every athlete that has activities or zone configurations.
func (db *DB) ListAthleteIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT athlete_id FROM activities
		UNION
		SELECT athlete_id FROM zone_config_versions
		ORDER BY athlete_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActivitiesNeedingStreams returns activities that haven't had their samples synced
func (db *DB) GetActivitiesNeedingStreams(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE streams_synced = 0
		ORDER BY start_date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// MarkStreamsSynced marks an activity's samples as synced and records where
// each metric came from.
func (db *DB) MarkStreamsSynced(ctx context.Context, id int64, src SampleSources) error {
	result, err := db.ExecContext(ctx, `
		UPDATE activities
		SET streams_synced = 1, speed_source = ?, heartrate_source = ?, power_source = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, src.Speed, src.Heartrate, src.Power, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrActivityNotFound)
}

// UpdateWeather stores the weather observed at the start of an activity.
func (db *DB) UpdateWeather(ctx context.Context, id int64, tempC *float64, code *int) error {
	result, err := db.ExecContext(ctx, `
		UPDATE activities
		SET weather_temp_c = ?, weather_code = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, tempC, code, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrActivityNotFound)
}

// DeleteActivity removes an activity; its streams and zone time cascade.
func (db *DB) DeleteActivity(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, "DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrActivityNotFound)
}

// CountActivities returns the total number of activities
func (db *DB) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	var startDate, startDateLocal string
	var timezone, speedSrc, hrSrc, powerSrc sql.NullString
	var avgSpeed sql.NullFloat64
	var weatherCode sql.NullInt64
	var hasHR, streamsSynced int

	err := row.Scan(
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &startDate, &startDateLocal, &timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &avgSpeed, &a.AverageHeartrate,
		&hasHR, &streamsSynced, &speedSrc, &hrSrc, &powerSrc,
		&a.WeatherTempC, &weatherCode,
	)
	if err != nil {
		return nil, err
	}

	var parseErr error
	a.StartDate, parseErr = time.Parse(time.RFC3339, startDate)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, parseErr)
	}
	a.StartDateLocal, parseErr = time.Parse(time.RFC3339, startDateLocal)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal, parseErr)
	}
	a.Timezone = timezone.String
	a.AverageSpeed = avgSpeed.Float64
	a.HasHeartrate = hasHR == 1
	a.StreamsSynced = streamsSynced == 1
	a.SpeedSource = speedSrc.String
	a.HeartrateSource = hrSrc.String
	a.PowerSource = powerSrc.String
	if weatherCode.Valid {
		code := int(weatherCode.Int64)
		a.WeatherCode = &code
	}

	return &a, nil
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
