package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var weeklyColumns = `athlete_id, week_start, num_zones, ` + zoneColumns("%s") + `,
	total_minutes, activity_count, computed_at`

// SumWeek totals the athlete's activity zone times dated within the seven days
// starting at weekStart. rows is the number of activity rows summed; when it is
// zero the week has no data and the returned totals are all zero.
func (db *DB) SumWeek(ctx context.Context, athleteID int64, weekStart time.Time) (w *WeeklyZoneTime, rows int, err error) {
	w = &WeeklyZoneTime{AthleteID: athleteID, WeekStart: Day(weekStart)}

	dest := []any{&rows, &w.NumZones}
	for i := range w.ZoneMinutes {
		dest = append(dest, &w.ZoneMinutes[i])
	}
	dest = append(dest, &w.TotalMinutes, &w.ActivityCount)

	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(num_zones), 0), `+zoneColumns("COALESCE(SUM(%s), 0)")+`,
			COALESCE(SUM(total_minutes), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM activity_zone_times
		WHERE athlete_id = ? AND activity_date BETWEEN ? AND ?
	`, StatusClassified, athleteID, FormatDate(w.WeekStart), FormatDate(w.WeekStart.AddDate(0, 0, 6))).Scan(dest...)
	if err != nil {
		return nil, 0, fmt.Errorf("summing week: %w", err)
	}
	return w, rows, nil
}

// UpsertWeeklyZoneTime stores a weekly total, replacing the previous one.
func (db *DB) UpsertWeeklyZoneTime(ctx context.Context, w *WeeklyZoneTime) error {
	args := []any{w.AthleteID, FormatDate(w.WeekStart), w.NumZones}
	for _, m := range w.ZoneMinutes {
		args = append(args, m)
	}
	args = append(args, w.TotalMinutes, w.ActivityCount, formatTimestamp(w.ComputedAt))

	updates := make([]string, MaxZones)
	for i := range updates {
		updates[i] = fmt.Sprintf("zone_%d_minutes = excluded.zone_%d_minutes", i+1, i+1)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO weekly_zone_times (`+weeklyColumns+`)
		VALUES (`+placeholders(len(args))+`)
		ON CONFLICT(athlete_id, week_start) DO UPDATE SET
			num_zones = excluded.num_zones,
			`+strings.Join(updates, ",\n\t\t\t")+`,
			total_minutes = excluded.total_minutes,
			activity_count = excluded.activity_count,
			computed_at = excluded.computed_at
	`, args...)
	if err != nil {
		return fmt.Errorf("upserting weekly zone time: %w", err)
	}
	return nil
}

// DeleteWeeklyZoneTime removes a weekly total.
func (db *DB) DeleteWeeklyZoneTime(ctx context.Context, athleteID int64, weekStart time.Time) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM weekly_zone_times WHERE athlete_id = ? AND week_start = ?
	`, athleteID, FormatDate(weekStart))
	return err
}

// GetWeeklyZoneTime returns a stored weekly total.
func (db *DB) GetWeeklyZoneTime(ctx context.Context, athleteID int64, weekStart time.Time) (*WeeklyZoneTime, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+weeklyColumns+` FROM weekly_zone_times WHERE athlete_id = ? AND week_start = ?
	`, athleteID, FormatDate(weekStart))
	w, err := scanWeeklyZoneTime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWeekNotFound
	}
	return w, err
}

// ListWeeklyZoneTimes returns weekly totals with week_start within [from, to].
func (db *DB) ListWeeklyZoneTimes(ctx context.Context, athleteID int64, from, to time.Time) ([]WeeklyZoneTime, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+weeklyColumns+`
		FROM weekly_zone_times
		WHERE athlete_id = ? AND week_start BETWEEN ? AND ?
		ORDER BY week_start
	`, athleteID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WeeklyZoneTime
	for rows.Next() {
		w, err := scanWeeklyZoneTime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// DeleteAthleteWeeks removes every weekly total and monotony row of the athlete.
func (db *DB) DeleteAthleteWeeks(ctx context.Context, athleteID int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_zone_times WHERE athlete_id = ?`, athleteID); err != nil {
			return fmt.Errorf("deleting weekly zone times: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_monotony_strain WHERE athlete_id = ?`, athleteID); err != nil {
			return fmt.Errorf("deleting weekly monotony: %w", err)
		}
		return nil
	})
}

func scanWeeklyZoneTime(row scanner) (*WeeklyZoneTime, error) {
	var w WeeklyZoneTime
	var weekStart, computedAt string

	dest := []any{&w.AthleteID, &weekStart, &w.NumZones}
	for i := range w.ZoneMinutes {
		dest = append(dest, &w.ZoneMinutes[i])
	}
	dest = append(dest, &w.TotalMinutes, &w.ActivityCount, &computedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if w.WeekStart, err = ParseDate(weekStart); err != nil {
		return nil, err
	}
	if w.ComputedAt, err = parseTimestamp(computedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
