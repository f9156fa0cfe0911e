package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertWeeklyMonotonyStrain replaces the monotony/strain row of a week and
// its per-zone breakdown.
func (db *DB) UpsertWeeklyMonotonyStrain(ctx context.Context, m *WeeklyMonotonyStrain) error {
	weekStart := FormatDate(m.WeekStart)
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_monotony_strain (
				athlete_id, week_start, num_zones, total_load_minutes,
				total_monotony, total_strain, computed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(athlete_id, week_start) DO UPDATE SET
				num_zones = excluded.num_zones,
				total_load_minutes = excluded.total_load_minutes,
				total_monotony = excluded.total_monotony,
				total_strain = excluded.total_strain,
				computed_at = excluded.computed_at
		`, m.AthleteID, weekStart, m.NumZones, m.TotalLoadMinutes,
			m.TotalMonotony, m.TotalStrain, formatTimestamp(m.ComputedAt))
		if err != nil {
			return fmt.Errorf("upserting weekly monotony: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM weekly_monotony_strain_zones WHERE athlete_id = ? AND week_start = ?
		`, m.AthleteID, weekStart); err != nil {
			return fmt.Errorf("clearing zone monotony: %w", err)
		}

		for _, z := range m.Zones {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO weekly_monotony_strain_zones (
					athlete_id, week_start, zone_number, load_minutes, monotony, strain
				) VALUES (?, ?, ?, ?, ?, ?)
			`, m.AthleteID, weekStart, z.ZoneNumber, z.LoadMinutes, z.Monotony, z.Strain)
			if err != nil {
				return fmt.Errorf("inserting zone %d monotony: %w", z.ZoneNumber, err)
			}
		}
		return nil
	})
}

// DeleteWeeklyMonotonyStrain removes a week's monotony row; zone rows cascade.
func (db *DB) DeleteWeeklyMonotonyStrain(ctx context.Context, athleteID int64, weekStart time.Time) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM weekly_monotony_strain WHERE athlete_id = ? AND week_start = ?
	`, athleteID, FormatDate(weekStart))
	return err
}

// GetWeeklyMonotonyStrain returns the stored monotony/strain of a week.
func (db *DB) GetWeeklyMonotonyStrain(ctx context.Context, athleteID int64, weekStart time.Time) (*WeeklyMonotonyStrain, error) {
	list, err := db.ListWeeklyMonotonyStrain(ctx, athleteID, weekStart, weekStart)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrWeekNotFound
	}
	return &list[0], nil
}

// ListWeeklyMonotonyStrain returns monotony rows with week_start within
// [from, to], each with its zones in zone order.
func (db *DB) ListWeeklyMonotonyStrain(ctx context.Context, athleteID int64, from, to time.Time) ([]WeeklyMonotonyStrain, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT week_start, num_zones, total_load_minutes, total_monotony, total_strain, computed_at
		FROM weekly_monotony_strain
		WHERE athlete_id = ? AND week_start BETWEEN ? AND ?
		ORDER BY week_start
	`, athleteID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, err
	}

	var out []WeeklyMonotonyStrain
	index := make(map[string]int)
	for rows.Next() {
		m := WeeklyMonotonyStrain{AthleteID: athleteID}
		var weekStart, computedAt string
		if err := rows.Scan(&weekStart, &m.NumZones, &m.TotalLoadMinutes, &m.TotalMonotony, &m.TotalStrain, &computedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if m.WeekStart, err = ParseDate(weekStart); err != nil {
			rows.Close()
			return nil, err
		}
		if m.ComputedAt, err = parseTimestamp(computedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[weekStart] = len(out)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Single connection: the first result set must be closed before the next query.
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	zrows, err := db.QueryContext(ctx, `
		SELECT week_start, zone_number, load_minutes, monotony, strain
		FROM weekly_monotony_strain_zones
		WHERE athlete_id = ? AND week_start BETWEEN ? AND ?
		ORDER BY week_start, zone_number
	`, athleteID, FormatDate(from), FormatDate(to))
	if err != nil {
		return nil, err
	}
	defer zrows.Close()

	for zrows.Next() {
		var weekStart string
		var z ZoneLoad
		if err := zrows.Scan(&weekStart, &z.ZoneNumber, &z.LoadMinutes, &z.Monotony, &z.Strain); err != nil {
			return nil, err
		}
		if i, ok := index[weekStart]; ok {
			out[i].Zones = append(out[i].Zones, z)
		}
	}
	if err := zrows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
