package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertZoneVersion appends a zone configuration for the athlete, effective
// from the given date. In the same transaction it bumps the athlete's
// configuration generation and, when activities dated on or after
// effectiveFrom exist, enqueues a recompute job. Existing rows are never
// updated: a second configuration for the same date returns ErrDuplicateVersion.
func (db *DB) InsertZoneVersion(ctx context.Context, athleteID int64, effectiveFrom time.Time, zones []ZoneBracket) (*ZoneInsert, error) {
	from := FormatDate(effectiveFrom)
	var out ZoneInsert

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var latest sql.NullString
		var existing int
		err := tx.QueryRowContext(ctx, `
			SELECT MAX(effective_from), COALESCE(SUM(effective_from = ?), 0)
			FROM zone_config_versions
			WHERE athlete_id = ?
		`, from, athleteID).Scan(&latest, &existing)
		if err != nil {
			return fmt.Errorf("reading existing versions: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateVersion
		}
		out.Backdated = latest.Valid && from < latest.String

		err = tx.QueryRowContext(ctx, `
			INSERT INTO zone_config_generations (athlete_id, generation)
			VALUES (?, 1)
			ON CONFLICT(athlete_id) DO UPDATE SET generation = generation + 1
			RETURNING generation
		`, athleteID).Scan(&out.Generation)
		if err != nil {
			return fmt.Errorf("bumping generation: %w", err)
		}

		for _, z := range zones {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO zone_config_versions (
					athlete_id, effective_from, num_zones, zone_number,
					pace_min_sec_per_km, pace_max_sec_per_km, generation
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`, athleteID, from, len(zones), z.ZoneNumber, z.PaceMin, z.PaceMax, out.Generation)
			if err != nil {
				return fmt.Errorf("inserting zone %d: %w", z.ZoneNumber, err)
			}
		}

		affected, err := countActivitiesSince(ctx, tx, athleteID, effectiveFrom)
		if err != nil {
			return fmt.Errorf("counting affected activities: %w", err)
		}
		if affected == 0 {
			return nil
		}
		out.Job, err = enqueueRecomputeJob(ctx, tx, athleteID, Day(effectiveFrom), out.Generation, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveZones returns the zone configuration in force for the athlete on
// asOf: the version with the greatest effective date not after asOf.
// When no version applies the result has no zones.
func (db *DB) ResolveZones(ctx context.Context, athleteID int64, asOf time.Time) (*ZoneVersion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT effective_from, generation, zone_number, pace_min_sec_per_km, pace_max_sec_per_km
		FROM zone_config_versions
		WHERE athlete_id = ?
		AND effective_from = (
			SELECT MAX(effective_from) FROM zone_config_versions
			WHERE athlete_id = ? AND effective_from <= ?
		)
		ORDER BY zone_number
	`, athleteID, athleteID, FormatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("resolving zones: %w", err)
	}
	defer rows.Close()

	versions, err := scanZoneVersions(athleteID, rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return &ZoneVersion{AthleteID: athleteID}, nil
	}
	return &versions[0], nil
}

// ListZoneVersions returns every configuration of the athlete, oldest first.
func (db *DB) ListZoneVersions(ctx context.Context, athleteID int64) ([]ZoneVersion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT effective_from, generation, zone_number, pace_min_sec_per_km, pace_max_sec_per_km
		FROM zone_config_versions
		WHERE athlete_id = ?
		ORDER BY effective_from, zone_number
	`, athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing zone versions: %w", err)
	}
	defer rows.Close()

	return scanZoneVersions(athleteID, rows)
}

// ZoneGeneration returns the athlete's configuration generation, 0 when the
// athlete has never configured zones.
func (db *DB) ZoneGeneration(ctx context.Context, athleteID int64) (int64, error) {
	var gen int64
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(generation), 0) FROM zone_config_generations WHERE athlete_id = ?
	`, athleteID).Scan(&gen)
	return gen, err
}

func scanZoneVersions(athleteID int64, rows *sql.Rows) ([]ZoneVersion, error) {
	var versions []ZoneVersion
	for rows.Next() {
		var effective string
		var gen int64
		var z ZoneBracket
		if err := rows.Scan(&effective, &gen, &z.ZoneNumber, &z.PaceMin, &z.PaceMax); err != nil {
			return nil, err
		}
		date, err := ParseDate(effective)
		if err != nil {
			return nil, err
		}
		if n := len(versions); n == 0 || !versions[n-1].EffectiveFrom.Equal(date) {
			versions = append(versions, ZoneVersion{AthleteID: athleteID, EffectiveFrom: date, Generation: gen})
		}
		v := &versions[len(versions)-1]
		v.Zones = append(v.Zones, z)
	}
	return versions, rows.Err()
}
