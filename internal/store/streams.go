package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveStreams saves stream data for an activity
// It replaces any existing stream data for the activity
func (db *DB) SaveStreams(ctx context.Context, activityID int64, points []StreamPoint) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM streams WHERE activity_id = ?", activityID); err != nil {
			return fmt.Errorf("deleting existing streams: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO streams (
				activity_id, time_offset, latlng_lat, latlng_lng, altitude,
				velocity_smooth, heartrate, cadence, watts, distance
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			_, err := stmt.ExecContext(ctx,
				activityID, p.TimeOffset, p.Lat, p.Lng, p.Altitude,
				p.VelocitySmooth, p.Heartrate, p.Cadence, p.Watts, p.Distance,
			)
			if err != nil {
				return fmt.Errorf("inserting stream point: %w", err)
			}
		}
		return nil
	})
}

// GetStreams retrieves all stream points for an activity
func (db *DB) GetStreams(ctx context.Context, activityID int64) ([]StreamPoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT activity_id, time_offset, latlng_lat, latlng_lng, altitude,
			velocity_smooth, heartrate, cadence, watts, distance
		FROM streams
		WHERE activity_id = ?
		ORDER BY time_offset
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []StreamPoint
	for rows.Next() {
		var p StreamPoint
		err := rows.Scan(
			&p.ActivityID, &p.TimeOffset, &p.Lat, &p.Lng, &p.Altitude,
			&p.VelocitySmooth, &p.Heartrate, &p.Cadence, &p.Watts, &p.Distance,
		)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// GetSpeeds returns the non-null per-second speeds (m/s) of an activity.
func (db *DB) GetSpeeds(ctx context.Context, activityID int64) ([]float64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT velocity_smooth FROM streams
		WHERE activity_id = ? AND velocity_smooth IS NOT NULL
		ORDER BY time_offset
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		speeds = append(speeds, v)
	}
	return speeds, rows.Err()
}

// HasStreams checks if an activity has stream data
func (db *DB) HasStreams(ctx context.Context, activityID int64) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM streams WHERE activity_id = ? LIMIT 1
	`, activityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
