package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/hikelog/internal/apperr"
	"github.com/starford/hikelog/internal/models"
)

const observationColumns = `id, hikeId, observation, timestamp, comments, photoUri`

// InsertObservation writes a new observation and returns its id.
// The hikeId must reference an existing hike.
func (db *DB) InsertObservation(ctx context.Context, o models.Observation) (int64, error) {
	return insertObservation(ctx, db.conn, o)
}

func insertObservation(ctx context.Context, ex execer, o models.Observation) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO observations (hikeId, observation, timestamp, comments, photoUri)
		VALUES (?, ?, ?, ?, ?)`,
		o.HikeID, o.Observation, o.Timestamp, o.Comments, o.PhotoURI)
	if err != nil {
		return 0, fmt.Errorf("store: insert observation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert observation id: %w", err)
	}
	return id, nil
}

// ListObservations returns a hike's observations, most recent first.
func (db *DB) ListObservations(ctx context.Context, hikeID int64) ([]models.Observation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations WHERE hikeId = ? ORDER BY timestamp DESC, id DESC`,
		hikeID)
	if err != nil {
		return nil, fmt.Errorf("store: list observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetObservation returns the observation with id, or nil if there is none.
func (db *DB) GetObservation(ctx context.Context, id int64) (*models.Observation, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get observation %d: %w", id, err)
	}
	return &o, nil
}

// UpdateObservation rewrites every column of an existing observation.
func (db *DB) UpdateObservation(ctx context.Context, o models.Observation) error {
	if o.ID == 0 {
		return apperr.New(apperr.ErrValidation, "id required")
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE observations
		SET hikeId = ?, observation = ?, timestamp = ?, comments = ?, photoUri = ?
		WHERE id = ?`,
		o.HikeID, o.Observation, o.Timestamp, o.Comments, o.PhotoURI, o.ID)
	if err != nil {
		return fmt.Errorf("store: update observation %d: %w", o.ID, err)
	}
	return nil
}

// DeleteObservation removes one observation.
func (db *DB) DeleteObservation(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM observations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete observation %d: %w", id, err)
	}
	return nil
}

func scanObservation(s rowScanner) (models.Observation, error) {
	var (
		o        models.Observation
		comments sql.Null[string]
		photo    sql.Null[string]
	)
	if err := s.Scan(&o.ID, &o.HikeID, &o.Observation, &o.Timestamp, &comments, &photo); err != nil {
		return models.Observation{}, err
	}
	o.Comments = nullToPtr(comments)
	o.PhotoURI = nullToPtr(photo)
	return o, nil
}
