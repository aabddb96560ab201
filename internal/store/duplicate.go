package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/hikelog/internal/models"
)

// FindDuplicate returns a stored hike that shares candidate's natural key
// (name, location, date, lengthKm, difficulty, parkingAvailable), or nil.
// Strings compare case-sensitively and numbers exactly. It only reports;
// callers decide whether to insert anyway.
func (db *DB) FindDuplicate(ctx context.Context, candidate models.Hike) (*models.Hike, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+hikeColumns+`
		FROM hikes
		WHERE name = ? AND location = ? AND date = ? AND lengthKm = ?
		  AND difficulty = ? AND parkingAvailable = ?
		ORDER BY id
		LIMIT 1`,
		candidate.Name, candidate.Location, candidate.Date, candidate.LengthKm,
		string(candidate.Difficulty), boolToInt(candidate.ParkingAvailable))
	h, err := scanHike(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find duplicate: %w", err)
	}
	return &h, nil
}
