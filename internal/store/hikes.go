package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/hikelog/internal/apperr"
	"github.com/starford/hikelog/internal/models"
)

const hikeColumns = `id, name, location, date, parkingAvailable, lengthKm, difficulty,
	description, elevationGainM, rating, photoUri, latitude, longitude, addedToCalendar`

const insertHikeSQL = `
	INSERT INTO hikes (name, location, date, parkingAvailable, lengthKm, difficulty,
		description, elevationGainM, rating, photoUri, latitude, longitude, addedToCalendar)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertHike writes a new hike and returns its assigned id.
// No duplicate check is performed; see FindDuplicate.
func (db *DB) InsertHike(ctx context.Context, h models.Hike) (int64, error) {
	return insertHike(ctx, db.conn, h)
}

func insertHike(ctx context.Context, ex execer, h models.Hike) (int64, error) {
	res, err := ex.ExecContext(ctx, insertHikeSQL,
		h.Name, h.Location, h.Date, boolToInt(h.ParkingAvailable), h.LengthKm, string(h.Difficulty),
		h.Description, h.ElevationGainM, h.Rating, h.PhotoURI, h.Latitude, h.Longitude,
		boolToInt(h.AddedToCalendar))
	if err != nil {
		return 0, fmt.Errorf("store: insert hike: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert hike id: %w", err)
	}
	return id, nil
}

// InsertHikeWithObservations writes a hike and its observations in one
// transaction, re-keying every observation to the new hike id.
func (db *DB) InsertHikeWithObservations(ctx context.Context, h models.Hike, obs []models.Observation) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	id, err := insertHike(ctx, tx, h)
	if err != nil {
		return 0, err
	}
	for _, o := range obs {
		o.HikeID = id
		if _, err := insertObservation(ctx, tx, o); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// ListHikes returns every hike, newest date first and by name within a date.
func (db *DB) ListHikes(ctx context.Context) ([]models.Hike, error) {
	return db.queryHikes(ctx, `SELECT `+hikeColumns+` FROM hikes ORDER BY date DESC, name ASC`)
}

// GetHike returns the hike with id, or nil if there is none.
func (db *DB) GetHike(ctx context.Context, id int64) (*models.Hike, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+hikeColumns+` FROM hikes WHERE id = ?`, id)
	h, err := scanHike(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get hike %d: %w", id, err)
	}
	return &h, nil
}

// UpdateHike rewrites every column of an existing hike.
func (db *DB) UpdateHike(ctx context.Context, h models.Hike) error {
	if h.ID == 0 {
		return apperr.New(apperr.ErrValidation, "id required")
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE hikes SET
			name = ?, location = ?, date = ?, parkingAvailable = ?, lengthKm = ?, difficulty = ?,
			description = ?, elevationGainM = ?, rating = ?, photoUri = ?, latitude = ?, longitude = ?,
			addedToCalendar = ?
		WHERE id = ?`,
		h.Name, h.Location, h.Date, boolToInt(h.ParkingAvailable), h.LengthKm, string(h.Difficulty),
		h.Description, h.ElevationGainM, h.Rating, h.PhotoURI, h.Latitude, h.Longitude,
		boolToInt(h.AddedToCalendar), h.ID)
	if err != nil {
		return fmt.Errorf("store: update hike %d: %w", h.ID, err)
	}
	return nil
}

// DeleteHike removes a hike; its observations go with it via ON DELETE CASCADE.
func (db *DB) DeleteHike(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM hikes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete hike %d: %w", id, err)
	}
	return nil
}

// DeleteAll clears both tables.
func (db *DB) DeleteAll(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("store: delete observations: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM hikes`); err != nil {
		return fmt.Errorf("store: delete hikes: %w", err)
	}
	return nil
}

// SearchHikes returns hikes whose name contains text, ignoring case, ordered by name.
// Matching runs in Go because SQLite's LIKE only folds ASCII letters.
func (db *DB) SearchHikes(ctx context.Context, text string) ([]models.Hike, error) {
	hikes, err := db.queryHikes(ctx, `SELECT `+hikeColumns+` FROM hikes ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return filterHikes(hikes, func(h models.Hike) bool { return containsFold(h.Name, text) }), nil
}

// AdvancedSearch ANDs together every criterion that is set.
// Results are ordered like ListHikes.
func (db *DB) AdvancedSearch(ctx context.Context, c models.SearchCriteria) ([]models.Hike, error) {
	var (
		where []string
		args  []any
	)
	if c.MinLength != nil {
		where = append(where, `lengthKm >= ?`)
		args = append(args, *c.MinLength)
	}
	if c.MaxLength != nil {
		where = append(where, `lengthKm <= ?`)
		args = append(args, *c.MaxLength)
	}
	if c.Date != "" {
		where = append(where, `date = ?`)
		args = append(args, c.Date)
	}
	if c.Difficulty != "" {
		where = append(where, `difficulty = ?`)
		args = append(args, string(c.Difficulty))
	}
	if c.Parking != nil {
		where = append(where, `parkingAvailable = ?`)
		args = append(args, boolToInt(*c.Parking))
	}

	query := `SELECT ` + hikeColumns + ` FROM hikes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date DESC, name ASC`
	hikes, err := db.queryHikes(ctx, query, args...)
	if err != nil || (c.Name == "" && c.Location == "") {
		return hikes, err
	}
	return filterHikes(hikes, func(h models.Hike) bool {
		return containsFold(h.Name, c.Name) && containsFold(h.Location, c.Location)
	}), nil
}

// CountHikes returns the number of stored hikes.
func (db *DB) CountHikes(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM hikes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count hikes: %w", err)
	}
	return n, nil
}

func (db *DB) queryHikes(ctx context.Context, query string, args ...any) ([]models.Hike, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query hikes: %w", err)
	}
	defer rows.Close()

	var out []models.Hike
	for rows.Next() {
		h, err := scanHike(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan hike: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHike(s rowScanner) (models.Hike, error) {
	var (
		h          models.Hike
		parking    int64
		difficulty string
		calendar   int64
		desc       sql.Null[string]
		elevation  sql.Null[int64]
		rating     sql.Null[float64]
		photo      sql.Null[string]
		lat, lng   sql.Null[float64]
	)
	err := s.Scan(&h.ID, &h.Name, &h.Location, &h.Date, &parking, &h.LengthKm, &difficulty,
		&desc, &elevation, &rating, &photo, &lat, &lng, &calendar)
	if err != nil {
		return models.Hike{}, err
	}
	h.ParkingAvailable = parking != 0
	h.Difficulty = models.Difficulty(difficulty)
	h.AddedToCalendar = calendar != 0
	h.Description = nullToPtr(desc)
	if elevation.Valid {
		h.ElevationGainM = models.Ptr(int(elevation.V))
	}
	h.Rating = nullToPtr(rating)
	h.PhotoURI = nullToPtr(photo)
	h.Latitude = nullToPtr(lat)
	h.Longitude = nullToPtr(lng)
	return h, nil
}

func filterHikes(hikes []models.Hike, keep func(models.Hike) bool) []models.Hike {
	var out []models.Hike
	for _, h := range hikes {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// containsFold reports whether s contains substr under Unicode lower-casing.
// An empty substr matches everything.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
