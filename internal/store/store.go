package store

import (
	"context"
	"database/sql"

	"github.com/starford/hikelog/internal/models"
)

// HikeStore defines the persistence operations over hikes and observations.
// Consumers should depend on this interface rather than the concrete *DB type.
type HikeStore interface {
	InsertHike(ctx context.Context, h models.Hike) (int64, error)
	InsertHikeWithObservations(ctx context.Context, h models.Hike, obs []models.Observation) (int64, error)
	ListHikes(ctx context.Context) ([]models.Hike, error)
	GetHike(ctx context.Context, id int64) (*models.Hike, error)
	UpdateHike(ctx context.Context, h models.Hike) error
	DeleteHike(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	SearchHikes(ctx context.Context, text string) ([]models.Hike, error)
	AdvancedSearch(ctx context.Context, c models.SearchCriteria) ([]models.Hike, error)
	FindDuplicate(ctx context.Context, candidate models.Hike) (*models.Hike, error)
	CountHikes(ctx context.Context) (int, error)

	InsertObservation(ctx context.Context, o models.Observation) (int64, error)
	ListObservations(ctx context.Context, hikeID int64) ([]models.Observation, error)
	GetObservation(ctx context.Context, id int64) (*models.Observation, error)
	UpdateObservation(ctx context.Context, o models.Observation) error
	DeleteObservation(ctx context.Context, id int64) error

	PhotoReferenced(ctx context.Context, ref string) (bool, error)
	PhotoRefs(ctx context.Context) ([]string, error)

	Close() error
}

// Verify *DB satisfies HikeStore at compile time.
var _ HikeStore = (*DB)(nil)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullToPtr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}
