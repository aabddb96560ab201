// Package testutil provides shared test helpers for databases, photo
// directories and sample hikes.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/hikelog/internal/models"
	"github.com/starford/hikelog/internal/photos"
	"github.com/starford/hikelog/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "hikelog-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(context.Background(), store.Config{Path: dbFile.Name()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPhotos creates a photo store rooted in a temporary directory.
func TestPhotos(t *testing.T) (string, *photos.Store) {
	t.Helper()
	dir := t.TempDir()
	ps, err := photos.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, ps
}

// Snowdon returns a valid hike with only the required fields set.
func Snowdon() models.Hike {
	return models.Hike{
		Name:             "Snowdon",
		Location:         "Llanberis, UK",
		Date:             "2025-07-10",
		ParkingAvailable: true,
		LengthKm:         14.5,
		Difficulty:       models.DifficultyHard,
	}
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
