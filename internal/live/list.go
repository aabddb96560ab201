package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/hikelog/internal/models"
)

// Query fetches the hikes an observer currently shows: the full list, a
// name search or an advanced filter.
type Query func(ctx context.Context) ([]models.Hike, error)

// HikeList is an observable snapshot of hikes. It re-runs its active query
// whenever the broker signals a change and replaces the cached list.
type HikeList struct {
	broker *Broker
	logger *slog.Logger

	mu      sync.RWMutex
	query   Query
	hikes   []models.Hike
	version uint64

	refreshCh chan struct{}
}

// NewHikeList returns a list that refreshes with query. Call Run to start it.
func NewHikeList(broker *Broker, query Query, logger *slog.Logger) *HikeList {
	return &HikeList{
		broker:    broker,
		logger:    logger,
		query:     query,
		refreshCh: make(chan struct{}, 1),
	}
}

// Run loads the list once, then refreshes it on every change until ctx is done.
func (l *HikeList) Run(ctx context.Context) error {
	ch := l.broker.Subscribe()
	defer l.broker.Unsubscribe(ch)

	l.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			l.refresh(ctx)
		case <-l.refreshCh:
			l.refresh(ctx)
		}
	}
}

// SetQuery switches the active query (e.g. to a search) and schedules a refresh.
func (l *HikeList) SetQuery(q Query) {
	l.mu.Lock()
	l.query = q
	l.mu.Unlock()
	select {
	case l.refreshCh <- struct{}{}:
	default:
	}
}

// Hikes returns a copy of the current snapshot.
func (l *HikeList) Hikes() []models.Hike {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Hike, len(l.hikes))
	copy(out, l.hikes)
	return out
}

// Version returns the change counter the snapshot reflects.
func (l *HikeList) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// refresh re-runs the query. The broker's counter is read first: every change
// up to that version was committed before the query starts, including ones
// this subscriber missed on a full buffer.
func (l *HikeList) refresh(ctx context.Context) {
	version := l.broker.Version()
	l.mu.RLock()
	q := l.query
	l.mu.RUnlock()

	hikes, err := q(ctx)
	if err != nil {
		l.logger.Warn("live: refresh failed", slog.Uint64("version", version), slog.String("error", err.Error()))
		return
	}

	l.mu.Lock()
	l.hikes = hikes
	if version > l.version {
		l.version = version
	}
	l.mu.Unlock()
	l.logger.Debug("live: list refreshed", slog.Uint64("version", version), slog.Int("count", len(hikes)))
}
