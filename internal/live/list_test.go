package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/hikelog/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeStore is a tiny mutable source of truth for list tests.
type fakeStore struct {
	mu    sync.Mutex
	hikes []models.Hike
	fail  bool
}

func (f *fakeStore) set(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hikes = nil
	for _, n := range names {
		f.hikes = append(f.hikes, models.Hike{Name: n})
	}
}

func (f *fakeStore) all(context.Context) ([]models.Hike, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("boom")
	}
	return append([]models.Hike(nil), f.hikes...), nil
}

func (f *fakeStore) named(name string) Query {
	return func(ctx context.Context) ([]models.Hike, error) {
		all, err := f.all(ctx)
		if err != nil {
			return nil, err
		}
		var out []models.Hike
		for _, h := range all {
			if h.Name == name {
				out = append(out, h)
			}
		}
		return out, nil
	}
}

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startList(t *testing.T, b *Broker, q Query) *HikeList {
	t.Helper()
	l := NewHikeList(b, q, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return b.ClientCount() == 1 }, "list did not subscribe")
	return l
}

func TestHikeList_RefreshesOnChange(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	fs := &fakeStore{}
	fs.set("Snowdon")
	l := startList(t, b, fs.all)

	eventually(t, time.Second, 10*time.Millisecond, func() bool { return len(l.Hikes()) == 1 }, "initial load missing")

	fs.set("Snowdon", "Helvellyn")
	b.NotifyChanged(KindCreated, 2)
	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		return len(l.Hikes()) == 2 && l.Version() == 1
	}, "list not refreshed after change")
}

func TestHikeList_SetQuery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	fs := &fakeStore{}
	fs.set("A", "B", "B")
	l := startList(t, b, fs.all)
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return len(l.Hikes()) == 3 }, "initial load missing")

	l.SetQuery(fs.named("B"))
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return len(l.Hikes()) == 2 }, "query switch not applied")

	// The active filter is kept across later changes.
	fs.set("A", "B")
	b.NotifyChanged(KindDeleted, 3)
	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		h := l.Hikes()
		return len(h) == 1 && h[0].Name == "B"
	}, "filter lost on refresh")
}

func TestHikeList_KeepsSnapshotOnError(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	fs := &fakeStore{}
	fs.set("Keep")
	l := startList(t, b, fs.all)
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return len(l.Hikes()) == 1 }, "initial load missing")

	fs.mu.Lock()
	fs.fail = true
	fs.mu.Unlock()
	b.NotifyChanged(KindUpdated, 1)
	time.Sleep(50 * time.Millisecond)

	if h := l.Hikes(); len(h) != 1 || h[0].Name != "Keep" {
		t.Errorf("snapshot replaced on error: %+v", h)
	}
}

func TestHikeList_CatchesUpAfterDroppedChanges(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	fs := &fakeStore{}
	fs.set("A")

	var blocking atomic.Bool
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	q := func(ctx context.Context) ([]models.Hike, error) {
		if blocking.Load() {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
		return fs.all(ctx)
	}
	l := startList(t, b, q)
	var once sync.Once
	unblock := func() {
		once.Do(func() {
			blocking.Store(false)
			close(release)
		})
	}
	t.Cleanup(unblock)
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return len(l.Hikes()) == 1 }, "initial load missing")

	// Hold the list inside a refresh so its subscription buffer overflows.
	blocking.Store(true)
	b.NotifyChanged(KindCreated, 1)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("refresh did not start")
	}
	for range 40 {
		b.NotifyChanged(KindUpdated, 1)
	}
	eventually(t, time.Second, 10*time.Millisecond, func() bool { return b.Version() == 41 }, "broker did not count every change")
	unblock()

	eventually(t, time.Second, 10*time.Millisecond, func() bool { return l.Version() == b.Version() }, "list version behind broker after dropped changes")
}
