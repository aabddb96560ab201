// Package inbox imports shared hike files dropped into a directory.
//
// Every *.txt or *.json file that appears in the inbox is handed to the
// importer once it stops changing. The file is then moved to done/ or
// failed/ and a <name>.result.txt sidecar records the outcome.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/hikelog/internal/checksum"
	"github.com/starford/hikelog/internal/hikeservice"
)

// Subdirectories that receive processed files.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// settleDelay is how long a file must stay quiet before it is imported.
const settleDelay = 200 * time.Millisecond

// Importer turns exported text into a stored hike.
type Importer interface {
	ImportFromText(ctx context.Context, text string) hikeservice.ImportResult
}

// ResultCallback is called after each processed file with its base name.
type ResultCallback func(name string, res hikeservice.ImportResult)

// Watch processes files already waiting in dir, then watches it until ctx
// is cancelled.
func Watch(ctx context.Context, dir string, imp Importer, logger *slog.Logger, cb ResultCallback) error {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("inbox: mkdir: %w", err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", dir, err)
	}

	logger.Info("inbox: started", slog.String("dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("inbox: read dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && accepts(e.Name()) {
			process(ctx, dir, e.Name(), imp, logger, cb)
		}
	}

	// Writers may emit several events per file; each one pushes the
	// file's deadline back.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settleDelay / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox: stopped")
			return nil

		case now := <-ticker.C:
			for name, due := range pending {
				if now.Before(due) {
					continue
				}
				delete(pending, name)
				process(ctx, dir, name, imp, logger, cb)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(dir) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !accepts(name) {
				continue
			}
			pending[name] = time.Now().Add(settleDelay)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func accepts(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".result.txt") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".json"
}

// process imports one inbox file and files it away with its result.
func process(ctx context.Context, dir, name string, imp Importer, logger *slog.Logger, cb ResultCallback) {
	src := filepath.Join(dir, name)
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		// Already moved, or never was a regular file.
		return
	}
	data, err := os.ReadFile(src)
	if err != nil {
		logger.Warn("inbox: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}

	res := imp.ImportFromText(ctx, string(data))
	sum := checksum.Sum(data)

	sub := FailedDir
	if res.Success {
		sub = DoneDir
	}
	dst, err := move(src, filepath.Join(dir, sub), name)
	if err != nil {
		logger.Warn("inbox: move failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	if err := writeResult(dst, sum, res); err != nil {
		logger.Warn("inbox: result write failed", slog.String("file", name), slog.String("error", err.Error()))
	}

	logger.Info("inbox: processed",
		slog.String("file", name),
		slog.String("sha256", sum),
		slog.Bool("success", res.Success),
		slog.Int64("hike_id", res.HikeID))
	if cb != nil {
		cb(name, res)
	}
}

// move renames src into destDir, adding a timestamp prefix when name is
// already taken there. It returns the new path.
func move(src, destDir, name string) (string, error) {
	dst := filepath.Join(destDir, name)
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(destDir, time.Now().UTC().Format("20060102T150405.000000000")+"-"+name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// ResultPath returns the sidecar written next to a processed file.
func ResultPath(processed string) string {
	return processed + ".result.txt"
}

func writeResult(processed, sum string, res hikeservice.ImportResult) error {
	status := "failed"
	if res.Success {
		status = "imported"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", status)
	if res.HikeID != 0 {
		fmt.Fprintf(&b, "hike_id: %d\n", res.HikeID)
	}
	fmt.Fprintf(&b, "sha256: %s\n", sum)
	fmt.Fprintf(&b, "message: %s\n", res.Message)
	return os.WriteFile(ResultPath(processed), []byte(b.String()), 0o644)
}
