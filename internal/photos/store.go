// Package photos keeps image files referenced by hikes and observations.
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RefPrefix starts every reference returned by Save.
const RefPrefix = "photos/"

// MaxBytes caps a single stored image.
const MaxBytes = 20 << 20

var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".heic": true,
}

// ErrUnsupported is returned for file types that are not images.
var ErrUnsupported = errors.New("photos: unsupported file type")

// Store saves images under a root directory and hands back stable references.
type Store struct {
	root string // absolute path to photo directory
}

// NewStore creates the directory if needed and returns a Store rooted there.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("photos: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("photos: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("photos: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("photos: root is not a directory: %s", abs)
	}
	return &Store{root: abs}, nil
}

// Save copies src into the store under a fresh name that keeps the
// extension of name, and returns a reference like "photos/<uuid>.jpg".
func (s *Store) Save(ctx context.Context, name string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file := uuid.NewString() + ext
	dst := filepath.Join(s.root, file)

	tmp, err := os.CreateTemp(s.root, ".hikelog-tmp-*")
	if err != nil {
		return "", fmt.Errorf("photos: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(src, MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("photos: write temp: %w", err)
	}
	if n > MaxBytes {
		return "", fmt.Errorf("photos: image larger than %d bytes", MaxBytes)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("photos: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("photos: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("photos: rename: %w", err)
	}
	success = true
	return RefPrefix + file, nil
}

// Open returns a reader for a reference produced by Save.
func (s *Store) Open(ref string) (*os.File, error) {
	abs, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("photos: open %s: %w", ref, err)
	}
	return f, nil
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *Store) Delete(ref string) error {
	abs, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("photos: delete %s: %w", ref, err)
	}
	return nil
}

// resolve maps a reference to a file directly inside root and rejects
// anything that would escape it.
func (s *Store) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", fmt.Errorf("photos: not a photo reference: %q", ref)
	}
	name := strings.TrimPrefix(ref, RefPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '\\') {
		return "", fmt.Errorf("photos: invalid reference: %q", ref)
	}
	return filepath.Join(s.root, name), nil
}
