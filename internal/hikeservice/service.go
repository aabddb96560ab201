// Package hikeservice coordinates the store, the change broker and the
// device collaborators (photos, calendar) behind one API used by every front end.
package hikeservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/hikelog/internal/apperr"
	"github.com/starford/hikelog/internal/calendar"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/models"
	"github.com/starford/hikelog/internal/photos"
	"github.com/starford/hikelog/internal/store"
)

// Notifier is signalled after every committed mutation.
type Notifier interface {
	NotifyChanged(kind string, hikeID int64)
}

// DuplicateError reports the stored hike that shares a candidate's natural key.
type DuplicateError struct {
	Existing models.Hike
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a hike named %q at %q on %s already exists (id %d)",
		e.Existing.Name, e.Existing.Location, e.Existing.Date, e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error { return apperr.ErrDuplicate }

// Service is the single entry point for hike and observation operations.
type Service struct {
	db       store.HikeStore
	notifier Notifier
	photos   *photos.Store
	calendar calendar.Adder
	logger   *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

// WithPhotos enables photo attachments.
func WithPhotos(p *photos.Store) Option {
	return func(s *Service) { s.photos = p }
}

// WithCalendar sets the calendar strategy.
func WithCalendar(a calendar.Adder) Option {
	return func(s *Service) { s.calendar = a }
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new hike service.
func NewService(db store.HikeStore, notifier Notifier, opts ...Option) *Service {
	s := &Service{db: db, notifier: notifier, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notify(kind string, hikeID int64) {
	if s.notifier != nil {
		s.notifier.NotifyChanged(kind, hikeID)
	}
}

// ListHikes returns every hike, newest first.
func (s *Service) ListHikes(ctx context.Context) ([]models.Hike, error) {
	return s.db.ListHikes(ctx)
}

// GetHike returns one hike or apperr.ErrNotFound.
func (s *Service) GetHike(ctx context.Context, id int64) (*models.Hike, error) {
	h, err := s.db.GetHike(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.New(apperr.ErrNotFound, "hike %d not found", id)
	}
	return h, nil
}

// CreateHike validates h, checks for a duplicate unless force is set, and
// inserts it. A duplicate is reported as *DuplicateError.
func (s *Service) CreateHike(ctx context.Context, h models.Hike, force bool) (*models.Hike, error) {
	h.ID = 0
	if err := validate(&h); err != nil {
		return nil, err
	}
	if !force {
		dup, err := s.db.FindDuplicate(ctx, h)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			return nil, &DuplicateError{Existing: *dup}
		}
	}
	id, err := s.db.InsertHike(ctx, h)
	if err != nil {
		return nil, err
	}
	h.ID = id
	s.notify(live.KindCreated, id)
	return &h, nil
}

// UpdateHike rewrites every field of an existing hike.
func (s *Service) UpdateHike(ctx context.Context, h models.Hike) (*models.Hike, error) {
	if h.ID == 0 {
		return nil, apperr.New(apperr.ErrValidation, "id required")
	}
	if err := validate(&h); err != nil {
		return nil, err
	}
	prev, err := s.GetHike(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateHike(ctx, h); err != nil {
		return nil, err
	}
	s.notify(live.KindUpdated, h.ID)
	if !samePhoto(prev.PhotoURI, h.PhotoURI) {
		s.removePhotos(ctx, prev.PhotoURI)
	}
	return &h, nil
}

// DeleteHike removes a hike and, through the store's cascade, its
// observations. Photos they referenced are removed best-effort.
func (s *Service) DeleteHike(ctx context.Context, id int64) error {
	h, err := s.GetHike(ctx, id)
	if err != nil {
		return err
	}
	obs, err := s.db.ListObservations(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteHike(ctx, id); err != nil {
		return err
	}
	s.notify(live.KindDeleted, id)

	refs := []*string{h.PhotoURI}
	for _, o := range obs {
		refs = append(refs, o.PhotoURI)
	}
	s.removePhotos(ctx, refs...)
	return nil
}

// DeleteAll clears every hike and observation along with their photos.
func (s *Service) DeleteAll(ctx context.Context) error {
	refs, err := s.db.PhotoRefs(ctx)
	if err != nil {
		return err
	}
	if err := s.db.DeleteAll(ctx); err != nil {
		return err
	}
	s.notify(live.KindCleared, 0)
	for i := range refs {
		s.removePhotos(ctx, &refs[i])
	}
	return nil
}

// SearchHikes matches text against hike names, ignoring case.
func (s *Service) SearchHikes(ctx context.Context, text string) ([]models.Hike, error) {
	return s.db.SearchHikes(ctx, strings.TrimSpace(text))
}

// AdvancedSearch applies every criterion that is set.
func (s *Service) AdvancedSearch(ctx context.Context, c models.SearchCriteria) ([]models.Hike, error) {
	return s.db.AdvancedSearch(ctx, c)
}

// FindDuplicate reports a stored hike sharing candidate's natural key, or nil.
func (s *Service) FindDuplicate(ctx context.Context, candidate models.Hike) (*models.Hike, error) {
	return s.db.FindDuplicate(ctx, candidate)
}

// CountHikes returns the number of stored hikes.
func (s *Service) CountHikes(ctx context.Context) (int, error) {
	return s.db.CountHikes(ctx)
}

// AttachPhoto stores an image for a hike and points photoUri at it. The
// previous photo, if any, is removed.
func (s *Service) AttachPhoto(ctx context.Context, hikeID int64, filename string, src io.Reader) (*models.Hike, error) {
	h, err := s.GetHike(ctx, hikeID)
	if err != nil {
		return nil, err
	}
	ref, err := s.savePhoto(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	old := h.PhotoURI
	h.PhotoURI = &ref
	if err := s.db.UpdateHike(ctx, *h); err != nil {
		s.removePhotos(ctx, &ref)
		return nil, err
	}
	s.notify(live.KindUpdated, hikeID)
	s.removePhotos(ctx, old)
	return h, nil
}

func (s *Service) savePhoto(ctx context.Context, filename string, src io.Reader) (string, error) {
	if s.photos == nil {
		return "", fmt.Errorf("photo storage is not configured")
	}
	ref, err := s.photos.Save(ctx, filename, src)
	if errors.Is(err, photos.ErrUnsupported) {
		return "", apperr.New(apperr.ErrValidation, "%s", err.Error())
	}
	return ref, err
}

// AddToCalendar hands the hike to the calendar strategy and records the
// result in addedToCalendar.
func (s *Service) AddToCalendar(ctx context.Context, hikeID int64) (bool, error) {
	if s.calendar == nil {
		return false, nil
	}
	h, err := s.GetHike(ctx, hikeID)
	if err != nil {
		return false, err
	}
	added, err := s.calendar.Add(ctx, *h)
	if err != nil || !added {
		return false, err
	}
	if !h.AddedToCalendar {
		h.AddedToCalendar = true
		if err := s.db.UpdateHike(ctx, *h); err != nil {
			return false, err
		}
		s.notify(live.KindUpdated, hikeID)
	}
	return true, nil
}

// removePhotos deletes stored photos that no hike or observation points at
// any more. Call it after the referencing rows have changed.
func (s *Service) removePhotos(ctx context.Context, refs ...*string) {
	if s.photos == nil {
		return
	}
	for _, ref := range refs {
		if ref == nil || !strings.HasPrefix(*ref, photos.RefPrefix) {
			continue
		}
		inUse, err := s.db.PhotoReferenced(ctx, *ref)
		if err != nil {
			s.logger.Warn("photo cleanup skipped", slog.String("ref", *ref), slog.String("error", err.Error()))
			continue
		}
		if inUse {
			continue
		}
		if err := s.photos.Delete(*ref); err != nil {
			s.logger.Warn("photo cleanup failed", slog.String("ref", *ref), slog.String("error", err.Error()))
		}
	}
}

func samePhoto(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type validator interface {
	Validate() error
}

// validate runs the model's rules and tags failures as apperr.ErrValidation.
func validate(v validator) error {
	if err := v.Validate(); err != nil {
		return apperr.New(apperr.ErrValidation, "%s", err.Error())
	}
	return nil
}
