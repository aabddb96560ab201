package hikeservice

import (
	"context"
	"io"

	"github.com/starford/hikelog/internal/apperr"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/models"
)

// AddObservation attaches a new observation to an existing hike.
func (s *Service) AddObservation(ctx context.Context, o models.Observation) (*models.Observation, error) {
	o.ID = 0
	if err := validate(&o); err != nil {
		return nil, err
	}
	if _, err := s.GetHike(ctx, o.HikeID); err != nil {
		return nil, err
	}
	id, err := s.db.InsertObservation(ctx, o)
	if err != nil {
		return nil, err
	}
	o.ID = id
	s.notify(live.KindUpdated, o.HikeID)
	return &o, nil
}

// ListObservations returns a hike's observations, newest first. A hike
// that no longer exists simply has none.
func (s *Service) ListObservations(ctx context.Context, hikeID int64) ([]models.Observation, error) {
	return s.db.ListObservations(ctx, hikeID)
}

// GetObservation returns one observation or apperr.ErrNotFound.
func (s *Service) GetObservation(ctx context.Context, id int64) (*models.Observation, error) {
	o, err := s.db.GetObservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.New(apperr.ErrNotFound, "observation %d not found", id)
	}
	return o, nil
}

// UpdateObservation rewrites an existing observation.
func (s *Service) UpdateObservation(ctx context.Context, o models.Observation) (*models.Observation, error) {
	if o.ID == 0 {
		return nil, apperr.New(apperr.ErrValidation, "id required")
	}
	if err := validate(&o); err != nil {
		return nil, err
	}
	prev, err := s.GetObservation(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if o.HikeID != prev.HikeID {
		if _, err := s.GetHike(ctx, o.HikeID); err != nil {
			return nil, err
		}
	}
	if err := s.db.UpdateObservation(ctx, o); err != nil {
		return nil, err
	}
	s.notify(live.KindUpdated, o.HikeID)
	if !samePhoto(prev.PhotoURI, o.PhotoURI) {
		s.removePhotos(ctx, prev.PhotoURI)
	}
	return &o, nil
}

// DeleteObservation removes one observation.
func (s *Service) DeleteObservation(ctx context.Context, id int64) error {
	o, err := s.GetObservation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteObservation(ctx, id); err != nil {
		return err
	}
	s.notify(live.KindUpdated, o.HikeID)
	s.removePhotos(ctx, o.PhotoURI)
	return nil
}

// AttachObservationPhoto stores an image for an observation and points its
// photoUri at it. The previous photo is removed unless something else uses it.
func (s *Service) AttachObservationPhoto(ctx context.Context, id int64, filename string, src io.Reader) (*models.Observation, error) {
	o, err := s.GetObservation(ctx, id)
	if err != nil {
		return nil, err
	}
	ref, err := s.savePhoto(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	old := o.PhotoURI
	o.PhotoURI = &ref
	if err := s.db.UpdateObservation(ctx, *o); err != nil {
		s.removePhotos(ctx, &ref)
		return nil, err
	}
	s.notify(live.KindUpdated, o.HikeID)
	s.removePhotos(ctx, old)
	return o, nil
}
