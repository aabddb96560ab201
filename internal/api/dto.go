package api

import (
	"fmt"

	"github.com/starford/hikelog/internal/models"
)

// HikeRequest is the request body for creating, updating or
// duplicate-checking a hike. Difficulty is accepted in any letter case.
type HikeRequest struct {
	Name             string   `json:"name" example:"Snowdon" validate:"required"`
	Location         string   `json:"location" example:"Llanberis, UK" validate:"required"`
	Date             string   `json:"date" example:"2025-07-10" validate:"required"`
	ParkingAvailable bool     `json:"parkingAvailable"`
	LengthKm         float64  `json:"lengthKm" example:"14.5" validate:"required"`
	Difficulty       string   `json:"difficulty" example:"Hard" validate:"required"`
	Description      *string  `json:"description,omitempty"`
	ElevationGainM   *int     `json:"elevationGainM,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	PhotoURI         *string  `json:"photoUri,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	AddedToCalendar  bool     `json:"addedToCalendar"`
}

func (req HikeRequest) toModel(id int64) (models.Hike, error) {
	d, err := models.ParseDifficulty(req.Difficulty)
	if err != nil {
		return models.Hike{}, fmt.Errorf("difficulty: must be one of Easy, Moderate, Hard")
	}
	return models.Hike{
		ID:               id,
		Name:             req.Name,
		Location:         req.Location,
		Date:             req.Date,
		ParkingAvailable: req.ParkingAvailable,
		LengthKm:         req.LengthKm,
		Difficulty:       d,
		Description:      req.Description,
		ElevationGainM:   req.ElevationGainM,
		Rating:           req.Rating,
		PhotoURI:         req.PhotoURI,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		AddedToCalendar:  req.AddedToCalendar,
	}, nil
}

// ObservationRequest is the request body for creating or updating an observation.
type ObservationRequest struct {
	Observation string  `json:"observation" example:"Fog on the ridge" validate:"required"`
	Timestamp   int64   `json:"timestamp" example:"1752141600000" validate:"required"`
	Comments    *string `json:"comments,omitempty"`
	PhotoURI    *string `json:"photoUri,omitempty"`
	// HikeID moves the observation on update; ignored on create.
	HikeID int64 `json:"hikeId,omitempty"`
}

func (req ObservationRequest) toModel(id, hikeID int64) models.Observation {
	return models.Observation{
		ID:          id,
		HikeID:      hikeID,
		Observation: req.Observation,
		Timestamp:   req.Timestamp,
		Comments:    req.Comments,
		PhotoURI:    req.PhotoURI,
	}
}

// HikeListResponse wraps hike listings and search results.
type HikeListResponse struct {
	Hikes []models.Hike `json:"hikes" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

func hikeList(hikes []models.Hike) HikeListResponse {
	if hikes == nil {
		hikes = []models.Hike{}
	}
	return HikeListResponse{Hikes: hikes, Total: len(hikes)}
}

// ObservationListResponse wraps a hike's observations.
type ObservationListResponse struct {
	Observations []models.Observation `json:"observations" validate:"required"`
}

// DuplicateResponse is returned with 409 when a create matches a stored hike.
type DuplicateResponse struct {
	Error    string      `json:"error" validate:"required"`
	Existing models.Hike `json:"existing" validate:"required"`
}

// CalendarResponse reports whether a calendar entry was created.
type CalendarResponse struct {
	Added bool `json:"added"`
}

// StatsResponse summarises the store and the change feed.
type StatsResponse struct {
	Hikes       int    `json:"hikes" example:"12"`
	Version     uint64 `json:"version" example:"40"`
	Subscribers int    `json:"subscribers" example:"1"`
}
