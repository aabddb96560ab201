// Package models defines the domain types for hikelog.
package models

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DateLayout is the calendar-date form stored in hikes.date.
const DateLayout = "2006-01-02"

// Difficulty grades a hike.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyModerate Difficulty = "Moderate"
	DifficultyHard     Difficulty = "Hard"
)

// ParseDifficulty accepts any letter case and returns the canonical value.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyModerate, DifficultyHard} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Hike is one recorded hiking trip. ID is zero until the store assigns one.
type Hike struct {
	ID               int64      `json:"id,omitempty"`
	Name             string     `json:"name"`
	Location         string     `json:"location"`
	Date             string     `json:"date"`
	ParkingAvailable bool       `json:"parkingAvailable"`
	LengthKm         float64    `json:"lengthKm"`
	Difficulty       Difficulty `json:"difficulty"`
	Description      *string    `json:"description,omitempty"`
	ElevationGainM   *int       `json:"elevationGainM,omitempty"`
	Rating           *float64   `json:"rating,omitempty"`
	PhotoURI         *string    `json:"photoUri,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	AddedToCalendar  bool       `json:"addedToCalendar"`
}

// Validate checks field presence and ranges before a hike is written.
func (h *Hike) Validate() error {
	return validation.ValidateStruct(h,
		validation.Field(&h.Name, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&h.Location, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&h.Date, validation.Required, validation.Date(DateLayout)),
		validation.Field(&h.LengthKm, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1000.0)),
		validation.Field(&h.Difficulty, validation.Required,
			validation.In(DifficultyEasy, DifficultyModerate, DifficultyHard)),
		validation.Field(&h.Description, validation.RuneLength(0, 1000)),
		validation.Field(&h.ElevationGainM, validation.Min(0), validation.Max(9000)),
		validation.Field(&h.Rating, validation.Min(0.0), validation.Max(5.0)),
		validation.Field(&h.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&h.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	)
}

// SameTrip reports whether h and other share the natural key
// (name, location, date, lengthKm, difficulty, parkingAvailable).
func (h Hike) SameTrip(other Hike) bool {
	return h.Name == other.Name &&
		h.Location == other.Location &&
		h.Date == other.Date &&
		h.LengthKm == other.LengthKm &&
		h.Difficulty == other.Difficulty &&
		h.ParkingAvailable == other.ParkingAvailable
}

// SearchCriteria holds the optional, conjunctive filters of an advanced search.
// Zero-valued strings and nil pointers are not filtered on.
type SearchCriteria struct {
	Name       string     `json:"name,omitempty"`
	Location   string     `json:"location,omitempty"`
	MinLength  *float64   `json:"minLength,omitempty"`
	MaxLength  *float64   `json:"maxLength,omitempty"`
	Date       string     `json:"date,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Parking    *bool      `json:"parkingAvailable,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (c SearchCriteria) IsEmpty() bool {
	return c.Name == "" && c.Location == "" && c.MinLength == nil && c.MaxLength == nil &&
		c.Date == "" && c.Difficulty == "" && c.Parking == nil
}

// Ptr returns a pointer to v; handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
