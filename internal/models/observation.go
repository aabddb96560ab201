package models

import validation "github.com/go-ozzo/ozzo-validation/v4"

// Observation is a timestamped field note attached to a hike.
type Observation struct {
	ID          int64   `json:"id,omitempty"`
	HikeID      int64   `json:"hikeId"`
	Observation string  `json:"observation"`
	Timestamp   int64   `json:"timestamp"` // ms since epoch
	Comments    *string `json:"comments,omitempty"`
	PhotoURI    *string `json:"photoUri,omitempty"`
}

// Validate checks field presence and lengths before an observation is written.
func (o *Observation) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.HikeID, validation.Required),
		validation.Field(&o.Observation, validation.Required, validation.RuneLength(1, 500)),
		validation.Field(&o.Timestamp, validation.Required, validation.Min(int64(1))),
		validation.Field(&o.Comments, validation.RuneLength(0, 1000)),
	)
}
