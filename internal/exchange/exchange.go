// Package exchange encodes a hike and its observations into the portable
// text block shared between app instances, and decodes it back.
//
// The block is a human-readable summary followed by a JSON object. Photo
// references and the calendar flag are device-local and never exported.
package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/hikelog/internal/apperr"
	"github.com/starford/hikelog/internal/models"
)

// DataMarker separates the summary from the JSON payload.
const DataMarker = "--- hike data ---"

// requiredFields lists the payload keys an import cannot do without, in report order.
var requiredFields = []string{"name", "location", "date", "parkingAvailable", "lengthKm", "difficulty"}

// Payload is the JSON object of the export format.
type Payload struct {
	Name             string               `json:"name"`
	Location         string               `json:"location"`
	Date             string               `json:"date"`
	ParkingAvailable bool                 `json:"parkingAvailable"`
	LengthKm         float64              `json:"lengthKm"`
	Difficulty       models.Difficulty    `json:"difficulty"`
	Description      *string              `json:"description,omitempty"`
	ElevationGainM   *int                 `json:"elevationGainM,omitempty"`
	Rating           *float64             `json:"rating,omitempty"`
	Latitude         *float64             `json:"latitude,omitempty"`
	Longitude        *float64             `json:"longitude,omitempty"`
	Observations     []ObservationPayload `json:"observations"`
}

// ObservationPayload is one observation reduced to its portable fields.
type ObservationPayload struct {
	Observation string  `json:"observation"`
	Timestamp   int64   `json:"timestamp"`
	Comments    *string `json:"comments,omitempty"`
}

// NewPayload builds the export payload for h and its observations.
func NewPayload(h models.Hike, obs []models.Observation) Payload {
	p := Payload{
		Name:             h.Name,
		Location:         h.Location,
		Date:             h.Date,
		ParkingAvailable: h.ParkingAvailable,
		LengthKm:         h.LengthKm,
		Difficulty:       h.Difficulty,
		Description:      h.Description,
		ElevationGainM:   h.ElevationGainM,
		Rating:           h.Rating,
		Latitude:         h.Latitude,
		Longitude:        h.Longitude,
		Observations:     make([]ObservationPayload, 0, len(obs)),
	}
	for _, o := range obs {
		p.Observations = append(p.Observations, ObservationPayload{
			Observation: o.Observation,
			Timestamp:   o.Timestamp,
			Comments:    o.Comments,
		})
	}
	return p
}

// Hike converts the payload back into an unsaved hike.
// AddedToCalendar is always false and PhotoURI always nil.
func (p *Payload) Hike() models.Hike {
	return models.Hike{
		Name:             p.Name,
		Location:         p.Location,
		Date:             p.Date,
		ParkingAvailable: p.ParkingAvailable,
		LengthKm:         p.LengthKm,
		Difficulty:       p.Difficulty,
		Description:      p.Description,
		ElevationGainM:   p.ElevationGainM,
		Rating:           p.Rating,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
	}
}

// ObservationsFor converts the embedded observations, keyed to hikeID.
func (p *Payload) ObservationsFor(hikeID int64) []models.Observation {
	out := make([]models.Observation, 0, len(p.Observations))
	for _, o := range p.Observations {
		out = append(out, models.Observation{
			HikeID:      hikeID,
			Observation: o.Observation,
			Timestamp:   o.Timestamp,
			Comments:    o.Comments,
		})
	}
	return out
}

// Encode renders h and its observations as summary text plus JSON payload.
func Encode(h models.Hike, obs []models.Observation) (string, error) {
	data, err := json.MarshalIndent(NewPayload(h, obs), "", "  ")
	if err != nil {
		return "", fmt.Errorf("exchange: marshal: %w", err)
	}

	var b strings.Builder
	writeSummary(&b, h, obs)
	b.WriteString("\n")
	b.WriteString(DataMarker)
	b.WriteString("\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}

func writeSummary(b *strings.Builder, h models.Hike, obs []models.Observation) {
	fmt.Fprintf(b, "Hike: %s\n", h.Name)
	fmt.Fprintf(b, "Location: %s\n", h.Location)
	fmt.Fprintf(b, "Date: %s\n", h.Date)
	fmt.Fprintf(b, "Length: %s km\n", strconv.FormatFloat(h.LengthKm, 'f', -1, 64))
	fmt.Fprintf(b, "Difficulty: %s\n", h.Difficulty)
	fmt.Fprintf(b, "Parking: %s\n", yesNo(h.ParkingAvailable))
	if h.ElevationGainM != nil {
		fmt.Fprintf(b, "Elevation gain: %d m\n", *h.ElevationGainM)
	}
	if h.Rating != nil {
		fmt.Fprintf(b, "Rating: %s/5\n", strconv.FormatFloat(*h.Rating, 'f', -1, 64))
	}
	if h.Latitude != nil && h.Longitude != nil {
		fmt.Fprintf(b, "Coordinates: %.5f, %.5f\n", *h.Latitude, *h.Longitude)
	}
	if h.Description != nil && *h.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", *h.Description)
	}
	fmt.Fprintf(b, "Observations: %d\n", len(obs))
	for _, o := range obs {
		ts := time.UnixMilli(o.Timestamp).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(b, "  - [%s UTC] %s", ts, o.Observation)
		if o.Comments != nil && *o.Comments != "" {
			fmt.Fprintf(b, " (%s)", *o.Comments)
		}
		b.WriteString("\n")
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// Decode extracts and validates the payload embedded in text. Text around
// the JSON object is ignored. Errors match apperr.ErrFormat.
func Decode(text string) (*Payload, error) {
	block, ok := locateObject(text)
	if !ok {
		return nil, apperr.New(apperr.ErrFormat, "invalid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return nil, apperr.New(apperr.ErrFormat, "invalid JSON")
	}
	var missing []string
	for _, k := range requiredFields {
		raw, ok := fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.ErrFormat, "missing required fields: %s", strings.Join(missing, ", "))
	}

	var p Payload
	if err := json.Unmarshal([]byte(block), &p); err != nil {
		return nil, apperr.New(apperr.ErrFormat, "invalid JSON")
	}
	return &p, nil
}

// maxCandidates bounds how many '{' positions one region is tried from.
const maxCandidates = 32

// locateObject finds the payload: the first balanced block that is a valid
// JSON object, looking after the last marker line before the whole text.
// The marker is only a hint since names and summaries may contain it.
func locateObject(text string) (string, bool) {
	regions := []string{text}
	if i := afterMarkerLine(text); i >= 0 {
		regions = []string{text[i:], text}
	}
	for _, r := range regions {
		off := 0
		for n := 0; n < maxCandidates; n++ {
			i := strings.IndexByte(r[off:], '{')
			if i < 0 {
				break
			}
			start := off + i
			if block, ok := firstObject(r[start:]); ok && json.Valid([]byte(block)) {
				return block, true
			}
			off = start + 1
		}
	}
	return "", false
}

// afterMarkerLine returns the offset just past the last line consisting of
// DataMarker alone, or -1.
func afterMarkerLine(text string) int {
	pos := -1
	off := 0
	for line := range strings.Lines(text) {
		off += len(line)
		if strings.TrimSpace(line) == DataMarker {
			pos = off
		}
	}
	return pos
}

// firstObject returns the first balanced {...} block in s, skipping braces
// that appear inside JSON string literals.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
