// Package calendar adds hikes to the user's calendar.
//
// The strategy is chosen once from the platform flag in the config: "ics"
// writes an iCalendar file the desktop calendar can open, "none" never adds.
package calendar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/hikelog/internal/models"
)

// Platforms understood by New.
const (
	PlatformICS  = "ics"
	PlatformNone = "none"
)

// Adder creates a calendar entry for a hike and reports whether it was added.
type Adder interface {
	Add(ctx context.Context, h models.Hike) (bool, error)
}

// New selects the Adder for platform. dir is only used by the ics strategy.
func New(platform, dir string) (Adder, error) {
	switch platform {
	case PlatformICS:
		return NewICSWriter(dir)
	case PlatformNone, "":
		return noop{}, nil
	default:
		return nil, fmt.Errorf("calendar: unknown platform %q", platform)
	}
}

type noop struct{}

func (noop) Add(context.Context, models.Hike) (bool, error) { return false, nil }

// ICSWriter writes one all-day VEVENT file per hike into a directory.
type ICSWriter struct {
	dir string
	now func() time.Time
}

// NewICSWriter creates dir if needed.
func NewICSWriter(dir string) (*ICSWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("calendar: mkdir: %w", err)
	}
	return &ICSWriter{dir: dir, now: time.Now}, nil
}

// Path returns the file written for hikeID.
func (w *ICSWriter) Path(hikeID int64) string {
	return filepath.Join(w.dir, "hike-"+strconv.FormatInt(hikeID, 10)+".ics")
}

// Add writes (or overwrites) the event file for h.
func (w *ICSWriter) Add(ctx context.Context, h models.Hike) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	day, err := time.Parse(models.DateLayout, h.Date)
	if err != nil {
		return false, fmt.Errorf("calendar: hike date: %w", err)
	}
	if err := os.WriteFile(w.Path(h.ID), []byte(w.render(h, day)), 0o644); err != nil {
		return false, fmt.Errorf("calendar: write event: %w", err)
	}
	return true, nil
}

func (w *ICSWriter) render(h models.Hike, day time.Time) string {
	desc := fmt.Sprintf("%s km, %s", strconv.FormatFloat(h.LengthKm, 'f', -1, 64), h.Difficulty)
	if h.Description != nil && *h.Description != "" {
		desc += "\n" + *h.Description
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//hikelog//EN",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:hike-%d@hikelog", h.ID),
		"DTSTAMP:" + w.now().UTC().Format("20060102T150405Z"),
		"DTSTART;VALUE=DATE:" + day.Format("20060102"),
		"DTEND;VALUE=DATE:" + day.AddDate(0, 0, 1).Format("20060102"),
		"SUMMARY:" + escapeText("Hike: "+h.Name),
		"LOCATION:" + escapeText(h.Location),
		"DESCRIPTION:" + escapeText(desc),
	}
	if h.Latitude != nil && h.Longitude != nil {
		lines = append(lines, fmt.Sprintf("GEO:%f;%f", *h.Latitude, *h.Longitude))
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n"
}

var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}
