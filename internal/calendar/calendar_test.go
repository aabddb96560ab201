package calendar

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/hikelog/internal/models"
)

func TestNew_SelectsStrategy(t *testing.T) {
	a, err := New(PlatformICS, t.TempDir())
	if err != nil {
		t.Fatalf("New(ics): %v", err)
	}
	if _, ok := a.(*ICSWriter); !ok {
		t.Errorf("ics platform gave %T", a)
	}

	a, err = New(PlatformNone, "")
	if err != nil {
		t.Fatal(err)
	}
	added, err := a.Add(context.Background(), models.Hike{})
	if err != nil || added {
		t.Errorf("none strategy added=%v err=%v", added, err)
	}

	if _, err := New("android", ""); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestICSWriter_Add(t *testing.T) {
	w, err := NewICSWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w.now = func() time.Time { return time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC) }

	h := models.Hike{
		ID: 4, Name: "Snowdon", Location: "Llanberis, UK", Date: "2025-07-10",
		LengthKm: 14.5, Difficulty: models.DifficultyHard,
		Latitude: models.Ptr(53.0685), Longitude: models.Ptr(-4.0763),
	}
	added, err := w.Add(context.Background(), h)
	if err != nil || !added {
		t.Fatalf("Add: added=%v err=%v", added, err)
	}

	data, err := os.ReadFile(w.Path(4))
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	for _, want := range []string{
		"UID:hike-4@hikelog",
		"DTSTAMP:20250701T080000Z",
		"DTSTART;VALUE=DATE:20250710",
		"DTEND;VALUE=DATE:20250711",
		"SUMMARY:Hike: Snowdon",
		`LOCATION:Llanberis\, UK`,
		"GEO:53.068500;-4.076300",
	} {
		if !strings.Contains(body, want+"\r\n") {
			t.Errorf("event missing %q:\n%s", want, body)
		}
	}
}

func TestICSWriter_BadDate(t *testing.T) {
	w, _ := NewICSWriter(t.TempDir())
	if _, err := w.Add(context.Background(), models.Hike{ID: 1, Date: "10/07/2025"}); err == nil {
		t.Error("expected error for malformed date")
	}
}
