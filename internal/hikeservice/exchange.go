package hikeservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/hikelog/internal/exchange"
	"github.com/starford/hikelog/internal/live"
)

// ImportResult is the user-facing outcome of ImportFromText.
type ImportResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	HikeID  int64  `json:"hikeId,omitempty"`
}

// ExportHike renders a hike and its observations in the shareable text format.
func (s *Service) ExportHike(ctx context.Context, id int64) (string, error) {
	h, err := s.GetHike(ctx, id)
	if err != nil {
		return "", err
	}
	obs, err := s.db.ListObservations(ctx, id)
	if err != nil {
		return "", err
	}
	return exchange.Encode(*h, obs)
}

// ImportFromText decodes an exported hike and stores it with its
// observations in one transaction. A hike whose natural key is already
// stored is refused without writing anything. Failures never escape as
// errors; they are reported in the result message.
func (s *Service) ImportFromText(ctx context.Context, text string) ImportResult {
	p, err := exchange.Decode(text)
	if err != nil {
		return s.importFailed(err.Error())
	}

	h := p.Hike()

	dup, err := s.db.FindDuplicate(ctx, h)
	if err != nil {
		return s.importFailed(err.Error())
	}
	if dup != nil {
		return s.importFailed(fmt.Sprintf("Hike %q on %s already exists; nothing was imported", dup.Name, dup.Date))
	}

	if err := validate(&h); err != nil {
		return s.importFailed(err.Error())
	}
	obs := p.ObservationsFor(0)
	for i := range obs {
		// HikeID is assigned by the store; give the rule a placeholder.
		o := obs[i]
		o.HikeID = 1
		if err := validate(&o); err != nil {
			return s.importFailed(fmt.Sprintf("observation %d: %s", i+1, err.Error()))
		}
	}

	id, err := s.db.InsertHikeWithObservations(ctx, h, obs)
	if err != nil {
		return s.importFailed(err.Error())
	}
	s.notify(live.KindImported, id)
	s.logger.Info("import: hike imported",
		slog.Int64("hike_id", id),
		slog.String("name", h.Name),
		slog.Int("observations", len(obs)))

	return ImportResult{
		Success: true,
		Message: fmt.Sprintf("Imported %q with %d %s", h.Name, len(obs), plural(len(obs), "observation")),
		HikeID:  id,
	}
}

func (s *Service) importFailed(msg string) ImportResult {
	s.logger.Warn("import: rejected", slog.String("reason", msg))
	return ImportResult{Success: false, Message: msg}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
