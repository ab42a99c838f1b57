package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/events"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/httputil"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/store"
	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

// ---------------------------------------------------------------------------
// Live search: GET /get_abbreviations
// ---------------------------------------------------------------------------

// handleGetAbbreviations returns the entries whose abbreviation contains
// ?search= as a JSON array. A blank query returns every entry.
//
// Response: 200 with a (possibly empty) array of types.Entry.
func (s *Server) handleGetAbbreviations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "GetAbbreviations").Logger()

	query := r.URL.Query().Get("search")
	entries, err := s.store.SearchEntries(ctx, store.SearchOptions{
		Query: query,
		Scope: store.ScopeAbbreviation,
	})
	if err != nil {
		logger.Error().Err(err).Str("search", query).Msg("failed to search entries")
		httputil.RespondProblem(w, r, http.StatusInternalServerError, "an unexpected error occurred")
		return
	}

	items := make([]types.Entry, len(entries))
	for i, e := range entries {
		items[i] = types.Entry{
			ID:           e.ID,
			Abbreviation: e.Abbreviation,
			FullForm:     e.FullForm,
			Description:  e.Description,
		}
	}
	httputil.RespondJSON(w, http.StatusOK, items)
}

// ---------------------------------------------------------------------------
// Seed: GET /seed
// ---------------------------------------------------------------------------

// handleSeed inserts every catalog entry whose abbreviation is not stored yet
// and reports how many were added.
//
// Response: 200 text/plain.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "Seed").Logger()

	inserted, err := s.store.SeedEntries(ctx, s.catalog)
	if err != nil {
		logger.Error().Err(err).Msg("failed to seed catalog")
		httputil.RespondProblem(w, r, http.StatusInternalServerError, "an unexpected error occurred")
		return
	}

	logger.Info().Int("inserted", inserted).Int("catalog_size", len(s.catalog)).Msg("catalog seeded")
	if s.metrics != nil {
		s.metrics.AddSeeded(inserted)
	}
	if inserted > 0 {
		evt, evtErr := events.NewSeededEvent(inserted)
		s.publish(ctx, evt, evtErr)
	}

	httputil.RespondText(w, http.StatusOK, SeedMessage(inserted))
}

// SeedMessage is the confirmation text reported after a seed run.
func SeedMessage(inserted int) string {
	return fmt.Sprintf("Database seeded with %d new abbreviations.\n", inserted)
}
