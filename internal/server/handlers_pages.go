package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/events"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/httputil"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/store"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/view"
)

// ---------------------------------------------------------------------------
// List / search: GET /
// ---------------------------------------------------------------------------

// handleIndex lists every entry, or those whose abbreviation, full form or
// description contains ?search=.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "Index").Logger()

	query := r.URL.Query().Get("search")

	var (
		entries []model.Entry
		err     error
	)
	if strings.TrimSpace(query) == "" {
		entries, err = s.store.ListEntries(ctx)
	} else {
		entries, err = s.store.SearchEntries(ctx, store.SearchOptions{Query: query, Scope: store.ScopeAll})
	}
	if err != nil {
		logger.Error().Err(err).Str("search", query).Msg("failed to list entries")
		s.respondInternalError(w)
		return
	}

	s.renderPage(w, r, http.StatusOK, view.PageIndex, view.IndexPage{
		Entries: entries,
		Search:  query,
	})
}

// ---------------------------------------------------------------------------
// Create: GET/POST /create
// ---------------------------------------------------------------------------

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	s.renderEntryForm(w, r, createFormPage(), entryForm{}, nil)
}

// handleCreate validates the submitted form and inserts a new entry. Invalid
// input and duplicate abbreviations re-render the form with HTTP 200.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "Create").Logger()
	page := createFormPage()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := entryFormFromRequest(r)

	if err := s.csrf.Verify(r); err != nil {
		logger.Debug().Err(err).Msg("rejected form submission")
		s.renderEntryForm(w, r, page, form, []httputil.ValidationError{invalidTokenError})
		return
	}
	if errs := validateEntryForm(form); len(errs) > 0 {
		s.renderEntryForm(w, r, page, form, errs)
		return
	}

	created, err := s.store.CreateEntry(ctx, form.entry(0))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.renderEntryForm(w, r, page, form, []httputil.ValidationError{
				duplicateAbbreviationError(strings.TrimSpace(form.Abbreviation)),
			})
			return
		}
		logger.Error().Err(err).Msg("failed to create entry")
		s.respondInternalError(w)
		return
	}

	logger.Info().Int64("id", created.ID).Str("abbreviation", created.Abbreviation).Msg("entry created")
	evt, evtErr := events.NewEntryEvent(events.OpCreated, created)
	s.publish(ctx, evt, evtErr)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ---------------------------------------------------------------------------
// Update: GET/POST /update/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "UpdateForm").Logger()

	id, ok := entryID(r)
	if !ok {
		s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
		return
	}

	existing, err := s.store.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
			return
		}
		logger.Error().Err(err).Int64("id", id).Msg("failed to get entry")
		s.respondInternalError(w)
		return
	}

	s.renderEntryForm(w, r, updateFormPage(id), entryFormFromModel(existing), nil)
}

// handleUpdate replaces all three fields of an existing entry.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "Update").Logger()

	id, ok := entryID(r)
	if !ok {
		s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
		return
	}
	page := updateFormPage(id)

	if _, err := s.store.GetEntry(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
			return
		}
		logger.Error().Err(err).Int64("id", id).Msg("failed to get entry")
		s.respondInternalError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := entryFormFromRequest(r)

	if err := s.csrf.Verify(r); err != nil {
		logger.Debug().Err(err).Msg("rejected form submission")
		s.renderEntryForm(w, r, page, form, []httputil.ValidationError{invalidTokenError})
		return
	}
	if errs := validateEntryForm(form); len(errs) > 0 {
		s.renderEntryForm(w, r, page, form, errs)
		return
	}

	updated, err := s.store.UpdateEntry(ctx, form.entry(id))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
		case errors.Is(err, store.ErrConflict):
			s.renderEntryForm(w, r, page, form, []httputil.ValidationError{
				duplicateAbbreviationError(strings.TrimSpace(form.Abbreviation)),
			})
		default:
			logger.Error().Err(err).Int64("id", id).Msg("failed to update entry")
			s.respondInternalError(w)
		}
		return
	}

	logger.Info().Int64("id", updated.ID).Str("abbreviation", updated.Abbreviation).Msg("entry updated")
	evt, evtErr := events.NewEntryEvent(events.OpUpdated, updated)
	s.publish(ctx, evt, evtErr)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ---------------------------------------------------------------------------
// Delete: GET /delete/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx).With().Str("handler", "Delete").Logger()

	id, ok := entryID(r)
	if !ok {
		s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
		return
	}

	if err := s.store.DeleteEntry(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderEntryNotFound(w, r, chi.URLParam(r, "id"))
			return
		}
		logger.Error().Err(err).Int64("id", id).Msg("failed to delete entry")
		s.respondInternalError(w)
		return
	}

	logger.Info().Int64("id", id).Msg("entry deleted")
	evt, evtErr := events.NewDeletedEvent(id)
	s.publish(ctx, evt, evtErr)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ---------------------------------------------------------------------------
// Form helpers
// ---------------------------------------------------------------------------

func createFormPage() view.FormPage {
	return view.FormPage{
		Title:  "Add Abbreviation",
		Action: "/create",
		Submit: "Create",
	}
}

func updateFormPage(id int64) view.FormPage {
	return view.FormPage{
		Title:  "Update Abbreviation",
		Action: fmt.Sprintf("/update/%d", id),
		Submit: "Save",
	}
}

// renderEntryForm renders page with the given values and errors, issuing a
// fresh anti-forgery token. The status is always 200, including when errs is
// non-empty.
func (s *Server) renderEntryForm(w http.ResponseWriter, r *http.Request, page view.FormPage, form entryForm, errs []httputil.ValidationError) {
	token, err := s.csrf.Issue(w, r)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to issue anti-forgery token")
		s.respondInternalError(w)
		return
	}

	page.CSRFToken = token
	page.Values = view.FormValues{
		Abbreviation: form.Abbreviation,
		FullForm:     form.FullForm,
		Description:  form.Description,
	}
	page.MaxAbbreviation = model.MaxAbbreviationLength
	page.MaxFullForm = model.MaxFullFormLength
	for _, e := range errs {
		if e.Field == "" {
			page.FormErrors = append(page.FormErrors, e.Message)
			continue
		}
		if page.FieldErrors == nil {
			page.FieldErrors = make(map[string][]string)
		}
		page.FieldErrors[e.Field] = append(page.FieldErrors[e.Field], e.Message)
	}

	s.renderPage(w, r, http.StatusOK, view.PageForm, page)
}

func (s *Server) renderEntryNotFound(w http.ResponseWriter, r *http.Request, rawID string) {
	s.renderPage(w, r, http.StatusNotFound, view.PageNotFound, view.NotFoundPage{
		Message: fmt.Sprintf("Abbreviation %s does not exist.", rawID),
	})
}

// entryID parses the {id} path parameter. Values that match the route but
// overflow int64 cannot name an entry.
func entryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
